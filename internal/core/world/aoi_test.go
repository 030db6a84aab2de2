package world

import (
	"testing"

	"github.com/l1jgo/worldcore/internal/core/ecs"
)

func TestBuildAOI(t *testing.T) {
	w := New("aoi", nil, nil, nil)
	place := func(name string, x, z float32, parent ecs.ObjectHandle) ecs.ObjectHandle {
		h, _ := w.CreateObject(ObjectDesc{
			Name:      name,
			Parent:    parent,
			Transform: Transform{Position: Vec3{X: x, Z: z}, Scale: Vec3{1, 1, 1}},
		})
		return h
	}
	origin := place("origin", 0, 0, ecs.ObjectHandle{})
	near := place("near", 3, -4, ecs.ObjectHandle{})
	far := place("far", 40, 40, ecs.ObjectHandle{})
	hub := place("hub", 38, 38, ecs.ObjectHandle{})
	child := place("child", 2, 2, hub) // world position (40, 40)
	sleeper := place("sleeper", 1, 1, ecs.ObjectHandle{})
	if o, ok := w.TryGetObject(sleeper); ok {
		o.SetActive(false)
	}

	g := w.BuildAOI(10)
	got := g.Nearby(Vec3{}, 5)
	if !containsAll(got, origin, near) || len(got) != 2 {
		t.Errorf("expected origin and near, got %v", got)
	}
	got = g.Nearby(Vec3{X: 40, Z: 40}, 1)
	if !containsAll(got, far, child) || len(got) != 2 {
		t.Errorf("expected far and child, got %v", got)
	}
	if len(g.Nearby(Vec3{X: -100}, 5)) != 0 {
		t.Error("expected empty area")
	}
}

func containsAll(hs []ecs.ObjectHandle, want ...ecs.ObjectHandle) bool {
	for _, w := range want {
		found := false
		for _, h := range hs {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
