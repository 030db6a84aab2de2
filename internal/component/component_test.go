package component

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/worldcore/internal/core/system"
	"github.com/l1jgo/worldcore/internal/core/world"
)

func newWorld(t *testing.T, pool *system.WorkerPool) *world.World {
	t.Helper()
	reg := world.NewRegistry()
	if err := Register(reg, 100*time.Millisecond); err != nil {
		t.Fatalf("register: %v", err)
	}
	return world.New("test", reg, pool, nil)
}

func TestMoverIntegratesInParallel(t *testing.T) {
	pool := system.NewWorkerPool(4)
	defer pool.Close()
	w := newWorld(t, pool)

	const n = 300 // several chunks of 64
	objs := make([]*world.GameObject, n)
	for i := range objs {
		_, o := w.CreateObject(world.ObjectDesc{Name: "ship"})
		_, m, err := world.CreateComponent[Mover](w)
		if err != nil {
			t.Fatal(err)
		}
		m.Velocity = world.Vec3{X: float32(i), Y: 0, Z: -10}
		if err := o.AttachComponent(m); err != nil {
			t.Fatal(err)
		}
		objs[i] = o
	}

	for frame := 0; frame < 2; frame++ {
		if err := w.Update(); err != nil {
			t.Fatalf("frame %d: %v", frame, err)
		}
	}
	for i, o := range objs {
		pos := o.Transform().Position
		wantX := float32(i) * 0.2
		if diff := pos.X - wantX; diff > 1e-3 || diff < -1e-3 || pos.Z > -1.999 || pos.Z < -2.001 {
			t.Fatalf("object %d: expected (%.2f, 0, -2), got %+v", i, wantX, pos)
		}
	}
}

func TestMoverSkipsInactiveOwners(t *testing.T) {
	w := newWorld(t, nil)
	_, o := w.CreateObject(world.ObjectDesc{Name: "parked", Inactive: true})
	_, m, _ := world.CreateComponent[Mover](w)
	m.Velocity = world.Vec3{X: 5}
	_ = o.AttachComponent(m)

	if err := w.Update(); err != nil {
		t.Fatal(err)
	}
	if o.Transform().Position != (world.Vec3{}) {
		t.Errorf("expected inactive object to stay put, got %+v", o.Transform().Position)
	}
}

func TestLifetimeDeletesOwnerAtFrameEnd(t *testing.T) {
	w := newWorld(t, nil)
	h, o := w.CreateObject(world.ObjectDesc{Name: "spark"})
	_, l, _ := world.CreateComponent[Lifetime](w)

	var node yaml.Node
	if err := yaml.Unmarshal([]byte("seconds: 0.25"), &node); err != nil {
		t.Fatal(err)
	}
	if err := l.Configure(node.Content[0]); err != nil {
		t.Fatal(err)
	}
	if l.Remaining != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", l.Remaining)
	}
	_ = o.AttachComponent(l)

	for frame := 1; frame <= 2; frame++ {
		if err := w.Update(); err != nil {
			t.Fatal(err)
		}
		if _, ok := w.TryGetObject(h); !ok {
			t.Fatalf("object deleted early in frame %d", frame)
		}
	}
	if err := w.Update(); err != nil {
		t.Fatal(err)
	}
	if _, ok := w.TryGetObject(h); ok {
		t.Error("expected object deleted after its lifetime")
	}
}

func TestMoverConfigure(t *testing.T) {
	var node yaml.Node
	if err := yaml.Unmarshal([]byte("velocity: [1, 2.5, -3]"), &node); err != nil {
		t.Fatal(err)
	}
	var m Mover
	if err := m.Configure(node.Content[0]); err != nil {
		t.Fatal(err)
	}
	if m.Velocity != (world.Vec3{X: 1, Y: 2.5, Z: -3}) {
		t.Errorf("expected velocity (1, 2.5, -3), got %+v", m.Velocity)
	}
}
