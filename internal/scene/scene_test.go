package scene

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/l1jgo/worldcore/internal/component"
	"github.com/l1jgo/worldcore/internal/core/world"
)

const demo = `
name: demo
objects:
  - name: fleet
    position: [10, 0, 0]
    children:
      - name: scout
        components:
          - type: mover
            config:
              velocity: [1, 0, 0]
          - type: lifetime
            config:
              seconds: 5
      - name: decoy
        inactive: true
        components:
          - type: hologram
  - name: beacon
    scale: [2, 2, 2]
`

func newWorld(t *testing.T) *world.World {
	t.Helper()
	reg := world.NewRegistry()
	if err := component.Register(reg, 100*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	return world.New("scene", reg, nil, nil)
}

func TestInstantiate(t *testing.T) {
	s, err := Parse([]byte(demo))
	if err != nil {
		t.Fatal(err)
	}
	if s.Count() != 4 {
		t.Fatalf("expected 4 objects, got %d", s.Count())
	}

	w := newWorld(t)
	roots, err := s.Instantiate(w, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 2 || w.ObjectCount() != 4 {
		t.Fatalf("expected 2 roots and 4 objects, got %d and %d", len(roots), w.ObjectCount())
	}

	scoutH, ok := w.FindObject("scout")
	if !ok {
		t.Fatal("expected scout")
	}
	scout, _ := w.TryGetObject(scoutH)
	if scout.ParentHandle() != roots[0] {
		t.Errorf("expected scout under fleet")
	}
	if scout.ComponentCount() != 2 {
		t.Fatalf("expected mover and lifetime on scout, got %d", scout.ComponentCount())
	}
	mv, ok := world.TryGet[*component.Mover](w, scout.Components()[0])
	if !ok || mv.Velocity != (world.Vec3{X: 1}) {
		t.Errorf("expected configured mover, got %+v", mv)
	}
	lt, ok := world.TryGet[*component.Lifetime](w, scout.Components()[1])
	if !ok || lt.Remaining != 5*time.Second {
		t.Errorf("expected 5s lifetime, got %+v", lt)
	}

	decoyH, _ := w.FindObject("decoy")
	decoy, _ := w.TryGetObject(decoyH)
	if decoy.IsActive() || decoy.ComponentCount() != 0 {
		t.Errorf("expected inactive decoy without the unknown component")
	}

	beacon, _ := w.TryGetObject(roots[1])
	if beacon.Transform().Scale != (world.Vec3{X: 2, Y: 2, Z: 2}) {
		t.Errorf("expected beacon scale 2, got %+v", beacon.Transform().Scale)
	}
	fleet, _ := w.TryGetObject(roots[0])
	if fleet.Transform().Scale != (world.Vec3{X: 1, Y: 1, Z: 1}) {
		t.Errorf("expected identity scale by default, got %+v", fleet.Transform().Scale)
	}
}

func TestInstantiateRejectsBadConfig(t *testing.T) {
	s, err := Parse([]byte(`
objects:
  - name: broken
    components:
      - type: mover
        config:
          velocity: fast
`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Instantiate(newWorld(t), nil); err == nil {
		t.Error("expected configure error")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	if err := os.WriteFile(path, []byte(demo), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "demo" {
		t.Errorf("expected demo, got %q", s.Name)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
