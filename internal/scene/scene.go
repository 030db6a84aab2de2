// Package scene loads YAML scene descriptions into a world.
package scene

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/l1jgo/worldcore/internal/core/ecs"
	"github.com/l1jgo/worldcore/internal/core/world"
)

// Configurable components read their settings from a scene node.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Scene is a parsed scene file.
type Scene struct {
	Name    string        `yaml:"name"`
	Objects []ObjectEntry `yaml:"objects"`
}

// ObjectEntry describes one object and its subtree.
type ObjectEntry struct {
	Name       string           `yaml:"name"`
	Position   *[3]float32      `yaml:"position"`
	Rotation   *[3]float32      `yaml:"rotation"`
	Scale      *[3]float32      `yaml:"scale"`
	Inactive   bool             `yaml:"inactive"`
	Components []ComponentEntry `yaml:"components"`
	Children   []ObjectEntry    `yaml:"children"`
}

// ComponentEntry names a registered component type. Config is passed to the
// component if it implements Configurable.
type ComponentEntry struct {
	Type   string    `yaml:"type"`
	Config yaml.Node `yaml:"config"`
}

// Load reads a scene file.
func Load(path string) (*Scene, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	s, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse scene %s: %w", path, err)
	}
	return s, nil
}

func Parse(raw []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Count returns the number of objects in the scene, children included.
func (s *Scene) Count() int {
	var count func([]ObjectEntry) int
	count = func(entries []ObjectEntry) int {
		n := len(entries)
		for i := range entries {
			n += count(entries[i].Children)
		}
		return n
	}
	return count(s.Objects)
}

// Instantiate creates the scene's objects in w and returns the root handles.
// Components of unregistered types are skipped with a warning.
func (s *Scene) Instantiate(w *world.World, log *zap.Logger) ([]ecs.ObjectHandle, error) {
	if log == nil {
		log = zap.NewNop()
	}
	guard := w.Write()
	defer guard.Release()

	roots := make([]ecs.ObjectHandle, 0, len(s.Objects))
	for i := range s.Objects {
		h, err := instantiate(w, log, &s.Objects[i], ecs.ObjectHandle{})
		if err != nil {
			return roots, err
		}
		roots = append(roots, h)
	}
	log.Info("scene instantiated", zap.String("scene", s.Name), zap.Int("objects", s.Count()))
	return roots, nil
}

func instantiate(w *world.World, log *zap.Logger, e *ObjectEntry, parent ecs.ObjectHandle) (ecs.ObjectHandle, error) {
	t := world.IdentityTransform()
	if e.Position != nil {
		t.Position = vec(*e.Position)
	}
	if e.Rotation != nil {
		t.Rotation = vec(*e.Rotation)
	}
	if e.Scale != nil {
		t.Scale = vec(*e.Scale)
	}
	h, o := w.CreateObject(world.ObjectDesc{
		Name:      e.Name,
		Parent:    parent,
		Transform: t,
		Inactive:  e.Inactive,
	})

	for i := range e.Components {
		ce := &e.Components[i]
		id, ok := w.Registry().TypeIDByName(ce.Type)
		if !ok {
			log.Warn("scene component type not registered",
				zap.String("object", e.Name),
				zap.String("type", ce.Type),
			)
			continue
		}
		m, err := w.GetOrCreateManager(id)
		if err != nil {
			return h, fmt.Errorf("object %s: %w", e.Name, err)
		}
		ch, c := m.NewComponent()
		if cfg, ok := c.(Configurable); ok && !ce.Config.IsZero() {
			if err := cfg.Configure(&ce.Config); err != nil {
				m.DeleteComponent(ch)
				return h, fmt.Errorf("object %s: configure %s: %w", e.Name, ce.Type, err)
			}
		}
		if err := o.AttachComponent(c); err != nil {
			return h, fmt.Errorf("object %s: %w", e.Name, err)
		}
	}

	for i := range e.Children {
		if _, err := instantiate(w, log, &e.Children[i], h); err != nil {
			return h, err
		}
	}
	return h, nil
}

func vec(v [3]float32) world.Vec3 {
	return world.Vec3{X: v[0], Y: v[1], Z: v[2]}
}
