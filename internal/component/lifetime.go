package component

import (
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/l1jgo/worldcore/internal/core/ecs"
	"github.com/l1jgo/worldcore/internal/core/stream"
	"github.com/l1jgo/worldcore/internal/core/system"
	"github.com/l1jgo/worldcore/internal/core/world"
)

const (
	LifetimeType    = "lifetime"
	LifetimeVersion = 1
)

// Lifetime deletes its owner once Remaining runs out. The deletion is deferred
// to the end of the frame in which it expires.
type Lifetime struct {
	world.ComponentBase
	Remaining time.Duration
}

type lifetimeYAML struct {
	Seconds float64 `yaml:"seconds"`
}

// Configure reads {seconds: n}.
func (l *Lifetime) Configure(node *yaml.Node) error {
	var v lifetimeYAML
	if err := node.Decode(&v); err != nil {
		return err
	}
	l.Remaining = time.Duration(v.Seconds * float64(time.Second))
	return nil
}

func (l *Lifetime) SerializeComponent(w *stream.Writer) {
	w.WriteQ(uint64(l.Remaining))
}

func (l *Lifetime) DeserializeComponent(r *stream.Reader, _ uint32) error {
	l.Remaining = time.Duration(r.ReadQ())
	return r.Err()
}

type LifetimeManager struct {
	*world.ComponentManager[Lifetime, *Lifetime]
	step time.Duration
}

func lifetimeCtor(step time.Duration) world.ManagerCtor {
	return func(w *world.World, id ecs.TypeID) world.Manager {
		return &LifetimeManager{
			ComponentManager: world.NewComponentManager[Lifetime, *Lifetime](w, id),
			step:             step,
		}
	}
}

func (m *LifetimeManager) Initialize() {
	d := m.UpdateFunctionDesc("Expire", m.expire)
	d.Phase = system.PhasePostAsync
	if err := m.RegisterUpdateFunction(d); err != nil {
		m.World().Logger().Error("lifetime update function rejected", zap.Error(err))
	}
}

func (m *LifetimeManager) expire(start, count uint32) {
	var expired []ecs.ObjectHandle
	for c := range m.Range(start, count) {
		if !c.IsActive() {
			continue
		}
		c.Remaining -= m.step
		if c.Remaining <= 0 {
			expired = append(expired, c.OwnerHandle())
		}
	}
	for _, h := range expired {
		if !h.IsZero() {
			m.World().DeleteObject(h)
		}
	}
}
