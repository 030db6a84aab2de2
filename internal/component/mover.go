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
	MoverType    = "mover"
	MoverVersion = 1

	// moverGranularity is the chunk size of the async integration pass.
	moverGranularity = 64
)

// Mover moves its owner at a constant velocity in units per second.
// Integration runs in the Async phase into a staged position; the PostAsync
// pass writes it back to the owner on the frame goroutine.
type Mover struct {
	world.ComponentBase
	Velocity world.Vec3

	staged  world.Vec3
	pending bool
}

type moverYAML struct {
	Velocity [3]float32 `yaml:"velocity"`
}

// Configure reads {velocity: [x, y, z]}.
func (m *Mover) Configure(node *yaml.Node) error {
	var v moverYAML
	if err := node.Decode(&v); err != nil {
		return err
	}
	m.Velocity = world.Vec3{X: v.Velocity[0], Y: v.Velocity[1], Z: v.Velocity[2]}
	return nil
}

func (m *Mover) SerializeComponent(w *stream.Writer) {
	w.WriteF(m.Velocity.X)
	w.WriteF(m.Velocity.Y)
	w.WriteF(m.Velocity.Z)
}

func (m *Mover) DeserializeComponent(r *stream.Reader, _ uint32) error {
	m.Velocity = world.Vec3{X: r.ReadF(), Y: r.ReadF(), Z: r.ReadF()}
	return r.Err()
}

// MoverManager integrates every active Mover each frame.
type MoverManager struct {
	*world.ComponentManager[Mover, *Mover]
	step float32 // seconds per frame
}

func moverCtor(step time.Duration) world.ManagerCtor {
	return func(w *world.World, id ecs.TypeID) world.Manager {
		return &MoverManager{
			ComponentManager: world.NewComponentManager[Mover, *Mover](w, id),
			step:             float32(step.Seconds()),
		}
	}
}

func (m *MoverManager) Initialize() {
	integrate := m.UpdateFunctionDesc("Integrate", m.integrate)
	integrate.Phase = system.PhaseAsync
	integrate.Granularity = moverGranularity

	apply := m.UpdateFunctionDesc("Apply", m.apply)
	apply.Phase = system.PhasePostAsync
	apply.DependsOn = []string{integrate.Name}

	for _, d := range []system.Desc{integrate, apply} {
		if err := m.RegisterUpdateFunction(d); err != nil {
			m.World().Logger().Error("mover update function rejected", zap.Error(err))
			return
		}
	}
}

// integrate only reads owners; chunks never touch shared state.
func (m *MoverManager) integrate(start, count uint32) {
	for c := range m.Range(start, count) {
		if !c.IsActive() {
			continue
		}
		owner, ok := c.Owner()
		if !ok {
			continue
		}
		c.staged = owner.Transform().Position.Add(c.Velocity.Scale(m.step))
		c.pending = true
	}
}

func (m *MoverManager) apply(start, count uint32) {
	for c := range m.Range(start, count) {
		if !c.pending {
			continue
		}
		c.pending = false
		if owner, ok := c.Owner(); ok {
			t := owner.Transform()
			t.Position = c.staged
			owner.SetTransform(t)
		}
	}
}
