package scripting

import (
	"errors"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/l1jgo/worldcore/internal/core/ecs"
	"github.com/l1jgo/worldcore/internal/core/resource"
	"github.com/l1jgo/worldcore/internal/core/stream"
	"github.com/l1jgo/worldcore/internal/core/world"
)

const (
	ScriptType    = "script"
	ScriptVersion = 1
)

// Script runs a Lua module against its owner every frame. The module source
// is a resource; until it has loaded the script does nothing.
type Script struct {
	world.ComponentBase
	Source string // resource key

	src    *resource.Handle[string]
	module *lua.LTable
	self   *lua.LTable
	failed bool
}

// Configure reads {source: key}.
func (s *Script) Configure(node *yaml.Node) error {
	var v struct {
		Source string `yaml:"source"`
	}
	if err := node.Decode(&v); err != nil {
		return err
	}
	s.Source = v.Source
	return nil
}

func (s *Script) SerializeComponent(w *stream.Writer) { w.WriteS(s.Source) }

func (s *Script) DeserializeComponent(r *stream.Reader, _ uint32) error {
	s.Source = r.ReadS()
	return r.Err()
}

func (s *Script) Initialize() {
	if m, ok := s.Manager().(*ScriptManager); ok && s.Source != "" {
		s.src = resource.Acquire(m.engine.resources, s.Source, resource.Text)
	}
}

func (s *Script) Deinitialize() {
	if s.src != nil {
		s.src.Release()
		s.src = nil
	}
	s.module = nil
	s.self = nil
}

// Loaded reports whether the module has been compiled.
func (s *Script) Loaded() bool { return s.module != nil }

// ScriptManager drives every Script in the Sync phase.
type ScriptManager struct {
	*world.ComponentManager[Script, *Script]
	engine *Engine
	dt     float64
}

// Register adds the script component type to reg, bound to e.
func Register(reg *world.Registry, e *Engine, step time.Duration) (ecs.TypeID, error) {
	return world.RegisterComponentType[Script](reg, ScriptType, ScriptVersion,
		func(w *world.World, id ecs.TypeID) world.Manager {
			return &ScriptManager{
				ComponentManager: world.NewComponentManager[Script, *Script](w, id),
				engine:           e,
				dt:               step.Seconds(),
			}
		})
}

func (m *ScriptManager) Initialize() {
	if err := m.RegisterUpdateFunction(m.UpdateFunctionDesc("Update", m.update)); err != nil {
		m.World().Logger().Error("script update function rejected", zap.Error(err))
	}
}

func (m *ScriptManager) update(start, count uint32) {
	for s := range m.Range(start, count) {
		if s.failed || !s.IsActive() {
			continue
		}
		if s.module == nil && !m.load(s) {
			continue
		}
		if err := m.engine.call(s.module, "update", s.self, lua.LNumber(m.dt)); err != nil {
			m.fail(s, "script update failed", err)
		}
	}
}

// load compiles the module once its source is available.
func (m *ScriptManager) load(s *Script) bool {
	if s.src == nil {
		return false
	}
	src, err := s.src.Get()
	if errors.Is(err, resource.ErrNotReady) {
		return false
	}
	if err != nil {
		m.fail(s, "script source unavailable", err)
		return false
	}
	module, err := m.engine.compile(s.Source, src)
	if err != nil {
		m.fail(s, "script compile failed", err)
		return false
	}
	s.module = module
	s.self = m.selfTable(s)
	if err := m.engine.call(module, "init", s.self); err != nil {
		m.fail(s, "script init failed", err)
		return false
	}
	return true
}

func (m *ScriptManager) fail(s *Script, msg string, err error) {
	s.failed = true
	m.World().Logger().Warn(msg,
		zap.String("source", s.Source),
		zap.Stringer("component", s.Handle()),
		zap.Error(err),
	)
}

// selfTable builds the object API a script sees. Every call re-resolves the
// owner through the world, so a deleted owner reads as nil.
func (m *ScriptManager) selfTable(s *Script) *lua.LTable {
	L := m.engine.vm
	w := m.World()
	h := s.Handle()
	owner := func() (*world.GameObject, bool) {
		c, ok := world.TryGet[*Script](w, h)
		if !ok {
			return nil, false
		}
		return c.Owner()
	}

	t := L.NewTable()
	t.RawSetString("source", lua.LString(s.Source))
	t.RawSetString("name", L.NewFunction(func(L *lua.LState) int {
		o, ok := owner()
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(o.Name()))
		return 1
	}))
	t.RawSetString("position", L.NewFunction(func(L *lua.LState) int {
		o, ok := owner()
		if !ok {
			return 0
		}
		p := o.Transform().Position
		L.Push(lua.LNumber(p.X))
		L.Push(lua.LNumber(p.Y))
		L.Push(lua.LNumber(p.Z))
		return 3
	}))
	t.RawSetString("set_position", L.NewFunction(func(L *lua.LState) int {
		o, ok := owner()
		if !ok {
			return 0
		}
		tr := o.Transform()
		tr.Position = world.Vec3{
			X: float32(L.CheckNumber(2)),
			Y: float32(L.CheckNumber(3)),
			Z: float32(L.CheckNumber(4)),
		}
		o.SetTransform(tr)
		return 0
	}))
	t.RawSetString("delete", L.NewFunction(func(L *lua.LState) int {
		if o, ok := owner(); ok {
			w.DeleteObject(o.Handle())
		}
		return 0
	}))
	t.RawSetString("frame", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(w.Frame()))
		return 1
	}))
	return t
}
