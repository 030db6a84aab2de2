package world

import (
	"iter"

	"github.com/l1jgo/worldcore/internal/core/ecs"
	"github.com/l1jgo/worldcore/internal/core/event"
	"github.com/l1jgo/worldcore/internal/core/system"
)

// Manager is the type-erased view of a component manager. Concrete managers
// embed *ComponentManager[T, PT] and usually override Initialize to register
// their update functions.
type Manager interface {
	TypeID() ecs.TypeID
	Name() string
	World() *World

	Initialize()
	Deinitialize()

	ComponentCount() int
	Span() uint32
	NewComponent() (ecs.ComponentHandle, Component)
	Lookup(h ecs.ComponentHandle) (Component, bool)
	DeleteComponent(h ecs.ComponentHandle)
	Each(fn func(Component) bool)

	reclaim(index uint32)
}

// ComponentManager stores every component of type T in one world.
type ComponentManager[T any, PT ComponentPtr[T]] struct {
	world   *World
	typeID  ecs.TypeID
	name    string
	storage *ecs.Storage[T]
}

func NewComponentManager[T any, PT ComponentPtr[T]](w *World, id ecs.TypeID) *ComponentManager[T, PT] {
	return &ComponentManager[T, PT]{
		world:   w,
		typeID:  id,
		name:    w.Registry().TypeName(id),
		storage: ecs.NewStorage[T](),
	}
}

// SimpleManagerCtor builds a manager without update functions.
func SimpleManagerCtor[T any, PT ComponentPtr[T]]() ManagerCtor {
	return func(w *World, id ecs.TypeID) Manager {
		return NewComponentManager[T, PT](w, id)
	}
}

func (m *ComponentManager[T, PT]) TypeID() ecs.TypeID { return m.typeID }
func (m *ComponentManager[T, PT]) Name() string       { return m.name }
func (m *ComponentManager[T, PT]) World() *World      { return m.world }

func (m *ComponentManager[T, PT]) Initialize()   {}
func (m *ComponentManager[T, PT]) Deinitialize() {}

// ComponentCount returns the number of live components.
func (m *ComponentManager[T, PT]) ComponentCount() int { return m.storage.Len() }

// Span returns the slot range update functions iterate.
func (m *ComponentManager[T, PT]) Span() uint32 { return m.storage.Span() }

// CreateComponent allocates a component. It stays uninitialized until the
// next world update processes the to-initialize queue.
func (m *ComponentManager[T, PT]) CreateComponent() (ecs.ComponentHandle, PT) {
	guard := m.world.lockWrite()
	defer guard.Release()

	var zero T
	id, v := m.storage.Insert(zero)
	c := PT(v)
	h := ecs.NewComponentHandle(id, m.typeID)
	*c.base() = ComponentBase{handle: h, world: m.world, active: true}
	m.world.addComponentToInitialize(h)
	return h, c
}

func (m *ComponentManager[T, PT]) NewComponent() (ecs.ComponentHandle, Component) {
	h, c := m.CreateComponent()
	return h, c
}

// DeleteComponent detaches and deinitializes the component, then retires its
// slot. The slot is recycled at the end of the frame. Stale handles are ignored.
func (m *ComponentManager[T, PT]) DeleteComponent(h ecs.ComponentHandle) {
	if h.TypeID() != m.typeID {
		return
	}
	guard := m.world.lockWrite()
	defer guard.Release()

	v, ok := m.storage.TryGet(h.ID())
	if !ok {
		return
	}
	c := PT(v)
	m.world.deinitializeComponent(c)

	m.storage.Retire(h.ID())
	c.base().active = false
	m.world.addDeadComponent(h)
	event.Emit(m.world.bus, event.ComponentDeleted{Component: h})
}

// TryGetComponent resolves h to its component.
func (m *ComponentManager[T, PT]) TryGetComponent(h ecs.ComponentHandle) (PT, bool) {
	if h.TypeID() != m.typeID {
		return nil, false
	}
	v, ok := m.storage.TryGet(h.ID())
	if !ok {
		return nil, false
	}
	return PT(v), true
}

func (m *ComponentManager[T, PT]) Lookup(h ecs.ComponentHandle) (Component, bool) {
	c, ok := m.TryGetComponent(h)
	if !ok {
		return nil, false
	}
	return c, true
}

// Components yields every live component in slot order.
func (m *ComponentManager[T, PT]) Components() iter.Seq[PT] {
	return func(yield func(PT) bool) {
		for _, v := range m.storage.All() {
			if !yield(PT(v)) {
				return
			}
		}
	}
}

// Range yields the initialized components in [start, start+count). Update
// functions iterate with it; components waiting for initialization are skipped.
func (m *ComponentManager[T, PT]) Range(start, count uint32) iter.Seq[PT] {
	return func(yield func(PT) bool) {
		for _, v := range m.storage.Range(start, count) {
			c := PT(v)
			if !c.base().initialized {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

func (m *ComponentManager[T, PT]) Each(fn func(Component) bool) {
	for c := range m.Components() {
		if !fn(c) {
			return
		}
	}
}

func (m *ComponentManager[T, PT]) reclaim(index uint32) {
	m.storage.Reclaim(index)
}

// UpdateFunctionDesc returns a Sync-phase descriptor over this manager's
// storage, named "<type>::<name>".
func (m *ComponentManager[T, PT]) UpdateFunctionDesc(name string, fn system.UpdateFunc) system.Desc {
	return system.Desc{
		Name:  m.name + "::" + name,
		Owner: m,
		Func:  fn,
		Phase: system.PhaseSync,
	}
}

// RegisterUpdateFunction forwards to the world. The registration is committed
// when the manager's Initialize returns.
func (m *ComponentManager[T, PT]) RegisterUpdateFunction(desc system.Desc) error {
	return m.world.registerUpdateFunction(m.typeID, desc)
}

func (m *ComponentManager[T, PT]) DeregisterUpdateFunction(desc system.Desc) bool {
	return m.world.DeregisterUpdateFunction(desc.Name)
}
