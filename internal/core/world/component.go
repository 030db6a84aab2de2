package world

import (
	"github.com/l1jgo/worldcore/internal/core/ecs"
	"github.com/l1jgo/worldcore/internal/core/stream"
)

// Component is implemented by pointers to structs embedding ComponentBase.
// ComponentBase provides no-op defaults for every hook.
type Component interface {
	base() *ComponentBase

	Handle() ecs.ComponentHandle
	IsActive() bool

	// Initialize runs during the first world update after creation.
	Initialize()
	// Deinitialize runs on deletion, only if Initialize ran.
	Deinitialize()
	OnAfterAttachedToObject()
	// OnBeforeDetachedFromObject runs while Owner still reports the object.
	OnBeforeDetachedFromObject()

	SerializeComponent(w *stream.Writer)
	DeserializeComponent(r *stream.Reader, version uint32) error
}

// ComponentPtr constrains PT to *T implementing Component.
type ComponentPtr[T any] interface {
	*T
	Component
}

// ComponentBase is the engine-managed header of every component.
type ComponentBase struct {
	handle      ecs.ComponentHandle
	world       *World
	owner       ecs.ObjectHandle // weak; re-validated on every lookup
	active      bool
	initialized bool
}

func (c *ComponentBase) base() *ComponentBase { return c }

func (c *ComponentBase) Handle() ecs.ComponentHandle   { return c.handle }
func (c *ComponentBase) World() *World                 { return c.world }
func (c *ComponentBase) OwnerHandle() ecs.ObjectHandle { return c.owner }
func (c *ComponentBase) IsInitialized() bool           { return c.initialized }

// Manager returns the manager that owns this component's type.
func (c *ComponentBase) Manager() Manager {
	if c.world == nil {
		return nil
	}
	m, _ := c.world.Manager(c.handle.TypeID())
	return m
}

// Owner resolves the owning object through the world.
func (c *ComponentBase) Owner() (*GameObject, bool) {
	if c.world == nil || c.owner.IsZero() {
		return nil, false
	}
	return c.world.TryGetObject(c.owner)
}

// IsActive reports the component's own flag combined with its owner's.
func (c *ComponentBase) IsActive() bool {
	if !c.active {
		return false
	}
	if c.owner.IsZero() {
		return true
	}
	owner, ok := c.Owner()
	return ok && owner.IsActive()
}

// IsActiveFlag reports the component's own flag only.
func (c *ComponentBase) IsActiveFlag() bool { return c.active }

func (c *ComponentBase) SetActive(active bool) { c.active = active }

func (c *ComponentBase) Initialize()                 {}
func (c *ComponentBase) Deinitialize()               {}
func (c *ComponentBase) OnAfterAttachedToObject()    {}
func (c *ComponentBase) OnBeforeDetachedFromObject() {}

func (c *ComponentBase) SerializeComponent(*stream.Writer) {}

func (c *ComponentBase) DeserializeComponent(*stream.Reader, uint32) error { return nil }
