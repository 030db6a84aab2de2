package world

import (
	"fmt"
	"slices"

	"github.com/l1jgo/worldcore/internal/core/ecs"
	"github.com/l1jgo/worldcore/internal/core/event"
)

type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) Add(o Vec3) Vec3      { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Scale(s float32) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Transform is an object's local placement. Rotation holds Euler angles in radians.
type Transform struct {
	Position Vec3
	Rotation Vec3
	Scale    Vec3
}

func IdentityTransform() Transform {
	return Transform{Scale: Vec3{1, 1, 1}}
}

// ObjectDesc configures CreateObject. A zero Transform means identity.
type ObjectDesc struct {
	Name      string
	Parent    ecs.ObjectHandle
	Transform Transform
	Inactive  bool
}

// GameObject is a node in the world hierarchy holding an ordered list of
// attached components.
type GameObject struct {
	world      *World
	handle     ecs.ObjectHandle
	name       string
	transform  Transform
	parent     ecs.ObjectHandle
	children   []ecs.ObjectHandle
	components []ecs.ComponentHandle
	active     bool
	queued     bool // waiting for deferred deletion
}

func (o *GameObject) Handle() ecs.ObjectHandle { return o.handle }
func (o *GameObject) World() *World            { return o.world }
func (o *GameObject) Name() string             { return o.name }
func (o *GameObject) IsActive() bool           { return o.active }

func (o *GameObject) SetName(name string) { o.name = normalizeName(name) }

func (o *GameObject) Transform() Transform     { return o.transform }
func (o *GameObject) SetTransform(t Transform) { o.transform = t }

// SetActive toggles the object. Components follow through IsActive.
func (o *GameObject) SetActive(active bool) {
	if o.queued {
		return
	}
	o.active = active
}

// IsAlive reports whether the object's handle still resolves.
func (o *GameObject) IsAlive() bool {
	return o.world.objects.Contains(o.handle.ID())
}

func (o *GameObject) ParentHandle() ecs.ObjectHandle { return o.parent }

func (o *GameObject) Parent() (*GameObject, bool) {
	if o.parent.IsZero() {
		return nil, false
	}
	return o.world.TryGetObject(o.parent)
}

// Children returns a copy of the child handles.
func (o *GameObject) Children() []ecs.ObjectHandle {
	return slices.Clone(o.children)
}

func (o *GameObject) ChildCount() int { return len(o.children) }

// Components returns a copy of the attached component handles, in attach order.
func (o *GameObject) Components() []ecs.ComponentHandle {
	return slices.Clone(o.components)
}

func (o *GameObject) ComponentCount() int { return len(o.components) }

// SetParent moves the object under parent. A zero handle makes it a root.
func (o *GameObject) SetParent(parent ecs.ObjectHandle) error {
	w := o.world
	guard := w.lockWrite()
	defer guard.Release()

	if !o.IsAlive() {
		return fmt.Errorf("%w: %s", ErrStaleHandle, o.handle)
	}
	var p *GameObject
	if !parent.IsZero() {
		var ok bool
		if p, ok = w.TryGetObject(parent); !ok {
			return fmt.Errorf("%w: parent %s", ErrStaleHandle, parent)
		}
		for anc := p; anc != nil; {
			if anc.handle == o.handle {
				return fmt.Errorf("%w: %s under %s", ErrHierarchyCycle, o.handle, parent)
			}
			anc, _ = anc.Parent()
		}
	}

	o.unlinkFromParent()
	if p != nil {
		p.children = append(p.children, o.handle)
		o.parent = p.handle
	}
	return nil
}

func (o *GameObject) unlinkFromParent() {
	if p, ok := o.Parent(); ok {
		if i := slices.Index(p.children, o.handle); i >= 0 {
			p.children = slices.Delete(p.children, i, i+1)
		}
	}
	o.parent = ecs.ObjectHandle{}
}

// AttachComponent appends c to this object and fires its post-attach hook.
// A component attached anywhere else is rejected without changing state.
func (o *GameObject) AttachComponent(c Component) error {
	w := o.world
	guard := w.lockWrite()
	defer guard.Release()

	b := c.base()
	if b.world != w {
		return fmt.Errorf("%w: %s", ErrForeignWorld, b.handle)
	}
	if !o.IsAlive() {
		return fmt.Errorf("%w: %s", ErrStaleHandle, o.handle)
	}
	if _, ok := w.TryGetComponent(b.handle); !ok {
		return fmt.Errorf("%w: %s", ErrStaleHandle, b.handle)
	}
	if !b.owner.IsZero() {
		return fmt.Errorf("%w: %s owned by %s", ErrAlreadyAttached, b.handle, b.owner)
	}

	o.components = append(o.components, b.handle)
	b.owner = o.handle
	event.Emit(w.bus, event.ComponentAttached{Object: o.handle, Component: b.handle})
	c.OnAfterAttachedToObject()
	return nil
}

// DetachComponent fires the pre-detach hook while the link is intact, then
// removes c from this object.
func (o *GameObject) DetachComponent(c Component) error {
	w := o.world
	guard := w.lockWrite()
	defer guard.Release()

	b := c.base()
	if b.owner != o.handle {
		return fmt.Errorf("%w: %s on %s", ErrNotAttached, b.handle, o.handle)
	}

	c.OnBeforeDetachedFromObject()

	if i := slices.Index(o.components, b.handle); i >= 0 {
		o.components = slices.Delete(o.components, i, i+1)
	}
	b.owner = ecs.ObjectHandle{}
	event.Emit(w.bus, event.ComponentDetached{Object: o.handle, Component: b.handle})
	return nil
}
