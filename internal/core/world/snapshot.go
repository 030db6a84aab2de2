package world

import "github.com/l1jgo/worldcore/internal/core/ecs"

// ObjectSnapshot is a read-only copy of one object for rendering and tooling.
type ObjectSnapshot struct {
	Handle     ecs.ObjectHandle
	Parent     ecs.ObjectHandle
	Name       string
	Transform  Transform
	Active     bool
	Components int
}

// VisitObjects calls fn for every live object in slot order until fn returns
// false. It holds the read marker for the duration.
func (w *World) VisitObjects(fn func(ObjectSnapshot) bool) {
	guard := w.Read()
	defer guard.Release()

	for _, o := range w.objects.All() {
		snap := ObjectSnapshot{
			Handle:     o.handle,
			Parent:     o.parent,
			Name:       o.name,
			Transform:  o.transform,
			Active:     o.active,
			Components: len(o.components),
		}
		if !fn(snap) {
			return
		}
	}
}

// WorldTransform composes the translations and scales from the root down to h.
// Rotation is left to the backends.
func (w *World) WorldTransform(h ecs.ObjectHandle) (Transform, bool) {
	o, ok := w.TryGetObject(h)
	if !ok {
		return Transform{}, false
	}
	t := o.transform
	for p, ok := o.Parent(); ok; p, ok = p.Parent() {
		pt := p.transform
		t.Position = Vec3{
			X: pt.Position.X + t.Position.X*pt.Scale.X,
			Y: pt.Position.Y + t.Position.Y*pt.Scale.Y,
			Z: pt.Position.Z + t.Position.Z*pt.Scale.Z,
		}
		t.Scale = Vec3{t.Scale.X * pt.Scale.X, t.Scale.Y * pt.Scale.Y, t.Scale.Z * pt.Scale.Z}
		t.Rotation = t.Rotation.Add(pt.Rotation)
	}
	return t, true
}
