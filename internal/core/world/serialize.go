package world

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/l1jgo/worldcore/internal/core/ecs"
	"github.com/l1jgo/worldcore/internal/core/stream"
)

// StreamVersion is the layout version written by Save.
const StreamVersion = 1

// Save writes every live object and its attached components. Objects are
// written in slot order and refer to their parent by position in the stream.
// Components not attached to an object are not saved.
//
// Layout per object: parent position+1 (0 for roots), name, active flag,
// transform, component count, then per component: type name, type version,
// active flag and a length-prefixed payload.
func (w *World) Save() []byte {
	guard := w.Read()
	defer guard.Release()

	pos := make(map[ecs.ObjectHandle]uint32, w.objects.Len())
	for _, o := range w.objects.All() {
		pos[o.handle] = uint32(len(pos))
	}

	out := stream.NewVersionedWriter(StreamVersion)
	out.WriteS(w.name)
	out.WriteDU(uint32(len(pos)))
	for _, o := range w.objects.All() {
		var parent uint32
		if p, ok := pos[o.parent]; ok && !o.parent.IsZero() {
			parent = p + 1
		}
		out.WriteDU(parent)
		out.WriteS(o.name)
		out.WriteBool(o.active)
		writeTransform(out, o.transform)

		comps := make([]Component, 0, len(o.components))
		for _, h := range o.components {
			if c, ok := w.TryGetComponent(h); ok {
				comps = append(comps, c)
			}
		}
		out.WriteDU(uint32(len(comps)))
		for _, c := range comps {
			id := c.Handle().TypeID()
			version, _ := w.registry.Version(id)
			out.WriteS(w.registry.TypeName(id))
			out.WriteDU(version)
			out.WriteBool(c.base().active)

			payload := stream.NewWriter()
			c.SerializeComponent(payload)
			out.WriteBytes(payload.Bytes())
		}
	}
	return out.Bytes()
}

// minObjectBytes is the smallest encoding of one object: parent, empty name,
// active flag, transform and component count.
const minObjectBytes = 4 + 4 + 1 + 9*4 + 4

// Load recreates the objects of a Save stream in w and returns their handles
// in stream order. Components of unregistered types are skipped with a
// warning; a component version newer than the registered one fails the load
// with stream.ErrUnknownVersion. A failed load leaves w without any of the
// stream's objects. Loaded components initialize at the next update like any
// new component.
func (w *World) Load(data []byte) ([]ecs.ObjectHandle, error) {
	r, _, err := stream.NewVersionedReader(data, StreamVersion)
	if err != nil {
		return nil, fmt.Errorf("load world: %w", err)
	}

	guard := w.lockWrite()
	defer guard.Release()

	source := r.ReadS()
	count := r.ReadDU()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("load world: %w", err)
	}

	handles, err := w.loadObjects(r, count)
	if err != nil {
		for i := len(handles) - 1; i >= 0; i-- {
			if o, ok := w.TryGetObject(handles[i]); ok {
				w.deleteObjectNow(o)
			}
		}
		w.log.Warn("world load rolled back", zap.String("source", source), zap.Int("objects", len(handles)), zap.Error(err))
		return nil, err
	}

	w.log.Info("world loaded", zap.String("source", source), zap.Int("objects", len(handles)))
	return handles, nil
}

// loadObjects returns every handle it created, also on error.
func (w *World) loadObjects(r *stream.Reader, count uint32) ([]ecs.ObjectHandle, error) {
	capacity := min(count, uint32(r.Remaining()/minObjectBytes))
	handles := make([]ecs.ObjectHandle, 0, capacity)
	parents := make([]uint32, 0, capacity)
	for i := uint32(0); i < count; i++ {
		parent := r.ReadDU()
		name := r.ReadS()
		active := r.ReadBool()
		t := readTransform(r)
		if err := r.Err(); err != nil {
			return handles, fmt.Errorf("load object %d: %w", i, err)
		}

		h, o := w.CreateObject(ObjectDesc{Name: name, Inactive: !active})
		o.SetTransform(t)
		handles = append(handles, h)
		parents = append(parents, parent)

		if err := w.loadComponents(r, o); err != nil {
			return handles, fmt.Errorf("load object %d (%s): %w", i, name, err)
		}
	}

	for i, p := range parents {
		if p == 0 {
			continue
		}
		if int(p-1) >= len(handles) {
			return handles, fmt.Errorf("load object %d: %w: parent %d", i, stream.ErrShortRead, p-1)
		}
		o, _ := w.TryGetObject(handles[i])
		if err := o.SetParent(handles[p-1]); err != nil {
			return handles, fmt.Errorf("load object %d: %w", i, err)
		}
	}
	return handles, nil
}

func (w *World) loadComponents(r *stream.Reader, o *GameObject) error {
	n := r.ReadDU()
	for j := uint32(0); j < n; j++ {
		typeName := r.ReadS()
		version := r.ReadDU()
		active := r.ReadBool()
		payload := r.ReadBytes()
		if err := r.Err(); err != nil {
			return err
		}

		id, ok := w.registry.TypeIDByName(typeName)
		if !ok {
			w.log.Warn("skipping component of unknown type", zap.String("type", typeName))
			continue
		}
		if current, _ := w.registry.Version(id); version > current {
			return fmt.Errorf("%s: %w: %d (max %d)", typeName, stream.ErrUnknownVersion, version, current)
		}
		m, err := w.GetOrCreateManager(id)
		if err != nil {
			return err
		}
		h, c := m.NewComponent()
		if err := c.DeserializeComponent(stream.NewReader(payload), version); err != nil {
			m.DeleteComponent(h)
			return fmt.Errorf("%s: %w", typeName, err)
		}
		c.base().active = active
		if err := o.AttachComponent(c); err != nil {
			m.DeleteComponent(h)
			return err
		}
	}
	return nil
}

func writeTransform(out *stream.Writer, t Transform) {
	for _, v := range [...]Vec3{t.Position, t.Rotation, t.Scale} {
		out.WriteF(v.X)
		out.WriteF(v.Y)
		out.WriteF(v.Z)
	}
}

func readTransform(r *stream.Reader) Transform {
	read := func() Vec3 { return Vec3{r.ReadF(), r.ReadF(), r.ReadF()} }
	var t Transform
	t.Position = read()
	t.Rotation = read()
	t.Scale = read()
	return t
}
