package ecs

import "fmt"

// ID encodes a 32-bit instance index in the lower bits and a 32-bit generation
// in the upper bits. Generations start at 1, so the zero ID never resolves.
type ID uint64

func NewID(index uint32, generation uint32) ID {
	return ID(uint64(generation)<<32 | uint64(index))
}

func (id ID) Index() uint32      { return uint32(id) }
func (id ID) Generation() uint32 { return uint32(id >> 32) }
func (id ID) IsZero() bool       { return id == 0 }

func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.Index(), id.Generation())
}

// TypeID is the small integer assigned to a component type by the registry.
type TypeID uint16

// InvalidTypeID marks a handle that was never bound to a registered type.
const InvalidTypeID TypeID = 0xFFFF

// ObjectHandle references a game object. The zero value is invalid.
type ObjectHandle struct {
	id ID
}

func NewObjectHandle(id ID) ObjectHandle { return ObjectHandle{id: id} }

func (h ObjectHandle) ID() ID         { return h.id }
func (h ObjectHandle) IsZero() bool   { return h.id.IsZero() }
func (h ObjectHandle) String() string { return "obj(" + h.id.String() + ")" }

// ComponentHandle references a component instance of one registered type.
type ComponentHandle struct {
	id     ID
	typeID TypeID
}

func NewComponentHandle(id ID, typeID TypeID) ComponentHandle {
	return ComponentHandle{id: id, typeID: typeID}
}

func (h ComponentHandle) ID() ID         { return h.id }
func (h ComponentHandle) TypeID() TypeID { return h.typeID }
func (h ComponentHandle) IsZero() bool   { return h.id.IsZero() }
func (h ComponentHandle) String() string {
	return fmt.Sprintf("comp(%d/%s)", h.typeID, h.id)
}

// nextGeneration bumps a slot generation, skipping zero on wraparound.
func nextGeneration(g uint32) uint32 {
	g++
	if g == 0 {
		g = 1
	}
	return g
}
