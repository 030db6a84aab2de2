package world

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/l1jgo/worldcore/internal/core/ecs"
)

var (
	ErrUnknownType   = errors.New("unknown component type")
	ErrDuplicateType = errors.New("component type name already registered")
	ErrRegistryFull  = errors.New("component type registry full")
)

// ManagerCtor builds the manager for one component type inside w.
type ManagerCtor func(w *World, id ecs.TypeID) Manager

type typeEntry struct {
	name    string
	typ     reflect.Type
	version uint32
	ctor    ManagerCtor
}

// Registry maps component types to small integer ids and manager constructors.
// Ids are handed out in increasing order and never reused, so a stale handle's
// type id can never resolve to a different type.
type Registry struct {
	mu      sync.RWMutex
	entries []typeEntry
	byType  map[reflect.Type]ecs.TypeID
	byName  map[string]ecs.TypeID
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make([]typeEntry, 0, 16),
		byType:  make(map[reflect.Type]ecs.TypeID, 16),
		byName:  make(map[string]ecs.TypeID, 16),
	}
}

// RegisterComponentType assigns the next type id to T. Registering the same Go
// type again returns its existing id. version is the serialization version
// written with every component of the type.
func RegisterComponentType[T any, PT ComponentPtr[T]](r *Registry, name string, version uint32, ctor ManagerCtor) (ecs.TypeID, error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if name == "" {
		name = typ.Name()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byType[typ]; ok {
		return id, nil
	}
	if _, ok := r.byName[name]; ok {
		return ecs.InvalidTypeID, fmt.Errorf("%w: %s", ErrDuplicateType, name)
	}
	if len(r.entries) >= int(ecs.InvalidTypeID) {
		return ecs.InvalidTypeID, fmt.Errorf("%w: %s", ErrRegistryFull, name)
	}

	id := ecs.TypeID(len(r.entries))
	r.entries = append(r.entries, typeEntry{name: name, typ: typ, version: version, ctor: ctor})
	r.byType[typ] = id
	r.byName[name] = id
	return id, nil
}

// TypeIDOf returns the id registered for T.
func TypeIDOf[T any](r *Registry) (ecs.TypeID, bool) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byType[typ]
	return id, ok
}

// TypeIDByName returns the id registered under name.
func (r *Registry) TypeIDByName(name string) (ecs.TypeID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

func (r *Registry) entry(id ecs.TypeID) (typeEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.entries) {
		return typeEntry{}, false
	}
	return r.entries[id], true
}

// TypeName returns the registered name of id, or "" when unknown.
func (r *Registry) TypeName(id ecs.TypeID) string {
	e, _ := r.entry(id)
	return e.name
}

// Version returns the serialization version of id.
func (r *Registry) Version(id ecs.TypeID) (uint32, bool) {
	e, ok := r.entry(id)
	return e.version, ok
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// CreateComponentManager invokes the constructor stored for id. Unknown ids
// yield nil so callers can treat the reference as inert.
func (r *Registry) CreateComponentManager(id ecs.TypeID, w *World) Manager {
	e, ok := r.entry(id)
	if !ok || e.ctor == nil {
		return nil
	}
	return e.ctor(w, id)
}
