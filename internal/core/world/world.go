package world

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/l1jgo/worldcore/internal/core/ecs"
	"github.com/l1jgo/worldcore/internal/core/event"
	"github.com/l1jgo/worldcore/internal/core/system"
)

var (
	ErrStaleHandle      = errors.New("stale handle")
	ErrAlreadyAttached  = errors.New("component already attached")
	ErrNotAttached      = errors.New("component not attached to object")
	ErrForeignWorld     = errors.New("component belongs to another world")
	ErrHierarchyCycle   = errors.New("object cannot be parented under its own subtree")
	ErrAsyncMutation    = errors.New("structural world change from an async update")
	ErrUpdateInProgress = errors.New("world update already in progress")
)

// World owns the game objects, one manager per component type, and the
// runner that drives per-frame update functions.
//
// Structural changes (create, delete, attach, detach) take the write marker,
// re-entrantly. Update holds it for the whole frame, so other goroutines
// block until it ends. Lookups do not lock; callers outside an update take
// Read themselves.
type World struct {
	name     string
	log      *zap.Logger
	registry *Registry
	marker   *AccessMarker
	runner   *system.Runner
	bus      *event.Bus

	objects      *ecs.Storage[GameObject]
	managers     map[ecs.TypeID]Manager
	managerOrder []ecs.TypeID
	functions    map[ecs.TypeID][]string

	toInitialize    []ecs.ComponentHandle
	objectsToDelete []ecs.ObjectHandle
	deadObjects     []uint32
	deadComponents  []ecs.ComponentHandle

	frame    uint64
	updating bool
}

// New creates an empty world. pool may be nil to run async chunks inline and
// log may be nil.
func New(name string, reg *Registry, pool *system.WorkerPool, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	if reg == nil {
		reg = NewRegistry()
	}
	log = log.With(zap.String("world", name))
	return &World{
		name:      name,
		log:       log,
		registry:  reg,
		marker:    newAccessMarker(),
		runner:    system.NewRunner(pool, log),
		bus:       event.NewBus(),
		objects:   ecs.NewStorage[GameObject](),
		managers:  make(map[ecs.TypeID]Manager, 16),
		functions: make(map[ecs.TypeID][]string, 16),
	}
}

func (w *World) Name() string           { return w.name }
func (w *World) Registry() *Registry    { return w.registry }
func (w *World) Runner() *system.Runner { return w.runner }
func (w *World) Events() *event.Bus     { return w.bus }
func (w *World) Logger() *zap.Logger    { return w.log }
func (w *World) Frame() uint64          { return w.frame }
func (w *World) Marker() *AccessMarker  { return w.marker }

// Read acquires shared access: defer w.Read().Release(). Async update
// functions already read under the frame's write hold and get a no-op guard.
func (w *World) Read() Guard {
	if w.runner.InWorker() {
		return Guard{}
	}
	return w.marker.Read()
}

// Write acquires exclusive access: defer w.Write().Release().
func (w *World) Write() Guard { return w.marker.Write() }

// lockWrite takes the write marker for a structural change. An async worker
// of this world's frame can never obtain it, so it panics instead of
// deadlocking the frame. Any other goroutine waits for the frame to end.
func (w *World) lockWrite() Guard {
	if w.runner.InWorker() {
		panic(ErrAsyncMutation)
	}
	return w.marker.Write()
}

func normalizeName(name string) string {
	return norm.NFC.String(name)
}

// ── Managers ───────────────────────────────────────────────────────

// Manager returns the existing manager for id.
func (w *World) Manager(id ecs.TypeID) (Manager, bool) {
	m, ok := w.managers[id]
	return m, ok
}

// GetOrCreateManager returns the manager for id, constructing and
// initializing it on first use. Update functions registered by Initialize are
// committed before returning; a bad dependency graph fails here.
func (w *World) GetOrCreateManager(id ecs.TypeID) (Manager, error) {
	if m, ok := w.managers[id]; ok {
		return m, nil
	}
	guard := w.lockWrite()
	defer guard.Release()

	m := w.registry.CreateComponentManager(id, w)
	if m == nil {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownType, id)
	}
	w.managers[id] = m
	w.managerOrder = append(w.managerOrder, id)

	m.Initialize()
	if err := w.runner.Commit(); err != nil {
		w.log.Error("component manager rejected", zap.String("type", m.Name()), zap.Error(err))
		m.Deinitialize()
		w.removeManager(id)
		return nil, fmt.Errorf("initialize %s: %w", m.Name(), err)
	}
	w.log.Debug("component manager created", zap.String("type", m.Name()), zap.Uint16("type_id", uint16(id)))
	return m, nil
}

// ManagerFor returns the manager for id as its concrete type M.
func ManagerFor[M Manager](w *World, id ecs.TypeID) (M, error) {
	var zero M
	m, err := w.GetOrCreateManager(id)
	if err != nil {
		return zero, err
	}
	typed, ok := m.(M)
	if !ok {
		return zero, fmt.Errorf("manager %s is %T", m.Name(), m)
	}
	return typed, nil
}

// DeleteComponentManager deletes every component of type id and drops the manager.
func (w *World) DeleteComponentManager(id ecs.TypeID) {
	guard := w.lockWrite()
	defer guard.Release()

	m, ok := w.managers[id]
	if !ok {
		return
	}
	var handles []ecs.ComponentHandle
	m.Each(func(c Component) bool {
		handles = append(handles, c.Handle())
		return true
	})
	for _, h := range handles {
		m.DeleteComponent(h)
	}
	m.Deinitialize()
	for _, name := range w.functions[id] {
		w.runner.Deregister(name)
	}
	w.removeManager(id)
}

func (w *World) removeManager(id ecs.TypeID) {
	delete(w.managers, id)
	delete(w.functions, id)
	for i, x := range w.managerOrder {
		if x == id {
			w.managerOrder = append(w.managerOrder[:i:i], w.managerOrder[i+1:]...)
			break
		}
	}
}

// ── Update functions ───────────────────────────────────────────────

// RegisterUpdateFunction registers a function not tied to a component type.
// It is committed at the next GetOrCreateManager or Update.
func (w *World) RegisterUpdateFunction(desc system.Desc) error {
	return w.registerUpdateFunction(ecs.InvalidTypeID, desc)
}

func (w *World) registerUpdateFunction(owner ecs.TypeID, desc system.Desc) error {
	if err := w.runner.Register(desc); err != nil {
		w.log.Warn("update function rejected", zap.String("function", desc.Name), zap.Error(err))
		return err
	}
	w.functions[owner] = append(w.functions[owner], desc.Name)
	return nil
}

// DeregisterUpdateFunction removes a function by name.
func (w *World) DeregisterUpdateFunction(name string) bool {
	if !w.runner.Deregister(name) {
		return false
	}
	for id, names := range w.functions {
		for i, n := range names {
			if n == name {
				w.functions[id] = append(names[:i:i], names[i+1:]...)
				return true
			}
		}
	}
	return true
}

// ── Components ─────────────────────────────────────────────────────

// CreateComponent creates a component of type T through its manager.
func CreateComponent[T any, PT ComponentPtr[T]](w *World) (ecs.ComponentHandle, PT, error) {
	id, ok := TypeIDOf[T](w.registry)
	if !ok {
		return ecs.ComponentHandle{}, nil, fmt.Errorf("%w: %T", ErrUnknownType, *new(T))
	}
	m, err := w.GetOrCreateManager(id)
	if err != nil {
		return ecs.ComponentHandle{}, nil, err
	}
	h, c := m.NewComponent()
	return h, c.(PT), nil
}

// TryGetComponent resolves h through the manager of its type.
func (w *World) TryGetComponent(h ecs.ComponentHandle) (Component, bool) {
	m, ok := w.managers[h.TypeID()]
	if !ok {
		return nil, false
	}
	return m.Lookup(h)
}

// TryGet resolves h as the concrete component pointer PT.
func TryGet[PT Component](w *World, h ecs.ComponentHandle) (PT, bool) {
	var zero PT
	c, ok := w.TryGetComponent(h)
	if !ok {
		return zero, false
	}
	typed, ok := c.(PT)
	return typed, ok
}

// DeleteComponent deletes h. Stale handles are ignored.
func (w *World) DeleteComponent(h ecs.ComponentHandle) {
	if m, ok := w.managers[h.TypeID()]; ok {
		m.DeleteComponent(h)
	}
}

// AttachComponent attaches by handle, for callers that hold no pointers.
func (w *World) AttachComponent(obj ecs.ObjectHandle, comp ecs.ComponentHandle) error {
	o, ok := w.TryGetObject(obj)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStaleHandle, obj)
	}
	c, ok := w.TryGetComponent(comp)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStaleHandle, comp)
	}
	return o.AttachComponent(c)
}

// DetachComponent detaches by handle.
func (w *World) DetachComponent(obj ecs.ObjectHandle, comp ecs.ComponentHandle) error {
	o, ok := w.TryGetObject(obj)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStaleHandle, obj)
	}
	c, ok := w.TryGetComponent(comp)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStaleHandle, comp)
	}
	return o.DetachComponent(c)
}

func (w *World) addComponentToInitialize(h ecs.ComponentHandle) {
	w.toInitialize = append(w.toInitialize, h)
}

func (w *World) addDeadComponent(h ecs.ComponentHandle) {
	w.deadComponents = append(w.deadComponents, h)
}

// deinitializeComponent detaches c from its owner, then deinitializes it.
func (w *World) deinitializeComponent(c Component) {
	b := c.base()
	if owner, ok := b.Owner(); ok {
		_ = owner.DetachComponent(c)
	}
	b.owner = ecs.ObjectHandle{}

	if b.initialized {
		b.initialized = false
		c.Deinitialize()
	}
}

// ── Objects ────────────────────────────────────────────────────────

// CreateObject adds an object, optionally under desc.Parent.
func (w *World) CreateObject(desc ObjectDesc) (ecs.ObjectHandle, *GameObject) {
	guard := w.lockWrite()
	defer guard.Release()

	t := desc.Transform
	if t == (Transform{}) {
		t = IdentityTransform()
	}
	id, o := w.objects.Insert(GameObject{
		world:     w,
		name:      normalizeName(desc.Name),
		transform: t,
		active:    !desc.Inactive,
	})
	o.handle = ecs.NewObjectHandle(id)

	if !desc.Parent.IsZero() {
		if err := o.SetParent(desc.Parent); err != nil {
			w.log.Warn("object parent ignored", zap.String("object", o.name), zap.Error(err))
		}
	}
	event.Emit(w.bus, event.ObjectCreated{Object: o.handle, Name: o.name})
	return o.handle, o
}

// TryGetObject resolves h. Deleted objects do not resolve.
func (w *World) TryGetObject(h ecs.ObjectHandle) (*GameObject, bool) {
	return w.objects.TryGet(h.ID())
}

// ObjectCount returns the number of live objects.
func (w *World) ObjectCount() int { return w.objects.Len() }

// FindObject returns the first live object named name.
func (w *World) FindObject(name string) (ecs.ObjectHandle, bool) {
	name = normalizeName(name)
	for _, o := range w.objects.All() {
		if o.name == name {
			return o.handle, true
		}
	}
	return ecs.ObjectHandle{}, false
}

// DeleteObject deactivates h now and deletes it at the end of the next update.
func (w *World) DeleteObject(h ecs.ObjectHandle) {
	guard := w.lockWrite()
	defer guard.Release()

	o, ok := w.TryGetObject(h)
	if !ok || o.queued {
		return
	}
	o.active = false
	o.queued = true
	w.objectsToDelete = append(w.objectsToDelete, h)
}

// DeleteObjectNow deletes every component of h and its children, then
// invalidates h. The slot itself is recycled at the end of the frame.
func (w *World) DeleteObjectNow(h ecs.ObjectHandle) {
	guard := w.lockWrite()
	defer guard.Release()

	if o, ok := w.TryGetObject(h); ok {
		w.deleteObjectNow(o)
	}
}

func (w *World) deleteObjectNow(o *GameObject) {
	o.active = false

	for _, ch := range slices.Clone(o.components) {
		w.DeleteComponent(ch)
	}
	o.components = nil

	for _, child := range slices.Clone(o.children) {
		if c, ok := w.TryGetObject(child); ok {
			w.deleteObjectNow(c)
		}
	}
	o.children = nil

	o.unlinkFromParent()
	w.objects.Retire(o.handle.ID())
	w.deadObjects = append(w.deadObjects, o.handle.ID().Index())
	event.Emit(w.bus, event.ObjectDeleted{Object: o.handle, Name: o.name})
}

// ── Frame ──────────────────────────────────────────────────────────

// Update runs one frame: deliver last frame's events, initialize pending
// components, run PreSync, Sync, Async and PostAsync, perform deferred object
// deletions, then recycle dead slots. Faults from update functions are logged
// and returned; the frame always completes.
func (w *World) Update() error {
	guard := w.marker.Write()
	defer guard.Release()

	if w.updating {
		return ErrUpdateInProgress
	}
	w.updating = true
	defer func() { w.updating = false }()

	w.frame++
	w.bus.Flush()
	w.processComponentsToInitialize()

	err := w.runner.Tick()
	if err != nil {
		w.log.Warn("frame completed with faults", zap.Uint64("frame", w.frame), zap.Error(err))
	}

	w.processObjectsToDelete()
	w.reclaimDead()
	return err
}

func (w *World) processComponentsToInitialize() {
	// Initialize may create further components; they are handled in this pass.
	for i := 0; i < len(w.toInitialize); i++ {
		c, ok := w.TryGetComponent(w.toInitialize[i])
		if !ok {
			continue
		}
		b := c.base()
		if b.initialized {
			continue
		}
		b.initialized = true
		c.Initialize()
	}
	w.toInitialize = w.toInitialize[:0]
}

func (w *World) processObjectsToDelete() {
	for i := 0; i < len(w.objectsToDelete); i++ {
		if o, ok := w.TryGetObject(w.objectsToDelete[i]); ok {
			w.deleteObjectNow(o)
		}
	}
	w.objectsToDelete = w.objectsToDelete[:0]
}

func (w *World) reclaimDead() {
	for _, h := range w.deadComponents {
		if m, ok := w.managers[h.TypeID()]; ok {
			m.reclaim(h.ID().Index())
		}
	}
	w.deadComponents = w.deadComponents[:0]

	for _, idx := range w.deadObjects {
		w.objects.Reclaim(idx)
	}
	w.deadObjects = w.deadObjects[:0]
}
