package resource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrNotReady is transient: the resource is still loading.
	ErrNotReady = errors.New("resource not ready")
	ErrReleased = errors.New("resource handle released")
	ErrClosed   = errors.New("resource manager closed")
)

// Loader fetches the raw bytes of a resource.
type Loader interface {
	Load(ctx context.Context, key string) ([]byte, error)
}

// FileLoader reads resources relative to Root. Keys may not leave Root.
type FileLoader struct {
	Root string
}

func (l FileLoader) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("resource key %q escapes root", key)
	}
	raw, err := os.ReadFile(filepath.Join(l.Root, clean))
	if err != nil {
		return nil, fmt.Errorf("read resource %s: %w", key, err)
	}
	return raw, nil
}

// Decoder turns raw bytes into a typed resource.
type Decoder[T any] func(key string, raw []byte) (T, error)

type entryKey struct {
	name string
	typ  reflect.Type
}

type entry struct {
	key   entryKey
	refs  int
	done  chan struct{}
	value any
	err   error
}

// Manager caches loaded resources by key and type, shared between handles
// and reference counted. Loads run on their own goroutines.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	loader Loader
	log    *zap.Logger

	mu      sync.Mutex
	entries map[entryKey]*entry
	closed  bool
	wg      sync.WaitGroup
}

func NewManager(loader Loader, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctx:     ctx,
		cancel:  cancel,
		loader:  loader,
		log:     log,
		entries: make(map[entryKey]*entry),
	}
}

// Len returns the number of cached resources.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close cancels in-flight loads and waits for them to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

// Acquire returns a handle to key decoded as T, starting the load if no
// other handle holds it.
func Acquire[T any](m *Manager, key string, decode Decoder[T]) *Handle[T] {
	k := entryKey{name: key, typ: reflect.TypeOf((*T)(nil)).Elem()}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[k]; ok {
		e.refs++
		return &Handle[T]{m: m, e: e}
	}
	e := &entry{key: k, refs: 1, done: make(chan struct{})}
	m.entries[k] = e
	if m.closed {
		e.err = ErrClosed
		close(e.done)
		return &Handle[T]{m: m, e: e}
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(e.done)
		raw, err := m.loader.Load(m.ctx, key)
		if err != nil {
			e.err = err
			m.log.Warn("resource load failed", zap.String("key", key), zap.Error(err))
			return
		}
		v, err := decode(key, raw)
		if err != nil {
			e.err = fmt.Errorf("decode resource %s: %w", key, err)
			m.log.Warn("resource decode failed", zap.String("key", key), zap.Error(err))
			return
		}
		e.value = v
		m.log.Debug("resource loaded", zap.String("key", key), zap.Int("bytes", len(raw)))
	}()
	return &Handle[T]{m: m, e: e}
}

func (m *Manager) release(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs <= 0 && m.entries[e.key] == e {
		delete(m.entries, e.key)
	}
}

// Handle is one reference to a shared resource.
type Handle[T any] struct {
	m        *Manager
	e        *entry
	released bool
}

// Key returns the resource key.
func (h *Handle[T]) Key() string { return h.e.key.name }

// Ready reports whether loading finished, successfully or not.
func (h *Handle[T]) Ready() bool {
	select {
	case <-h.e.done:
		return true
	default:
		return false
	}
}

// Get returns the resource without blocking. While loading it returns
// ErrNotReady; callers retry on a later frame.
func (h *Handle[T]) Get() (T, error) {
	var zero T
	if h.released {
		return zero, ErrReleased
	}
	if !h.Ready() {
		return zero, ErrNotReady
	}
	return h.result()
}

// Wait blocks until the resource is loaded or ctx ends.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	if h.released {
		return zero, ErrReleased
	}
	select {
	case <-h.e.done:
		return h.result()
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (h *Handle[T]) result() (T, error) {
	var zero T
	if h.e.err != nil {
		return zero, h.e.err
	}
	return h.e.value.(T), nil
}

// Release drops this reference. The resource is evicted with its last handle.
func (h *Handle[T]) Release() {
	if h.released {
		return
	}
	h.released = true
	h.m.release(h.e)
}

// Bytes is a Decoder returning the raw bytes.
func Bytes(_ string, raw []byte) ([]byte, error) { return raw, nil }

// Text is a Decoder returning the bytes as a string.
func Text(_ string, raw []byte) (string, error) { return string(raw), nil }
