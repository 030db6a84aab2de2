package world

import (
	"sync"

	"github.com/petermattis/goid"
)

// AccessMarker guards a world with a shared read mode and an exclusive write
// mode. Both modes are re-entrant on the goroutine that holds them, and the
// write holder may also read. A writer excludes every other goroutine.
type AccessMarker struct {
	mu         sync.Mutex
	cond       *sync.Cond
	writer     int64 // goroutine holding write, 0 when none
	writeDepth int
	readers    map[int64]int
}

func newAccessMarker() *AccessMarker {
	m := &AccessMarker{readers: make(map[int64]int)}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Guard releases one acquisition. Release is idempotent.
type Guard struct {
	release func()
	once    *sync.Once
}

func (g Guard) Release() {
	if g.once != nil {
		g.once.Do(g.release)
	}
}

func newGuard(fn func()) Guard {
	return Guard{release: fn, once: new(sync.Once)}
}

// Read acquires the shared mode.
func (m *AccessMarker) Read() Guard {
	id := goid.Get()
	m.mu.Lock()
	for m.writer != 0 && m.writer != id {
		m.cond.Wait()
	}
	m.readers[id]++
	m.mu.Unlock()
	return newGuard(func() { m.releaseRead(id) })
}

func (m *AccessMarker) releaseRead(id int64) {
	m.mu.Lock()
	if n := m.readers[id]; n <= 1 {
		delete(m.readers, id)
	} else {
		m.readers[id] = n - 1
	}
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Write acquires the exclusive mode. A goroutine that only holds read access
// waits until it is the last reader.
func (m *AccessMarker) Write() Guard {
	id := goid.Get()
	m.mu.Lock()
	for !m.writableBy(id) {
		m.cond.Wait()
	}
	m.writer = id
	m.writeDepth++
	m.mu.Unlock()
	return newGuard(func() { m.releaseWrite() })
}

func (m *AccessMarker) writableBy(id int64) bool {
	if m.writer != 0 && m.writer != id {
		return false
	}
	for reader := range m.readers {
		if reader != id {
			return false
		}
	}
	return true
}

func (m *AccessMarker) releaseWrite() {
	m.mu.Lock()
	m.writeDepth--
	if m.writeDepth == 0 {
		m.writer = 0
	}
	m.mu.Unlock()
	m.cond.Broadcast()
}

// HeldForWrite reports whether the calling goroutine holds the write mode.
func (m *AccessMarker) HeldForWrite() bool {
	id := goid.Get()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writer == id
}
