package ecs

import (
	"container/heap"
	"iter"
)

// BlockSize is the number of slots allocated at once when a Storage grows.
// Blocks are never reallocated, so element pointers stay put for the lifetime
// of the slot.
const BlockSize = 256

type slotState uint8

const (
	slotFree slotState = iota
	slotLive
	slotDead // retired, waiting for Reclaim
)

type slot[T any] struct {
	value      T
	generation uint32
	state      slotState
}

type block[T any] [BlockSize]slot[T]

// Storage is a generational slot container. Slots live in fixed-size blocks,
// and freed indices are reused lowest-first.
type Storage[T any] struct {
	blocks []*block[T]
	span   uint32 // slots ever handed out
	live   int
	free   freeList
}

func NewStorage[T any]() *Storage[T] {
	return &Storage[T]{
		blocks: make([]*block[T], 0, 4),
	}
}

func (s *Storage[T]) at(index uint32) *slot[T] {
	return &s.blocks[index/BlockSize][index%BlockSize]
}

// Insert stores value and returns its ID and a stable pointer to the stored copy.
func (s *Storage[T]) Insert(value T) (ID, *T) {
	var index uint32
	if s.free.Len() > 0 {
		index = heap.Pop(&s.free).(uint32)
	} else {
		index = s.span
		if int(index/BlockSize) >= len(s.blocks) {
			s.blocks = append(s.blocks, new(block[T]))
		}
		s.span++
	}

	sl := s.at(index)
	if sl.generation == 0 {
		sl.generation = 1
	}
	sl.value = value
	sl.state = slotLive
	s.live++
	return NewID(index, sl.generation), &sl.value
}

// TryGet resolves id. Stale or out-of-range IDs report false.
func (s *Storage[T]) TryGet(id ID) (*T, bool) {
	sl, ok := s.resolve(id)
	if !ok {
		return nil, false
	}
	return &sl.value, true
}

// Contains reports whether id still refers to a live slot.
func (s *Storage[T]) Contains(id ID) bool {
	_, ok := s.resolve(id)
	return ok
}

func (s *Storage[T]) resolve(id ID) (*slot[T], bool) {
	idx := id.Index()
	if idx >= s.span {
		return nil, false
	}
	sl := s.at(idx)
	if sl.state != slotLive || sl.generation != id.Generation() {
		return nil, false
	}
	return sl, true
}

// Remove destroys the payload and frees the slot immediately. Stale IDs are ignored.
func (s *Storage[T]) Remove(id ID) bool {
	if _, ok := s.Retire(id); !ok {
		return false
	}
	return s.Reclaim(id.Index())
}

// Retire invalidates id without releasing the slot. The payload stays readable
// through the returned pointer until Reclaim is called for the index.
func (s *Storage[T]) Retire(id ID) (*T, bool) {
	sl, ok := s.resolve(id)
	if !ok {
		return nil, false
	}
	sl.generation = nextGeneration(sl.generation)
	sl.state = slotDead
	s.live--
	return &sl.value, true
}

// Reclaim zeroes a retired slot and puts it back on the free list.
func (s *Storage[T]) Reclaim(index uint32) bool {
	if index >= s.span {
		return false
	}
	sl := s.at(index)
	if sl.state != slotDead {
		return false
	}
	var zero T
	sl.value = zero
	sl.state = slotFree
	heap.Push(&s.free, index)
	return true
}

// Len returns the number of live slots.
func (s *Storage[T]) Len() int { return s.live }

// Span returns one past the highest slot index ever used. Iteration ranges are
// expressed in slot indices within [0, Span).
func (s *Storage[T]) Span() uint32 { return s.span }

// All yields every live slot in index order.
func (s *Storage[T]) All() iter.Seq2[ID, *T] {
	return s.Range(0, s.span)
}

// Range yields the live slots whose index lies in [start, start+count).
// The upper bound is clamped to the span sampled when iteration begins.
func (s *Storage[T]) Range(start, count uint32) iter.Seq2[ID, *T] {
	return func(yield func(ID, *T) bool) {
		end := s.span
		if start >= end {
			return
		}
		if count < end-start {
			end = start + count
		}
		for i := start; i < end; i++ {
			sl := s.at(i)
			if sl.state != slotLive {
				continue
			}
			if !yield(NewID(i, sl.generation), &sl.value) {
				return
			}
		}
	}
}

// freeList is a min-heap of free slot indices.
type freeList []uint32

func (f freeList) Len() int           { return len(f) }
func (f freeList) Less(i, j int) bool { return f[i] < f[j] }
func (f freeList) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }

func (f *freeList) Push(x any) { *f = append(*f, x.(uint32)) }

func (f *freeList) Pop() any {
	old := *f
	n := len(old)
	v := old[n-1]
	*f = old[:n-1]
	return v
}
