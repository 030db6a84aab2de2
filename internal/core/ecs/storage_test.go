package ecs

import (
	"math/rand"
	"testing"
)

type payload struct {
	Value int
}

func TestStorageInsertTryGet(t *testing.T) {
	s := NewStorage[payload]()

	id, p := s.Insert(payload{Value: 7})
	if id.IsZero() {
		t.Fatalf("expected non-zero ID")
	}
	got, ok := s.TryGet(id)
	if !ok {
		t.Fatalf("expected TryGet to resolve fresh ID")
	}
	if got != p || got.Value != 7 {
		t.Errorf("expected stored pointer with value 7, got %p value %d", got, got.Value)
	}
	if s.Len() != 1 || s.Span() != 1 {
		t.Errorf("expected len 1 span 1, got len %d span %d", s.Len(), s.Span())
	}

	if _, ok := s.TryGet(ID(0)); ok {
		t.Errorf("Zero ID must not resolve")
	}
	if _, ok := s.TryGet(NewID(99, 1)); ok {
		t.Errorf("Out of range ID must not resolve")
	}
}

func TestStorageStaleHandleAfterReuse(t *testing.T) {
	s := NewStorage[payload]()

	a, _ := s.Insert(payload{Value: 1})
	if !s.Remove(a) {
		t.Fatalf("expected Remove to succeed")
	}
	if _, ok := s.TryGet(a); ok {
		t.Errorf("Removed ID must not resolve")
	}

	b, _ := s.Insert(payload{Value: 2})
	if b.Index() != a.Index() {
		t.Fatalf("expected slot %d to be reused, got %d", a.Index(), b.Index())
	}
	if b.Generation() == a.Generation() {
		t.Fatalf("expected generation to change on reuse")
	}
	if _, ok := s.TryGet(a); ok {
		t.Errorf("Stale ID must not alias the new occupant")
	}
	if s.Remove(a) {
		t.Errorf("Removing a stale ID must be a no-op")
	}
	if p, ok := s.TryGet(b); !ok || p.Value != 2 {
		t.Errorf("expected new ID to resolve to value 2")
	}
}

func TestStorageReusesLowestFreeSlot(t *testing.T) {
	s := NewStorage[payload]()
	ids := make([]ID, 6)
	for i := range ids {
		ids[i], _ = s.Insert(payload{Value: i})
	}
	s.Remove(ids[4])
	s.Remove(ids[1])
	s.Remove(ids[3])

	for _, want := range []uint32{1, 3, 4, 6} {
		id, _ := s.Insert(payload{})
		if id.Index() != want {
			t.Errorf("expected index %d, got %d", want, id.Index())
		}
	}
}

func TestStoragePointerStabilityAcrossGrowth(t *testing.T) {
	s := NewStorage[payload]()
	first, p := s.Insert(payload{Value: 42})

	for i := 0; i < BlockSize*3; i++ {
		s.Insert(payload{Value: i})
	}

	got, ok := s.TryGet(first)
	if !ok || got != p {
		t.Fatalf("expected pointer to survive growth")
	}
	if p.Value != 42 {
		t.Errorf("expected value 42, got %d", p.Value)
	}
}

func TestStorageRetireDefersReuse(t *testing.T) {
	s := NewStorage[payload]()
	a, _ := s.Insert(payload{Value: 5})

	p, ok := s.Retire(a)
	if !ok {
		t.Fatalf("expected Retire to succeed")
	}
	if p.Value != 5 {
		t.Errorf("Retired payload must stay readable, got %d", p.Value)
	}
	if _, ok := s.TryGet(a); ok {
		t.Errorf("Retired ID must not resolve")
	}
	if s.Len() != 0 {
		t.Errorf("expected len 0 after retire, got %d", s.Len())
	}

	b, _ := s.Insert(payload{})
	if b.Index() == a.Index() {
		t.Errorf("Retired slot must not be reused before Reclaim")
	}

	if !s.Reclaim(a.Index()) {
		t.Fatalf("expected Reclaim to succeed")
	}
	if s.Reclaim(a.Index()) {
		t.Errorf("second Reclaim must fail")
	}
	c, _ := s.Insert(payload{})
	if c.Index() != a.Index() {
		t.Errorf("expected reclaimed slot %d to be reused, got %d", a.Index(), c.Index())
	}
}

func TestStorageIterationOrderAndRange(t *testing.T) {
	s := NewStorage[payload]()
	ids := make([]ID, 10)
	for i := range ids {
		ids[i], _ = s.Insert(payload{Value: i})
	}
	s.Remove(ids[2])
	s.Remove(ids[7])

	var seen []int
	for _, p := range s.All() {
		seen = append(seen, p.Value)
	}
	want := []int{0, 1, 3, 4, 5, 6, 8, 9}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}

	// Contiguous sub-ranges partition the live set.
	total := 0
	for start := uint32(0); start < s.Span(); start += 3 {
		for range s.Range(start, 3) {
			total++
		}
	}
	if total != s.Len() {
		t.Errorf("expected sub-ranges to cover %d slots, covered %d", s.Len(), total)
	}

	// Restartable: a second pass yields the same count.
	n := 0
	for range s.All() {
		n++
	}
	if n != len(want) {
		t.Errorf("expected %d on second pass, got %d", len(want), n)
	}

	for range s.Range(100, 5) {
		t.Errorf("Range past span must be empty")
	}
}

func TestStorageRandomInsertRemove(t *testing.T) {
	s := NewStorage[payload]()
	rng := rand.New(rand.NewSource(1))
	live := map[ID]int{}
	var dead []ID

	for step := 0; step < 5000; step++ {
		if len(live) == 0 || rng.Intn(3) > 0 {
			id, _ := s.Insert(payload{Value: step})
			live[id] = step
			continue
		}
		for id := range live {
			s.Remove(id)
			delete(live, id)
			dead = append(dead, id)
			break
		}
	}

	for id, v := range live {
		p, ok := s.TryGet(id)
		if !ok || p.Value != v {
			t.Fatalf("Live ID %s lost its value", id)
		}
	}
	for _, id := range dead {
		if _, ok := s.TryGet(id); ok {
			t.Fatalf("Dead ID %s still resolves", id)
		}
	}
	if s.Len() != len(live) {
		t.Errorf("expected len %d, got %d", len(live), s.Len())
	}
}
