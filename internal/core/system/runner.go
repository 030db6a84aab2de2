package system

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type entry struct {
	desc Desc
	seq  uint64
}

// Runner executes registered update functions phase by phase each frame.
// Within a phase, functions run in dependency order; ties keep registration order.
type Runner struct {
	log     *zap.Logger
	pool    *WorkerPool
	entries map[string]*entry
	pending []*entry
	order   [numPhases][]*entry
	nextSeq uint64
	current atomic.Int32
	workers sync.Map // goroutine id -> struct{}, while running an async chunk
}

// NewRunner creates a runner. A nil pool runs async chunks inline on the
// calling goroutine.
func NewRunner(pool *WorkerPool, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Runner{
		log:     log,
		pool:    pool,
		entries: make(map[string]*entry, 16),
	}
	r.current.Store(int32(PhaseIdle))
	return r
}

// Current returns the phase being executed, or PhaseIdle between frames.
func (r *Runner) Current() Phase { return Phase(r.current.Load()) }

// InWorker reports whether the calling goroutine is running an async chunk
// of this runner.
func (r *Runner) InWorker() bool {
	_, ok := r.workers.Load(goid.Get())
	return ok
}

func (r *Runner) setPhase(p Phase) {
	r.current.Store(int32(p))
	r.log.Debug("phase", zap.Stringer("phase", p))
}

// Len returns the number of committed functions.
func (r *Runner) Len() int { return len(r.entries) }

// Register queues d for the next Commit. Duplicate names are rejected right away.
func (r *Runner) Register(d Desc) error {
	if err := d.validate(); err != nil {
		return err
	}
	if r.known(d.Name) {
		return fmt.Errorf("%w: %s", ErrDuplicateFunction, d.Name)
	}
	d.DependsOn = append([]string(nil), d.DependsOn...)
	r.pending = append(r.pending, &entry{desc: d, seq: r.nextSeq})
	r.nextSeq++
	return nil
}

func (r *Runner) known(name string) bool {
	if _, ok := r.entries[name]; ok {
		return true
	}
	for _, e := range r.pending {
		if e.desc.Name == name {
			return true
		}
	}
	return false
}

// Commit resolves the pending batch. Dependencies may point at committed
// functions or at functions in the same batch. On error the whole batch is
// discarded and the previous order stays in effect.
func (r *Runner) Commit() error {
	if len(r.pending) == 0 {
		return nil
	}
	batch := r.pending
	r.pending = nil

	all := make(map[string]*entry, len(r.entries)+len(batch))
	for name, e := range r.entries {
		all[name] = e
	}
	for _, e := range batch {
		all[e.desc.Name] = e
	}

	for _, e := range batch {
		for _, dep := range e.desc.DependsOn {
			target, ok := all[dep]
			if !ok {
				return fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, e.desc.Name, dep)
			}
			if target.desc.Phase > e.desc.Phase {
				return fmt.Errorf("%w: %s (%s) depends on %s (%s)",
					ErrPhaseOrder, e.desc.Name, e.desc.Phase, dep, target.desc.Phase)
			}
		}
	}

	var order [numPhases][]*entry
	for p := 0; p < numPhases; p++ {
		sorted, err := sortPhase(all, Phase(p))
		if err != nil {
			return err
		}
		order[p] = sorted
	}

	for _, e := range batch {
		r.entries[e.desc.Name] = e
	}
	r.order = order
	return nil
}

// sortPhase orders the functions of one phase with Kahn's algorithm.
// Dependencies outside the phase, or no longer registered, are already satisfied.
func sortPhase(all map[string]*entry, phase Phase) ([]*entry, error) {
	var nodes []*entry
	for _, e := range all {
		if e.desc.Phase == phase {
			nodes = append(nodes, e)
		}
	}
	indegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]*entry, len(nodes))
	for _, e := range nodes {
		indegree[e.desc.Name] = 0
		for _, dep := range e.desc.DependsOn {
			target, ok := all[dep]
			if !ok || target.desc.Phase != phase {
				continue
			}
			indegree[e.desc.Name]++
			dependents[dep] = append(dependents[dep], e)
		}
	}

	sorted := make([]*entry, 0, len(nodes))
	ready := make([]*entry, 0, len(nodes))
	for _, e := range nodes {
		if indegree[e.desc.Name] == 0 {
			ready = append(ready, e)
		}
	}
	for len(ready) > 0 {
		// lowest registration sequence first
		best := 0
		for i := range ready {
			if ready[i].seq < ready[best].seq {
				best = i
			}
		}
		e := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		sorted = append(sorted, e)
		for _, d := range dependents[e.desc.Name] {
			indegree[d.desc.Name]--
			if indegree[d.desc.Name] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(sorted) != len(nodes) {
		var stuck []string
		for _, e := range nodes {
			if indegree[e.desc.Name] > 0 {
				stuck = append(stuck, e.desc.Name)
			}
		}
		return nil, fmt.Errorf("%w in %s: %s", ErrCyclicDependency, phase, strings.Join(stuck, ", "))
	}
	return sorted, nil
}

// Deregister removes a function by name. Functions that depended on it keep
// running; the dependency is treated as satisfied.
func (r *Runner) Deregister(name string) bool {
	for i, e := range r.pending {
		if e.desc.Name == name {
			r.pending = append(r.pending[:i:i], r.pending[i+1:]...)
			return true
		}
	}
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	delete(r.entries, name)
	p := e.desc.Phase
	next := make([]*entry, 0, len(r.order[p]))
	for _, x := range r.order[p] {
		if x != e {
			next = append(next, x)
		}
	}
	r.order[p] = next
	return true
}

// Order returns the function names of phase p in execution order.
func (r *Runner) Order(p Phase) []string {
	if p < PhasePreSync || p >= PhaseIdle {
		return nil
	}
	names := make([]string, len(r.order[p]))
	for i, e := range r.order[p] {
		names[i] = e.desc.Name
	}
	return names
}

func (r *Runner) ensureSorted() {
	if err := r.Commit(); err != nil {
		r.log.Error("discarding update function batch", zap.Error(err))
	}
}

// Tick runs every phase in order and returns to PhaseIdle. Faults recovered
// from update functions are logged and returned joined; they never stop the frame.
func (r *Runner) Tick() error {
	r.ensureSorted()
	defer r.setPhase(PhaseIdle)

	var errs []error
	for p := PhasePreSync; p < PhaseIdle; p++ {
		if err := r.tickPhase(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TickPhase runs only the functions of one phase.
func (r *Runner) TickPhase(phase Phase) error {
	if phase < PhasePreSync || phase >= PhaseIdle {
		return nil
	}
	defer r.setPhase(PhaseIdle)
	return r.tickPhase(phase)
}

func (r *Runner) tickPhase(phase Phase) error {
	r.setPhase(phase)
	if phase == PhaseAsync {
		return r.runAsync()
	}
	return r.runSync(phase)
}

func (r *Runner) runSync(phase Phase) error {
	var faults []error
	for _, e := range r.order[phase] {
		if f := r.invoke(e, phase, 0, e.desc.Owner.Span()); f != nil {
			faults = append(faults, f)
		}
	}
	return errors.Join(faults...)
}

func (r *Runner) runAsync() error {
	list := r.order[PhaseAsync]
	if len(list) == 0 {
		return nil
	}

	done := make(map[string]chan struct{}, len(list))
	for _, e := range list {
		done[e.desc.Name] = make(chan struct{})
	}

	var (
		mu     sync.Mutex
		faults []error
		g      errgroup.Group
	)
	for _, e := range list {
		g.Go(func() error {
			defer close(done[e.desc.Name])
			for _, dep := range e.desc.DependsOn {
				if ch, ok := done[dep]; ok {
					<-ch
				}
			}
			fs := r.runChunks(e, Chunks(e.desc.Owner.Span(), e.desc.Granularity))
			if len(fs) > 0 {
				mu.Lock()
				faults = append(faults, fs...)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(faults...)
}

func (r *Runner) runChunks(e *entry, chunks []Chunk) []error {
	var faults []error
	if r.pool == nil {
		for _, c := range chunks {
			if f := r.invoke(e, PhaseAsync, c.Start, c.Count); f != nil {
				faults = append(faults, f)
			}
		}
		return faults
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	wg.Add(len(chunks))
	for _, c := range chunks {
		r.pool.Submit(func() {
			defer wg.Done()
			if f := r.invoke(e, PhaseAsync, c.Start, c.Count); f != nil {
				mu.Lock()
				faults = append(faults, f)
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return faults
}

func (r *Runner) invoke(e *entry, phase Phase, start, count uint32) (fault *FunctionFault) {
	defer func() {
		if v := recover(); v != nil {
			fault = &FunctionFault{Name: e.desc.Name, Phase: phase, Start: start, Count: count, Value: v}
			r.log.Error("update function panicked",
				zap.String("function", e.desc.Name),
				zap.Stringer("phase", phase),
				zap.Uint32("start", start),
				zap.Uint32("count", count),
				zap.Any("panic", v),
			)
		}
	}()
	if phase == PhaseAsync {
		id := goid.Get()
		r.workers.Store(id, struct{}{})
		defer r.workers.Delete(id)
	}
	e.desc.Func(start, count)
	return nil
}
