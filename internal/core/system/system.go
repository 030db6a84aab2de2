package system

import (
	"errors"
	"fmt"
)

// Phase defines execution ordering within a single frame.
type Phase int

const (
	PhasePreSync   Phase = iota // 0: single-threaded, before simulation
	PhaseSync                   // 1: single-threaded simulation
	PhaseAsync                  // 2: chunked, dispatched to the worker pool
	PhasePostAsync              // 3: single-threaded, sees async results
	PhaseIdle                   // not inside a frame
)

const numPhases = int(PhaseIdle)

func (p Phase) String() string {
	switch p {
	case PhasePreSync:
		return "PreSync"
	case PhaseSync:
		return "Sync"
	case PhaseAsync:
		return "Async"
	case PhasePostAsync:
		return "PostAsync"
	case PhaseIdle:
		return "Idle"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// UpdateFunc processes the slots in [start, start+count) of its owner.
type UpdateFunc func(start, count uint32)

// Ranged is the storage whose slot span an update function iterates.
type Ranged interface {
	Span() uint32
}

// Desc describes one registered update function.
type Desc struct {
	Name        string // unique within a Runner
	Owner       Ranged
	Func        UpdateFunc
	Phase       Phase
	Granularity uint32   // Async only; 0 runs the whole span as one chunk
	DependsOn   []string // names that must complete first in the same frame
}

var (
	ErrDuplicateFunction = errors.New("update function already registered")
	ErrInvalidDesc       = errors.New("invalid update function descriptor")
	ErrUnknownDependency = errors.New("unknown update function dependency")
	ErrCyclicDependency  = errors.New("cyclic update function dependency")
	ErrPhaseOrder        = errors.New("dependency runs in a later phase")
)

// FunctionFault records a panic recovered from an update function.
type FunctionFault struct {
	Name  string
	Phase Phase
	Start uint32
	Count uint32
	Value any
}

func (f *FunctionFault) Error() string {
	return fmt.Sprintf("update %s [%s] chunk %d+%d panicked: %v", f.Name, f.Phase, f.Start, f.Count, f.Value)
}

// Unwrap exposes a panic value that was itself an error.
func (f *FunctionFault) Unwrap() error {
	err, _ := f.Value.(error)
	return err
}

func (d *Desc) validate() error {
	switch {
	case d.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidDesc)
	case d.Func == nil:
		return fmt.Errorf("%w: %s has no function", ErrInvalidDesc, d.Name)
	case d.Owner == nil:
		return fmt.Errorf("%w: %s has no owner", ErrInvalidDesc, d.Name)
	case d.Phase < PhasePreSync || d.Phase >= PhaseIdle:
		return fmt.Errorf("%w: %s has phase %s", ErrInvalidDesc, d.Name, d.Phase)
	}
	for _, dep := range d.DependsOn {
		if dep == d.Name {
			return fmt.Errorf("%w: %s depends on itself", ErrCyclicDependency, d.Name)
		}
	}
	return nil
}
