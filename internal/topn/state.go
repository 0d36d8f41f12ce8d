package topn

import (
	"errors"
	"fmt"
)

// Phase is one step of a scan pass.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseSelecting
	PhaseAggregating
	PhaseEmitting
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseSelecting:
		return "selecting"
	case PhaseAggregating:
		return "aggregating"
	case PhaseEmitting:
		return "emitting"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// ErrPhaseOrder is returned for a transition that skips or repeats a phase.
var ErrPhaseOrder = errors.New("illegal scan phase transition")

// phaseTracker enforces Init → Selecting → Aggregating → Emitting → Closed.
// Closed is also reachable from any phase, once.
type phaseTracker struct {
	phase   Phase
	history []Phase
}

func (t *phaseTracker) advance(to Phase) error {
	if t.phase == PhaseClosed || to != t.phase+1 {
		return fmt.Errorf("%w: %s -> %s", ErrPhaseOrder, t.phase, to)
	}
	t.phase = to
	t.history = append(t.history, to)
	return nil
}

// close moves to Closed from wherever the pass stopped. It reports false if
// the pass was already closed.
func (t *phaseTracker) close() bool {
	if t.phase == PhaseClosed {
		return false
	}
	t.phase = PhaseClosed
	t.history = append(t.history, PhaseClosed)
	return true
}
