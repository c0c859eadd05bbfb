package fsm

import (
	"context"
	"errors"
	"maps"
	"slices"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/mycouch/internal/domain"
)

// Compile-time check: Validator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*Validator)(nil)

// events converts a transition table into looplab/fsm EventDesc format. Each
// destination state becomes one event named after it, whose sources are every
// state listing that destination. Events are sorted so the machine is built
// the same way on every call.
func events(table domain.TransitionTable) []loopfsm.EventDesc {
	grouped := make(map[domain.State][]string)
	for src, dsts := range table {
		for _, dst := range dsts {
			grouped[dst] = append(grouped[dst], string(src))
		}
	}

	out := make([]loopfsm.EventDesc, 0, len(grouped))
	for _, dst := range slices.Sorted(maps.Keys(grouped)) {
		srcs := grouped[dst]
		slices.Sort(srcs)
		out = append(out, loopfsm.EventDesc{
			Name: string(dst),
			Src:  srcs,
			Dst:  string(dst),
		})
	}
	return out
}

// Validator implements domain.TransitionValidator using looplab/fsm.
// It creates a short-lived FSM instance per Evaluate call, initialized with
// the field's current state, because looplab/fsm tracks state internally.
type Validator struct{}

// New creates a new FSM-backed transition validator.
func New() *Validator {
	return &Validator{}
}

// Evaluate reports whether from may move to to under table. An unconstrained
// table accepts everything. A target outside the table's states yields a
// domain.InvalidStateValueError; a known target without an edge from the
// current state yields a domain.InvalidTransitionError.
func (v *Validator) Evaluate(ctx context.Context, table domain.TransitionTable, from, to domain.State) error {
	if !table.Constrained() {
		return nil
	}
	if !table.Has(to) {
		return &domain.InvalidStateValueError{Value: to}
	}

	machine := loopfsm.NewFSM(string(from), events(table), nil)

	err := machine.Event(ctx, string(to))
	if err == nil {
		return nil
	}

	var noTransition loopfsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}

	var invalidEvent loopfsm.InvalidEventError
	var unknownEvent loopfsm.UnknownEventError
	if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) {
		return &domain.InvalidTransitionError{From: from, To: to}
	}
	return err
}
