package domain

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrUnknownStateField is returned when an entity is asked to transition a
// field it does not declare. It signals a programming error, not bad input.
var ErrUnknownStateField = errors.New("unknown state field")

// State is a state token of a state-machine field.
type State string

// TransitionTable maps a source state to the states it may move to. A nil or
// empty table leaves the field unconstrained. A state with no outgoing entry
// is terminal.
type TransitionTable map[State][]State

// Constrained reports whether the table restricts transitions at all.
func (t TransitionTable) Constrained() bool {
	return len(t) > 0
}

// States returns the state universe: every source and every listed
// destination, sorted.
func (t TransitionTable) States() []State {
	seen := make(map[State]struct{})
	for src, dsts := range t {
		seen[src] = struct{}{}
		for _, dst := range dsts {
			seen[dst] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Has reports whether s belongs to the state universe.
func (t TransitionTable) Has(s State) bool {
	if _, ok := t[s]; ok {
		return true
	}
	for _, dsts := range t {
		if slices.Contains(dsts, s) {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions.
func (t TransitionTable) IsTerminal(s State) bool {
	return len(t[s]) == 0
}

// TransitionValidator decides whether moving from one state to another is
// legal under a table. It returns nil, *InvalidStateValueError or
// *InvalidTransitionError, and has no side effects.
type TransitionValidator interface {
	Evaluate(ctx context.Context, table TransitionTable, from, to State) error
}

// StateMachineConfig holds the transition table of every state field an
// entity type owns, keyed by field name. A field mapped to nil is
// unconstrained.
type StateMachineConfig map[string]TransitionTable

// Stateful is implemented by entities owning state-machine fields.
type Stateful interface {
	StateMachine() StateMachineConfig
	StateField(name string) (StateValue, bool)
	SetStateField(name string, v StateValue)
}

// Transition describes the outcome of MakeTransition. Applied is false for the
// same-state no-op.
type Transition struct {
	Field   string
	From    State
	To      State
	Author  string
	Seq     int
	Applied bool
}

// MakeTransition moves field of e to next, appending an attributed history
// entry and writing the new value back onto e. It does not persist anything.
//
// A transition to the current state is a no-op. On failure e is left
// untouched and the validator's error is returned with Field filled in.
//
// next_seq is derived from the loaded history, so two writers racing on the
// same stored entity can compute the same sequence number. Callers must
// provide single-writer access or compare-and-swap at the storage layer.
func MakeTransition(ctx context.Context, validator TransitionValidator, e Stateful, field string, next State, author string) (Transition, error) {
	raw, ok := e.StateField(field)
	if !ok {
		return Transition{}, fmt.Errorf("%w: %q", ErrUnknownStateField, field)
	}

	current := DecodeState(raw)
	if next == current.Current {
		return Transition{Field: field, From: next, To: next}, nil
	}

	table := e.StateMachine()[field]
	if current.Current == "" {
		// First assignment only has to name a known state.
		if table.Constrained() && !table.Has(next) {
			return Transition{}, &InvalidStateValueError{Field: field, Value: next}
		}
	} else if err := validator.Evaluate(ctx, table, current.Current, next); err != nil {
		return Transition{}, withField(err, field)
	}

	updated := current.With(next, author)
	e.SetStateField(field, updated)

	return Transition{
		Field:   field,
		From:    current.Current,
		To:      next,
		Author:  author,
		Seq:     updated.LastSeq(),
		Applied: true,
	}, nil
}

func withField(err error, field string) error {
	var valueErr *InvalidStateValueError
	if errors.As(err, &valueErr) {
		return &InvalidStateValueError{Field: field, Value: valueErr.Value}
	}
	var trErr *InvalidTransitionError
	if errors.As(err, &trErr) {
		return &InvalidTransitionError{Field: field, From: trErr.From, To: trErr.To}
	}
	return err
}
