package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrCityNotFound         = errors.New("city not found")
	ErrConnectionNotFound   = errors.New("connection not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrActivityNotFound     = errors.New("activity not found")

	// ErrConcurrentUpdate is returned by storage when a compare-and-swap
	// update lost the race against another writer.
	ErrConcurrentUpdate = errors.New("entity was modified concurrently")
)

// InvalidStateValueError is returned when the requested state is not part of
// the field's state universe at all.
type InvalidStateValueError struct {
	Field string
	Value State
}

func (e *InvalidStateValueError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid state value %q", e.Value)
	}
	return fmt.Sprintf("invalid value %q for field %q", e.Value, e.Field)
}

// InvalidTransitionError is returned when the requested state is known but
// cannot be reached from the current one.
type InvalidTransitionError struct {
	Field string
	From  State
	To    State
}

func (e *InvalidTransitionError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("transition %q -> %q is not allowed", e.From, e.To)
	}
	return fmt.Sprintf("field %q cannot move from %q to %q", e.Field, e.From, e.To)
}

// ForbiddenError is returned when the actor may not perform an otherwise
// valid operation.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Reason
}

// ValidationError collects input problems found before touching storage.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// Add records a problem.
func (e *ValidationError) Add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Err returns e if any problem was recorded, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// Validation outcomes, as reported by Outcome.
const (
	OutcomeOK                = "ok"
	OutcomeInvalidValue      = "invalid_value"
	OutcomeInvalidTransition = "invalid_transition"
	OutcomeError             = "error"
)

// Outcome classifies an error returned by a TransitionValidator.
func Outcome(err error) string {
	var valueErr *InvalidStateValueError
	var trErr *InvalidTransitionError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &valueErr):
		return OutcomeInvalidValue
	case errors.As(err, &trErr):
		return OutcomeInvalidTransition
	default:
		return OutcomeError
	}
}
