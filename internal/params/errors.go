package params

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown parameter names.
	ErrNotFound = errors.New("parameter not found")

	// ErrTypeMismatch is returned when a value's kind differs from the
	// parameter's kind.
	ErrTypeMismatch = errors.New("parameter type mismatch")

	// ErrOutOfRange is returned when an integer falls outside the bounds.
	ErrOutOfRange = errors.New("parameter out of range")
)

// Error describes a rejected lookup or update.
type Error struct {
	Name string
	Err  error

	// Want is the kind of the existing parameter on mismatch.
	Want Kind
	// Got is the rejected value.
	Got Value
	// Min and Max are the parameter bounds on range errors.
	Min, Max *int
}

func (e *Error) Error() string {
	switch {
	case errors.Is(e.Err, ErrTypeMismatch):
		return fmt.Sprintf("%s: expected %s value", e.Name, e.Want)
	case errors.Is(e.Err, ErrOutOfRange):
		return fmt.Sprintf("%s: %s is outside %s", e.Name, e.Got, bounds(e.Min, e.Max))
	default:
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func bounds(min, max *int) string {
	lo, hi := "-inf", "+inf"
	if min != nil {
		lo = fmt.Sprint(*min)
	}
	if max != nil {
		hi = fmt.Sprint(*max)
	}
	return "[" + lo + ", " + hi + "]"
}
