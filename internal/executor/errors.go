package executor

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when the executable outlives its timeout. The
// process has been killed by the time Run returns.
var ErrTimeout = errors.New("simulation timed out")

// ProcessError is returned when the executable exits with a non-zero status.
type ProcessError struct {
	ExitCode int
	Output   string
	Err      error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("simulation exited with code %d", e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}
