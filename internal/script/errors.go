package script

import (
	"errors"
	"fmt"
)

// Sentinel errors for typed error checking. The governor returns these
// verbatim from Err(); they surface inside the script's abort message.
var (
	ErrCancelled        = errors.New("execution cancelled")
	ErrTimeout          = errors.New("execution timed out")
	ErrInstructionLimit = errors.New("instruction limit exceeded")
	ErrInvalidRequest   = errors.New("invalid evaluation request")
)

// EvalError wraps errors with evaluation context.
type EvalError struct {
	EvalID string
	Op     string // The operation that failed
	Err    error
}

func (e *EvalError) Error() string {
	if e.EvalID != "" {
		return fmt.Sprintf("evaluation %s: %s: %s", e.EvalID, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

// IsCancelled returns true if the error is a host cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsTimeout returns true if the error is a wall-clock timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsInstructionLimit returns true if the error is a spent instruction budget.
func IsInstructionLimit(err error) bool {
	return errors.Is(err, ErrInstructionLimit)
}
