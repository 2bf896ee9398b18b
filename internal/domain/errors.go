package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotCompleted is returned when a result is read before its
	// invocation has completed.
	ErrNotCompleted = errors.New("invocation not completed")

	// ErrInvokerClosed is delivered through the completion channel when the
	// scheduler backing an invoker no longer accepts work.
	ErrInvokerClosed = errors.New("invoker is closed")

	// ErrUnavailable marks transport or connectivity failures of a remote
	// collaborator.
	ErrUnavailable = errors.New("remote service unavailable")
)

// ComputationError reports that an operation failed while running in the
// background. It is always delivered through the completion channel, never
// returned from the call that started the invocation.
type ComputationError struct {
	Op  string
	Err error
}

func (e *ComputationError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("computation failed: %v", e.Err)
	}
	return fmt.Sprintf("%s: computation failed: %v", e.Op, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// IsComputationError reports whether err wraps a ComputationError.
func IsComputationError(err error) bool {
	var ce *ComputationError
	return errors.As(err, &ce)
}
