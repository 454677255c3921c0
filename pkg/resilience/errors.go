package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Common resilience errors that can be checked with errors.Is().
var (
	// ErrCircuitOpen is returned when a call is rejected by an open circuit.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrOperationTimeout is returned when a guarded call exceeds its
	// per-call operation timeout.
	ErrOperationTimeout = errors.New("operation timed out")

	// ErrQueueClosed is returned when pulling from a closed, empty queue.
	ErrQueueClosed = errors.New("queue closed")

	// ErrSupervisorStopped is returned when starting children on a
	// stopped supervisor.
	ErrSupervisorStopped = errors.New("supervisor stopped")
)

// CircuitOpenError is returned when the breaker rejects a call without
// invoking the wrapped function. It carries the time at which the next
// probe will be allowed.
type CircuitOpenError struct {
	// RetryAfter is when the breaker will next let a probe through.
	RetryAfter time.Time
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker is open (retry after %s)", e.RetryAfter.Format(time.RFC3339))
}

// Is implements error matching for errors.Is().
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}
