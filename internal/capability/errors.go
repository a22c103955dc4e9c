package capability

import (
	"fmt"
	"time"

	"github.com/darianrosebrook/cortex/internal/types"
)

// CircuitOpenError is returned when invoking a Suspended capability before
// its cooldown elapses. The caller gets the remaining cooldown instead of an
// execution attempt.
type CircuitOpenError struct {
	Name        string
	Version     string
	SuspendedAt time.Time

	// RetryAfter is the remaining cooldown at the time of the rejection.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("[%s] capability %s@%s is suspended (retry in %s)",
		types.CIRCUIT_OPEN, e.Name, e.Version, e.RetryAfter.Round(time.Millisecond))
}

// Code returns the structured error code for this error.
func (e *CircuitOpenError) Code() types.ErrorCode {
	return types.CIRCUIT_OPEN
}

// NotFoundError is returned when no registered capability matches a request.
type NotFoundError struct {
	Name    string
	Version string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("[%s] no capability registered under %q", types.CAPABILITY_NOT_FOUND, e.Name)
	}
	return fmt.Sprintf("[%s] capability %s@%s is not registered", types.CAPABILITY_NOT_FOUND, e.Name, e.Version)
}

// Code returns the structured error code for this error.
func (e *NotFoundError) Code() types.ErrorCode {
	return types.CAPABILITY_NOT_FOUND
}
