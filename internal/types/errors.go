package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for cortex errors.
type ErrorCode string

// Leaf registry error codes
const (
	LEAF_DUPLICATE    ErrorCode = "LEAF_DUPLICATE"
	LEAF_MISSING      ErrorCode = "LEAF_MISSING"
	LEAF_INVALID      ErrorCode = "LEAF_INVALID"
	LEAF_EXEC_FAILED  ErrorCode = "LEAF_EXEC_FAILED"
	LEAF_EXEC_TIMEOUT ErrorCode = "LEAF_EXEC_TIMEOUT"
)

// Predicate evaluator error codes
const (
	PREDICATE_UNKNOWN   ErrorCode = "PREDICATE_UNKNOWN"
	PREDICATE_DUPLICATE ErrorCode = "PREDICATE_DUPLICATE"
	PREDICATE_INVALID   ErrorCode = "PREDICATE_INVALID"
	PREDICATE_EVAL      ErrorCode = "PREDICATE_EVAL"
)

// Compilation error codes
const (
	COMPILE_FAILED           ErrorCode = "COMPILE_FAILED"
	COMPILE_INVALID_DOCUMENT ErrorCode = "COMPILE_INVALID_DOCUMENT"
)

// Execution error codes
const (
	EXEC_TIMEOUT         ErrorCode = "EXEC_TIMEOUT"
	EXEC_ITERATION_LIMIT ErrorCode = "EXEC_ITERATION_LIMIT"
	EXEC_ABORTED         ErrorCode = "EXEC_ABORTED"
	EXEC_TICK_LIMIT      ErrorCode = "EXEC_TICK_LIMIT"
)

// Capability registry error codes
const (
	CAPABILITY_NOT_FOUND ErrorCode = "CAPABILITY_NOT_FOUND"
	CAPABILITY_EXISTS    ErrorCode = "CAPABILITY_EXISTS"
	CAPABILITY_RETIRED   ErrorCode = "CAPABILITY_RETIRED"
	CIRCUIT_OPEN         ErrorCode = "CIRCUIT_OPEN"
)

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// CortexError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type CortexError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *CortexError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *CortexError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is a CortexError with the same Code.
func (e *CortexError) Is(target error) bool {
	var cortexErr *CortexError
	if errors.As(target, &cortexErr) {
		return e.Code == cortexErr.Code
	}
	return false
}

// NewError creates a new non-retryable CortexError with the given code and message.
func NewError(code ErrorCode, message string) *CortexError {
	return &CortexError{
		Code:    code,
		Message: message,
	}
}

// NewRetryableError creates a new retryable CortexError with the given code and message.
// Use this for transient errors that may succeed on retry.
func NewRetryableError(code ErrorCode, message string) *CortexError {
	return &CortexError{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError creates a new non-retryable CortexError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *CortexError {
	return &CortexError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) a CortexError.
// Returns an empty code when err carries no structured code.
func CodeOf(err error) ErrorCode {
	var cortexErr *CortexError
	if errors.As(err, &cortexErr) {
		return cortexErr.Code
	}
	return ""
}
