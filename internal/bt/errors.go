package bt

import (
	"fmt"

	"github.com/darianrosebrook/cortex/internal/types"
)

// CompileErrorCode classifies compilation failures.
type CompileErrorCode string

const (
	CompileMissingLeaf      CompileErrorCode = "COMPILE_MISSING_LEAF"
	CompileUnknownPredicate CompileErrorCode = "COMPILE_UNKNOWN_PREDICATE"
	CompileBadArity         CompileErrorCode = "COMPILE_BAD_ARITY"
	CompileDuplicateNode    CompileErrorCode = "COMPILE_DUPLICATE_NODE"
	CompileBadParameter     CompileErrorCode = "COMPILE_BAD_PARAMETER"
	CompileBadGuard         CompileErrorCode = "COMPILE_BAD_GUARD"
	CompileInvalidDocument  CompileErrorCode = "COMPILE_INVALID_DOCUMENT"
)

// CompileError is the structured result of a failed compilation. Every
// validation rule produces a distinct code and names the offending node, so
// callers can surface actionable rejections at registration time.
type CompileError struct {
	Code    CompileErrorCode
	NodeID  string
	Message string
	Cause   error
}

// Error implements the error interface.
// Format: "[CODE] node <id>: message" with the cause appended when present.
func (e *CompileError) Error() string {
	msg := fmt.Sprintf("[%s]", e.Code)
	if e.NodeID != "" {
		msg += fmt.Sprintf(" node %s:", e.NodeID)
	}
	msg += " " + e.Message
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for error chain inspection. For a
// missing leaf this is the registry's MissingLeafError carrying the exact
// name and version requested.
func (e *CompileError) Unwrap() error {
	return e.Cause
}

// newCompileError builds a CompileError for a node.
func newCompileError(code CompileErrorCode, nodeID, message string) *CompileError {
	return &CompileError{Code: code, NodeID: nodeID, Message: message}
}

// wrapCompileError builds a CompileError wrapping a cause.
func wrapCompileError(code CompileErrorCode, nodeID, message string, cause error) *CompileError {
	return &CompileError{Code: code, NodeID: nodeID, Message: message, Cause: cause}
}

// execError builds the structured error attached to failed execution
// results.
func execError(code types.ErrorCode, format string, args ...any) *types.CortexError {
	return types.NewError(code, fmt.Sprintf(format, args...))
}
