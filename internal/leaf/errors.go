package leaf

import (
	"fmt"

	"github.com/darianrosebrook/cortex/internal/types"
)

// DuplicateLeafError is returned by Register when a leaf with the same
// name@version is already present. Registered versions are immutable; the
// fix is to register a new version, never to overwrite.
type DuplicateLeafError struct {
	Name    string
	Version string
}

// Error implements the error interface.
func (e *DuplicateLeafError) Error() string {
	return fmt.Sprintf("[%s] leaf %s@%s is already registered", types.LEAF_DUPLICATE, e.Name, e.Version)
}

// Code returns the structured error code for this error.
func (e *DuplicateLeafError) Code() types.ErrorCode {
	return types.LEAF_DUPLICATE
}

// MissingLeafError is returned by Resolve when no matching leaf exists.
// Version is the exact version requested, or "any" when latest-version
// resolution found no versions at all.
type MissingLeafError struct {
	Name    string
	Version string
}

// Error implements the error interface.
func (e *MissingLeafError) Error() string {
	return fmt.Sprintf("[%s] leaf %s@%s is not registered", types.LEAF_MISSING, e.Name, e.Version)
}

// Code returns the structured error code for this error.
func (e *MissingLeafError) Code() types.ErrorCode {
	return types.LEAF_MISSING
}
