package types

import (
	"encoding/json"
	"fmt"
)

// ExecutionStatus represents the outcome of a tick or a full behavior tree run.
// Running is a routine control-flow state, not an error: a node returns it while
// an underlying effector is still outstanding.
type ExecutionStatus string

const (
	StatusSucceeded ExecutionStatus = "succeeded"
	StatusFailed    ExecutionStatus = "failed"
	StatusRunning   ExecutionStatus = "running"
	StatusAborted   ExecutionStatus = "aborted"
)

// String returns the string representation of ExecutionStatus.
func (s ExecutionStatus) String() string {
	return string(s)
}

// IsValid checks if the ExecutionStatus is a valid value.
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusRunning, StatusAborted:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status ends a run. Running is the only
// non-terminal status.
func (s ExecutionStatus) IsTerminal() bool {
	return s != StatusRunning
}

// MarshalJSON implements json.Marshaler
func (s ExecutionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler
func (s *ExecutionStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status := ExecutionStatus(str)
	if !status.IsValid() {
		return fmt.Errorf("invalid execution status: %s", str)
	}

	*s = status
	return nil
}
