package bt

import (
	"time"

	"github.com/darianrosebrook/cortex/internal/types"
)

// NodeMetrics accumulates execution counters for one node over one run.
// Runs increments exactly once per logical execution of the node, on its
// first tick, never once per tick; exactly one outcome counter increments
// when the execution completes. Composite nodes follow the same accounting
// as leaves, so a tree's root metrics always agree with its result.
type NodeMetrics struct {
	// Runs counts logical executions (a repeat_until iteration or retry
	// attempt re-executes the subtree and counts again).
	Runs int `json:"runs"`

	Successes int `json:"successes"`
	Failures  int `json:"failures"`
	Aborts    int `json:"aborts"`

	// Timeouts counts failures caused by a timeout decorator's deadline; the
	// same event also counts in Failures on the timeout node itself.
	Timeouts int `json:"timeouts"`

	// Duration is the wall-clock time spent between the node's first tick
	// and completion, summed across executions.
	Duration time.Duration `json:"duration"`
}

// recordOutcome applies a terminal status to the metrics.
func (m *NodeMetrics) recordOutcome(status types.ExecutionStatus) {
	switch status {
	case types.StatusSucceeded:
		m.Successes++
	case types.StatusFailed:
		m.Failures++
	case types.StatusAborted:
		m.Aborts++
	}
}

// Result is the outcome of a full run (or of a single Tick, in which case
// Status may be Running).
type Result struct {
	// RunID identifies the invocation that produced this result.
	RunID types.RunID `json:"run_id"`

	// Mode is the invocation's execution mode.
	Mode Mode `json:"mode"`

	// Status is the root node's final status.
	Status types.ExecutionStatus `json:"status"`

	// Error carries the structured failure when Status is Failed or Aborted
	// for a run-level reason (timeout, iteration limit, cancellation). Plain
	// leaf failures propagate as Status Failed with Error nil unless a
	// decorator converted them.
	Error *types.CortexError `json:"error,omitempty"`

	// ErrorKind is the failing leaf's failure class, when one surfaced.
	ErrorKind string `json:"error_kind,omitempty"`

	// Output is the most recent successful leaf output of the run, if any.
	Output map[string]any `json:"output,omitempty"`

	// Ticks is the number of engine passes the run consumed.
	Ticks int `json:"ticks"`

	// Duration is the total wall-clock run time.
	Duration time.Duration `json:"duration"`

	// NodeMetrics holds per-node deltas for this run, keyed by node ID.
	NodeMetrics map[string]*NodeMetrics `json:"node_metrics,omitempty"`
}

// Succeeded reports whether the run completed successfully.
func (r *Result) Succeeded() bool {
	return r.Status == types.StatusSucceeded
}

// RootMetrics returns the root node's metrics delta, or nil.
func (r *Result) RootMetrics(tree *Tree) *NodeMetrics {
	if tree == nil || tree.Root == nil {
		return nil
	}
	return r.NodeMetrics[tree.Root.ID]
}
