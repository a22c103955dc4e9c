package bt

import (
	"context"
	"time"

	"github.com/darianrosebrook/cortex/internal/leaf"
	"github.com/darianrosebrook/cortex/internal/types"
)

// nodeState is the per-run mutable state of one node. A nodeState exists
// only while its node's current execution is live; resetting a subtree (for
// a retry attempt or repeat iteration) discards it.
type nodeState struct {
	started    bool
	completed  bool
	lastStatus types.ExecutionStatus
	startedAt  time.Time

	// childIndex is the resume point of a sequence or selector: a child
	// returning Running parks the composite here so the next tick resumes at
	// the same child instead of restarting from the first.
	childIndex int

	// attempts counts completed failed attempts of a retry decorator.
	attempts int

	// iterations counts completed child executions of a repeat_until.
	iterations int

	// invoked marks that an action's effector has been called for this
	// execution. Metrics and invocation happen once per logical run, not
	// once per tick.
	invoked bool

	// pending is the outstanding effector future of a running action.
	pending <-chan leaf.Outcome

	// derivedCtx is the context handed to an action's effector or a timeout
	// decorator's subtree; cancel releases its timer. Every exit path must
	// release it.
	derivedCtx context.Context
	cancel     context.CancelFunc
}

// release cancels the node's derived context, clearing any pending timer.
// Safe to call repeatedly.
func (st *nodeState) release() {
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
}

// RunState owns all mutable state of a single run of a compiled tree. Each
// invocation creates its own RunState, so concurrent runs of one tree never
// share progress. RunState is not safe for concurrent use; one run is ticked
// by one goroutine.
type RunState struct {
	tree      *Tree
	states    map[string]*nodeState
	metrics   map[string]*NodeMetrics
	ticks     int
	startedAt time.Time

	// lastOutput is the most recent successful leaf output, surfaced on the
	// run result.
	lastOutput map[string]any

	// errKind is the most recent leaf failure class.
	errKind string

	// execErr is the structured run-level error (timeout, iteration limit,
	// abort), when one was generated.
	execErr *types.CortexError
}

// NewRunState creates the state for one run of tree.
func NewRunState(tree *Tree) *RunState {
	return &RunState{
		tree:      tree,
		states:    make(map[string]*nodeState),
		metrics:   make(map[string]*NodeMetrics),
		startedAt: time.Now(),
	}
}

// Ticks returns the number of engine passes consumed so far.
func (rs *RunState) Ticks() int {
	return rs.ticks
}

// state returns the node's state, creating it on first touch.
func (rs *RunState) state(id string) *nodeState {
	st := rs.states[id]
	if st == nil {
		st = &nodeState{}
		rs.states[id] = st
	}
	return st
}

// metricsFor returns the node's metrics delta, creating it on first touch.
// Metrics accumulate for the whole run and survive subtree resets.
func (rs *RunState) metricsFor(id string) *NodeMetrics {
	m := rs.metrics[id]
	if m == nil {
		m = &NodeMetrics{}
		rs.metrics[id] = m
	}
	return m
}

// resetSubtree discards the live state of node and every descendant so the
// subtree re-executes from scratch. Any derived contexts are released first,
// cancelling in-flight effectors and clearing their timers. Accumulated
// metrics are kept; a re-execution counts as a new run of those nodes.
func (rs *RunState) resetSubtree(node *Node) {
	if node == nil {
		return
	}
	if st, ok := rs.states[node.ID]; ok {
		st.release()
		delete(rs.states, node.ID)
	}
	for _, child := range node.Children {
		rs.resetSubtree(child)
	}
	rs.resetSubtree(node.Child)
}

// releaseAll releases every live derived context. Called once when a run
// reaches a terminal status, so no timers or effector contexts outlive the
// run.
func (rs *RunState) releaseAll() {
	for _, st := range rs.states {
		st.release()
	}
}

// fail records a run-level structured error.
func (rs *RunState) fail(err *types.CortexError) {
	rs.execErr = err
}
