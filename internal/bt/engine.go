package bt

import (
	"context"
	"log/slog"
	"time"

	"github.com/darianrosebrook/cortex/internal/leaf"
	"github.com/darianrosebrook/cortex/internal/types"
	"github.com/expr-lang/expr/vm"
)

// Engine ticks compiled trees to completion. It holds configuration only;
// all per-run state lives in RunState, so one engine serves any number of
// concurrent runs.
//
// Execution is cooperative: a tick is one synchronous pass over the active
// path of the tree. A node suspends (returns Running) only at action-leaf
// boundaries while an effector is outstanding, or inside repeat_until
// between iterations. Cancellation is observed at every suspension point,
// before and after child ticks; the engine signals in-flight effectors
// through their contexts and never assumes immediate termination.
type Engine struct {
	logger       *slog.Logger
	tickInterval time.Duration
	maxTicks     int
}

// EngineOption is a functional option for configuring an Engine.
type EngineOption func(*Engine)

// WithLogger configures the engine's structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTickInterval configures the pause between ticks while a run is
// suspended on an outstanding effector.
func WithTickInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.tickInterval = d
		}
	}
}

// WithMaxTicks bounds the number of ticks a single Run may consume. Zero
// means unbounded.
func WithMaxTicks(n int) EngineOption {
	return func(e *Engine) {
		if n >= 0 {
			e.maxTicks = n
		}
	}
}

// NewEngine creates an Engine. Default configuration:
//   - logger: slog.Default()
//   - tick interval: 10ms
//   - max ticks: unbounded
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		logger:       slog.Default(),
		tickInterval: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run ticks tree to a terminal status, pausing tickInterval between passes
// while suspended. Cancelling ctx aborts the run: the next tick observes the
// cancellation and propagates Aborted up from the active node without
// further work.
func (e *Engine) Run(ctx context.Context, tree *Tree, ec *ExecutionContext) *Result {
	rs := NewRunState(tree)

	e.logger.DebugContext(ctx, "starting tree run",
		"tree", tree.ID().String(),
		"run_id", ec.RunID.String(),
		"mode", ec.Mode.String(),
	)

	for {
		status := e.Tick(ctx, tree, rs, ec)
		if status.IsTerminal() {
			return e.buildResult(ctx, tree, rs, ec, status)
		}

		if e.maxTicks > 0 && rs.ticks >= e.maxTicks {
			rs.fail(execError(types.EXEC_TICK_LIMIT,
				"run exceeded %d ticks without completing", e.maxTicks))
			rs.releaseAll()
			return e.buildResult(ctx, tree, rs, ec, types.StatusFailed)
		}

		select {
		case <-ctx.Done():
			// The next tick converts this into Aborted at the active node.
		case <-time.After(e.tickInterval):
		}
	}
}

// Tick executes one cooperative pass over tree. Callers driving their own
// tick loop (a game-loop host) use this directly; Run wraps it.
func (e *Engine) Tick(ctx context.Context, tree *Tree, rs *RunState, ec *ExecutionContext) types.ExecutionStatus {
	rs.ticks++
	status := e.tickNode(ctx, tree.Root, rs, ec)
	if status.IsTerminal() {
		rs.releaseAll()
	}
	return status
}

// tickNode dispatches one tick of a node, handling the shared concerns:
// memoized completion, cancellation, guards, and metrics accounting.
func (e *Engine) tickNode(ctx context.Context, node *Node, rs *RunState, ec *ExecutionContext) types.ExecutionStatus {
	st := rs.state(node.ID)
	if st.completed {
		return st.lastStatus
	}

	// A node that has not begun never starts under a cancelled context. A
	// node already in flight ticks once more so the abort surfaces at the
	// suspended action and propagates up the active path, recording an
	// abort outcome at every level that was running.
	if ctx.Err() != nil && !st.started {
		return e.finish(node, rs, st, types.StatusAborted)
	}

	if !st.started {
		if node.guard != nil {
			ok, err := e.evalGuard(node, ec)
			if err != nil {
				rs.fail(types.WrapError(types.PREDICATE_EVAL,
					"guard evaluation failed on node "+node.ID, err))
				e.begin(node, rs, st)
				return e.finish(node, rs, st, types.StatusFailed)
			}
			if !ok {
				// A false guard fails the node without executing it, so
				// selectors can fall through to the next alternative.
				e.begin(node, rs, st)
				return e.finish(node, rs, st, types.StatusFailed)
			}
		}
		e.begin(node, rs, st)
	}

	var status types.ExecutionStatus
	switch node.Type {
	case NodeAction:
		status = e.tickAction(ctx, node, rs, st, ec)
	case NodeCondition:
		status = e.tickCondition(node, rs, st, ec)
	case NodeSequence:
		status = e.tickSequence(ctx, node, rs, st, ec)
	case NodeSelector:
		status = e.tickSelector(ctx, node, rs, st, ec)
	case NodeRepeatUntil:
		status = e.tickRepeatUntil(ctx, node, rs, st, ec)
	case NodeTimeout:
		status = e.tickTimeout(ctx, node, rs, st, ec)
	case NodeRetry:
		status = e.tickRetry(ctx, node, rs, st, ec)
	default:
		rs.fail(execError(types.COMPILE_FAILED, "node %s has unknown type %s", node.ID, node.Type))
		status = types.StatusFailed
	}

	if status.IsTerminal() {
		return e.finish(node, rs, st, status)
	}
	return status
}

// begin marks the start of one logical execution of a node. Runs increments
// here, exactly once per execution, never per tick.
func (e *Engine) begin(node *Node, rs *RunState, st *nodeState) {
	st.started = true
	st.startedAt = time.Now()
	rs.metricsFor(node.ID).Runs++
}

// finish records a node's terminal status. Exactly one outcome counter
// increments per execution, for composites and leaves alike.
func (e *Engine) finish(node *Node, rs *RunState, st *nodeState, status types.ExecutionStatus) types.ExecutionStatus {
	st.release()
	st.completed = true
	st.lastStatus = status
	if st.started {
		m := rs.metricsFor(node.ID)
		m.recordOutcome(status)
		m.Duration += time.Since(st.startedAt)
	}
	return status
}

// tickAction drives a leaf: the effector is invoked on the node's first
// tick and polled on later ticks while outstanding.
func (e *Engine) tickAction(ctx context.Context, node *Node, rs *RunState, st *nodeState, ec *ExecutionContext) types.ExecutionStatus {
	if !st.invoked {
		st.invoked = true

		invokeCtx := ctx
		if node.Leaf.DefaultTimeout > 0 {
			invokeCtx, st.cancel = context.WithTimeout(ctx, node.Leaf.DefaultTimeout)
		}
		st.derivedCtx = invokeCtx

		outcome := node.Leaf.Effector.Execute(invokeCtx, resolveParams(node, ec), ec.Snapshot())
		return e.settleAction(node, rs, st, outcome)
	}

	if st.pending != nil {
		select {
		case outcome, ok := <-st.pending:
			if !ok {
				outcome = leaf.Failure("effector_closed_pending",
					execError(types.LEAF_EXEC_FAILED, "effector closed its pending channel without a result"))
			}
			st.pending = nil
			return e.settleAction(node, rs, st, outcome)
		default:
		}
	}

	if st.derivedCtx != nil && st.derivedCtx.Err() != nil {
		if ctx.Err() != nil {
			return types.StatusAborted
		}
		// The leaf's own default timeout expired; the effector has been
		// signalled through its context.
		st.release()
		rs.errKind = "leaf_timeout"
		rs.fail(execError(types.LEAF_EXEC_TIMEOUT,
			"leaf %s@%s exceeded its default timeout", node.LeafName, node.LeafVersion))
		return types.StatusFailed
	}

	return types.StatusRunning
}

// resolveParams layers the effector's parameters: schema defaults below
// invocation args below the document's explicit parameters. The document
// always wins; args override defaulted or unset keys only.
func resolveParams(node *Node, ec *ExecutionContext) map[string]any {
	if len(ec.Args) == 0 && len(node.Defaults) == 0 {
		return node.Params
	}
	merged := make(map[string]any, len(node.Defaults)+len(ec.Args)+len(node.Params))
	for k, v := range node.Defaults {
		merged[k] = v
	}
	for k, v := range ec.Args {
		merged[k] = v
	}
	for k, v := range node.Params {
		merged[k] = v
	}
	return merged
}

// settleAction interprets an effector outcome.
func (e *Engine) settleAction(node *Node, rs *RunState, st *nodeState, outcome leaf.Outcome) types.ExecutionStatus {
	switch outcome.Status {
	case types.StatusRunning:
		if outcome.Pending == nil {
			st.release()
			rs.errKind = "malformed_outcome"
			rs.fail(execError(types.LEAF_EXEC_FAILED,
				"leaf %s@%s returned Running without a pending channel", node.LeafName, node.LeafVersion))
			return types.StatusFailed
		}
		st.pending = outcome.Pending
		return types.StatusRunning

	case types.StatusSucceeded:
		st.release()
		rs.lastOutput = outcome.Output
		return types.StatusSucceeded

	case types.StatusFailed:
		st.release()
		rs.errKind = outcome.ErrorKind
		if outcome.Err != nil {
			e.logger.Debug("leaf failed",
				"leaf", node.LeafName+"@"+node.LeafVersion,
				"kind", outcome.ErrorKind,
				"error", outcome.Err,
			)
		}
		return types.StatusFailed

	default:
		st.release()
		rs.errKind = "malformed_outcome"
		rs.fail(execError(types.LEAF_EXEC_FAILED,
			"leaf %s@%s returned invalid status %q", node.LeafName, node.LeafVersion, outcome.Status))
		return types.StatusFailed
	}
}

// tickCondition evaluates a predicate synchronously. Conditions never
// return Running.
func (e *Engine) tickCondition(node *Node, rs *RunState, st *nodeState, ec *ExecutionContext) types.ExecutionStatus {
	ok, err := node.predicate(ec.Snapshot())
	if err != nil {
		rs.fail(types.WrapError(types.PREDICATE_EVAL,
			"predicate "+node.PredicateName+" failed on node "+node.ID, err))
		return types.StatusFailed
	}
	if ok {
		return types.StatusSucceeded
	}
	return types.StatusFailed
}

// tickSequence ticks children in declaration order, resuming at the parked
// child after a Running tick and short-circuiting on the first failure.
func (e *Engine) tickSequence(ctx context.Context, node *Node, rs *RunState, st *nodeState, ec *ExecutionContext) types.ExecutionStatus {
	for st.childIndex < len(node.Children) {
		status := e.tickNode(ctx, node.Children[st.childIndex], rs, ec)
		switch status {
		case types.StatusRunning:
			return types.StatusRunning
		case types.StatusAborted:
			return types.StatusAborted
		case types.StatusFailed:
			return types.StatusFailed
		case types.StatusSucceeded:
			st.childIndex++
		}
	}
	return types.StatusSucceeded
}

// tickSelector ticks children in declaration order until one succeeds,
// parking on a Running child and failing only when every alternative fails.
func (e *Engine) tickSelector(ctx context.Context, node *Node, rs *RunState, st *nodeState, ec *ExecutionContext) types.ExecutionStatus {
	for st.childIndex < len(node.Children) {
		status := e.tickNode(ctx, node.Children[st.childIndex], rs, ec)
		switch status {
		case types.StatusRunning:
			return types.StatusRunning
		case types.StatusAborted:
			return types.StatusAborted
		case types.StatusSucceeded:
			return types.StatusSucceeded
		case types.StatusFailed:
			st.childIndex++
		}
	}
	return types.StatusFailed
}

// tickRepeatUntil executes its child repeatedly until the termination
// predicate holds. Running propagates to the parent across iteration
// boundaries, not just within one child execution.
func (e *Engine) tickRepeatUntil(ctx context.Context, node *Node, rs *RunState, st *nodeState, ec *ExecutionContext) types.ExecutionStatus {
	status := e.tickNode(ctx, node.Child, rs, ec)
	switch status {
	case types.StatusRunning:
		return types.StatusRunning
	case types.StatusAborted:
		return types.StatusAborted
	case types.StatusFailed:
		// A failing body fails the loop; wrap the body in a retry decorator
		// to tolerate failures.
		return types.StatusFailed
	}

	st.iterations++

	done, err := node.predicate(ec.Snapshot())
	if err != nil {
		rs.fail(types.WrapError(types.PREDICATE_EVAL,
			"termination predicate "+node.PredicateName+" failed on node "+node.ID, err))
		return types.StatusFailed
	}
	if done {
		return types.StatusSucceeded
	}

	if st.iterations >= node.MaxIterations {
		rs.fail(execError(types.EXEC_ITERATION_LIMIT,
			"repeat_until %s exceeded %d iterations", node.ID, node.MaxIterations))
		return types.StatusFailed
	}

	rs.resetSubtree(node.Child)
	return types.StatusRunning
}

// tickTimeout bounds its child with a deadline. The deadline's timer is the
// node's derived context; finish releases it on every exit path, so no
// pending callback outlives the decorator.
func (e *Engine) tickTimeout(ctx context.Context, node *Node, rs *RunState, st *nodeState, ec *ExecutionContext) types.ExecutionStatus {
	if st.derivedCtx == nil {
		st.derivedCtx, st.cancel = context.WithDeadline(ctx, time.Now().Add(node.Timeout))
	}

	status := e.tickNode(st.derivedCtx, node.Child, rs, ec)
	if status == types.StatusAborted && ctx.Err() == nil {
		// The child aborted because our deadline elapsed, not because the
		// caller cancelled: convert to a timeout failure.
		rs.fail(execError(types.EXEC_TIMEOUT,
			"node %s exceeded timeout %s", node.Child.ID, node.Timeout))
		rs.metricsFor(node.ID).Timeouts++
		return types.StatusFailed
	}
	return status
}

// tickRetry re-executes its child on failure, up to MaxAttempts total
// attempts. Any success short-circuits.
func (e *Engine) tickRetry(ctx context.Context, node *Node, rs *RunState, st *nodeState, ec *ExecutionContext) types.ExecutionStatus {
	for {
		status := e.tickNode(ctx, node.Child, rs, ec)
		switch status {
		case types.StatusRunning:
			return types.StatusRunning
		case types.StatusAborted:
			return types.StatusAborted
		case types.StatusSucceeded:
			return types.StatusSucceeded
		}

		st.attempts++
		if st.attempts >= node.MaxAttempts {
			return types.StatusFailed
		}
		rs.resetSubtree(node.Child)
	}
}

// evalGuard runs a node's compiled when: expression against the current
// snapshot.
func (e *Engine) evalGuard(node *Node, ec *ExecutionContext) (bool, error) {
	snapshot := ec.Snapshot()
	env := map[string]any{
		"world": snapshot.Data(),
		"present": func(path string) bool {
			_, found := snapshot.Lookup(path)
			return found
		},
	}
	result, err := runProgram(node.guard, env)
	if err != nil {
		return false, err
	}
	truth, ok := result.(bool)
	if !ok {
		return false, execError(types.PREDICATE_EVAL,
			"guard %q did not evaluate to a boolean", node.guardSource)
	}
	return truth, nil
}

// runProgram is split out so guard evaluation stays testable without an
// engine.
func runProgram(program *vm.Program, env map[string]any) (any, error) {
	return vm.Run(program, env)
}

// buildResult assembles the final Result for a terminal run.
func (e *Engine) buildResult(ctx context.Context, tree *Tree, rs *RunState, ec *ExecutionContext, status types.ExecutionStatus) *Result {
	execErr := rs.execErr
	if status == types.StatusAborted && execErr == nil {
		execErr = types.WrapError(types.EXEC_ABORTED, "run was cancelled", ctx.Err())
	}

	result := &Result{
		RunID:       ec.RunID,
		Mode:        ec.Mode,
		Status:      status,
		Error:       execErr,
		ErrorKind:   rs.errKind,
		Output:      rs.lastOutput,
		Ticks:       rs.ticks,
		Duration:    time.Since(rs.startedAt),
		NodeMetrics: rs.metrics,
	}

	e.logger.DebugContext(ctx, "tree run finished",
		"tree", tree.ID().String(),
		"run_id", ec.RunID.String(),
		"status", status.String(),
		"ticks", rs.ticks,
		"duration", result.Duration,
	)

	return result
}
