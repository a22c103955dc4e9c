package bt

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darianrosebrook/cortex/internal/leaf"
	"github.com/darianrosebrook/cortex/internal/predicate"
	"github.com/darianrosebrook/cortex/internal/types"
	"github.com/darianrosebrook/cortex/internal/world"
)

// harness wires a leaf registry, evaluator, compiler, and a fast-ticking
// engine for execution tests.
type harness struct {
	t        *testing.T
	leaves   *leaf.Registry
	compiler *Compiler
	engine   *Engine
}

func newHarness(t *testing.T, opts ...EngineOption) *harness {
	t.Helper()
	leaves := leaf.NewRegistry()
	predicates := predicate.NewEvaluator()
	opts = append([]EngineOption{WithTickInterval(time.Millisecond)}, opts...)
	return &harness{
		t:        t,
		leaves:   leaves,
		compiler: NewCompiler(leaves, predicates),
		engine:   NewEngine(opts...),
	}
}

func (h *harness) registerLeaf(name string, effector leaf.Effector, timeout time.Duration) {
	h.t.Helper()
	require.NoError(h.t, h.leaves.Register(leaf.New(leaf.Descriptor{
		Name:           name,
		Version:        "1.0.0",
		DefaultTimeout: timeout,
	}, effector)))
}

func (h *harness) compile(doc string) *Tree {
	h.t.Helper()
	parsed, err := ParseDocument([]byte(doc))
	require.NoError(h.t, err)
	tree, err := h.compiler.Compile(parsed)
	require.NoError(h.t, err)
	return tree
}

func (h *harness) run(ctx context.Context, tree *Tree, state map[string]any) *Result {
	h.t.Helper()
	ec := NewExecutionContext(ModeLive, func() *world.Snapshot {
		return world.NewSnapshot(state)
	})
	return h.engine.Run(ctx, tree, ec)
}

// countingEffector succeeds and counts its invocations.
func countingEffector(calls *atomic.Int64) leaf.Effector {
	return leaf.EffectorFunc(func(_ context.Context, _ map[string]any, _ *world.Snapshot) leaf.Outcome {
		calls.Add(1)
		return leaf.Success(nil)
	})
}

// failingEffector always fails with the given kind.
func failingEffector(kind string) leaf.Effector {
	return leaf.EffectorFunc(func(_ context.Context, _ map[string]any, _ *world.Snapshot) leaf.Outcome {
		return leaf.Failure(kind, nil)
	})
}

// stuckEffector reports Running and never delivers a result, but honors
// cancellation through the returned channel.
func stuckEffector() leaf.Effector {
	return leaf.EffectorFunc(func(ctx context.Context, _ map[string]any, _ *world.Snapshot) leaf.Outcome {
		done := make(chan leaf.Outcome, 1)
		go func() {
			<-ctx.Done()
			done <- leaf.Failure("cancelled", ctx.Err())
		}()
		return leaf.Running(done)
	})
}

func TestInvocationArgsMergeBeneathParams(t *testing.T) {
	h := newHarness(t)

	var seen map[string]any
	h.registerLeaf("emit", leaf.EffectorFunc(func(_ context.Context, params map[string]any, _ *world.Snapshot) leaf.Outcome {
		seen = params
		return leaf.Success(nil)
	}), 0)

	tree := h.compile(`
name: args-demo
version: 1.0.0
root:
  type: action
  id: emit_it
  leaf: emit
  params:
    spacing: 6
`)

	ec := NewExecutionContext(ModeLive, nil)
	ec.Args = map[string]any{"spacing": 99, "target": "cave"}
	result := h.engine.Run(context.Background(), tree, ec)

	require.True(t, result.Succeeded())
	// The document's spacing wins; args only fill keys the document left unset.
	assert.Equal(t, map[string]any{"spacing": 6, "target": "cave"}, seen)
}

func TestInvocationArgsOverrideSchemaDefaults(t *testing.T) {
	h := newHarness(t)

	var seen map[string]any
	require.NoError(t, h.leaves.Register(leaf.New(leaf.Descriptor{
		Name:    "place",
		Version: "1.0.0",
		InputSchema: []leaf.ParamSpec{
			{Name: "spacing", Type: "number", Default: 6},
		},
	}, leaf.EffectorFunc(func(_ context.Context, params map[string]any, _ *world.Snapshot) leaf.Outcome {
		seen = params
		return leaf.Success(nil)
	}))))

	tree := h.compile(`
name: defaulted
version: 1.0.0
root: {type: action, id: place_it, leaf: place}
`)

	// Without args the schema default applies.
	ec := NewExecutionContext(ModeLive, nil)
	result := h.engine.Run(context.Background(), tree, ec)
	require.True(t, result.Succeeded())
	assert.Equal(t, map[string]any{"spacing": 6}, seen)

	// An invocation arg overrides a defaulted key.
	ec = NewExecutionContext(ModeLive, nil)
	ec.Args = map[string]any{"spacing": 2}
	result = h.engine.Run(context.Background(), tree, ec)
	require.True(t, result.Succeeded())
	assert.Equal(t, map[string]any{"spacing": 2}, seen)
}

func TestRunSequence(t *testing.T) {
	h := newHarness(t)

	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		h.registerLeaf(name, leaf.EffectorFunc(func(_ context.Context, _ map[string]any, _ *world.Snapshot) leaf.Outcome {
			order = append(order, name)
			return leaf.Success(map[string]any{"leaf": name})
		}), 0)
	}

	tree := h.compile(`
name: seq
version: 1.0.0
root:
  type: sequence
  id: main
  children:
    - {type: action, id: run_a, leaf: a}
    - {type: action, id: run_b, leaf: b}
    - {type: action, id: run_c, leaf: c}
`)

	result := h.run(context.Background(), tree, nil)

	require.True(t, result.Succeeded())
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, map[string]any{"leaf": "c"}, result.Output)
	assert.Equal(t, 1, result.Ticks)

	for _, id := range []string{"main", "run_a", "run_b", "run_c"} {
		m := result.NodeMetrics[id]
		require.NotNil(t, m, id)
		assert.Equal(t, 1, m.Runs, id)
		assert.Equal(t, 1, m.Successes, id)
	}
}

func TestConcurrentRunsShareOneTree(t *testing.T) {
	h := newHarness(t)

	var aCalls [2]atomic.Int64
	pendings := [2]chan leaf.Outcome{make(chan leaf.Outcome, 1), make(chan leaf.Outcome, 1)}

	runIndex := func(params map[string]any) int {
		return params["run"].(int)
	}

	h.registerLeaf("a", leaf.EffectorFunc(func(_ context.Context, params map[string]any, _ *world.Snapshot) leaf.Outcome {
		aCalls[runIndex(params)].Add(1)
		return leaf.Success(nil)
	}), 0)
	h.registerLeaf("b", leaf.EffectorFunc(func(_ context.Context, params map[string]any, _ *world.Snapshot) leaf.Outcome {
		if runIndex(params) == 0 {
			return leaf.Running(pendings[0])
		}
		return leaf.Success(nil)
	}), 0)
	h.registerLeaf("c", leaf.EffectorFunc(func(_ context.Context, params map[string]any, _ *world.Snapshot) leaf.Outcome {
		if runIndex(params) == 1 {
			return leaf.Running(pendings[1])
		}
		return leaf.Success(nil)
	}), 0)

	tree := h.compile(`
name: shared
version: 1.0.0
root:
  type: sequence
  id: main
  children:
    - {type: action, id: run_a, leaf: a}
    - {type: action, id: run_b, leaf: b}
    - {type: action, id: run_c, leaf: c}
`)

	ctx := context.Background()
	states := [2]*RunState{NewRunState(tree), NewRunState(tree)}
	contexts := [2]*ExecutionContext{
		NewExecutionContext(ModeLive, nil),
		NewExecutionContext(ModeLive, nil),
	}
	contexts[0].Args = map[string]any{"run": 0}
	contexts[1].Args = map[string]any{"run": 1}

	// Run 0 parks at b, run 1 parks at c.
	require.Equal(t, types.StatusRunning, h.engine.Tick(ctx, tree, states[0], contexts[0]))
	require.Equal(t, types.StatusRunning, h.engine.Tick(ctx, tree, states[1], contexts[1]))
	assert.Equal(t, int64(1), aCalls[0].Load())
	assert.Equal(t, int64(1), aCalls[1].Load())

	// Interleaved ticks keep each run at its own child index; neither run
	// re-executes the other's completed prefix.
	for i := 0; i < 3; i++ {
		require.Equal(t, types.StatusRunning, h.engine.Tick(ctx, tree, states[1], contexts[1]))
		require.Equal(t, types.StatusRunning, h.engine.Tick(ctx, tree, states[0], contexts[0]))
	}
	assert.Equal(t, int64(1), aCalls[0].Load())
	assert.Equal(t, int64(1), aCalls[1].Load())

	// Finishing run 1 leaves run 0 parked.
	pendings[1] <- leaf.Success(nil)
	require.Equal(t, types.StatusSucceeded, h.engine.Tick(ctx, tree, states[1], contexts[1]))
	require.Equal(t, types.StatusRunning, h.engine.Tick(ctx, tree, states[0], contexts[0]))

	pendings[0] <- leaf.Success(nil)
	require.Equal(t, types.StatusSucceeded, h.engine.Tick(ctx, tree, states[0], contexts[0]))

	// Each run's progress and metrics live in its own state.
	assert.Equal(t, 1, states[0].metrics["run_b"].Runs)
	assert.Equal(t, 1, states[0].metrics["run_c"].Runs)
	assert.Equal(t, 1, states[1].metrics["run_c"].Runs)
	assert.Equal(t, 1, states[1].metrics["main"].Runs)
}

func TestSequenceResumesAtRunningChild(t *testing.T) {
	h := newHarness(t)

	var aCalls, cCalls atomic.Int64
	pending := make(chan leaf.Outcome, 1)

	h.registerLeaf("a", countingEffector(&aCalls), 0)
	h.registerLeaf("b", leaf.EffectorFunc(func(_ context.Context, _ map[string]any, _ *world.Snapshot) leaf.Outcome {
		return leaf.Running(pending)
	}), 0)
	h.registerLeaf("c", countingEffector(&cCalls), 0)

	tree := h.compile(`
name: resume
version: 1.0.0
root:
  type: sequence
  id: main
  children:
    - {type: action, id: run_a, leaf: a}
    - {type: action, id: run_b, leaf: b}
    - {type: action, id: run_c, leaf: c}
`)

	rs := NewRunState(tree)
	ec := NewExecutionContext(ModeLive, nil)
	ctx := context.Background()

	// First tick: a completes, b suspends, c untouched.
	status := h.engine.Tick(ctx, tree, rs, ec)
	assert.Equal(t, types.StatusRunning, status)
	assert.Equal(t, int64(1), aCalls.Load())
	assert.Equal(t, int64(0), cCalls.Load())

	// Further ticks resume at b without re-running a.
	status = h.engine.Tick(ctx, tree, rs, ec)
	assert.Equal(t, types.StatusRunning, status)
	assert.Equal(t, int64(1), aCalls.Load())

	// b's effector finishes; the next tick completes the sequence.
	pending <- leaf.Success(nil)
	status = h.engine.Tick(ctx, tree, rs, ec)
	assert.Equal(t, types.StatusSucceeded, status)
	assert.Equal(t, int64(1), aCalls.Load())
	assert.Equal(t, int64(1), cCalls.Load())

	// One logical execution per node, regardless of tick count.
	assert.Equal(t, 1, rs.metrics["run_b"].Runs)
	assert.Equal(t, 1, rs.metrics["main"].Runs)
}

func TestSequenceShortCircuitsOnFailure(t *testing.T) {
	h := newHarness(t)

	var cCalls atomic.Int64
	h.registerLeaf("boom", failingEffector("exploded"), 0)
	h.registerLeaf("c", countingEffector(&cCalls), 0)

	tree := h.compile(`
name: shortcircuit
version: 1.0.0
root:
  type: sequence
  id: main
  children:
    - {type: action, id: blow, leaf: boom}
    - {type: action, id: never, leaf: c}
`)

	result := h.run(context.Background(), tree, nil)

	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, "exploded", result.ErrorKind)
	assert.Equal(t, int64(0), cCalls.Load())
	assert.Nil(t, result.NodeMetrics["never"])
}

func TestSelectorFallsThrough(t *testing.T) {
	h := newHarness(t)

	var saved atomic.Int64
	h.registerLeaf("primary", failingEffector("no_path"), 0)
	h.registerLeaf("fallback", countingEffector(&saved), 0)

	tree := h.compile(`
name: sel
version: 1.0.0
root:
  type: selector
  id: choose
  children:
    - {type: action, id: first, leaf: primary}
    - {type: action, id: second, leaf: fallback}
`)

	result := h.run(context.Background(), tree, nil)

	require.True(t, result.Succeeded())
	assert.Equal(t, int64(1), saved.Load())
	assert.Equal(t, 1, result.NodeMetrics["first"].Failures)
	assert.Equal(t, 1, result.NodeMetrics["choose"].Successes)
}

func TestSelectorFailsWhenAllChildrenFail(t *testing.T) {
	h := newHarness(t)
	h.registerLeaf("boom", failingEffector("nope"), 0)

	tree := h.compile(`
name: sel
version: 1.0.0
root:
  type: selector
  id: choose
  children:
    - {type: action, id: one, leaf: boom}
    - {type: action, id: two, leaf: boom}
`)

	result := h.run(context.Background(), tree, nil)
	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, 1, result.NodeMetrics["choose"].Failures)
}

func TestConditionNode(t *testing.T) {
	h := newHarness(t)
	h.registerLeaf("torch", countingEffector(new(atomic.Int64)), 0)

	tree := h.compile(`
name: cond
version: 1.0.0
root:
  type: sequence
  id: main
  children:
    - {type: condition, id: dark_enough, predicate: lightLevelAtLeast, args: {min: 8}}
    - {type: action, id: place, leaf: torch}
`)

	// lightLevel 0 is a reading, and 0 < 8 fails the condition.
	result := h.run(context.Background(), tree, map[string]any{"lightLevel": 0})
	assert.Equal(t, types.StatusFailed, result.Status)

	result = h.run(context.Background(), tree, map[string]any{"lightLevel": 12})
	assert.True(t, result.Succeeded())
}

func TestRepeatUntil(t *testing.T) {
	h := newHarness(t)

	state := map[string]any{
		"inventory": map[string]any{"torch": 0},
	}
	h.registerLeaf("craft", leaf.EffectorFunc(func(_ context.Context, _ map[string]any, _ *world.Snapshot) leaf.Outcome {
		inv := state["inventory"].(map[string]any)
		inv["torch"] = inv["torch"].(int) + 1
		return leaf.Success(nil)
	}), 0)

	tree := h.compile(`
name: craft_up
version: 1.0.0
root:
  type: repeat_until
  id: loop
  predicate: has_item
  args: {item: torch, count: 3}
  max_iterations: 10
  child: {type: action, id: craft, leaf: craft}
`)

	result := h.run(context.Background(), tree, state)

	require.True(t, result.Succeeded())
	assert.Equal(t, 3, state["inventory"].(map[string]any)["torch"])
	assert.Equal(t, 3, result.NodeMetrics["craft"].Runs)
	// The loop itself is one logical execution.
	assert.Equal(t, 1, result.NodeMetrics["loop"].Runs)
	// Running propagated across iteration boundaries: one tick per iteration.
	assert.Equal(t, 3, result.Ticks)
}

func TestRepeatUntilIterationLimit(t *testing.T) {
	h := newHarness(t)
	h.registerLeaf("noop", countingEffector(new(atomic.Int64)), 0)

	tree := h.compile(`
name: hopeless
version: 1.0.0
root:
  type: repeat_until
  id: loop
  predicate: has_item
  args: {item: diamond}
  max_iterations: 5
  child: {type: action, id: dig, leaf: noop}
`)

	result := h.run(context.Background(), tree, nil)

	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, types.EXEC_ITERATION_LIMIT, types.CodeOf(result.Error))
	assert.Equal(t, 5, result.NodeMetrics["dig"].Runs)
}

func TestRepeatUntilChildFailureFailsLoop(t *testing.T) {
	h := newHarness(t)
	h.registerLeaf("boom", failingEffector("broken"), 0)

	tree := h.compile(`
name: fragile
version: 1.0.0
root:
  type: repeat_until
  id: loop
  predicate: has_item
  args: {item: torch}
  child: {type: action, id: work, leaf: boom}
`)

	result := h.run(context.Background(), tree, nil)
	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, 1, result.NodeMetrics["work"].Runs)
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	h := newHarness(t)

	var calls atomic.Int64
	h.registerLeaf("flaky", leaf.EffectorFunc(func(_ context.Context, _ map[string]any, _ *world.Snapshot) leaf.Outcome {
		if calls.Add(1) <= 2 {
			return leaf.Failure("transient", nil)
		}
		return leaf.Success(nil)
	}), 0)

	tree := h.compile(`
name: persistent
version: 1.0.0
root:
  type: retry
  id: again
  max_attempts: 5
  child: {type: action, id: try, leaf: flaky}
`)

	result := h.run(context.Background(), tree, nil)

	require.True(t, result.Succeeded())
	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, 3, result.NodeMetrics["try"].Runs)
	assert.Equal(t, 2, result.NodeMetrics["try"].Failures)
	assert.Equal(t, 1, result.NodeMetrics["try"].Successes)
	assert.Equal(t, 1, result.NodeMetrics["again"].Runs)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	h := newHarness(t)

	var calls atomic.Int64
	h.registerLeaf("broken", leaf.EffectorFunc(func(_ context.Context, _ map[string]any, _ *world.Snapshot) leaf.Outcome {
		calls.Add(1)
		return leaf.Failure("permanent", nil)
	}), 0)

	tree := h.compile(`
name: doomed
version: 1.0.0
root:
  type: retry
  id: again
  max_attempts: 3
  child: {type: action, id: try, leaf: broken}
`)

	result := h.run(context.Background(), tree, nil)

	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, 1, result.NodeMetrics["again"].Failures)
}

func TestTimeoutConvertsToFailure(t *testing.T) {
	h := newHarness(t)
	h.registerLeaf("stuck", stuckEffector(), 0)

	tree := h.compile(`
name: bounded
version: 1.0.0
root:
  type: timeout
  id: guard
  duration: 50ms
  child: {type: action, id: slow, leaf: stuck}
`)

	start := time.Now()
	result := h.run(context.Background(), tree, nil)
	elapsed := time.Since(start)

	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, types.EXEC_TIMEOUT, types.CodeOf(result.Error))
	assert.Equal(t, 1, result.NodeMetrics["guard"].Timeouts)
	// The run ends promptly after the deadline, not at some larger bound.
	assert.Less(t, elapsed, time.Second)
}

func TestTimeoutChildCompletesInTime(t *testing.T) {
	h := newHarness(t)
	h.registerLeaf("quick", countingEffector(new(atomic.Int64)), 0)

	tree := h.compile(`
name: bounded
version: 1.0.0
root:
  type: timeout
  id: guard
  duration: 5s
  child: {type: action, id: fast, leaf: quick}
`)

	result := h.run(context.Background(), tree, nil)
	require.True(t, result.Succeeded())
	assert.Equal(t, 0, result.NodeMetrics["guard"].Timeouts)
}

func TestCancellationAbortsRun(t *testing.T) {
	h := newHarness(t)
	h.registerLeaf("stuck", stuckEffector(), 0)

	tree := h.compile(`
name: abortable
version: 1.0.0
root:
  type: sequence
  id: main
  children:
    - {type: action, id: slow, leaf: stuck}
`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result := h.run(ctx, tree, nil)

	assert.Equal(t, types.StatusAborted, result.Status)
	assert.Equal(t, types.EXEC_ABORTED, types.CodeOf(result.Error))
	assert.Equal(t, 1, result.NodeMetrics["slow"].Aborts)
	assert.Equal(t, 1, result.NodeMetrics["main"].Aborts)
}

func TestLeafDefaultTimeout(t *testing.T) {
	h := newHarness(t)
	h.registerLeaf("stuck", stuckEffector(), 30*time.Millisecond)

	tree := h.compile(`
name: leafbound
version: 1.0.0
root: {type: action, id: slow, leaf: stuck}
`)

	result := h.run(context.Background(), tree, nil)

	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, types.LEAF_EXEC_TIMEOUT, types.CodeOf(result.Error))
	assert.Equal(t, "leaf_timeout", result.ErrorKind)
}

func TestGuardFailsNodeWithoutExecuting(t *testing.T) {
	h := newHarness(t)

	var risky, safe atomic.Int64
	h.registerLeaf("risky", countingEffector(&risky), 0)
	h.registerLeaf("safe", countingEffector(&safe), 0)

	tree := h.compile(`
name: guarded
version: 1.0.0
root:
  type: selector
  id: choose
  children:
    - {type: action, id: bold, leaf: risky, when: "present('health') && world.health > 15"}
    - {type: action, id: careful, leaf: safe}
`)

	result := h.run(context.Background(), tree, map[string]any{"health": 5})

	require.True(t, result.Succeeded())
	assert.Equal(t, int64(0), risky.Load())
	assert.Equal(t, int64(1), safe.Load())
	assert.Equal(t, 1, result.NodeMetrics["bold"].Failures)
}

func TestMaxTicksBoundsRun(t *testing.T) {
	h := newHarness(t, WithMaxTicks(3))
	h.registerLeaf("stuck", stuckEffector(), 0)

	tree := h.compile(`
name: unbounded
version: 1.0.0
root: {type: action, id: slow, leaf: stuck}
`)

	result := h.run(context.Background(), tree, nil)

	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, types.EXEC_TICK_LIMIT, types.CodeOf(result.Error))
	assert.Equal(t, 3, result.Ticks)
}

func TestRunningWithoutPendingChannelFails(t *testing.T) {
	h := newHarness(t)
	h.registerLeaf("malformed", leaf.EffectorFunc(func(_ context.Context, _ map[string]any, _ *world.Snapshot) leaf.Outcome {
		return leaf.Outcome{Status: types.StatusRunning}
	}), 0)

	tree := h.compile(`
name: broken
version: 1.0.0
root: {type: action, id: bad, leaf: malformed}
`)

	result := h.run(context.Background(), tree, nil)

	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, types.LEAF_EXEC_FAILED, types.CodeOf(result.Error))
	assert.Equal(t, "malformed_outcome", result.ErrorKind)
}

func TestNestedRepeatWithRetry(t *testing.T) {
	h := newHarness(t)

	state := map[string]any{
		"inventory": map[string]any{"plank": 0},
	}
	var calls atomic.Int64
	h.registerLeaf("saw", leaf.EffectorFunc(func(_ context.Context, _ map[string]any, _ *world.Snapshot) leaf.Outcome {
		// Every other invocation fails; retry absorbs the failures.
		if calls.Add(1)%2 == 1 {
			return leaf.Failure("slipped", nil)
		}
		inv := state["inventory"].(map[string]any)
		inv["plank"] = inv["plank"].(int) + 1
		return leaf.Success(nil)
	}), 0)

	tree := h.compile(`
name: sawmill
version: 1.0.0
root:
  type: repeat_until
  id: loop
  predicate: has_item
  args: {item: plank, count: 2}
  max_iterations: 10
  child:
    type: retry
    id: again
    max_attempts: 3
    child: {type: action, id: cut, leaf: saw}
`)

	result := h.run(context.Background(), tree, state)

	require.True(t, result.Succeeded())
	assert.Equal(t, 2, state["inventory"].(map[string]any)["plank"])
	assert.Equal(t, int64(4), calls.Load())
}
