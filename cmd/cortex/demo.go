package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/darianrosebrook/cortex/internal/leaf"
	"github.com/darianrosebrook/cortex/internal/world"
)

// registerDemoLeaves installs the built-in effectors used by the CLI
// commands. Real deployments register domain effectors through the library
// API or a leaf manifest instead.
func registerDemoLeaves(reg *leaf.Registry) error {
	leaves := []*leaf.Leaf{
		leaf.New(leaf.Descriptor{
			Name:        "wait",
			Version:     "1.0.0",
			Description: "Waits for the given number of milliseconds, ticking as Running.",
			InputSchema: []leaf.ParamSpec{
				{Name: "ms", Type: "number", Default: float64(100)},
			},
			DefaultTimeout: 30 * time.Second,
		}, leaf.EffectorFunc(waitEffector)),

		leaf.New(leaf.Descriptor{
			Name:        "log",
			Version:     "1.0.0",
			Description: "Echoes a message and succeeds immediately.",
			InputSchema: []leaf.ParamSpec{
				{Name: "message", Type: "string", Required: true},
			},
			OutputSchema: []leaf.ParamSpec{
				{Name: "message", Type: "string"},
			},
		}, leaf.EffectorFunc(logEffector)),

		leaf.New(leaf.Descriptor{
			Name:        "fail",
			Version:     "1.0.0",
			Description: "Always fails; useful for exercising retry and breaker paths.",
			InputSchema: []leaf.ParamSpec{
				{Name: "kind", Type: "string", Default: "demo_failure"},
			},
		}, leaf.EffectorFunc(failEffector)),

		leaf.New(leaf.Descriptor{
			Name:        "flaky",
			Version:     "1.0.0",
			Description: "Fails the first N invocations, then succeeds.",
			InputSchema: []leaf.ParamSpec{
				{Name: "fail_first", Type: "number", Default: float64(2)},
			},
		}, leaf.EffectorFunc(newFlakyEffector())),

		leaf.New(leaf.Descriptor{
			Name:        "sense",
			Version:     "1.0.0",
			Description: "Copies a world snapshot field into the leaf output.",
			InputSchema: []leaf.ParamSpec{
				{Name: "path", Type: "string", Required: true},
			},
			OutputSchema: []leaf.ParamSpec{
				{Name: "value", Type: "any"},
			},
		}, leaf.EffectorFunc(senseEffector)),
	}

	for _, l := range leaves {
		if err := reg.Register(l); err != nil {
			return err
		}
	}
	return nil
}

// waitEffector demonstrates the asynchronous contract: it returns Running
// with a pending channel and delivers the terminal outcome when the timer
// fires or the context is cancelled.
func waitEffector(ctx context.Context, params map[string]any, _ *world.Snapshot) leaf.Outcome {
	ms, _ := params["ms"].(float64)
	if ms <= 0 {
		return leaf.Success(nil)
	}
	duration := time.Duration(ms) * time.Millisecond

	done := make(chan leaf.Outcome, 1)
	go func() {
		timer := time.NewTimer(duration)
		defer timer.Stop()
		select {
		case <-timer.C:
			done <- leaf.Success(map[string]any{"waited_ms": ms})
		case <-ctx.Done():
			done <- leaf.Failure("cancelled", ctx.Err())
		}
	}()
	return leaf.Running(done)
}

func logEffector(_ context.Context, params map[string]any, _ *world.Snapshot) leaf.Outcome {
	message, _ := params["message"].(string)
	fmt.Println(message)
	return leaf.Success(map[string]any{"message": message})
}

func failEffector(_ context.Context, params map[string]any, _ *world.Snapshot) leaf.Outcome {
	kind, _ := params["kind"].(string)
	if kind == "" {
		kind = "demo_failure"
	}
	return leaf.Failure(kind, fmt.Errorf("demo leaf failed with kind %q", kind))
}

// newFlakyEffector returns an effector that fails its first fail_first
// invocations. The counter is shared across runs in this process.
func newFlakyEffector() leaf.EffectorFunc {
	var calls atomic.Int64
	return func(_ context.Context, params map[string]any, _ *world.Snapshot) leaf.Outcome {
		failFirst, _ := params["fail_first"].(float64)
		n := calls.Add(1)
		if n <= int64(failFirst) {
			return leaf.Failure("transient", fmt.Errorf("flaky failure %d of %d", n, int64(failFirst)))
		}
		return leaf.Success(map[string]any{"attempts": n})
	}
}

func senseEffector(_ context.Context, params map[string]any, snapshot *world.Snapshot) leaf.Outcome {
	path, _ := params["path"].(string)
	value, found := snapshot.Lookup(path)
	if !found {
		return leaf.Failure("missing_field", fmt.Errorf("snapshot has no field %q", path))
	}
	return leaf.Success(map[string]any{"value": value})
}
