package bt

import (
	"github.com/darianrosebrook/cortex/internal/types"
	"github.com/darianrosebrook/cortex/internal/world"
)

// Mode distinguishes authoritative runs from shadow runs of not-yet-trusted
// capability versions. The flag is threaded through to effectors so the
// hosting process can sandbox shadow side effects.
type Mode string

const (
	// ModeLive marks an authoritative run whose result the caller acts on.
	ModeLive Mode = "live"

	// ModeShadow marks an evaluation run counted toward promotion metrics.
	ModeShadow Mode = "shadow"
)

// String returns the string representation of the Mode.
func (m Mode) String() string {
	return string(m)
}

// SnapshotFunc supplies a fresh world snapshot on demand. The engine calls
// it at condition checks, guard checks, and action starts.
type SnapshotFunc func() *world.Snapshot

// ExecutionContext is the per-invocation state of one run: identity, mode,
// and the world accessor. It is owned exclusively by one invocation and
// never shared across concurrent runs. Cancellation travels separately, on
// the context.Context passed to the engine.
type ExecutionContext struct {
	// RunID uniquely identifies this invocation.
	RunID types.RunID

	// Mode is live or shadow.
	Mode Mode

	// Snapshot supplies the current world state.
	Snapshot SnapshotFunc

	// Args are caller-supplied invocation arguments, handed to leaf
	// effectors above schema defaults but beneath the document's explicit
	// parameters. A key the document sets always wins over the same key
	// supplied at invocation.
	Args map[string]any
}

// NewExecutionContext builds an ExecutionContext with a fresh RunID. A nil
// snapshot function is replaced with one returning an empty snapshot.
func NewExecutionContext(mode Mode, snapshot SnapshotFunc) *ExecutionContext {
	if snapshot == nil {
		snapshot = func() *world.Snapshot {
			return world.NewSnapshot(map[string]any{})
		}
	}
	return &ExecutionContext{
		RunID:    types.NewRunID(),
		Mode:     mode,
		Snapshot: snapshot,
	}
}
