// Package leaf provides the atomic-action interface and the versioned leaf
// registry. A leaf binds a named, semver-versioned action descriptor to an
// opaque external effector. The registry is a pure lookup table; no control
// flow or execution logic lives here.
package leaf

import (
	"context"
	"time"

	"github.com/darianrosebrook/cortex/internal/types"
	"github.com/darianrosebrook/cortex/internal/world"
)

// ParamSpec describes one named, typed parameter in a leaf's input or
// output schema.
type ParamSpec struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Descriptor is the immutable, registered description of a leaf. Descriptors
// are never mutated in place; a behavioral change is a new version.
type Descriptor struct {
	// Name is the leaf's identity within its version line (e.g. "move_to").
	Name string `yaml:"name" json:"name"`

	// Version is the bare semantic version (e.g. "1.0.0").
	Version string `yaml:"version" json:"version"`

	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// InputSchema declares the parameters an action node may pass.
	InputSchema []ParamSpec `yaml:"input,omitempty" json:"input,omitempty"`

	// OutputSchema declares the fields a successful outcome may carry.
	OutputSchema []ParamSpec `yaml:"output,omitempty" json:"output,omitempty"`

	// Permissions lists the permission tags required to invoke this leaf.
	Permissions []string `yaml:"permissions,omitempty" json:"permissions,omitempty"`

	// DefaultTimeout bounds a single invocation of this leaf. Zero means
	// no implicit bound; an explicit timeout decorator still applies.
	DefaultTimeout time.Duration `yaml:"default_timeout,omitempty" json:"default_timeout,omitempty"`
}

// ID returns the registry key for this descriptor.
func (d *Descriptor) ID() types.VersionedID {
	return types.VersionedID{Name: d.Name, Version: d.Version}
}

// Validate checks the descriptor's identity fields.
func (d *Descriptor) Validate() error {
	if d == nil {
		return types.NewError(types.LEAF_INVALID, "leaf descriptor cannot be nil")
	}
	if d.Name == "" {
		return types.NewError(types.LEAF_INVALID, "leaf name cannot be empty")
	}
	if !types.IsValidVersion(d.Version) {
		return types.NewError(types.LEAF_INVALID,
			"leaf "+d.Name+" has invalid semantic version "+d.Version)
	}
	return nil
}

// Outcome is the tagged result of an effector invocation. Failure and
// still-running are routine control-flow states, not exceptions.
type Outcome struct {
	// Status is one of StatusSucceeded, StatusFailed, StatusRunning. An
	// effector never returns StatusAborted directly; the engine derives
	// aborts from the cancellation token.
	Status types.ExecutionStatus

	// Output carries the successful result fields, if any.
	Output map[string]any

	// ErrorKind names the failure class for a failed outcome ("path_blocked",
	// "missing_resource"). Empty on success.
	ErrorKind string

	// Err carries failure detail for logging. May be nil even when failed.
	Err error

	// Pending is non-nil iff Status is StatusRunning: the engine polls it on
	// subsequent ticks until the terminal Outcome is delivered. The effector
	// must close or deliver on this channel exactly once, and must stop work
	// promptly when its context is cancelled.
	Pending <-chan Outcome
}

// Success builds a succeeded outcome with the given output fields.
func Success(output map[string]any) Outcome {
	return Outcome{Status: types.StatusSucceeded, Output: output}
}

// Failure builds a failed outcome with a failure kind and optional detail.
func Failure(kind string, err error) Outcome {
	return Outcome{Status: types.StatusFailed, ErrorKind: kind, Err: err}
}

// Running builds a still-running outcome whose terminal result will be
// delivered on pending.
func Running(pending <-chan Outcome) Outcome {
	return Outcome{Status: types.StatusRunning, Pending: pending}
}

// Effector is the opaque external implementation bound to a leaf. What it
// does internally (movement, crafting, block placement) is owned by the game
// interface collaborator; this core only requires that it respects ctx
// cancellation and returns a well-formed Outcome.
type Effector interface {
	Execute(ctx context.Context, params map[string]any, snapshot *world.Snapshot) Outcome
}

// EffectorFunc adapts a plain function to the Effector interface.
type EffectorFunc func(ctx context.Context, params map[string]any, snapshot *world.Snapshot) Outcome

// Execute implements Effector.
func (f EffectorFunc) Execute(ctx context.Context, params map[string]any, snapshot *world.Snapshot) Outcome {
	return f(ctx, params, snapshot)
}

// Leaf is a registered descriptor with its bound effector.
type Leaf struct {
	Descriptor

	// Effector is the bound executable implementation.
	Effector Effector

	// RegisteredAt records when the leaf entered the registry.
	RegisteredAt time.Time
}

// New constructs a Leaf from a descriptor and effector.
func New(descriptor Descriptor, effector Effector) *Leaf {
	return &Leaf{Descriptor: descriptor, Effector: effector}
}
