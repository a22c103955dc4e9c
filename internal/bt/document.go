// Package bt implements the behavior-tree DSL: the declarative document
// model, the compiler that validates documents against the leaf registry and
// predicate evaluator, and the tick-based execution engine that runs
// compiled trees.
//
// # Document format
//
// Documents are written in YAML (JSON is a subset and parses identically).
// Each node carries a type plus type-specific fields:
//
//	name: torch_corridor
//	version: 1.0.0
//	root:
//	  type: sequence
//	  id: main
//	  children:
//	    - type: condition
//	      id: dark
//	      predicate: lightLevelAtLeast
//	      args: {min: 1}
//	    - type: action
//	      id: place
//	      leaf: place_torch@1.2.0     # version optional; omitted = latest
//	      params: {spacing: 6}
//	    - type: repeat_until
//	      id: corridor
//	      predicate: has_item
//	      args: {item: torch, count: 0}
//	      max_iterations: 32
//	      child:
//	        type: timeout
//	        id: step_guard
//	        duration: 5s
//	        child:
//	          type: action
//	          id: step
//	          leaf: move_to
//	          params: {dx: 1}
//
// Durations use Go duration syntax ("300ms", "5s", "2m").
package bt

import (
	"time"

	"github.com/darianrosebrook/cortex/internal/types"
	"gopkg.in/yaml.v3"
)

// Document is the raw, declarative form of a behavior tree before
// compilation. Parsing checks shape only; reference and arity validation
// belong to the compiler.
type Document struct {
	// Name identifies the behavior this document describes.
	Name string `yaml:"name" json:"name"`

	// Version is the bare semantic version of this document.
	Version string `yaml:"version" json:"version"`

	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Permissions lists permission tags this tree requires beyond those of
	// its leaves.
	Permissions []string `yaml:"permissions,omitempty" json:"permissions,omitempty"`

	// Root is the single root node of the tree.
	Root *DocumentNode `yaml:"root" json:"root"`
}

// DocumentNode is one node of a declarative tree. Exactly which fields are
// meaningful depends on Type; the compiler rejects mismatches.
type DocumentNode struct {
	// ID names the node for metrics and error reporting. Optional; the
	// compiler synthesizes a positional ID when omitted.
	ID string `yaml:"id,omitempty" json:"id,omitempty"`

	// Type is one of: action, condition, sequence, selector, repeat_until,
	// timeout, retry.
	Type string `yaml:"type" json:"type"`

	// When is an optional expr-lang guard evaluated against the world
	// snapshot before the node first ticks. A false guard fails the node
	// without executing it, which lets selectors fall through.
	When string `yaml:"when,omitempty" json:"when,omitempty"`

	// Children holds the ordered children of a sequence or selector.
	Children []*DocumentNode `yaml:"children,omitempty" json:"children,omitempty"`

	// Child holds the single child of a decorator or repeat_until.
	Child *DocumentNode `yaml:"child,omitempty" json:"child,omitempty"`

	// Leaf references the action's leaf as "name" or "name@version".
	Leaf string `yaml:"leaf,omitempty" json:"leaf,omitempty"`

	// Params are the action's leaf parameters.
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`

	// Predicate names the condition or repeat_until termination predicate.
	Predicate string `yaml:"predicate,omitempty" json:"predicate,omitempty"`

	// Args are the predicate's arguments.
	Args map[string]any `yaml:"args,omitempty" json:"args,omitempty"`

	// Duration is the timeout decorator's budget, in Go duration syntax.
	Duration string `yaml:"duration,omitempty" json:"duration,omitempty"`

	// MaxAttempts bounds a retry decorator.
	MaxAttempts int `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`

	// MaxIterations caps a repeat_until loop. Zero means DefaultMaxIterations.
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
}

// ParseDocument decodes a BT-DSL document from YAML or JSON bytes. Shape
// errors (malformed YAML, missing name/version/root) surface here; semantic
// validation happens in Compile.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, types.WrapError(types.COMPILE_INVALID_DOCUMENT, "failed to parse BT-DSL document", err)
	}
	if doc.Name == "" {
		return nil, types.NewError(types.COMPILE_INVALID_DOCUMENT, "document name cannot be empty")
	}
	if !types.IsValidVersion(doc.Version) {
		return nil, types.NewError(types.COMPILE_INVALID_DOCUMENT,
			"document "+doc.Name+" has invalid semantic version "+doc.Version)
	}
	if doc.Root == nil {
		return nil, types.NewError(types.COMPILE_INVALID_DOCUMENT,
			"document "+doc.Name+" has no root node")
	}
	return &doc, nil
}

// ID returns the document's versioned identity.
func (d *Document) ID() types.VersionedID {
	return types.VersionedID{Name: d.Name, Version: d.Version}
}

// parseDuration parses a DSL duration string, requiring a positive value.
func parseDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, types.NewError(types.COMPILE_INVALID_DOCUMENT, "duration must be positive")
	}
	return d, nil
}
