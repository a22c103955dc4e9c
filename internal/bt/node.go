package bt

import (
	"time"

	"github.com/darianrosebrook/cortex/internal/leaf"
	"github.com/darianrosebrook/cortex/internal/types"
	"github.com/darianrosebrook/cortex/internal/world"
	"github.com/expr-lang/expr/vm"
)

// NodeType identifies the variant of a compiled tree node.
type NodeType string

const (
	NodeAction      NodeType = "action"
	NodeCondition   NodeType = "condition"
	NodeSequence    NodeType = "sequence"
	NodeSelector    NodeType = "selector"
	NodeRepeatUntil NodeType = "repeat_until"
	NodeTimeout     NodeType = "timeout"
	NodeRetry       NodeType = "retry"
)

// IsValid checks if the NodeType is a known variant.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeAction, NodeCondition, NodeSequence, NodeSelector,
		NodeRepeatUntil, NodeTimeout, NodeRetry:
		return true
	default:
		return false
	}
}

// DefaultMaxIterations caps repeat_until loops whose documents omit an
// explicit bound.
const DefaultMaxIterations = 100

// predicateFn is bound at compile time so the engine never touches the
// evaluator (or registry) at run time; a compiled tree is self-contained.
type predicateFn func(snapshot *world.Snapshot) (bool, error)

// Node is one node of a compiled, executable tree. Nodes are immutable after
// compilation; all per-run mutable state lives in RunState, so concurrent
// runs of one tree never share progress.
type Node struct {
	// ID uniquely names the node within its tree, for metrics and errors.
	ID string

	// Type selects the variant; exactly one variant's fields are populated.
	Type NodeType

	// Children are the ordered children of a sequence or selector.
	Children []*Node

	// Child is the single child of a decorator or repeat_until.
	Child *Node

	// LeafName and LeafVersion record the action's resolved leaf identity.
	// The version is the concrete version frozen at compile time; omitting a
	// version in the document means latest-at-compile-time, resolved exactly
	// once. The same Leaf binding is what the engine invokes, so validation
	// and execution can never disagree on the version.
	LeafName    string
	LeafVersion string

	// Leaf is the bound registry entry for an action node.
	Leaf *leaf.Leaf

	// Params are the parameters the document sets explicitly. They always
	// win over invocation args and schema defaults.
	Params map[string]any

	// Defaults are the leaf schema defaults for keys the document left
	// unset. Invocation args override them at run time.
	Defaults map[string]any

	// PredicateName names the condition or termination predicate, for
	// diagnostics. The bound predicate closure does the actual work.
	PredicateName string

	// predicate is the bound condition or repeat_until termination check.
	predicate predicateFn

	// guard is the compiled optional when: expression, nil when absent.
	guard *vm.Program

	// guardSource keeps the original expression text for diagnostics.
	guardSource string

	// Timeout is the timeout decorator's budget.
	Timeout time.Duration

	// MaxAttempts bounds a retry decorator.
	MaxAttempts int

	// MaxIterations caps a repeat_until loop.
	MaxIterations int
}

// Tree is a validated, executable behavior tree. It is immutable after
// compilation and owned by the capability version that produced it.
type Tree struct {
	// Name and Version mirror the source document's identity.
	Name    string
	Version string

	Description string
	Permissions []string

	// Root is the tree's root node.
	Root *Node

	// CompiledAt records when compilation finished.
	CompiledAt time.Time

	nodes map[string]*Node
}

// ID returns the tree's versioned identity.
func (t *Tree) ID() types.VersionedID {
	return types.VersionedID{Name: t.Name, Version: t.Version}
}

// Node returns the node with the given ID, or nil.
func (t *Tree) Node(id string) *Node {
	return t.nodes[id]
}

// NodeIDs returns the IDs of every node in the tree, in depth-first
// declaration order.
func (t *Tree) NodeIDs() []string {
	ids := make([]string, 0, len(t.nodes))
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		ids = append(ids, n.ID)
		for _, child := range n.Children {
			walk(child)
		}
		walk(n.Child)
	}
	walk(t.Root)
	return ids
}

// NodeCount returns the number of nodes in the tree.
func (t *Tree) NodeCount() int {
	return len(t.nodes)
}
