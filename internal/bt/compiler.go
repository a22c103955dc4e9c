package bt

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/darianrosebrook/cortex/internal/leaf"
	"github.com/darianrosebrook/cortex/internal/predicate"
	"github.com/darianrosebrook/cortex/internal/types"
	"github.com/darianrosebrook/cortex/internal/world"
	"github.com/expr-lang/expr"
)

// Compiler validates declarative documents and produces executable trees.
// Compilation is pure: it never reads world state and never executes a leaf.
//
// The compiler consumes the leaf registry only through the narrow Resolver
// interface, and freezes each action's resolved leaf binding into the
// compiled node. Execution invokes that same binding, so the version checked
// here is by construction the version that runs.
type Compiler struct {
	leaves     leaf.Resolver
	predicates *predicate.Evaluator
	logger     *slog.Logger
}

// CompilerOption is a functional option for configuring a Compiler.
type CompilerOption func(*Compiler)

// WithCompilerLogger configures the compiler's structured logger.
func WithCompilerLogger(logger *slog.Logger) CompilerOption {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// NewCompiler creates a Compiler bound to a leaf resolver and predicate
// evaluator.
func NewCompiler(leaves leaf.Resolver, predicates *predicate.Evaluator, opts ...CompilerOption) *Compiler {
	c := &Compiler{
		leaves:     leaves,
		predicates: predicates,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// compilation carries per-Compile walk state.
type compilation struct {
	seen  map[*DocumentNode]bool
	nodes map[string]*Node
}

// Compile validates doc and returns its executable tree, or a *CompileError
// naming the offending node. A failed compilation leaves no partial state
// anywhere.
func (c *Compiler) Compile(doc *Document) (*Tree, error) {
	if doc == nil {
		return nil, newCompileError(CompileInvalidDocument, "", "document cannot be nil")
	}
	if doc.Name == "" {
		return nil, newCompileError(CompileInvalidDocument, "", "document name cannot be empty")
	}
	if !types.IsValidVersion(doc.Version) {
		return nil, newCompileError(CompileInvalidDocument, "",
			fmt.Sprintf("document %s has invalid semantic version %q", doc.Name, doc.Version))
	}
	if doc.Root == nil {
		return nil, newCompileError(CompileInvalidDocument, "", "document has no root node")
	}

	cc := &compilation{
		seen:  make(map[*DocumentNode]bool),
		nodes: make(map[string]*Node),
	}

	root, err := c.compileNode(cc, doc.Root, "root")
	if err != nil {
		return nil, err
	}

	tree := &Tree{
		Name:        doc.Name,
		Version:     doc.Version,
		Description: doc.Description,
		Permissions: doc.Permissions,
		Root:        root,
		CompiledAt:  time.Now(),
		nodes:       cc.nodes,
	}

	c.logger.Debug("compiled behavior tree",
		"tree", tree.ID().String(),
		"nodes", tree.NodeCount(),
	)

	return tree, nil
}

// compileNode validates one document node and its subtree. fallbackID is the
// positional ID used when the document omits an explicit one.
func (c *Compiler) compileNode(cc *compilation, dn *DocumentNode, fallbackID string) (*Node, error) {
	if dn == nil {
		return nil, newCompileError(CompileInvalidDocument, fallbackID, "node cannot be null")
	}

	id := dn.ID
	if id == "" {
		id = fallbackID
	}

	// YAML anchors can alias one node object into several positions, which
	// would share running-state between supposedly independent subtrees.
	if cc.seen[dn] {
		return nil, newCompileError(CompileDuplicateNode, id,
			"node appears more than once in the tree; trees own their children exclusively")
	}
	cc.seen[dn] = true

	if _, exists := cc.nodes[id]; exists {
		return nil, newCompileError(CompileDuplicateNode, id, "node id is used more than once")
	}

	nodeType := NodeType(dn.Type)
	if !nodeType.IsValid() {
		return nil, newCompileError(CompileInvalidDocument, id,
			fmt.Sprintf("unknown node type %q", dn.Type))
	}

	node := &Node{ID: id, Type: nodeType}
	cc.nodes[id] = node

	if dn.When != "" {
		program, err := expr.Compile(dn.When,
			expr.Env(map[string]any{}),
			expr.AllowUndefinedVariables(),
			expr.AsBool(),
		)
		if err != nil {
			return nil, wrapCompileError(CompileBadGuard, id, "invalid when: guard expression", err)
		}
		node.guard = program
		node.guardSource = dn.When
	}

	var err error
	switch nodeType {
	case NodeAction:
		err = c.compileAction(node, dn)
	case NodeCondition:
		err = c.compileCondition(node, dn)
	case NodeSequence, NodeSelector:
		err = c.compileComposite(cc, node, dn)
	case NodeRepeatUntil:
		err = c.compileRepeatUntil(cc, node, dn)
	case NodeTimeout:
		err = c.compileTimeout(cc, node, dn)
	case NodeRetry:
		err = c.compileRetry(cc, node, dn)
	}
	if err != nil {
		return nil, err
	}

	return node, nil
}

func (c *Compiler) compileAction(node *Node, dn *DocumentNode) error {
	if len(dn.Children) > 0 || dn.Child != nil {
		return newCompileError(CompileBadArity, node.ID, "action nodes cannot have children")
	}
	if dn.Leaf == "" {
		return newCompileError(CompileInvalidDocument, node.ID, "action node is missing a leaf reference")
	}

	name, version, err := splitLeafRef(dn.Leaf)
	if err != nil {
		return wrapCompileError(CompileInvalidDocument, node.ID,
			fmt.Sprintf("invalid leaf reference %q", dn.Leaf), err)
	}

	// Resolve exactly once. An omitted version means latest registered at
	// compile time; the concrete version is frozen into the node.
	bound, err := c.leaves.Resolve(name, version)
	if err != nil {
		return wrapCompileError(CompileMissingLeaf, node.ID,
			fmt.Sprintf("leaf reference %q does not resolve", dn.Leaf), err)
	}

	defaults, err := splitParams(bound.InputSchema, dn.Params)
	if err != nil {
		return wrapCompileError(CompileBadParameter, node.ID,
			fmt.Sprintf("invalid parameters for leaf %s@%s", bound.Name, bound.Version), err)
	}

	node.LeafName = bound.Name
	node.LeafVersion = bound.Version
	node.Leaf = bound
	node.Params = dn.Params
	node.Defaults = defaults
	return nil
}

func (c *Compiler) compileCondition(node *Node, dn *DocumentNode) error {
	if len(dn.Children) > 0 || dn.Child != nil {
		return newCompileError(CompileBadArity, node.ID, "condition nodes cannot have children")
	}
	if dn.Predicate == "" {
		return newCompileError(CompileInvalidDocument, node.ID, "condition node is missing a predicate name")
	}
	if !c.predicates.Has(dn.Predicate) {
		return wrapCompileError(CompileUnknownPredicate, node.ID,
			"condition references an unregistered predicate",
			&predicate.UnknownPredicateError{Name: dn.Predicate})
	}

	node.PredicateName = dn.Predicate
	node.predicate = c.bindPredicate(dn.Predicate, dn.Args)
	return nil
}

func (c *Compiler) compileComposite(cc *compilation, node *Node, dn *DocumentNode) error {
	if dn.Child != nil {
		return newCompileError(CompileBadArity, node.ID,
			string(node.Type)+" nodes use children, not child")
	}
	if len(dn.Children) == 0 {
		return newCompileError(CompileBadArity, node.ID,
			string(node.Type)+" nodes require at least one child")
	}

	node.Children = make([]*Node, 0, len(dn.Children))
	for i, childDoc := range dn.Children {
		child, err := c.compileNode(cc, childDoc, fmt.Sprintf("%s.%d", node.ID, i))
		if err != nil {
			return err
		}
		node.Children = append(node.Children, child)
	}
	return nil
}

func (c *Compiler) compileRepeatUntil(cc *compilation, node *Node, dn *DocumentNode) error {
	if err := requireSingleChild(node, dn); err != nil {
		return err
	}
	if dn.Predicate == "" {
		return newCompileError(CompileInvalidDocument, node.ID,
			"repeat_until node is missing a termination predicate")
	}
	if !c.predicates.Has(dn.Predicate) {
		return wrapCompileError(CompileUnknownPredicate, node.ID,
			"repeat_until references an unregistered predicate",
			&predicate.UnknownPredicateError{Name: dn.Predicate})
	}

	node.MaxIterations = dn.MaxIterations
	if node.MaxIterations == 0 {
		node.MaxIterations = DefaultMaxIterations
	}
	if node.MaxIterations < 0 {
		return newCompileError(CompileBadParameter, node.ID, "max_iterations must be positive")
	}

	node.PredicateName = dn.Predicate
	node.predicate = c.bindPredicate(dn.Predicate, dn.Args)

	child, err := c.compileNode(cc, dn.Child, node.ID+".child")
	if err != nil {
		return err
	}
	node.Child = child
	return nil
}

func (c *Compiler) compileTimeout(cc *compilation, node *Node, dn *DocumentNode) error {
	if err := requireSingleChild(node, dn); err != nil {
		return err
	}
	if dn.Duration == "" {
		return newCompileError(CompileInvalidDocument, node.ID, "timeout node is missing a duration")
	}
	d, err := parseDuration(dn.Duration)
	if err != nil {
		return wrapCompileError(CompileBadParameter, node.ID,
			fmt.Sprintf("invalid timeout duration %q", dn.Duration), err)
	}
	node.Timeout = d

	child, err := c.compileNode(cc, dn.Child, node.ID+".child")
	if err != nil {
		return err
	}
	node.Child = child
	return nil
}

func (c *Compiler) compileRetry(cc *compilation, node *Node, dn *DocumentNode) error {
	if err := requireSingleChild(node, dn); err != nil {
		return err
	}
	if dn.MaxAttempts < 1 {
		return newCompileError(CompileBadParameter, node.ID, "retry requires max_attempts >= 1")
	}
	node.MaxAttempts = dn.MaxAttempts

	child, err := c.compileNode(cc, dn.Child, node.ID+".child")
	if err != nil {
		return err
	}
	node.Child = child
	return nil
}

// bindPredicate closes over the evaluator so compiled trees carry their
// predicate bindings and the engine stays decoupled from the evaluator.
func (c *Compiler) bindPredicate(name string, args map[string]any) predicateFn {
	evaluator := c.predicates
	return func(snapshot *world.Snapshot) (bool, error) {
		return evaluator.Evaluate(name, args, snapshot)
	}
}

func requireSingleChild(node *Node, dn *DocumentNode) error {
	if len(dn.Children) > 0 {
		return newCompileError(CompileBadArity, node.ID,
			string(node.Type)+" nodes use child, not children")
	}
	if dn.Child == nil {
		return newCompileError(CompileBadArity, node.ID,
			string(node.Type)+" nodes require exactly one child")
	}
	return nil
}

// splitLeafRef splits "name@version" into its parts; version may be absent.
func splitLeafRef(ref string) (name, version string, err error) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '@' {
			name, version = ref[:i], ref[i+1:]
			if name == "" {
				return "", "", fmt.Errorf("leaf reference has empty name")
			}
			if !types.IsValidVersion(version) {
				return "", "", fmt.Errorf("leaf reference has invalid version %q", version)
			}
			return name, version, nil
		}
	}
	if ref == "" {
		return "", "", fmt.Errorf("leaf reference has empty name")
	}
	return ref, "", nil
}

// splitParams collects the schema defaults for keys the document left unset
// and checks that every required parameter is satisfied by one of the two.
// Defaults stay separate from explicit params so invocation args can
// override a defaulted parameter without touching what the document pinned.
func splitParams(schema []leaf.ParamSpec, params map[string]any) (map[string]any, error) {
	defaults := make(map[string]any, len(schema))
	for _, spec := range schema {
		if spec.Default == nil {
			continue
		}
		if _, explicit := params[spec.Name]; explicit {
			continue
		}
		defaults[spec.Name] = spec.Default
	}
	for _, spec := range schema {
		if !spec.Required {
			continue
		}
		if _, present := params[spec.Name]; present {
			continue
		}
		if _, present := defaults[spec.Name]; present {
			continue
		}
		return nil, fmt.Errorf("required parameter %q is missing", spec.Name)
	}
	return defaults, nil
}
