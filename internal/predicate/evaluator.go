// Package predicate resolves named boolean predicates against a world-state
// snapshot. Predicates guard condition nodes and Repeat.Until termination in
// behavior trees.
//
// Two predicate forms are supported: native Go functions and expr-lang
// expressions compiled once at registration. Both receive the condition
// node's arguments and the current snapshot.
//
// Evaluation distinguishes presence from falsiness: 0, "", and false are
// legitimate sensor readings and must branch as values, never as missing
// data.
package predicate

import (
	"fmt"
	"sync"

	"github.com/darianrosebrook/cortex/internal/types"
	"github.com/darianrosebrook/cortex/internal/world"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Func is a native predicate implementation.
type Func func(args map[string]any, snapshot *world.Snapshot) (bool, error)

// UnknownPredicateError is returned when evaluating or compiling against a
// predicate name that was never registered.
type UnknownPredicateError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownPredicateError) Error() string {
	return fmt.Sprintf("[%s] predicate %q is not registered", types.PREDICATE_UNKNOWN, e.Name)
}

// Code returns the structured error code for this error.
func (e *UnknownPredicateError) Code() types.ErrorCode {
	return types.PREDICATE_UNKNOWN
}

// Evaluator holds the named predicate table. Construct one per process (or
// per test) with NewEvaluator; there is no ambient global table.
type Evaluator struct {
	mu       sync.RWMutex
	native   map[string]Func
	programs map[string]*vm.Program
}

// NewEvaluator creates an evaluator preloaded with the built-in sensor
// predicates (see builtins.go).
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		native:   make(map[string]Func),
		programs: make(map[string]*vm.Program),
	}
	registerBuiltins(e)
	return e
}

// RegisterFunc adds a native predicate under name. Names are unique across
// both predicate forms.
func (e *Evaluator) RegisterFunc(name string, fn Func) error {
	if name == "" {
		return types.NewError(types.PREDICATE_INVALID, "predicate name cannot be empty")
	}
	if fn == nil {
		return types.NewError(types.PREDICATE_INVALID, "predicate function cannot be nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.exists(name) {
		return types.NewError(types.PREDICATE_DUPLICATE, "predicate "+name+" is already registered")
	}
	e.native[name] = fn
	return nil
}

// RegisterExpr compiles an expr-lang expression and registers it under name.
// The expression evaluates against an environment holding "args" (the
// condition node's arguments) and "world" (the snapshot data), plus a
// present(path) helper that reports field presence without consuming the
// value, so null-vs-zero distinctions survive into expressions.
func (e *Evaluator) RegisterExpr(name, expression string) error {
	if name == "" {
		return types.NewError(types.PREDICATE_INVALID, "predicate name cannot be empty")
	}

	program, err := expr.Compile(expression,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return types.WrapError(types.PREDICATE_INVALID,
			fmt.Sprintf("predicate %s has invalid expression", name), err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.exists(name) {
		return types.NewError(types.PREDICATE_DUPLICATE, "predicate "+name+" is already registered")
	}
	e.programs[name] = program
	return nil
}

// Has reports whether a predicate name is registered. The compiler uses this
// for validation without evaluating anything.
func (e *Evaluator) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.exists(name)
}

// Names returns all registered predicate names, for diagnostics.
func (e *Evaluator) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.native)+len(e.programs))
	for name := range e.native {
		names = append(names, name)
	}
	for name := range e.programs {
		names = append(names, name)
	}
	return names
}

// Evaluate resolves the named predicate against args and the snapshot. It
// returns UnknownPredicateError for unregistered names and never fails on
// well-typed but "negative" readings.
func (e *Evaluator) Evaluate(name string, args map[string]any, snapshot *world.Snapshot) (bool, error) {
	e.mu.RLock()
	fn, isNative := e.native[name]
	program, isExpr := e.programs[name]
	e.mu.RUnlock()

	switch {
	case isNative:
		return fn(args, snapshot)

	case isExpr:
		if args == nil {
			args = map[string]any{}
		}
		env := map[string]any{
			"args":  args,
			"world": snapshot.Data(),
			"present": func(path string) bool {
				_, found := snapshot.Lookup(path)
				return found
			},
		}
		result, err := expr.Run(program, env)
		if err != nil {
			return false, types.WrapError(types.PREDICATE_EVAL,
				fmt.Sprintf("predicate %s evaluation failed", name), err)
		}
		truth, ok := result.(bool)
		if !ok {
			return false, types.NewError(types.PREDICATE_EVAL,
				fmt.Sprintf("predicate %s did not evaluate to a boolean", name))
		}
		return truth, nil

	default:
		return false, &UnknownPredicateError{Name: name}
	}
}

// exists must be called with mu held.
func (e *Evaluator) exists(name string) bool {
	if _, ok := e.native[name]; ok {
		return true
	}
	_, ok := e.programs[name]
	return ok
}
