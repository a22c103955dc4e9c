package bt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darianrosebrook/cortex/internal/leaf"
	"github.com/darianrosebrook/cortex/internal/predicate"
	"github.com/darianrosebrook/cortex/internal/world"
)

// staticEffector returns an effector that always succeeds with output.
func staticEffector(output map[string]any) leaf.Effector {
	return leaf.EffectorFunc(func(_ context.Context, _ map[string]any, _ *world.Snapshot) leaf.Outcome {
		return leaf.Success(output)
	})
}

func newTestCompiler(t *testing.T) (*Compiler, *leaf.Registry, *predicate.Evaluator) {
	t.Helper()

	leaves := leaf.NewRegistry()
	require.NoError(t, leaves.Register(leaf.New(leaf.Descriptor{
		Name:    "place_torch",
		Version: "1.2.0",
		InputSchema: []leaf.ParamSpec{
			{Name: "spacing", Type: "number", Default: 6},
		},
	}, staticEffector(nil))))
	require.NoError(t, leaves.Register(leaf.New(leaf.Descriptor{
		Name:    "move_to",
		Version: "1.0.0",
		InputSchema: []leaf.ParamSpec{
			{Name: "dx", Type: "number", Required: true},
		},
		DefaultTimeout: 30 * time.Second,
	}, staticEffector(nil))))

	predicates := predicate.NewEvaluator()
	compiler := NewCompiler(leaves, predicates)
	return compiler, leaves, predicates
}

func mustParse(t *testing.T, doc string) *Document {
	t.Helper()
	parsed, err := ParseDocument([]byte(doc))
	require.NoError(t, err)
	return parsed
}

func TestCompileFullDocument(t *testing.T) {
	compiler, _, _ := newTestCompiler(t)

	doc := mustParse(t, `
name: torch_corridor
version: 1.0.0
permissions: [movement]
root:
  type: sequence
  id: main
  children:
    - type: condition
      id: dark
      predicate: lightLevelAtLeast
      args: {min: 1}
    - type: action
      id: place
      leaf: place_torch@1.2.0
      params: {spacing: 4}
    - type: timeout
      id: guard
      duration: 5s
      child:
        type: action
        id: step
        leaf: move_to
        params: {dx: 1}
`)

	tree, err := compiler.Compile(doc)
	require.NoError(t, err)

	assert.Equal(t, "torch_corridor@1.0.0", tree.ID().String())
	assert.Equal(t, []string{"movement"}, tree.Permissions)
	assert.Equal(t, 5, tree.NodeCount())

	place := tree.Node("place")
	require.NotNil(t, place)
	assert.Equal(t, "place_torch", place.LeafName)
	assert.Equal(t, "1.2.0", place.LeafVersion)
	assert.Equal(t, 4, place.Params["spacing"])

	guard := tree.Node("guard")
	require.NotNil(t, guard)
	assert.Equal(t, 5*time.Second, guard.Timeout)
}

func TestCompileFreezesLatestVersion(t *testing.T) {
	compiler, leaves, _ := newTestCompiler(t)

	doc := mustParse(t, `
name: unpinned
version: 1.0.0
root:
  type: action
  id: place
  leaf: place_torch
`)

	tree, err := compiler.Compile(doc)
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", tree.Node("place").LeafVersion)

	// Registering a newer version never changes an already compiled tree.
	require.NoError(t, leaves.Register(leaf.New(leaf.Descriptor{
		Name:    "place_torch",
		Version: "2.0.0",
	}, staticEffector(nil))))
	assert.Equal(t, "1.2.0", tree.Node("place").LeafVersion)

	// A fresh compile picks up the new latest.
	tree2, err := compiler.Compile(doc)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", tree2.Node("place").LeafVersion)
}

func TestCompileAppliesParamDefaults(t *testing.T) {
	compiler, _, _ := newTestCompiler(t)

	tree, err := compiler.Compile(mustParse(t, `
name: defaults
version: 1.0.0
root:
  type: action
  id: place
  leaf: place_torch
`))
	require.NoError(t, err)
	place := tree.Node("place")
	assert.Equal(t, 6, place.Defaults["spacing"])
	assert.NotContains(t, place.Params, "spacing")
}

func TestCompileKeepsExplicitParamOutOfDefaults(t *testing.T) {
	compiler, _, _ := newTestCompiler(t)

	tree, err := compiler.Compile(mustParse(t, `
name: explicit
version: 1.0.0
root:
  type: action
  id: place
  leaf: place_torch
  params:
    spacing: 4
`))
	require.NoError(t, err)
	place := tree.Node("place")
	assert.Equal(t, 4, place.Params["spacing"])
	assert.NotContains(t, place.Defaults, "spacing")
}

func TestCompileErrors(t *testing.T) {
	compiler, _, _ := newTestCompiler(t)

	tests := []struct {
		name     string
		doc      string
		wantCode CompileErrorCode
		wantNode string
	}{
		{
			name: "missing leaf",
			doc: `
name: t
version: 1.0.0
root: {type: action, id: a, leaf: does_not_exist}
`,
			wantCode: CompileMissingLeaf,
			wantNode: "a",
		},
		{
			name: "missing pinned version",
			doc: `
name: t
version: 1.0.0
root: {type: action, id: a, leaf: place_torch@9.9.9}
`,
			wantCode: CompileMissingLeaf,
			wantNode: "a",
		},
		{
			name: "unknown predicate",
			doc: `
name: t
version: 1.0.0
root: {type: condition, id: c, predicate: nonsense}
`,
			wantCode: CompileUnknownPredicate,
			wantNode: "c",
		},
		{
			name: "missing required parameter",
			doc: `
name: t
version: 1.0.0
root: {type: action, id: a, leaf: move_to}
`,
			wantCode: CompileBadParameter,
			wantNode: "a",
		},
		{
			name: "duplicate node id",
			doc: `
name: t
version: 1.0.0
root:
  type: sequence
  id: s
  children:
    - {type: action, id: a, leaf: place_torch}
    - {type: action, id: a, leaf: place_torch}
`,
			wantCode: CompileDuplicateNode,
			wantNode: "a",
		},
		{
			name: "yaml anchor aliases one node into two positions",
			doc: `
name: t
version: 1.0.0
root:
  type: sequence
  id: s
  children:
    - &shared {type: action, id: a, leaf: place_torch}
    - *shared
`,
			wantCode: CompileDuplicateNode,
		},
		{
			name: "timeout without duration",
			doc: `
name: t
version: 1.0.0
root:
  type: timeout
  id: guard
  child: {type: action, id: a, leaf: place_torch}
`,
			wantCode: CompileInvalidDocument,
			wantNode: "guard",
		},
		{
			name: "retry without max_attempts",
			doc: `
name: t
version: 1.0.0
root:
  type: retry
  id: r
  child: {type: action, id: a, leaf: place_torch}
`,
			wantCode: CompileBadParameter,
			wantNode: "r",
		},
		{
			name: "sequence without children",
			doc: `
name: t
version: 1.0.0
root: {type: sequence, id: s}
`,
			wantCode: CompileBadArity,
			wantNode: "s",
		},
		{
			name: "action with children",
			doc: `
name: t
version: 1.0.0
root:
  type: action
  id: a
  leaf: place_torch
  children:
    - {type: action, id: b, leaf: place_torch}
`,
			wantCode: CompileBadArity,
			wantNode: "a",
		},
		{
			name: "unknown node type",
			doc: `
name: t
version: 1.0.0
root: {type: parallel, id: p}
`,
			wantCode: CompileInvalidDocument,
			wantNode: "p",
		},
		{
			name: "repeat_until without predicate",
			doc: `
name: t
version: 1.0.0
root:
  type: repeat_until
  id: loop
  child: {type: action, id: a, leaf: place_torch}
`,
			wantCode: CompileInvalidDocument,
			wantNode: "loop",
		},
		{
			name: "invalid guard expression",
			doc: `
name: t
version: 1.0.0
root: {type: action, id: a, leaf: place_torch, when: "world.lightLevel >"}
`,
			wantCode: CompileBadGuard,
			wantNode: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.Compile(mustParse(t, tt.doc))
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantCode, ce.Code)
			if tt.wantNode != "" {
				assert.Equal(t, tt.wantNode, ce.NodeID)
			}
		})
	}
}

func TestCompileInvalidDocumentIdentity(t *testing.T) {
	compiler, _, _ := newTestCompiler(t)

	for _, doc := range []*Document{
		nil,
		{Version: "1.0.0", Root: &DocumentNode{Type: "action", Leaf: "place_torch"}},
		{Name: "t", Version: "latest", Root: &DocumentNode{Type: "action", Leaf: "place_torch"}},
		{Name: "t", Version: "1.0.0"},
	} {
		_, err := compiler.Compile(doc)
		var ce *CompileError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, CompileInvalidDocument, ce.Code)
	}
}

func TestCompileSynthesizesPositionalIDs(t *testing.T) {
	compiler, _, _ := newTestCompiler(t)

	tree, err := compiler.Compile(mustParse(t, `
name: anonymous
version: 1.0.0
root:
  type: sequence
  children:
    - {type: action, leaf: place_torch}
    - type: retry
      max_attempts: 2
      child: {type: action, leaf: place_torch}
`))
	require.NoError(t, err)

	assert.NotNil(t, tree.Node("root"))
	assert.NotNil(t, tree.Node("root.0"))
	assert.NotNil(t, tree.Node("root.1"))
	assert.NotNil(t, tree.Node("root.1.child"))
}

func TestParseDocumentShapeErrors(t *testing.T) {
	_, err := ParseDocument([]byte("{not yaml"))
	assert.Error(t, err)

	_, err = ParseDocument([]byte("name: t\nversion: 1.0.0\n"))
	assert.Error(t, err)
}
