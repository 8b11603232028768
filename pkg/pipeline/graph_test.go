package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAddStage_Valid tests adding valid stages.
func TestAddStage_Valid(t *testing.T) {
	graph := New[Counter]().
		AddStage("first", increment).
		AddStage("second", increment)

	assert.NotNil(t, graph)
}

// TestAddStage_EmptyID tests that empty stage IDs panic.
func TestAddStage_EmptyID(t *testing.T) {
	assert.Panics(t, func() {
		New[Counter]().AddStage("", increment)
	})
}

// TestAddStage_ReservedID tests that reserved IDs panic.
func TestAddStage_ReservedID(t *testing.T) {
	reserved := []string{"END", "end", "End", "__end__", "__END__"}
	for _, id := range reserved {
		t.Run(id, func(t *testing.T) {
			assert.Panics(t, func() {
				New[Counter]().AddStage(id, increment)
			})
		})
	}
}

// TestAddStage_Whitespace tests that IDs with whitespace panic.
func TestAddStage_Whitespace(t *testing.T) {
	ids := []string{"has space", "has\ttab", "has\nnewline"}
	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			assert.Panics(t, func() {
				New[Counter]().AddStage(id, increment)
			})
		})
	}
}

// TestAddStage_NilFunc tests that nil stage functions panic.
func TestAddStage_NilFunc(t *testing.T) {
	assert.Panics(t, func() {
		New[Counter]().AddStage("stage", nil)
	})
}

// TestAddStage_Duplicate tests that duplicate stage IDs panic.
func TestAddStage_Duplicate(t *testing.T) {
	assert.Panics(t, func() {
		New[Counter]().
			AddStage("stage", increment).
			AddStage("stage", increment)
	})
}

// TestAddBranch_NilKey tests that a nil key function panics.
func TestAddBranch_NilKey(t *testing.T) {
	assert.Panics(t, func() {
		New[State]().
			AddStage("start", passthrough[State]).
			AddBranch("start", Branch[State]{Default: "start"})
	})
}

// TestAddBranch_EmptyDefault tests that a branch without a default panics.
func TestAddBranch_EmptyDefault(t *testing.T) {
	assert.Panics(t, func() {
		New[State]().
			AddStage("start", passthrough[State]).
			AddBranch("start", Branch[State]{Key: routeOn})
	})
}

// TestOnFault_Nil tests that a nil fault handler panics.
func TestOnFault_Nil(t *testing.T) {
	assert.Panics(t, func() {
		New[State]().OnFault(nil)
	})
}

// TestGraph_Chaining tests the full builder chain compiles.
func TestGraph_Chaining(t *testing.T) {
	p, err := New[Counter]().
		AddStage("a", increment).
		AddStage("b", increment).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntry("a").
		Compile()

	require.NoError(t, err)
	assert.Equal(t, "a", p.EntryPoint())
	assert.ElementsMatch(t, []string{"a", "b"}, p.StageIDs())
}

// TestGraph_MutationAfterCompile tests that mutating the builder after
// Compile does not affect the compiled pipeline.
func TestGraph_MutationAfterCompile(t *testing.T) {
	graph := New[Counter]().
		AddStage("a", increment).
		AddEdge("a", END).
		SetEntry("a")

	p, err := graph.Compile()
	require.NoError(t, err)

	graph.AddStage("b", increment).AddEdge("a", "b")

	assert.False(t, p.HasStage("b"))
	assert.Equal(t, []string{END}, p.Successors("a"))
}
