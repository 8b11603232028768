package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCompile_Valid tests compiling a valid graph.
func TestCompile_Valid(t *testing.T) {
	p, err := New[Counter]().
		AddStage("a", increment).
		AddEdge("a", END).
		SetEntry("a").
		Compile()

	require.NoError(t, err)
	require.NotNil(t, p)
}

// TestCompile_NoEntryPoint tests that a missing entry point fails.
func TestCompile_NoEntryPoint(t *testing.T) {
	_, err := New[Counter]().
		AddStage("a", increment).
		AddEdge("a", END).
		Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
}

// TestCompile_EntryNotFound tests that an unknown entry point fails.
func TestCompile_EntryNotFound(t *testing.T) {
	_, err := New[Counter]().
		AddStage("a", increment).
		AddEdge("a", END).
		SetEntry("missing").
		Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

// TestCompile_EdgeSourceNotFound tests that an edge from an unknown
// stage fails.
func TestCompile_EdgeSourceNotFound(t *testing.T) {
	_, err := New[Counter]().
		AddStage("a", increment).
		AddEdge("a", END).
		AddEdge("ghost", "a").
		SetEntry("a").
		Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStageNotFound)
}

// TestCompile_EdgeTargetNotFound tests that an edge to an unknown
// stage fails.
func TestCompile_EdgeTargetNotFound(t *testing.T) {
	_, err := New[Counter]().
		AddStage("a", increment).
		AddEdge("a", "ghost").
		SetEntry("a").
		Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStageNotFound)
}

// TestCompile_BranchTargetNotFound tests that a branch arm naming an
// unknown stage fails.
func TestCompile_BranchTargetNotFound(t *testing.T) {
	_, err := New[State]().
		AddStage("start", passthrough[State]).
		AddStage("left", passthrough[State]).
		AddBranch("start", Branch[State]{
			Key:     routeOn,
			Targets: map[string]string{"l": "left", "g": "ghost"},
			Default: "left",
		}).
		AddEdge("left", END).
		SetEntry("start").
		Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStageNotFound)
}

// TestCompile_BranchDefaultNotFound tests that a branch default naming
// an unknown stage fails.
func TestCompile_BranchDefaultNotFound(t *testing.T) {
	_, err := New[State]().
		AddStage("start", passthrough[State]).
		AddStage("left", passthrough[State]).
		AddBranch("start", Branch[State]{
			Key:     routeOn,
			Targets: map[string]string{"l": "left"},
			Default: "ghost",
		}).
		AddEdge("left", END).
		SetEntry("start").
		Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStageNotFound)
}

// TestCompile_BranchDefaultEnd tests that END is a valid default arm.
func TestCompile_BranchDefaultEnd(t *testing.T) {
	p, err := New[State]().
		AddStage("start", passthrough[State]).
		AddStage("left", passthrough[State]).
		AddBranch("start", Branch[State]{
			Key:     routeOn,
			Targets: map[string]string{"l": "left"},
			Default: END,
		}).
		AddEdge("left", END).
		SetEntry("start").
		Compile()

	require.NoError(t, err)
	assert.True(t, p.IsBranchPoint("start"))
}

// TestCompile_NoPathToEnd tests that an entry with no route to END fails.
func TestCompile_NoPathToEnd(t *testing.T) {
	_, err := New[Counter]().
		AddStage("a", increment).
		AddStage("b", increment).
		AddEdge("a", "b").
		AddEdge("b", "a").
		SetEntry("a").
		Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPathToEnd)
}

// TestCompile_PathToEndViaBranch tests that a branch arm reaching END
// satisfies the path check.
func TestCompile_PathToEndViaBranch(t *testing.T) {
	_, err := New[State]().
		AddStage("start", passthrough[State]).
		AddStage("loop", passthrough[State]).
		AddBranch("start", Branch[State]{
			Key:     routeOn,
			Targets: map[string]string{"again": "loop", "done": END},
			Default: "loop",
		}).
		AddEdge("loop", "start").
		SetEntry("start").
		Compile()

	require.NoError(t, err)
}

// TestCompile_MultipleErrors tests that all validation errors are joined.
func TestCompile_MultipleErrors(t *testing.T) {
	_, err := New[Counter]().
		AddStage("a", increment).
		AddEdge("a", "ghost").
		SetEntry("missing").
		Compile()

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.ErrorIs(t, err, ErrStageNotFound)
}

// TestCompile_UnreachableStageStillCompiles tests that unreachable
// stages warn but do not fail compilation.
func TestCompile_UnreachableStageStillCompiles(t *testing.T) {
	p, err := New[Counter]().
		AddStage("a", increment).
		AddStage("island", increment).
		AddEdge("a", END).
		AddEdge("island", END).
		SetEntry("a").
		Compile()

	require.NoError(t, err)
	assert.True(t, p.HasStage("island"))
}
