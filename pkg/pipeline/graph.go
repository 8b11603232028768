package pipeline

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for creating pipelines.
// Use New to create a graph, then chain AddStage, AddEdge, AddBranch,
// and SetEntry calls to define the workflow.
//
// Graph is NOT thread-safe during building. Use a single goroutine
// to construct the graph, then call Compile() to create an immutable
// Pipeline that can be safely shared.
//
// Example:
//
//	graph := pipeline.New[ChatState]().
//	    AddStage("classify", classify).
//	    AddStage("respond", respond).
//	    AddEdge("classify", "respond").
//	    AddEdge("respond", pipeline.END).
//	    SetEntry("classify")
//
//	p, err := graph.Compile()
type Graph[S any] struct {
	mu           sync.RWMutex
	stages       map[string]StageFunc[S]
	edges        map[string][]string
	branches     map[string]Branch[S]
	entryPoint   string
	faultHandler FaultHandler[S]
}

// New creates a new graph builder for state type S.
// The type parameter S defines the state that flows through the pipeline.
func New[S any]() *Graph[S] {
	return &Graph[S]{
		stages:   make(map[string]StageFunc[S]),
		edges:    make(map[string][]string),
		branches: make(map[string]Branch[S]),
	}
}

// AddStage adds a named stage to the graph.
// Returns the graph for method chaining.
//
// Panics if:
//   - id is empty
//   - id is the reserved word "END" or "__end__" (case-insensitive)
//   - id contains whitespace (space, tab, newline)
//   - fn is nil
//   - id already exists in the graph
func (g *Graph[S]) AddStage(id string, fn StageFunc[S]) *Graph[S] {
	if id == "" {
		panic("pipeline: stage ID cannot be empty")
	}

	// Check reserved words (case-insensitive)
	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == "__end__" {
		panic("pipeline: stage ID cannot be reserved word 'END'")
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("pipeline: stage ID cannot contain whitespace")
	}

	if fn == nil {
		panic("pipeline: stage function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.stages[id]; exists {
		panic(fmt.Sprintf("pipeline: duplicate stage ID: %s", id))
	}

	g.stages[id] = fn
	return g
}

// AddEdge adds an unconditional edge from one stage to another.
// The target can be a stage ID or pipeline.END.
// Returns the graph for method chaining.
//
// Edge validation happens at Compile() time, not here.
// This allows edges to be added in any order.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddBranch adds a conditional branch point after a stage. The next stage
// is chosen by looking up the value of branch.Key(state) in branch.Targets,
// falling back to branch.Default for unknown or missing values.
//
// A stage can have either simple edges or a branch, not both.
// If both are present, the branch takes precedence.
func (g *Graph[S]) AddBranch(from string, branch Branch[S]) *Graph[S] {
	if branch.Key == nil {
		panic("pipeline: branch key function cannot be nil")
	}
	if branch.Default == "" {
		panic("pipeline: branch default target cannot be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.branches[from] = branch
	return g
}

// SetEntry designates the entry point stage.
// This must be called before Compile().
// Returns the graph for method chaining.
//
// Entry point validation happens at Compile() time.
func (g *Graph[S]) SetEntry(id string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}

// OnFault installs the fail-forward handler. With a handler set, a stage
// error no longer aborts the run: the executor passes the error to the
// handler and continues to the next stage with the state the handler
// returns. Without a handler, the first stage error ends the run.
func (g *Graph[S]) OnFault(h FaultHandler[S]) *Graph[S] {
	if h == nil {
		panic("pipeline: fault handler cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.faultHandler = h
	return g
}
