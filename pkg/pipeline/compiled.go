package pipeline

// Pipeline is an immutable, executable workflow.
// It is created by calling Compile() on a Graph builder.
//
// Pipeline is thread-safe and can be used concurrently for multiple
// Run() calls. The graph structure cannot be modified after compilation.
// Each Run() threads its own state value; nothing is shared between
// concurrent runs except the stage functions themselves.
type Pipeline[S any] struct {
	stages       map[string]StageFunc[S]
	edges        map[string][]string
	branches     map[string]Branch[S]
	entryPoint   string
	faultHandler FaultHandler[S]
}

// EntryPoint returns the entry stage ID.
func (p *Pipeline[S]) EntryPoint() string {
	return p.entryPoint
}

// StageIDs returns all stage identifiers in the pipeline.
// The order is not guaranteed.
func (p *Pipeline[S]) StageIDs() []string {
	ids := make([]string, 0, len(p.stages))
	for id := range p.stages {
		ids = append(ids, id)
	}
	return ids
}

// HasStage checks if a stage exists in the pipeline.
func (p *Pipeline[S]) HasStage(id string) bool {
	_, exists := p.stages[id]
	return exists
}

// Successors returns the stage IDs that can be reached from the given stage
// via simple (non-branch) edges.
// Returns nil for END or unknown stages.
func (p *Pipeline[S]) Successors(id string) []string {
	if id == END {
		return nil
	}
	return p.edges[id]
}

// IsBranchPoint returns true if the stage has a branch table.
func (p *Pipeline[S]) IsBranchPoint(id string) bool {
	_, exists := p.branches[id]
	return exists
}

// getStage returns the stage function for the given ID.
// Used internally by the executor.
func (p *Pipeline[S]) getStage(id string) (StageFunc[S], bool) {
	fn, exists := p.stages[id]
	return fn, exists
}

// getBranch returns the branch table for the given stage.
// Used internally by the executor.
func (p *Pipeline[S]) getBranch(id string) (Branch[S], bool) {
	branch, exists := p.branches[id]
	return branch, exists
}

// getEdges returns the simple edge targets for the given stage.
// Used internally by the executor.
func (p *Pipeline[S]) getEdges(id string) []string {
	return p.edges[id]
}
