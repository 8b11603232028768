package pipeline

// END is the terminal stage identifier.
// Use this as an edge or branch target to indicate the pipeline should terminate.
const END = "__end__"

// StageFunc is the signature for all stages.
// Stages receive the execution context and current state,
// and return the updated state (or the same state) and any error.
//
// The state parameter is passed by value. Stages should modify and return
// a new state value, not rely on pointer mutation.
//
// Example:
//
//	func classify(ctx pipeline.Context, s ChatState) (ChatState, error) {
//	    s.Intent = "general"
//	    return s, nil
//	}
type StageFunc[S any] func(ctx Context, state S) (S, error)

// FaultHandler records a stage failure into the state.
// When configured via OnFault, the executor calls it for every stage error
// and continues execution with the returned state instead of aborting
// (the fail-forward policy).
//
// Handlers typically write the first error into a diagnostic field and
// leave every other field as last set.
type FaultHandler[S any] func(state S, stageID string, err error) S

// Branch is a static routing table evaluated after a stage completes.
// Key reads the decision field from the state; Targets maps each expected
// value to the next stage. Values not present in Targets (including the
// empty string) route to Default, never to an error.
//
// All targets and Default must name existing stages or END; this is
// checked at Compile() time.
type Branch[S any] struct {
	Key     func(state S) string
	Targets map[string]string
	Default string
}
