package pipeline

import (
	"context"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/smartdoc-labs/smartdoc/pkg/pipeline/observability"
)

// runConfig holds configuration for pipeline execution.
type runConfig struct {
	maxIterations  int
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxIterations: 1000,
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxIterations sets the maximum number of stage executions.
// Default: 1000
//
// This prevents infinite loops from hanging forever. If a run
// exceeds this limit, Run returns ErrMaxIterations.
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithMetrics enables metric recording for the run.
func WithMetrics(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry span creation for the run and
// each stage execution.
func WithTracing(spans observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if spans != nil {
			c.spans = spans
			c.tracingEnabled = true
		}
	}
}

// Run executes the pipeline with the given initial state.
// Returns the final state and any error encountered.
//
// Execution flow:
//  1. Start at the entry point stage
//  2. Check for cancellation
//  3. Execute the current stage
//  4. On stage error: if a fault handler is configured, record the error
//     into the state and continue (fail-forward); otherwise abort
//  5. Determine the next stage (via simple edge or branch table)
//  6. Repeat until END is reached
//
// With a fault handler configured, Run only fails on cancellation or the
// iteration guard - a stage failure degrades the state, never the run.
func (p *Pipeline[S]) Run(ctx Context, state S, opts ...RunOption) (result S, runErr error) {
	if ctx == nil {
		return state, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	startTime := time.Now()
	logger := ctx.Logger()
	observability.LogRunStart(logger, ctx.RunID())

	var execCtx context.Context = ctx
	var runSpan trace.Span
	if cfg.tracingEnabled {
		execCtx, runSpan = cfg.spans.StartRunSpan(ctx, "pipeline", ctx.RunID())
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	var stageCount int
	result, stageCount, runErr = p.runFrom(execCtx, ctx, state, &cfg)

	duration := time.Since(startTime)
	cfg.metrics.RecordPipelineRun(ctx, runErr == nil, duration)

	if runErr != nil {
		lastStage := ""
		switch e := runErr.(type) {
		case *StageError:
			lastStage = e.StageID
		case *MaxIterationsError:
			lastStage = e.LastStageID
		case *CancellationError:
			lastStage = e.StageID
		}
		observability.LogRunError(logger, ctx.RunID(), runErr, float64(duration.Milliseconds()), lastStage)
	} else {
		observability.LogRunComplete(logger, ctx.RunID(), float64(duration.Milliseconds()), stageCount)
	}

	return result, runErr
}

// runFrom executes the pipeline from the entry stage.
// tracingCtx carries span context; pctx is the pipeline Context.
// Returns the final state, stage count, and any error.
func (p *Pipeline[S]) runFrom(tracingCtx context.Context, pctx Context, state S, cfg *runConfig) (S, int, error) {
	current := p.entryPoint
	iterations := 0
	stageCount := 0
	logger := pctx.Logger()

	for current != END {
		iterations++
		if iterations > cfg.maxIterations {
			return state, stageCount, &MaxIterationsError{
				Max:         cfg.maxIterations,
				LastStageID: current,
				State:       state,
			}
		}

		// Check for cancellation before executing the stage
		select {
		case <-pctx.Done():
			return state, stageCount, &CancellationError{
				StageID: current,
				State:   state,
				Cause:   pctx.Err(),
			}
		default:
		}

		observability.LogStageStart(logger, current)

		stageTracingCtx := tracingCtx
		var stageSpan trace.Span
		if cfg.tracingEnabled {
			stageTracingCtx, stageSpan = cfg.spans.StartStageSpan(tracingCtx, current)
		}

		stageStart := time.Now()
		var stageErr error
		state, stageErr = p.executeStage(pctx, current, state)
		stageDuration := time.Since(stageStart)

		cfg.metrics.RecordStageExecution(stageTracingCtx, current, stageDuration, stageErr)

		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(stageSpan, stageErr)
		}

		if stageErr != nil {
			observability.LogStageError(logger, current, stageErr)

			// Fail-forward: record the fault into the state and keep going.
			// All other fields stay as last set by the failing stage.
			if p.faultHandler == nil {
				return state, stageCount, stageErr
			}
			state = p.faultHandler(state, current, stageErr)
		} else {
			observability.LogStageComplete(logger, current, float64(stageDuration.Milliseconds()))
		}
		stageCount++

		current = p.nextStage(state, current)
	}

	return state, stageCount, nil
}

// executeStage executes a single stage with panic recovery.
// Returns the new state and any error (including wrapped panics).
func (p *Pipeline[S]) executeStage(ctx Context, stageID string, state S) (result S, err error) {
	fn, exists := p.getStage(stageID)
	if !exists {
		// This shouldn't happen if compilation was successful
		return state, &StageError{
			StageID: stageID,
			Op:      "lookup",
			Err:     ErrStageNotFound,
		}
	}

	// Create stage-specific context with enriched logger
	stageCtx := ctx
	if ec, ok := ctx.(*executionContext); ok {
		stageCtx = ec.withStageID(stageID)
	}

	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				StageID: stageID,
				Value:   r,
				Stack:   string(debug.Stack()),
			}
		}
	}()

	result, err = fn(stageCtx, state)
	if err != nil {
		return result, &StageError{
			StageID: stageID,
			Op:      "execute",
			Err:     err,
		}
	}

	return result, nil
}

// nextStage determines the next stage to execute.
// Checks the branch table first, then simple edges. Branch lookups that
// miss the table take the default arm; compilation guarantees every
// possible result names an existing stage or END, so routing never fails
// at runtime.
func (p *Pipeline[S]) nextStage(state S, current string) string {
	if branch, exists := p.getBranch(current); exists {
		if next, ok := branch.Targets[branch.Key(state)]; ok {
			return next
		}
		return branch.Default
	}

	edges := p.getEdges(current)
	if len(edges) == 0 {
		// No outgoing edges; END is the only safe answer.
		return END
	}

	// Multiple simple edges from one stage aren't supported; take the first.
	return edges[0]
}
