// Package llm provides the completion-service client used by the
// assistant pipelines: one prompt in, text out, fallible.
package llm

import "context"

// Client is the completion-service dependency.
// Implementations must be safe for concurrent use.
//
// There is no retry at this layer: callers degrade to documented
// fallback text on any error.
type Client interface {
	// Complete sends a system prompt and a user prompt and returns the
	// generated text.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
