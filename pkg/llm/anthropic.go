package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// AnthropicClient implements Client using the Anthropic API.
type AnthropicClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *slog.Logger
}

// AnthropicOption configures AnthropicClient.
type AnthropicOption func(*AnthropicClient)

// WithModel sets the model. Default: claude-3-5-haiku-latest.
func WithModel(model anthropic.Model) AnthropicOption {
	return func(c *AnthropicClient) { c.model = model }
}

// WithMaxTokens sets the completion token budget. Default: 1024.
func WithMaxTokens(n int64) AnthropicOption {
	return func(c *AnthropicClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithLogger sets the logger for API call logging.
func WithLogger(logger *slog.Logger) AnthropicOption {
	return func(c *AnthropicClient) { c.logger = logger }
}

// NewAnthropicClient creates a new Anthropic-based completion client.
// The API key is read from the ANTHROPIC_API_KEY environment variable
// by the SDK.
func NewAnthropicClient(opts ...AnthropicOption) *AnthropicClient {
	c := &AnthropicClient{
		client:    anthropic.NewClient(),
		model:     "claude-3-5-haiku-latest",
		maxTokens: 1024,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends the prompts to the Anthropic API and returns the response text.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})

	duration := time.Since(start)
	if err != nil {
		c.logger.Error("anthropic API call failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("anthropic API error: %w", err)
	}
	c.logger.Debug("anthropic API call completed",
		slog.Duration("duration", duration),
		slog.String("stop_reason", string(msg.StopReason)))

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}

	return "", fmt.Errorf("no text content in response")
}
