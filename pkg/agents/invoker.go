package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Invoker dispatches a request to a named specialized pipeline.
// The orchestrator only depends on this interface, so the specialized
// pipelines can run in-process or behind a transport.
type Invoker interface {
	Invoke(ctx context.Context, pipelineName string, req Request) (Response, error)
}

// LocalInvoker dispatches to registered handlers in-process.
// Used in single-binary deployments and tests.
type LocalInvoker struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// Compile-time interface check.
var _ Invoker = (*LocalInvoker)(nil)

// NewLocalInvoker creates an empty local invoker.
func NewLocalInvoker() *LocalInvoker {
	return &LocalInvoker{handlers: make(map[string]Handler)}
}

// Register binds a pipeline name to a handler.
// Registering the same name twice replaces the previous handler.
func (l *LocalInvoker) Register(pipelineName string, h Handler) *LocalInvoker {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[pipelineName] = h
	return l
}

// Invoke implements Invoker.
func (l *LocalInvoker) Invoke(ctx context.Context, pipelineName string, req Request) (Response, error) {
	l.mu.RLock()
	h, ok := l.handlers[pipelineName]
	l.mu.RUnlock()

	if !ok {
		return Response{}, fmt.Errorf("unknown pipeline: %s", pipelineName)
	}
	return h.Handle(ctx, req), nil
}

// HTTPInvoker dispatches over JSON/HTTP to a remote agent server
// exposing POST {base}/v1/agents/{pipeline}.
type HTTPInvoker struct {
	baseURL string
	client  *http.Client
}

// Compile-time interface check.
var _ Invoker = (*HTTPInvoker)(nil)

// NewHTTPInvoker creates an invoker for the given base URL,
// e.g. "http://localhost:8080".
func NewHTTPInvoker(baseURL string, client *http.Client) *HTTPInvoker {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPInvoker{baseURL: baseURL, client: client}
}

// Invoke implements Invoker.
func (i *HTTPInvoker) Invoke(ctx context.Context, pipelineName string, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/agents/%s", i.baseURL, pipelineName)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := i.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("invoke %s: %w", pipelineName, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("invoke %s: unexpected status %d", pipelineName, httpResp.StatusCode)
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}
