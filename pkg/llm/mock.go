package llm

import (
	"context"
	"sync"
)

// MockCall records one Complete invocation on a Mock.
type MockCall struct {
	SystemPrompt string
	UserPrompt   string
}

// Mock is a scriptable Client for tests and examples.
// Responses are returned from the queue in order; when the queue is
// empty, Default is returned. Setting Err makes every call fail.
//
// Mock is safe for concurrent use.
type Mock struct {
	mu        sync.Mutex
	responses []string

	// Default is returned when the response queue is empty.
	Default string

	// Err, when non-nil, is returned by every Complete call.
	Err error

	// Fn, when non-nil, takes full control of Complete.
	Fn func(systemPrompt, userPrompt string) (string, error)

	calls []MockCall
}

// Compile-time interface check.
var _ Client = (*Mock)(nil)

// Enqueue appends responses to the reply queue.
func (m *Mock) Enqueue(responses ...string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, responses...)
	return m
}

// Calls returns a copy of the recorded invocations.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of Complete invocations.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Complete implements Client.
func (m *Mock) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt})

	if m.Fn != nil {
		return m.Fn(systemPrompt, userPrompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.responses) > 0 {
		resp := m.responses[0]
		m.responses = m.responses[1:]
		return resp, nil
	}
	return m.Default, nil
}
