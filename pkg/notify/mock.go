package notify

import (
	"context"
	"sync"
)

// SentSMS records one SendSMS invocation on a Mock.
type SentSMS struct {
	Phone   string
	Message string
}

// Mock is a recording Notifier for tests and examples.
// Setting Err makes every send fail. Mock is safe for concurrent use.
type Mock struct {
	mu   sync.Mutex
	sent []SentSMS

	// Err, when non-nil, is returned by every SendSMS call.
	Err error
}

// Compile-time interface check.
var _ Notifier = (*Mock)(nil)

// Sent returns a copy of the recorded sends, including failed ones.
func (m *Mock) Sent() []SentSMS {
	m.mu.Lock()
	defer m.mu.Unlock()
	sent := make([]SentSMS, len(m.sent))
	copy(sent, m.sent)
	return sent
}

// SendSMS implements Notifier.
func (m *Mock) SendSMS(_ context.Context, phone, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, SentSMS{Phone: phone, Message: message})
	return m.Err
}
