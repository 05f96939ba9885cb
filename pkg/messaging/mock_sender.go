package messaging

import (
	"context"
	"sync"
)

// MockMessageSender records every event it is given. Setting Err makes
// SendOrderEvent fail without recording.
type MockMessageSender struct {
	mu     sync.Mutex
	events []*OrderEvent
	closed bool
	Err    error
}

// NewMockMessageSender creates a new MockMessageSender.
func NewMockMessageSender() *MockMessageSender {
	return &MockMessageSender{}
}

// SendOrderEvent stores the event
func (m *MockMessageSender) SendOrderEvent(_ context.Context, event *OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the recorded events
func (m *MockMessageSender) Events() []*OrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*OrderEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Reset drops recorded events
func (m *MockMessageSender) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// Close marks the sender closed.
func (m *MockMessageSender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called
func (m *MockMessageSender) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Ensure MockMessageSender implements MessageSender
var _ MessageSender = (*MockMessageSender)(nil)
