package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu                sync.RWMutex
	publishedEvents   []*SignatureEvent
	publishError      error
	publishBatchError error
	closed            bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*SignatureEvent, 0),
	}
}

// PublishSignatureEvent records the event and returns any configured error.
func (m *MockPublisher) PublishSignatureEvent(ctx context.Context, event *SignatureEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}

	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// PublishSignatureEvents records the events and returns any configured error.
func (m *MockPublisher) PublishSignatureEvents(ctx context.Context, events []*SignatureEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishBatchError != nil {
		return m.publishBatchError
	}

	m.publishedEvents = append(m.publishedEvents, events...)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetPublishedEvents returns all published events (for testing).
func (m *MockPublisher) GetPublishedEvents() []*SignatureEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to avoid race conditions
	events := make([]*SignatureEvent, len(m.publishedEvents))
	copy(events, m.publishedEvents)
	return events
}

// GetPublishedEventCount returns the number of published events.
func (m *MockPublisher) GetPublishedEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.publishedEvents)
}

// GetPublishedEventsForOwner returns events published for a specific owner.
func (m *MockPublisher) GetPublishedEventsForOwner(owner string) []*SignatureEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*SignatureEvent, 0)
	for _, event := range m.publishedEvents {
		if event.Owner == owner {
			events = append(events, event)
		}
	}
	return events
}

// SetPublishError configures the mock to return an error on PublishSignatureEvent.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// SetPublishBatchError configures the mock to return an error on PublishSignatureEvents.
func (m *MockPublisher) SetPublishBatchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishBatchError = err
}

// Reset clears all published events and errors.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishedEvents = make([]*SignatureEvent, 0)
	m.publishError = nil
	m.publishBatchError = nil
	m.closed = false
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// StatusHistory returns the statuses published for signature, in order.
func (m *MockPublisher) StatusHistory(signature string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var statuses []string
	for _, event := range m.publishedEvents {
		if event.Signature == signature {
			statuses = append(statuses, event.Status)
		}
	}
	return statuses
}
