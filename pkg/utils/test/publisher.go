package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/papercomputeco/recall/pkg/eventstream"
)

// MockPublisher is a test eventstream publisher that records every event.
type MockPublisher struct {
	mu sync.Mutex

	SessionClosed  []*eventstream.SessionClosedEvent
	SweepCompleted []*eventstream.SweepCompletedEvent

	// FailPublish causes both publish methods to return an error.
	FailPublish bool
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishSessionClosed(_ context.Context, event *eventstream.SessionClosedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if m.FailPublish {
		return fmt.Errorf("mock publish failure")
	}

	m.mu.Lock()
	m.SessionClosed = append(m.SessionClosed, event)
	m.mu.Unlock()
	return nil
}

func (m *MockPublisher) PublishSweepCompleted(_ context.Context, event *eventstream.SweepCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if m.FailPublish {
		return fmt.Errorf("mock publish failure")
	}

	m.mu.Lock()
	m.SweepCompleted = append(m.SweepCompleted, event)
	m.mu.Unlock()
	return nil
}

// SessionClosedCount returns how many session-closed events were published.
func (m *MockPublisher) SessionClosedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SessionClosed)
}

func (m *MockPublisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*MockPublisher)(nil)
