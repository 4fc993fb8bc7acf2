package eventstream

import "context"

// Publisher publishes memory lifecycle events to an event stream backend.
type Publisher interface {
	PublishSessionClosed(ctx context.Context, event *SessionClosedEvent) error
	PublishSweepCompleted(ctx context.Context, event *SweepCompletedEvent) error
	Close() error
}
