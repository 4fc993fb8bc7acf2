// Package kafka provides an Apache Kafka eventstream publisher.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/eventstream"
)

// Config holds configuration for the Kafka publisher.
type Config struct {
	// Brokers is the list of Kafka broker addresses. Required.
	Brokers []string

	// Topic is the topic events are written to. Required.
	Topic string

	// BatchTimeout bounds how long the writer buffers before flushing.
	// Defaults to 100ms.
	BatchTimeout time.Duration
}

// Publisher writes memory lifecycle events to a Kafka topic. Messages are
// keyed by user id so per-user ordering survives partitioning.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewPublisher creates a Kafka-backed eventstream publisher.
func NewPublisher(c Config, logger *zap.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}
	if c.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	batchTimeout := c.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = 100 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        c.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	logger.Info("kafka eventstream publisher initialized",
		zap.Strings("brokers", c.Brokers),
		zap.String("topic", c.Topic),
	)

	return &Publisher{
		writer: writer,
		logger: logger,
	}, nil
}

// PublishSessionClosed emits a session-closed event keyed by user id.
func (p *Publisher) PublishSessionClosed(ctx context.Context, event *eventstream.SessionClosedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	stamped := *event
	fillEnvelope(&stamped.SchemaVersion, &stamped.EventType, &stamped.EventID, &stamped.EmittedAt, eventstream.EventTypeSessionClosed)

	return p.publish(ctx, stamped.EventType, stamped.UserID, stamped)
}

// PublishSweepCompleted emits a sweep-completed event.
func (p *Publisher) PublishSweepCompleted(ctx context.Context, event *eventstream.SweepCompletedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	stamped := *event
	fillEnvelope(&stamped.SchemaVersion, &stamped.EventType, &stamped.EventID, &stamped.EmittedAt, eventstream.EventTypeSweepCompleted)

	return p.publish(ctx, stamped.EventType, "retention", stamped)
}

// fillEnvelope stamps the envelope fields callers usually leave zero.
func fillEnvelope(version *int, eventType, eventID *string, emittedAt *time.Time, defaultType string) {
	if *version == 0 {
		*version = eventstream.SchemaVersionV1
	}
	if *eventType == "" {
		*eventType = defaultType
	}
	if *eventID == "" {
		*eventID = uuid.NewString()
	}
	if emittedAt.IsZero() {
		*emittedAt = time.Now().UTC()
	}
}

func (p *Publisher) publish(ctx context.Context, eventType, key string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", eventType, err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: encoded,
	}); err != nil {
		return fmt.Errorf("publishing %s event: %w", eventType, err)
	}

	p.logger.Debug("published event",
		zap.String("event_type", eventType),
		zap.String("key", key),
	)

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
