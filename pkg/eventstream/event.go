// Package eventstream defines transport-neutral event payloads emitted when
// memory state changes, and the publisher interface backends implement.
package eventstream

import (
	"time"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeSessionClosed is emitted after a session is finalized and
	// its insights captured.
	EventTypeSessionClosed = "recall.session.closed"

	// EventTypeSweepCompleted is emitted after a retention sweep finishes.
	EventTypeSweepCompleted = "recall.retention.sweep"
)

// SessionClosedEvent is the payload emitted once per closed session.
type SessionClosedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Summary   string    `json:"summary"`
	Topics    []string  `json:"topics,omitempty"`
	Entries   int       `json:"entries"`

	// Capture counts describe what the session contributed downstream.
	PreferencesUpserted int `json:"preferences_upserted"`
	FragmentsIndexed    int `json:"fragments_indexed"`
}

// SweepCompletedEvent is the payload emitted after each retention sweep.
type SweepCompletedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	Examined   int           `json:"examined"`
	Pruned     int           `json:"pruned"`
	SweepStart time.Time     `json:"sweep_start"`
	Duration   time.Duration `json:"duration_ns"`
}
