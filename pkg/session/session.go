// Package session defines the ephemeral per-conversation tier: active
// session state with an append-only interaction log, and the finalized
// records handed downstream when a session ends.
//
// Active sessions are single-writer sequences - appends for one session are
// serialized, appends across sessions never block each other. Ending a
// session is idempotent and produces an immutable snapshot; everything a
// closed record shares with other tiers is passed by value.
package session

import (
	"context"
	"time"

	"github.com/papercomputeco/recall/pkg/profile"
)

// Entry is one timestamped, role-tagged item in a session's interaction log.
type Entry struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Tools     []string  `json:"tools,omitempty"`
}

// ProfileSnapshot is the read-only copy of the user's profile taken when a
// session opens. It is a value copy, never a live reference into the
// profile store.
type ProfileSnapshot struct {
	Style       profile.CommunicationStyle `json:"style"`
	Preferences []profile.Preference       `json:"preferences"`
}

// Record is the finalized form of a session, emitted exactly once by End
// and retained as a historical record afterwards.
type Record struct {
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
	Entries   []Entry         `json:"entries"`
	Summary   string          `json:"summary"`
	Topics    []string        `json:"topics"`
	Outcomes  []string        `json:"outcomes"`
	Snapshot  ProfileSnapshot `json:"snapshot"`
}

// Store manages active sessions and their transition to closed records.
type Store interface {
	// Open allocates a new session for the user and snapshots the user's
	// current profile into the session's initial context.
	Open(ctx context.Context, userID string) (string, error)

	// Append adds an entry to the session's interaction log. Appends for
	// one session are serialized and time-monotonic. Returns NotFoundError
	// if the session is unknown or already closed.
	Append(ctx context.Context, sessionID string, entry Entry) error

	// Window returns the most recent limit entries in log order. Works on
	// both active and closed sessions. A non-positive limit returns the
	// full log.
	Window(ctx context.Context, sessionID string, limit int) ([]Entry, error)

	// Snapshot returns the profile snapshot taken at Open.
	Snapshot(ctx context.Context, sessionID string) (*ProfileSnapshot, error)

	// End finalizes the session: extracts the summary, topics and outcome
	// tags, archives the record, and returns it. Idempotent - ending an
	// already-closed session returns the identical record with first set
	// to false so callers do not re-trigger downstream side effects.
	End(ctx context.Context, sessionID string) (rec *Record, first bool, err error)

	// Close releases store resources.
	Close() error
}

// Archive persists closed session records durably after they leave fast
// storage.
type Archive interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, sessionID string) (*Record, error)
	Recent(ctx context.Context, limit int) ([]*Record, error)
	Close() error
}
