// Package local provides the in-process session store. Active sessions live
// in memory for fast appends; closed records are written through to the
// configured archive and evicted from the active set while remaining
// readable through the archive.
package local

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/profile"
	"github.com/papercomputeco/recall/pkg/session"
)

// activeSession is the mutable state of one open conversation. Its mutex
// serializes appends so the log is a single total order per session.
type activeSession struct {
	mu sync.Mutex

	userID    string
	startedAt time.Time
	entries   []session.Entry
	snapshot  session.ProfileSnapshot
}

// Config holds configuration for the local session store.
type Config struct {
	// Archive receives closed records. Required.
	Archive session.Archive

	// Profiles is read at Open to snapshot the user's current profile.
	Profiles profile.Store

	// SnapshotPreferences caps how many preferences are copied into the
	// session's initial context.
	SnapshotPreferences int
}

// Store implements session.Store with in-memory active sessions.
type Store struct {
	config Config
	logger *zap.Logger

	// mu guards the maps only; per-session entry appends are serialized
	// by the session's own mutex so sessions never block each other.
	// closed holds only records whose archive write failed or is still in
	// flight; once archived, closed-session reads go to the archive.
	mu     sync.RWMutex
	active map[string]*activeSession
	closed map[string]*session.Record
}

// NewStore creates a local session store.
func NewStore(c Config, logger *zap.Logger) *Store {
	return &Store{
		config: c,
		logger: logger,
		active: make(map[string]*activeSession),
		closed: make(map[string]*session.Record),
	}
}

// Open allocates a session and snapshots the user's profile into it.
func (s *Store) Open(ctx context.Context, userID string) (string, error) {
	prof, err := s.config.Profiles.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}

	prefs, err := s.config.Profiles.ListPreferences(ctx, userID, s.config.SnapshotPreferences)
	if err != nil {
		return "", err
	}

	sessionID := uuid.NewString()
	as := &activeSession{
		userID:    userID,
		startedAt: time.Now().UTC(),
		snapshot: session.ProfileSnapshot{
			Style:       prof.Style,
			Preferences: prefs,
		},
	}

	s.mu.Lock()
	s.active[sessionID] = as
	s.mu.Unlock()

	if err := s.config.Profiles.RecordInteractionStat(ctx, userID, profile.Stats{Sessions: 1}); err != nil {
		s.logger.Warn("failed to record session stat",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	s.logger.Debug("session opened",
		zap.String("session_id", sessionID),
		zap.String("user_id", userID),
	)

	return sessionID, nil
}

// lookup returns the active session for id, or nil if unknown/closed.
func (s *Store) lookup(sessionID string) *activeSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[sessionID]
}

// Append adds an entry to the session log. Serialized per session.
func (s *Store) Append(ctx context.Context, sessionID string, entry session.Entry) error {
	as := s.lookup(sessionID)
	if as == nil {
		return session.NotFoundError{SessionID: sessionID}
	}

	as.mu.Lock()
	defer as.mu.Unlock()

	var prev time.Time
	if n := len(as.entries); n > 0 {
		prev = as.entries[n-1].Timestamp
	}
	entry.Timestamp = session.MonotonicTimestamp(entry.Timestamp, prev)

	as.entries = append(as.entries, entry)

	if entry.Role == "user" {
		if err := s.config.Profiles.RecordInteractionStat(ctx, as.userID, profile.Stats{Turns: 1}); err != nil {
			s.logger.Warn("failed to record turn stat",
				zap.String("user_id", as.userID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// Window returns the most recent limit entries in log order.
func (s *Store) Window(ctx context.Context, sessionID string, limit int) ([]session.Entry, error) {
	if as := s.lookup(sessionID); as != nil {
		as.mu.Lock()
		defer as.mu.Unlock()
		return tail(as.entries, limit), nil
	}

	rec, err := s.closedRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return tail(rec.Entries, limit), nil
}

// closedRecord serves reads for ended sessions: the in-memory copy while the
// archive write is pending, the archive afterwards.
func (s *Store) closedRecord(ctx context.Context, sessionID string) (*session.Record, error) {
	s.mu.RLock()
	rec, ok := s.closed[sessionID]
	s.mu.RUnlock()
	if ok {
		return rec, nil
	}

	return s.config.Archive.Get(ctx, sessionID)
}

// tail copies the last limit entries. Copies, so callers never alias the
// live log.
func tail(entries []session.Entry, limit int) []session.Entry {
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]session.Entry, len(entries))
	copy(out, entries)
	return out
}

// Snapshot returns the profile snapshot taken at Open.
func (s *Store) Snapshot(ctx context.Context, sessionID string) (*session.ProfileSnapshot, error) {
	if as := s.lookup(sessionID); as != nil {
		snap := as.snapshot
		return &snap, nil
	}

	rec, err := s.closedRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	snap := rec.Snapshot
	return &snap, nil
}

// End finalizes the session. Idempotent: the first call extracts insights,
// archives the record and reports first=true; later calls return the same
// record with first=false.
func (s *Store) End(ctx context.Context, sessionID string) (*session.Record, bool, error) {
	s.mu.Lock()

	if rec, ok := s.closed[sessionID]; ok {
		s.mu.Unlock()
		return rec, false, nil
	}

	as, ok := s.active[sessionID]
	if !ok {
		s.mu.Unlock()

		// Already archived and evicted, or never existed; the archive
		// settles which.
		rec, err := s.config.Archive.Get(ctx, sessionID)
		if err != nil {
			return nil, false, err
		}
		return rec, false, nil
	}

	// Finalize while still holding the store lock so a racing End observes
	// either the active session or the closed record, never neither. The
	// archive write happens after release - it is the only slow part.
	as.mu.Lock()
	entries := make([]session.Entry, len(as.entries))
	copy(entries, as.entries)
	as.mu.Unlock()

	topics := session.ExtractTopics(entries)
	tools := session.CollectTools(entries)

	rec := &session.Record{
		SessionID: sessionID,
		UserID:    as.userID,
		StartedAt: as.startedAt,
		EndedAt:   time.Now().UTC(),
		Entries:   entries,
		Summary:   session.Summarize(entries, topics, tools),
		Topics:    topics,
		Outcomes:  session.Outcomes(entries, topics),
		Snapshot:  as.snapshot,
	}

	delete(s.active, sessionID)
	s.closed[sessionID] = rec
	s.mu.Unlock()

	if err := s.config.Archive.Save(ctx, rec); err != nil {
		// Keep the in-memory copy so the record stays readable; it is
		// evicted only once the archive holds it.
		s.logger.Error("failed to archive session record",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	} else {
		s.mu.Lock()
		delete(s.closed, sessionID)
		s.mu.Unlock()
	}

	s.logger.Info("session closed",
		zap.String("session_id", sessionID),
		zap.String("user_id", rec.UserID),
		zap.Int("entries", len(entries)),
	)

	return rec, true, nil
}

// Close is a no-op for the local store; the archive is owned by the caller.
func (s *Store) Close() error {
	return nil
}

var _ session.Store = (*Store)(nil)
