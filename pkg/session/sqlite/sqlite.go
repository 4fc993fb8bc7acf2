// Package sqlite provides a SQLite-backed session archive. Closed records
// are stored whole as JSON alongside the columns queried for listings.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/session"
	"github.com/papercomputeco/recall/pkg/storage"
)

// Archive implements session.Archive backed by SQLite.
type Archive struct {
	db     *sql.DB
	retry  storage.RetryConfig
	logger *zap.Logger
}

// Config holds configuration for the SQLite session archive.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Retry bounds per-operation retries on transient failures.
	Retry storage.RetryConfig
}

// NewArchive opens (and migrates) the session table.
func NewArchive(c Config, logger *zap.Logger) (*Archive, error) {
	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at   TEXT NOT NULL,
			summary    TEXT NOT NULL,
			record     TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sessions table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id, ended_at)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session index: %w", err)
	}

	logger.Info("sqlite session archive initialized",
		zap.String("db_path", c.DBPath),
	)

	return &Archive{
		db:     db,
		retry:  c.Retry,
		logger: logger,
	}, nil
}

// Save writes the record, replacing any prior copy for the same session so
// re-archiving after a partial failure stays safe.
func (a *Archive) Save(ctx context.Context, rec *session.Record) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session record: %w", err)
	}

	return storage.Retry(ctx, a.retry, "save session record", func() error {
		if _, err := a.db.ExecContext(ctx, `
			INSERT INTO sessions (session_id, user_id, started_at, ended_at, summary, record)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (session_id) DO UPDATE SET
				ended_at = excluded.ended_at,
				summary = excluded.summary,
				record = excluded.record
		`, rec.SessionID, rec.UserID,
			rec.StartedAt.Format(time.RFC3339Nano), rec.EndedAt.Format(time.RFC3339Nano),
			rec.Summary, string(encoded),
		); err != nil {
			return fmt.Errorf("writing session record: %w", err)
		}

		return nil
	})
}

// Get returns the archived record, or session.NotFoundError if absent.
func (a *Archive) Get(ctx context.Context, sessionID string) (*session.Record, error) {
	var rec *session.Record

	err := storage.Retry(ctx, a.retry, "get session record", func() error {
		var encoded string
		err := a.db.QueryRowContext(ctx, `
			SELECT record FROM sessions WHERE session_id = ?
		`, sessionID).Scan(&encoded)

		switch err {
		case nil:
		case sql.ErrNoRows:
			// A missing row is a definitive answer; retrying cannot
			// change it and callers need the bare NotFoundError.
			return storage.Permanent(session.NotFoundError{SessionID: sessionID})
		default:
			return fmt.Errorf("loading session %s: %w", sessionID, err)
		}

		rec = &session.Record{}
		if err := json.Unmarshal([]byte(encoded), rec); err != nil {
			return storage.Permanent(fmt.Errorf("decoding session %s: %w", sessionID, err))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Recent returns up to limit records, most recently ended first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]*session.Record, error) {
	if limit <= 0 {
		limit = 20
	}

	var recs []*session.Record

	err := storage.Retry(ctx, a.retry, "list recent sessions", func() error {
		rows, err := a.db.QueryContext(ctx, `
			SELECT record FROM sessions ORDER BY ended_at DESC LIMIT ?
		`, limit)
		if err != nil {
			return fmt.Errorf("querying sessions: %w", err)
		}
		defer rows.Close()

		recs = recs[:0]
		for rows.Next() {
			var encoded string
			if err := rows.Scan(&encoded); err != nil {
				return fmt.Errorf("scanning session: %w", err)
			}

			rec := &session.Record{}
			if err := json.Unmarshal([]byte(encoded), rec); err != nil {
				return storage.Permanent(fmt.Errorf("decoding session record: %w", err))
			}
			recs = append(recs, rec)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return recs, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

var _ session.Archive = (*Archive)(nil)
