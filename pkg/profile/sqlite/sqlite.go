// Package sqlite provides a SQLite-backed implementation of profile.Store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/profile"
	"github.com/papercomputeco/recall/pkg/storage"
)

// Store implements profile.Store backed by SQLite. Per-user upsert atomicity
// comes from immediate transactions; SQLite serializes writers, so
// concurrent upserts for the same user cannot lose updates.
type Store struct {
	db     *sql.DB
	retry  storage.RetryConfig
	logger *zap.Logger
}

// Config holds configuration for the SQLite profile store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Retry bounds per-operation retries on transient failures.
	Retry storage.RetryConfig
}

// NewStore opens (and migrates) the profile tables.
func NewStore(c Config, logger *zap.Logger) (*Store, error) {
	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			user_id    TEXT PRIMARY KEY,
			verbosity  TEXT NOT NULL,
			tone       TEXT NOT NULL,
			formality  TEXT NOT NULL,
			sessions   INTEGER NOT NULL DEFAULT 0,
			turns      INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating profiles table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS preferences (
			user_id         TEXT NOT NULL REFERENCES profiles(user_id),
			key             TEXT NOT NULL,
			value           TEXT NOT NULL,
			confidence      REAL NOT NULL,
			source          TEXT NOT NULL,
			last_reinforced TEXT NOT NULL,
			PRIMARY KEY (user_id, key)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating preferences table: %w", err)
	}

	logger.Info("sqlite profile store initialized",
		zap.String("db_path", c.DBPath),
	)

	return &Store{
		db:     db,
		retry:  c.Retry,
		logger: logger,
	}, nil
}

// GetProfile returns the user's profile, creating a default one if absent.
func (s *Store) GetProfile(ctx context.Context, userID string) (*profile.Profile, error) {
	var p *profile.Profile

	err := storage.Retry(ctx, s.retry, "get profile", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		p, err = s.getOrCreateTx(ctx, tx, userID)
		if err != nil {
			return err
		}

		prefs, err := loadPreferencesTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		for _, pref := range prefs {
			p.Preferences[pref.Key] = pref
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	return p, nil
}

// getOrCreateTx loads the profile row, inserting defaults on first sight.
func (s *Store) getOrCreateTx(ctx context.Context, tx *sql.Tx, userID string) (*profile.Profile, error) {
	p := &profile.Profile{
		UserID:      userID,
		Preferences: make(map[string]profile.Preference),
	}

	var createdAt, updatedAt string
	err := tx.QueryRowContext(ctx, `
		SELECT verbosity, tone, formality, sessions, turns, created_at, updated_at
		FROM profiles WHERE user_id = ?
	`, userID).Scan(
		&p.Style.Verbosity, &p.Style.Tone, &p.Style.Formality,
		&p.Stats.Sessions, &p.Stats.Turns, &createdAt, &updatedAt,
	)

	switch err {
	case nil:
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		return p, nil
	case sql.ErrNoRows:
		now := time.Now().UTC()
		p.Style = profile.NeutralStyle()
		p.CreatedAt = now
		p.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (user_id, verbosity, tone, formality, sessions, turns, created_at, updated_at)
			VALUES (?, ?, ?, ?, 0, 0, ?, ?)
		`, userID, p.Style.Verbosity, p.Style.Tone, p.Style.Formality,
			now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
		); err != nil {
			return nil, fmt.Errorf("creating profile %s: %w", userID, err)
		}

		s.logger.Debug("created default profile", zap.String("user_id", userID))
		return p, nil
	default:
		return nil, fmt.Errorf("loading profile %s: %w", userID, err)
	}
}

func loadPreferencesTx(ctx context.Context, tx *sql.Tx, userID string) ([]profile.Preference, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT key, value, confidence, source, last_reinforced
		FROM preferences WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying preferences: %w", err)
	}
	defer rows.Close()

	var prefs []profile.Preference
	for rows.Next() {
		var pref profile.Preference
		var valueJSON, source, reinforced string
		if err := rows.Scan(&pref.Key, &valueJSON, &pref.Confidence, &source, &reinforced); err != nil {
			return nil, fmt.Errorf("scanning preference: %w", err)
		}

		if err := json.Unmarshal([]byte(valueJSON), &pref.Value); err != nil {
			return nil, fmt.Errorf("decoding preference value for key %s: %w", pref.Key, err)
		}

		pref.Source = profile.SourceType(source)
		pref.LastReinforced, _ = time.Parse(time.RFC3339Nano, reinforced)
		prefs = append(prefs, pref)
	}

	return prefs, rows.Err()
}

// UpsertPreference merges the preference into the profile under an
// immediate transaction, so the read-modify-write is atomic per user.
func (s *Store) UpsertPreference(ctx context.Context, userID string, pref profile.Preference) error {
	if err := profile.ValidatePreference(pref); err != nil {
		return err
	}

	if pref.LastReinforced.IsZero() {
		pref.LastReinforced = time.Now().UTC()
	}

	return storage.Retry(ctx, s.retry, "upsert preference", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := s.getOrCreateTx(ctx, tx, userID); err != nil {
			return err
		}

		merged := pref

		var valueJSON, source, reinforced string
		var confidence float64
		err = tx.QueryRowContext(ctx, `
			SELECT value, confidence, source, last_reinforced
			FROM preferences WHERE user_id = ? AND key = ?
		`, userID, pref.Key).Scan(&valueJSON, &confidence, &source, &reinforced)

		switch err {
		case nil:
			existing := profile.Preference{
				Key:        pref.Key,
				Confidence: confidence,
				Source:     profile.SourceType(source),
			}
			if err := json.Unmarshal([]byte(valueJSON), &existing.Value); err != nil {
				return fmt.Errorf("decoding existing value for key %s: %w", pref.Key, err)
			}
			existing.LastReinforced, _ = time.Parse(time.RFC3339Nano, reinforced)

			merged = profile.Merge(existing, pref)
		case sql.ErrNoRows:
		default:
			return fmt.Errorf("loading existing preference: %w", err)
		}

		encoded, err := json.Marshal(merged.Value)
		if err != nil {
			return fmt.Errorf("encoding preference value: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO preferences (user_id, key, value, confidence, source, last_reinforced)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, key) DO UPDATE SET
				value = excluded.value,
				confidence = excluded.confidence,
				source = excluded.source,
				last_reinforced = excluded.last_reinforced
		`, userID, merged.Key, string(encoded), merged.Confidence,
			string(merged.Source), merged.LastReinforced.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("writing preference: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE profiles SET updated_at = ? WHERE user_id = ?
		`, time.Now().UTC().Format(time.RFC3339Nano), userID); err != nil {
			return fmt.Errorf("touching profile: %w", err)
		}

		return tx.Commit()
	})
}

// ListPreferences returns preferences ordered by confidence desc, recency desc.
func (s *Store) ListPreferences(ctx context.Context, userID string, limit int) ([]profile.Preference, error) {
	var prefs []profile.Preference

	err := storage.Retry(ctx, s.retry, "list preferences", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		prefs, err = loadPreferencesTx(ctx, tx, userID)
		if err != nil {
			return err
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	profile.SortPreferences(prefs)

	if limit > 0 && len(prefs) > limit {
		prefs = prefs[:limit]
	}

	return prefs, nil
}

// UpdateStyle replaces the communication style descriptor.
func (s *Store) UpdateStyle(ctx context.Context, userID string, style profile.CommunicationStyle) error {
	return storage.Retry(ctx, s.retry, "update style", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := s.getOrCreateTx(ctx, tx, userID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE profiles SET verbosity = ?, tone = ?, formality = ?, updated_at = ?
			WHERE user_id = ?
		`, style.Verbosity, style.Tone, style.Formality,
			time.Now().UTC().Format(time.RFC3339Nano), userID,
		); err != nil {
			return fmt.Errorf("updating style: %w", err)
		}

		return tx.Commit()
	})
}

// RecordInteractionStat atomically adds the delta to the user's counters.
func (s *Store) RecordInteractionStat(ctx context.Context, userID string, delta profile.Stats) error {
	return storage.Retry(ctx, s.retry, "record interaction stat", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		if _, err := s.getOrCreateTx(ctx, tx, userID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE profiles SET sessions = sessions + ?, turns = turns + ?, updated_at = ?
			WHERE user_id = ?
		`, delta.Sessions, delta.Turns,
			time.Now().UTC().Format(time.RFC3339Nano), userID,
		); err != nil {
			return fmt.Errorf("incrementing counters: %w", err)
		}

		return tx.Commit()
	})
}

// List returns all profiles with their preferences.
func (s *Store) List(ctx context.Context) ([]*profile.Profile, error) {
	var profiles []*profile.Profile

	err := storage.Retry(ctx, s.retry, "list profiles", func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT user_id, verbosity, tone, formality, sessions, turns, created_at, updated_at
			FROM profiles ORDER BY user_id
		`)
		if err != nil {
			return fmt.Errorf("querying profiles: %w", err)
		}
		defer rows.Close()

		profiles = profiles[:0]
		for rows.Next() {
			p := &profile.Profile{Preferences: make(map[string]profile.Preference)}
			var createdAt, updatedAt string
			if err := rows.Scan(
				&p.UserID, &p.Style.Verbosity, &p.Style.Tone, &p.Style.Formality,
				&p.Stats.Sessions, &p.Stats.Turns, &createdAt, &updatedAt,
			); err != nil {
				return fmt.Errorf("scanning profile: %w", err)
			}
			p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
			p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
			profiles = append(profiles, p)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		for _, p := range profiles {
			tx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("beginning transaction: %w", err)
			}

			prefs, err := loadPreferencesTx(ctx, tx, p.UserID)
			if err != nil {
				tx.Rollback()
				return err
			}
			if err := tx.Commit(); err != nil {
				return err
			}

			for _, pref := range prefs {
				p.Preferences[pref.Key] = pref
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return profiles, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ profile.Store = (*Store)(nil)
