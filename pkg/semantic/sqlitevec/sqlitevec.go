// Package sqlitevec provides a SQLite-backed fragment index using sqlite-vec.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/semantic"
)

// overfetchFactor widens KNN queries before the per-user filter is applied.
// The vec0 KNN runs over all users' vectors; fetching extra rows keeps
// topK results available after filtering.
const overfetchFactor = 4

// Index implements semantic.Index using SQLite with sqlite-vec.
type Index struct {
	db     *sql.DB
	logger *zap.Logger
}

// Config holds configuration for the sqlite-vec fragment index.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewIndex creates a fragment index backed by sqlite-vec.
func NewIndex(c Config, logger *zap.Logger) (*Index, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids, so fragment metadata lives in
	// a mapping table keyed by the same rowid.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS fragments (
			rowid        INTEGER PRIMARY KEY AUTOINCREMENT,
			fragment_id  TEXT NOT NULL UNIQUE,
			user_id      TEXT NOT NULL,
			type         TEXT NOT NULL,
			content      TEXT NOT NULL,
			importance   REAL NOT NULL,
			created_at   TEXT NOT NULL,
			last_access  TEXT NOT NULL,
			access_count INTEGER NOT NULL DEFAULT 0,
			tags         TEXT NOT NULL DEFAULT '[]'
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating fragments table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_fragments_user ON fragments(user_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating fragment index: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS fragment_embeddings USING vec0(embedding float[%d])`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec fragment index initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Index{
		db:     db,
		logger: logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Store indexes the fragment. An existing id is updated in place; the
// embedding swap is DELETE + INSERT because vec0 does not support UPDATE.
func (i *Index) Store(ctx context.Context, frag semantic.Fragment) (string, error) {
	if len(frag.Embedding) == 0 {
		return "", semantic.ErrEmbeddingMissing
	}

	if frag.ID == "" {
		frag.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if frag.CreatedAt.IsZero() {
		frag.CreatedAt = now
	}
	if frag.LastAccess.IsZero() {
		frag.LastAccess = frag.CreatedAt
	}

	tags, err := json.Marshal(frag.Tags)
	if err != nil {
		return "", fmt.Errorf("encoding tags for fragment %s: %w", frag.ID, err)
	}
	embBlob := serializeFloat32(frag.Embedding)

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existingRowID int64
	err = tx.QueryRowContext(ctx,
		`SELECT rowid FROM fragments WHERE fragment_id = ?`, frag.ID,
	).Scan(&existingRowID)

	switch err {
	case nil:
		if _, err := tx.ExecContext(ctx, `
			UPDATE fragments
			SET user_id = ?, type = ?, content = ?, importance = ?,
				created_at = ?, last_access = ?, access_count = ?, tags = ?
			WHERE rowid = ?
		`, frag.UserID, string(frag.Type), frag.Content, frag.Importance,
			frag.CreatedAt.Format(time.RFC3339Nano), frag.LastAccess.Format(time.RFC3339Nano),
			frag.AccessCount, string(tags), existingRowID,
		); err != nil {
			return "", fmt.Errorf("updating fragment %s: %w", frag.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM fragment_embeddings WHERE rowid = ?`, existingRowID,
		); err != nil {
			return "", fmt.Errorf("deleting old embedding for fragment %s: %w", frag.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fragment_embeddings(rowid, embedding) VALUES (?, ?)`,
			existingRowID, embBlob,
		); err != nil {
			return "", fmt.Errorf("re-inserting embedding for fragment %s: %w", frag.ID, err)
		}
	case sql.ErrNoRows:
		result, err := tx.ExecContext(ctx, `
			INSERT INTO fragments (fragment_id, user_id, type, content, importance, created_at, last_access, access_count, tags)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, frag.ID, frag.UserID, string(frag.Type), frag.Content, frag.Importance,
			frag.CreatedAt.Format(time.RFC3339Nano), frag.LastAccess.Format(time.RFC3339Nano),
			frag.AccessCount, string(tags),
		)
		if err != nil {
			return "", fmt.Errorf("inserting fragment %s: %w", frag.ID, err)
		}

		rowID, err := result.LastInsertId()
		if err != nil {
			return "", fmt.Errorf("getting rowid for fragment %s: %w", frag.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fragment_embeddings(rowid, embedding) VALUES (?, ?)`,
			rowID, embBlob,
		); err != nil {
			return "", fmt.Errorf("inserting embedding for fragment %s: %w", frag.ID, err)
		}
	default:
		return "", fmt.Errorf("checking for existing fragment %s: %w", frag.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing transaction: %w", err)
	}

	i.logger.Debug("stored fragment",
		zap.String("fragment_id", frag.ID),
		zap.String("user_id", frag.UserID),
		zap.String("type", string(frag.Type)),
	)

	return frag.ID, nil
}

// Search runs a KNN query and keeps only the caller's fragments. The KNN
// itself spans all users, so it over-fetches before filtering.
func (i *Index) Search(ctx context.Context, userID string, embedding []float32, topK int) ([]semantic.Result, error) {
	if topK <= 0 {
		topK = 10
	}
	if len(embedding) == 0 {
		return nil, semantic.ErrEmbeddingMissing
	}

	queryBlob := serializeFloat32(embedding)

	rows, err := i.db.QueryContext(ctx, `
		SELECT
			f.fragment_id, f.user_id, f.type, f.content, f.importance,
			f.created_at, f.last_access, f.access_count, f.tags,
			fe.distance
		FROM fragment_embeddings fe
		INNER JOIN fragments f ON f.rowid = fe.rowid
		WHERE fe.embedding MATCH ?
			AND fe.k = ?
			AND f.user_id = ?
		ORDER BY fe.distance
	`, queryBlob, topK*overfetchFactor, userID)
	if err != nil {
		return nil, fmt.Errorf("querying fragments: %w", err)
	}
	defer rows.Close()

	var results []semantic.Result
	for rows.Next() {
		var frag semantic.Fragment
		var fragType, createdAt, lastAccess, tags string
		var distance float64
		if err := rows.Scan(
			&frag.ID, &frag.UserID, &fragType, &frag.Content, &frag.Importance,
			&createdAt, &lastAccess, &frag.AccessCount, &tags, &distance,
		); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}

		frag.Type = semantic.Type(fragType)
		frag.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		frag.LastAccess, _ = time.Parse(time.RFC3339Nano, lastAccess)
		if err := json.Unmarshal([]byte(tags), &frag.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags for fragment %s: %w", frag.ID, err)
		}

		results = append(results, semantic.Result{
			Fragment: frag,
			// Convert distance to similarity score: lower distance = higher similarity
			Score: float32(1.0 / (1.0 + distance)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	sortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}

	i.logger.Debug("searched fragments",
		zap.String("user_id", userID),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// sortResults orders by score desc, then importance desc, then creation
// recency desc.
func sortResults(results []semantic.Result) {
	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		if results[a].Fragment.Importance != results[b].Fragment.Importance {
			return results[a].Fragment.Importance > results[b].Fragment.Importance
		}
		return results[a].Fragment.CreatedAt.After(results[b].Fragment.CreatedAt)
	})
}

// Touch bumps the access count and advances the last-access time. The
// stored timestamps are RFC3339Nano text with variable-width fractions, so
// the never-backwards comparison happens on parsed times in Go, not in SQL.
func (i *Index) Touch(ctx context.Context, id string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	at = at.UTC()

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning touch transaction: %w", err)
	}
	defer tx.Rollback()

	var lastAccess string
	err = tx.QueryRowContext(ctx,
		`SELECT last_access FROM fragments WHERE fragment_id = ?`, id,
	).Scan(&lastAccess)
	switch err {
	case nil:
	case sql.ErrNoRows:
		return semantic.ErrNotFound
	default:
		return fmt.Errorf("touching fragment %s: %w", id, err)
	}

	if prev, err := time.Parse(time.RFC3339Nano, lastAccess); err == nil && prev.After(at) {
		at = prev
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE fragments
		SET access_count = access_count + 1,
			last_access = ?
		WHERE fragment_id = ?
	`, at.Format(time.RFC3339Nano), id); err != nil {
		return fmt.Errorf("touching fragment %s: %w", id, err)
	}

	return tx.Commit()
}

// Get returns the fragment by id, embedding included.
func (i *Index) Get(ctx context.Context, id string) (*semantic.Fragment, error) {
	frag := &semantic.Fragment{}
	var fragType, createdAt, lastAccess, tags string
	var rowID int64

	err := i.db.QueryRowContext(ctx, `
		SELECT rowid, fragment_id, user_id, type, content, importance,
			created_at, last_access, access_count, tags
		FROM fragments WHERE fragment_id = ?
	`, id).Scan(
		&rowID, &frag.ID, &frag.UserID, &fragType, &frag.Content, &frag.Importance,
		&createdAt, &lastAccess, &frag.AccessCount, &tags,
	)
	switch err {
	case nil:
	case sql.ErrNoRows:
		return nil, semantic.ErrNotFound
	default:
		return nil, fmt.Errorf("loading fragment %s: %w", id, err)
	}

	frag.Type = semantic.Type(fragType)
	frag.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	frag.LastAccess, _ = time.Parse(time.RFC3339Nano, lastAccess)
	if err := json.Unmarshal([]byte(tags), &frag.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags for fragment %s: %w", id, err)
	}

	var embBlob []byte
	err = i.db.QueryRowContext(ctx,
		`SELECT embedding FROM fragment_embeddings WHERE rowid = ?`, rowID,
	).Scan(&embBlob)
	switch err {
	case nil:
		frag.Embedding, err = deserializeFloat32(embBlob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for fragment %s: %w", id, err)
		}
	case sql.ErrNoRows:
	default:
		return nil, fmt.Errorf("loading embedding for fragment %s: %w", id, err)
	}

	return frag, nil
}

// Delete removes the fragment and its embedding. Unknown ids are a no-op.
func (i *Index) Delete(ctx context.Context, id string) error {
	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx,
		`SELECT rowid FROM fragments WHERE fragment_id = ?`, id,
	).Scan(&rowID)
	switch err {
	case nil:
	case sql.ErrNoRows:
		return nil
	default:
		return fmt.Errorf("checking for fragment %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM fragment_embeddings WHERE rowid = ?`, rowID,
	); err != nil {
		return fmt.Errorf("deleting embedding for fragment %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM fragments WHERE rowid = ?`, rowID,
	); err != nil {
		return fmt.Errorf("deleting fragment %s: %w", id, err)
	}

	return tx.Commit()
}

// List returns every fragment's metadata. Embeddings are left out; callers
// that need a vector fetch it with Get.
func (i *Index) List(ctx context.Context) ([]semantic.Fragment, error) {
	rows, err := i.db.QueryContext(ctx, `
		SELECT fragment_id, user_id, type, content, importance,
			created_at, last_access, access_count, tags
		FROM fragments ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("listing fragments: %w", err)
	}
	defer rows.Close()

	var frags []semantic.Fragment
	for rows.Next() {
		var frag semantic.Fragment
		var fragType, createdAt, lastAccess, tags string
		if err := rows.Scan(
			&frag.ID, &frag.UserID, &fragType, &frag.Content, &frag.Importance,
			&createdAt, &lastAccess, &frag.AccessCount, &tags,
		); err != nil {
			return nil, fmt.Errorf("scanning fragment: %w", err)
		}

		frag.Type = semantic.Type(fragType)
		frag.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		frag.LastAccess, _ = time.Parse(time.RFC3339Nano, lastAccess)
		if err := json.Unmarshal([]byte(tags), &frag.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags for fragment %s: %w", frag.ID, err)
		}

		frags = append(frags, frag)
	}

	return frags, rows.Err()
}

// Close closes the underlying database.
func (i *Index) Close() error {
	return i.db.Close()
}

var _ semantic.Index = (*Index)(nil)
