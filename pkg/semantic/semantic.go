// Package semantic defines the long-term memory tier: embedding-indexed
// fragments retrieved by meaning rather than by key or recency.
//
// Fragments belong to exactly one user; retrieval is always scoped to that
// user and never crosses the boundary. Importance is assigned at capture
// and only raised by reinforcement afterwards - decay is computed on read
// by the retention layer, never written back over the base score.
package semantic

import (
	"context"
	"errors"
	"time"
)

// Type classifies what a fragment captures.
type Type string

const (
	TypeConversation Type = "conversation"
	TypePreference   Type = "preference"
	TypeFact         Type = "fact"
	TypeExperience   Type = "experience"
)

// ErrEmbeddingMissing is returned by Store when a fragment arrives without
// an embedding vector.
var ErrEmbeddingMissing = errors.New("fragment has no embedding")

// ErrNotFound is returned when a fragment id is unknown to the index.
var ErrNotFound = errors.New("fragment not found")

// Fragment is one unit of long-term memory.
type Fragment struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        Type      `json:"type"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Importance  float64   `json:"importance"`
	CreatedAt   time.Time `json:"created_at"`
	LastAccess  time.Time `json:"last_access"`
	AccessCount int       `json:"access_count"`
	Tags        []string  `json:"tags,omitempty"`
}

// Result pairs a fragment with its similarity score for one query.
type Result struct {
	Fragment Fragment `json:"fragment"`
	Score    float32  `json:"score"`
}

// Index stores fragments and retrieves them by embedding similarity.
type Index interface {
	// Store indexes the fragment, assigning an id if it has none, and
	// returns the id. Fails with ErrEmbeddingMissing if the fragment
	// carries no embedding.
	Store(ctx context.Context, frag Fragment) (string, error)

	// Search returns up to topK fragments belonging to userID, ordered by
	// similarity to the query embedding. Ties break by importance then by
	// recency of creation, both descending.
	Search(ctx context.Context, userID string, embedding []float32, topK int) ([]Result, error)

	// Touch records a retrieval: bumps the access count and advances the
	// last-access time. Used by reinforcement; missing ids are an error.
	Touch(ctx context.Context, id string, at time.Time) error

	// Get returns the fragment by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Fragment, error)

	// Delete removes the fragment. Deleting an unknown id is a no-op.
	Delete(ctx context.Context, id string) error

	// List returns every stored fragment. Intended for retention sweeps
	// and diagnostics, not request paths.
	List(ctx context.Context) ([]Fragment, error)

	// Close releases index resources.
	Close() error
}
