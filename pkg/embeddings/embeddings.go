// Package embeddings defines the text-to-vector interface the semantic tier
// depends on.
package embeddings

import (
	"context"
	"errors"
)

// ErrEmbedding wraps failures while producing an embedding.
var ErrEmbedding = errors.New("embedding failed")

// Embedder converts text into a vector embedding.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases resources held by the embedder.
	Close() error
}
