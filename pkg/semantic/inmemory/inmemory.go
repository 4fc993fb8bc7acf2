// Package inmemory provides a map-backed fragment index with brute-force
// cosine similarity search. Suited to tests and small single-process
// deployments; nothing persists across restarts.
package inmemory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/recall/pkg/semantic"
)

// Index implements semantic.Index in process memory.
type Index struct {
	mu    sync.RWMutex
	frags map[string]semantic.Fragment
}

// NewIndex creates an empty in-memory fragment index.
func NewIndex() *Index {
	return &Index{
		frags: make(map[string]semantic.Fragment),
	}
}

// Store indexes the fragment, assigning an id if it has none.
func (i *Index) Store(_ context.Context, frag semantic.Fragment) (string, error) {
	if len(frag.Embedding) == 0 {
		return "", semantic.ErrEmbeddingMissing
	}

	if frag.ID == "" {
		frag.ID = uuid.NewString()
	}
	if frag.CreatedAt.IsZero() {
		frag.CreatedAt = time.Now().UTC()
	}
	if frag.LastAccess.IsZero() {
		frag.LastAccess = frag.CreatedAt
	}

	// Copy slices so the caller cannot mutate indexed state afterwards.
	frag.Embedding = append([]float32(nil), frag.Embedding...)
	frag.Tags = append([]string(nil), frag.Tags...)

	i.mu.Lock()
	i.frags[frag.ID] = frag
	i.mu.Unlock()

	return frag.ID, nil
}

// Search scores every fragment owned by userID against the query embedding.
func (i *Index) Search(_ context.Context, userID string, embedding []float32, topK int) ([]semantic.Result, error) {
	if topK <= 0 {
		topK = 10
	}
	if len(embedding) == 0 {
		return nil, semantic.ErrEmbeddingMissing
	}

	i.mu.RLock()
	var results []semantic.Result
	for _, frag := range i.frags {
		if frag.UserID != userID {
			continue
		}
		results = append(results, semantic.Result{
			Fragment: frag,
			Score:    cosineSimilarity(embedding, frag.Embedding),
		})
	}
	i.mu.RUnlock()

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		if results[a].Fragment.Importance != results[b].Fragment.Importance {
			return results[a].Fragment.Importance > results[b].Fragment.Importance
		}
		return results[a].Fragment.CreatedAt.After(results[b].Fragment.CreatedAt)
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// cosineSimilarity returns the cosine of the angle between a and b, or 0
// for mismatched or zero vectors.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for idx := range a {
		dot += float64(a[idx]) * float64(b[idx])
		normA += float64(a[idx]) * float64(a[idx])
		normB += float64(b[idx]) * float64(b[idx])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Touch bumps the access count and advances the last-access time.
func (i *Index) Touch(_ context.Context, id string, at time.Time) error {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	frag, ok := i.frags[id]
	if !ok {
		return semantic.ErrNotFound
	}

	frag.AccessCount++
	if at.After(frag.LastAccess) {
		frag.LastAccess = at
	}
	i.frags[id] = frag

	return nil
}

// Get returns a copy of the fragment, or ErrNotFound.
func (i *Index) Get(_ context.Context, id string) (*semantic.Fragment, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	frag, ok := i.frags[id]
	if !ok {
		return nil, semantic.ErrNotFound
	}

	frag.Embedding = append([]float32(nil), frag.Embedding...)
	frag.Tags = append([]string(nil), frag.Tags...)
	return &frag, nil
}

// Delete removes the fragment. Unknown ids are a no-op.
func (i *Index) Delete(_ context.Context, id string) error {
	i.mu.Lock()
	delete(i.frags, id)
	i.mu.Unlock()
	return nil
}

// List returns every stored fragment, oldest first.
func (i *Index) List(_ context.Context) ([]semantic.Fragment, error) {
	i.mu.RLock()
	frags := make([]semantic.Fragment, 0, len(i.frags))
	for _, frag := range i.frags {
		frags = append(frags, frag)
	}
	i.mu.RUnlock()

	sort.SliceStable(frags, func(a, b int) bool {
		return frags[a].CreatedAt.Before(frags[b].CreatedAt)
	})

	return frags, nil
}

// Close is a no-op.
func (i *Index) Close() error {
	return nil
}

var _ semantic.Index = (*Index)(nil)
