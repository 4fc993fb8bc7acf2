package testutils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/recall/pkg/semantic"
)

// MockIndex is a test fragment index that records calls and returns
// configurable results. Safe for concurrent use.
type MockIndex struct {
	mu sync.Mutex

	// Stored accumulates all fragments passed to Store.
	Stored []semantic.Fragment

	// SearchResults is returned by Search for any query.
	SearchResults []semantic.Result

	// touched accumulates the ids passed to Touch; read it via TouchedIDs.
	touched []string

	// FailStore causes Store to return an error.
	FailStore bool

	// FailSearch causes Search to return an error.
	FailSearch bool
}

// NewMockIndex creates a new mock fragment index.
func NewMockIndex() *MockIndex {
	return &MockIndex{}
}

func (m *MockIndex) Store(_ context.Context, frag semantic.Fragment) (string, error) {
	if m.FailStore {
		return "", fmt.Errorf("mock store failure")
	}
	if len(frag.Embedding) == 0 {
		return "", semantic.ErrEmbeddingMissing
	}
	if frag.ID == "" {
		frag.ID = uuid.NewString()
	}

	m.mu.Lock()
	m.Stored = append(m.Stored, frag)
	m.mu.Unlock()
	return frag.ID, nil
}

func (m *MockIndex) Search(_ context.Context, _ string, _ []float32, _ int) ([]semantic.Result, error) {
	if m.FailSearch {
		return nil, fmt.Errorf("mock search failure")
	}
	return m.SearchResults, nil
}

func (m *MockIndex) Touch(_ context.Context, id string, _ time.Time) error {
	m.mu.Lock()
	m.touched = append(m.touched, id)
	m.mu.Unlock()
	return nil
}

// TouchedIDs returns a snapshot of the ids passed to Touch so far.
func (m *MockIndex) TouchedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.touched...)
}

// StoredFragments returns a snapshot of the fragments passed to Store.
func (m *MockIndex) StoredFragments() []semantic.Fragment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]semantic.Fragment(nil), m.Stored...)
}

func (m *MockIndex) Get(_ context.Context, id string) (*semantic.Fragment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.Stored {
		if m.Stored[i].ID == id {
			frag := m.Stored[i]
			return &frag, nil
		}
	}
	return nil, semantic.ErrNotFound
}

func (m *MockIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.Stored {
		if m.Stored[i].ID == id {
			m.Stored = append(m.Stored[:i], m.Stored[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MockIndex) List(_ context.Context) ([]semantic.Fragment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]semantic.Fragment, len(m.Stored))
	copy(out, m.Stored)
	return out, nil
}

func (m *MockIndex) Close() error {
	return nil
}

var _ semantic.Index = (*MockIndex)(nil)
