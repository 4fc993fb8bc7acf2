package local

import (
	"context"
	"sort"
	"sync"

	"github.com/papercomputeco/recall/pkg/session"
)

// Archive is an in-memory session.Archive for tests and single-process
// deployments without durable storage.
type Archive struct {
	mu   sync.RWMutex
	recs map[string]*session.Record
}

// NewArchive creates an empty in-memory archive.
func NewArchive() *Archive {
	return &Archive{
		recs: make(map[string]*session.Record),
	}
}

// Save stores the record, replacing any prior copy.
func (a *Archive) Save(_ context.Context, rec *session.Record) error {
	a.mu.Lock()
	a.recs[rec.SessionID] = rec
	a.mu.Unlock()
	return nil
}

// Get returns the archived record, or session.NotFoundError.
func (a *Archive) Get(_ context.Context, sessionID string) (*session.Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rec, ok := a.recs[sessionID]
	if !ok {
		return nil, session.NotFoundError{SessionID: sessionID}
	}
	return rec, nil
}

// Recent returns up to limit records, most recently ended first.
func (a *Archive) Recent(_ context.Context, limit int) ([]*session.Record, error) {
	a.mu.RLock()
	recs := make([]*session.Record, 0, len(a.recs))
	for _, rec := range a.recs {
		recs = append(recs, rec)
	}
	a.mu.RUnlock()

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].EndedAt.After(recs[j].EndedAt)
	})

	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// Close is a no-op.
func (a *Archive) Close() error {
	return nil
}

var _ session.Archive = (*Archive)(nil)
