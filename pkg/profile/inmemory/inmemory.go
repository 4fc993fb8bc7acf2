// Package inmemory provides an in-process implementation of profile.Store.
// Used for tests and local development; production deployments use the
// sqlite backend.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/papercomputeco/recall/pkg/profile"
)

// Store implements profile.Store using an in-memory map.
type Store struct {
	// mu guards profiles. Upserts take the write lock, which gives the
	// per-user read-modify-write atomicity the contract requires.
	mu sync.RWMutex

	profiles map[string]*profile.Profile
}

// NewStore creates an empty in-memory profile store.
func NewStore() *Store {
	return &Store{
		profiles: make(map[string]*profile.Profile),
	}
}

// GetProfile returns the user's profile, creating a default one if absent.
func (s *Store) GetProfile(_ context.Context, userID string) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreateLocked(userID).Clone(), nil
}

// getOrCreateLocked returns the live record for userID, creating it with
// defaults on first sight. Callers must hold mu.
func (s *Store) getOrCreateLocked(userID string) *profile.Profile {
	if p, ok := s.profiles[userID]; ok {
		return p
	}

	now := time.Now().UTC()
	p := &profile.Profile{
		UserID:      userID,
		Preferences: make(map[string]profile.Preference),
		Style:       profile.NeutralStyle(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.profiles[userID] = p

	return p
}

// UpsertPreference merges the preference into the profile.
func (s *Store) UpsertPreference(_ context.Context, userID string, pref profile.Preference) error {
	if err := profile.ValidatePreference(pref); err != nil {
		return err
	}

	if pref.LastReinforced.IsZero() {
		pref.LastReinforced = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreateLocked(userID)

	if existing, ok := p.Preferences[pref.Key]; ok {
		pref = profile.Merge(existing, pref)
	}

	p.Preferences[pref.Key] = pref
	p.UpdatedAt = time.Now().UTC()

	return nil
}

// ListPreferences returns preferences ordered by confidence desc, recency desc.
func (s *Store) ListPreferences(_ context.Context, userID string, limit int) ([]profile.Preference, error) {
	s.mu.RLock()
	p, ok := s.profiles[userID]
	if !ok {
		s.mu.RUnlock()
		return nil, nil
	}

	prefs := make([]profile.Preference, 0, len(p.Preferences))
	for _, pref := range p.Preferences {
		prefs = append(prefs, pref)
	}
	s.mu.RUnlock()

	profile.SortPreferences(prefs)

	if limit > 0 && len(prefs) > limit {
		prefs = prefs[:limit]
	}

	return prefs, nil
}

// UpdateStyle replaces the communication style descriptor.
func (s *Store) UpdateStyle(_ context.Context, userID string, style profile.CommunicationStyle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreateLocked(userID)
	p.Style = style
	p.UpdatedAt = time.Now().UTC()

	return nil
}

// RecordInteractionStat atomically adds the delta to the user's counters.
func (s *Store) RecordInteractionStat(_ context.Context, userID string, delta profile.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreateLocked(userID)
	p.Stats.Sessions += delta.Sessions
	p.Stats.Turns += delta.Turns
	p.UpdatedAt = time.Now().UTC()

	return nil
}

// List returns all profiles.
func (s *Store) List(_ context.Context) ([]*profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]*profile.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p.Clone())
	}

	return profiles, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

var _ profile.Store = (*Store)(nil)
