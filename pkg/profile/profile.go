// Package profile defines the durable per-user profile tier: learned
// preferences with confidence scores, the communication style descriptor,
// and interaction counters.
//
// The [Store] interface is the contract between the fusion engine and a
// persistence backend. Backends are pluggable via configuration:
//
//	[profile]
//	provider = "sqlite"   # or "inmemory"
//
// Preference values are a tagged union over a closed set of shapes so that
// merge and tie-break logic stays total. A profile holds at most one live
// preference record per key; upserts merge per [Merge] rather than
// duplicating.
package profile

import (
	"context"
	"time"
)

// SourceType classifies how a preference was learned.
type SourceType string

const (
	// SourceExplicit marks a preference the user stated directly.
	SourceExplicit SourceType = "explicit"

	// SourceImplicit marks a preference derived from behavior.
	SourceImplicit SourceType = "implicit"

	// SourceInferred marks a preference guessed from weak signals.
	SourceInferred SourceType = "inferred"
)

// Preference is a single learned (key, value) record with its confidence
// and provenance.
type Preference struct {
	Key            string     `json:"key"`
	Value          Value      `json:"value"`
	Confidence     float64    `json:"confidence"`
	Source         SourceType `json:"source"`
	LastReinforced time.Time  `json:"last_reinforced"`
}

// CommunicationStyle describes how the assistant should talk to the user.
// Each axis takes a small bounded vocabulary; see the Default* constants.
type CommunicationStyle struct {
	Verbosity string `json:"verbosity"`
	Tone      string `json:"tone"`
	Formality string `json:"formality"`
}

// Neutral defaults for a freshly created profile.
const (
	DefaultVerbosity = "balanced"
	DefaultTone      = "professional"
	DefaultFormality = "balanced"
)

// NeutralStyle returns the communication style assigned to new profiles.
func NeutralStyle() CommunicationStyle {
	return CommunicationStyle{
		Verbosity: DefaultVerbosity,
		Tone:      DefaultTone,
		Formality: DefaultFormality,
	}
}

// Stats counts a user's interactions. Used both as the stored counters and
// as the delta argument to RecordInteractionStat.
type Stats struct {
	Sessions int `json:"sessions"`
	Turns    int `json:"turns"`
}

// Profile is the durable per-user record. Preferences are keyed by
// preference key; the map is owned exclusively by the profile store and
// handed out by value.
type Profile struct {
	UserID      string                `json:"user_id"`
	Preferences map[string]Preference `json:"preferences"`
	Style       CommunicationStyle    `json:"style"`
	Stats       Stats                 `json:"stats"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// Clone returns a deep copy. Stores return clones so callers never hold a
// mutable reference into the store's state.
func (p *Profile) Clone() *Profile {
	cp := *p
	cp.Preferences = make(map[string]Preference, len(p.Preferences))
	for k, pref := range p.Preferences {
		cp.Preferences[k] = pref
	}
	return &cp
}

// Store is the contract for profile persistence backends.
type Store interface {
	// GetProfile returns the user's profile, creating a default one
	// (no preferences, neutral style) if absent. Never returns a
	// not-found error.
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	// UpsertPreference merges a preference into the profile per the
	// package merge rule. Returns ValidationError if the confidence is
	// outside [0,1] or the key is empty. The read-modify-write is atomic
	// per user.
	UpsertPreference(ctx context.Context, userID string, pref Preference) error

	// ListPreferences returns preferences ordered by confidence descending,
	// then recency descending. A non-positive limit means no limit.
	ListPreferences(ctx context.Context, userID string, limit int) ([]Preference, error)

	// UpdateStyle replaces the communication style descriptor.
	UpdateStyle(ctx context.Context, userID string, style CommunicationStyle) error

	// RecordInteractionStat atomically adds the delta to the user's
	// counters. Safe under concurrent callers for the same user.
	RecordInteractionStat(ctx context.Context, userID string, delta Stats) error

	// List returns all profiles. Reporting surface, not a hot path.
	List(ctx context.Context) ([]*Profile, error)

	// Close releases backend resources.
	Close() error
}
