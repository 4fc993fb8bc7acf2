// Package extract defines preference extraction from interaction text.
// Extractors are pure: same text in, same candidates out, no IO.
package extract

import (
	"github.com/papercomputeco/recall/pkg/profile"
)

// InteractionUser marks text authored by the user. Extractors only mine
// user-authored text; other interaction types carry no durable signal.
const InteractionUser = "user"

// Candidate is one preference candidate mined from text. Candidates are
// suggestions; the caller decides whether confidence clears its floor
// before writing anything to a profile.
type Candidate struct {
	Key        string
	Value      profile.Value
	Confidence float64
	Source     profile.SourceType
	Category   string
}

// Extractor mines preference candidates from a single interaction.
type Extractor interface {
	// Extract returns the candidates found in text. Empty text, or an
	// interaction type other than InteractionUser, yields an empty slice.
	Extract(text, interactionType string) []Candidate
}
