// Package pattern implements a rule-based extractor keyed on explicit
// linguistic markers ("I prefer ...", "call me ..."). No model calls, no
// state; confidence is fixed per marker strength.
package pattern

import (
	"regexp"
	"strings"

	"github.com/papercomputeco/recall/pkg/extract"
	"github.com/papercomputeco/recall/pkg/profile"
)

// Preference categories assigned by content keywords.
const (
	CategoryPersonal      = "personal"
	CategoryCommunication = "communication"
	CategoryInterface     = "interface"
	CategoryTask          = "task"
	CategoryGeneral       = "general"
)

// minValueLen drops captures too short to be meaningful.
const minValueLen = 4

// nameRules capture identity statements. The captured group is the name
// itself, stored under the fixed "name" key.
var nameRules = []struct {
	re         *regexp.Regexp
	confidence float64
}{
	{regexp.MustCompile(`(?i)\bmy name is\s+([A-Za-z][\w'-]*)`), 0.95},
	{regexp.MustCompile(`(?i)\bcall me\s+([A-Za-z][\w'-]*)`), 0.9},
}

// phraseRules mark a sentence as carrying a preference. Ordered so stronger
// or more specific markers match first; one candidate per sentence. Direct
// statements are explicit; habit and desire markers only imply a preference.
var phraseRules = []struct {
	phrase     string
	confidence float64
	source     profile.SourceType
}{
	{"i prefer", 0.9, profile.SourceExplicit},
	{"i hate", 0.9, profile.SourceExplicit},
	{"i always", 0.85, profile.SourceExplicit},
	{"i don't like", 0.85, profile.SourceExplicit},
	{"i dont like", 0.85, profile.SourceExplicit},
	{"i like", 0.8, profile.SourceExplicit},
	{"i usually", 0.75, profile.SourceImplicit},
	{"i want", 0.7, profile.SourceImplicit},
	{"i need", 0.7, profile.SourceImplicit},
}

// Extractor is the rule-based extract.Extractor.
type Extractor struct{}

// NewExtractor creates the rule-based extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract mines preference candidates from user-authored text.
func (x *Extractor) Extract(text, interactionType string) []extract.Candidate {
	if interactionType != extract.InteractionUser {
		return nil
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var candidates []extract.Candidate

	for _, rule := range nameRules {
		m := rule.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		candidates = append(candidates, extract.Candidate{
			Key:        "name",
			Value:      profile.StringValue(m[1]),
			Confidence: rule.confidence,
			Source:     profile.SourceExplicit,
			Category:   CategoryPersonal,
		})
		break
	}

	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		for _, rule := range phraseRules {
			if !strings.Contains(lower, rule.phrase) {
				continue
			}
			if len(sentence) < minValueLen {
				break
			}

			category := determineCategory(lower)
			candidates = append(candidates, extract.Candidate{
				Key:        "preference_" + category,
				Value:      profile.StringValue(sentence),
				Confidence: rule.confidence,
				Source:     rule.source,
				Category:   category,
			})
			break
		}
	}

	return dedupe(candidates)
}

// splitSentences breaks text on terminators and trims the pieces.
func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})

	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// determineCategory buckets a preference sentence by its content keywords.
func determineCategory(lower string) string {
	if containsAny(lower, "say", "tell", "explain", "show", "respond") {
		return CategoryCommunication
	}
	if containsAny(lower, "display", "format", "layout", "style") {
		return CategoryInterface
	}
	if containsAny(lower, "when ", "how ", "what ", "workflow", "process") {
		return CategoryTask
	}
	return CategoryGeneral
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// dedupe keeps the highest-confidence candidate per key.
func dedupe(candidates []extract.Candidate) []extract.Candidate {
	if len(candidates) < 2 {
		return candidates
	}

	best := make(map[string]int)
	var out []extract.Candidate
	for _, c := range candidates {
		if idx, ok := best[c.Key]; ok {
			if c.Confidence > out[idx].Confidence {
				out[idx] = c
			}
			continue
		}
		best[c.Key] = len(out)
		out = append(out, c)
	}
	return out
}

var _ extract.Extractor = (*Extractor)(nil)
