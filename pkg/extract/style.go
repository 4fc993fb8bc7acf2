package extract

import "strings"

// Formality and verbosity labels produced by ObserveStyle.
const (
	FormalityFormal   = "formal"
	FormalityInformal = "informal"
	VerbosityDetailed = "detailed"
	VerbosityConcise  = "concise"
	StyleBalanced     = "balanced"
)

var formalIndicators = []string{"please", "would you", "could you", "kindly"}

var informalIndicators = []string{"hey", "hi", "thanks", "cool"}

// StyleObservation is one interaction's worth of communication-style signal.
type StyleObservation struct {
	Formality string
	Verbosity string
}

// ObserveStyle scores a single user message for formality and verbosity.
// One message is weak evidence; callers accumulate observations before
// changing a profile's style.
func ObserveStyle(text string) StyleObservation {
	lower := strings.ToLower(text)

	formal := 0
	for _, word := range formalIndicators {
		if strings.Contains(lower, word) {
			formal++
		}
	}
	informal := 0
	for _, word := range informalIndicators {
		if strings.Contains(lower, word) {
			informal++
		}
	}

	obs := StyleObservation{Formality: StyleBalanced, Verbosity: StyleBalanced}
	switch {
	case formal > informal:
		obs.Formality = FormalityFormal
	case informal > formal:
		obs.Formality = FormalityInformal
	}

	words := len(strings.Fields(text))
	switch {
	case words > 30:
		obs.Verbosity = VerbosityDetailed
	case words > 0 && words < 10:
		obs.Verbosity = VerbosityConcise
	}

	return obs
}
