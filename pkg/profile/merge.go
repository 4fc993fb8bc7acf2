package profile

// reinforceBoost is the confidence bump applied when an upsert restates the
// value a preference already holds.
const reinforceBoost = 0.05

// Merge combines an incoming preference with the live record for the same
// key and returns the record that should be stored. The rule is
// deterministic:
//
//   - same value: the record is reinforced - confidence is the max of the
//     two plus a small boost (capped at 1), and the timestamp advances.
//   - different value, higher incoming confidence: incoming wins.
//   - different value, lower incoming confidence: existing wins untouched.
//   - equal confidence: the most recent record wins.
func Merge(existing, incoming Preference) Preference {
	if existing.Value.Equal(incoming.Value) {
		merged := existing
		if incoming.Confidence > merged.Confidence {
			merged.Confidence = incoming.Confidence
		}
		merged.Confidence = min(1.0, merged.Confidence+reinforceBoost)
		if incoming.LastReinforced.After(merged.LastReinforced) {
			merged.LastReinforced = incoming.LastReinforced
		}
		return merged
	}

	if incoming.Confidence > existing.Confidence {
		return incoming
	}

	if incoming.Confidence == existing.Confidence &&
		!incoming.LastReinforced.Before(existing.LastReinforced) {
		return incoming
	}

	return existing
}

// ValidatePreference checks the invariants every upsert must satisfy.
func ValidatePreference(pref Preference) error {
	if pref.Key == "" {
		return ValidationError{Field: "key", Reason: "must not be empty"}
	}

	if pref.Confidence < 0 || pref.Confidence > 1 {
		return ValidationError{Field: "confidence", Reason: "must be in [0,1]"}
	}

	switch pref.Source {
	case SourceExplicit, SourceImplicit, SourceInferred:
	default:
		return ValidationError{Field: "source", Reason: "unknown source type"}
	}

	return nil
}
