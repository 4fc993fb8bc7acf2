package profile

import "sort"

// SortPreferences orders preferences by confidence descending, breaking ties
// by most recent reinforcement. Backends share this so ListPreferences is
// consistent regardless of storage technology.
func SortPreferences(prefs []Preference) {
	sort.SliceStable(prefs, func(i, j int) bool {
		if prefs[i].Confidence != prefs[j].Confidence {
			return prefs[i].Confidence > prefs[j].Confidence
		}
		return prefs[i].LastReinforced.After(prefs[j].LastReinforced)
	})
}
