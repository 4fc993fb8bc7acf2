package session

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// topicKeywords maps a topic tag to the keywords that signal it in an
// interaction log.
var topicKeywords = map[string][]string{
	"calendar":      {"schedule", "appointment", "meeting", "event", "calendar"},
	"email":         {"email", "mail", "inbox", "send"},
	"travel":        {"directions", "drive", "location", "address", "map"},
	"entertainment": {"video", "watch", "music", "play"},
	"productivity":  {"reminder", "task", "todo", "organize"},
	"weather":       {"weather", "temperature", "forecast", "rain"},
	"shopping":      {"buy", "purchase", "order", "shopping"},
}

// preferenceIndicators are phrases that mark an entry as carrying durable
// signal about the user.
var preferenceIndicators = []string{
	"i prefer", "i like", "i want", "i need",
	"i always", "i usually", "i don't like", "i hate",
	"my name is", "call me",
}

// importantTopics bump an entry's importance when mentioned.
var importantTopics = []string{
	"schedule", "reminder", "preference", "profile",
	"remember", "forget", "always", "never",
}

// ExtractTopics scans entries for known topic keywords and returns the
// matched topic tags, sorted for determinism.
func ExtractTopics(entries []Entry) []string {
	seen := make(map[string]bool)
	for _, e := range entries {
		text := strings.ToLower(e.Text)
		for topic, keywords := range topicKeywords {
			if seen[topic] {
				continue
			}
			for _, kw := range keywords {
				if strings.Contains(text, kw) {
					seen[topic] = true
					break
				}
			}
		}
	}

	topics := make([]string, 0, len(seen))
	for topic := range seen {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	return topics
}

// Summarize produces a one-line session summary from the log and topics.
func Summarize(entries []Entry, topics []string, tools []string) string {
	var parts []string

	if len(entries) > 0 {
		parts = append(parts, fmt.Sprintf("Session with %d interactions", len(entries)))
	}

	if len(tools) > 0 {
		parts = append(parts, "Used tools: "+strings.Join(tools, ", "))
	}

	if len(topics) > 0 {
		n := min(3, len(topics))
		parts = append(parts, "Discussed: "+strings.Join(topics[:n], ", "))
	}

	if len(parts) == 0 {
		return "Brief session"
	}

	return strings.Join(parts, ". ")
}

// Outcomes derives outcome tags from the log: counts of significant
// interactions plus topic-level outcomes.
func Outcomes(entries []Entry, topics []string) []string {
	var outcomes []string

	significant := 0
	for _, e := range entries {
		if e.Role == "user" && ScoreImportance(e) > 0.7 {
			significant++
		}
	}
	if significant > 0 {
		outcomes = append(outcomes, fmt.Sprintf("Completed %d significant tasks", significant))
	}

	for _, topic := range topics {
		switch topic {
		case "calendar":
			outcomes = append(outcomes, "Calendar management")
		case "email":
			outcomes = append(outcomes, "Email management")
		}
	}

	return outcomes
}

// ScoreImportance assigns an importance score in [0,1] to a single entry.
// Preference statements, tool usage, length, and important topic mentions
// each push the score up from the 0.3 baseline.
func ScoreImportance(e Entry) float64 {
	importance := 0.3
	text := strings.ToLower(e.Text)

	for _, indicator := range preferenceIndicators {
		if strings.Contains(text, indicator) {
			importance += 0.3
			break
		}
	}

	if len(e.Tools) > 0 {
		importance += 0.2
	}

	if len(e.Text) > 50 {
		importance += 0.1
	}

	for _, topic := range importantTopics {
		if strings.Contains(text, topic) {
			importance += 0.1
			break
		}
	}

	return min(1.0, importance)
}

// CollectTools returns the distinct tool names used across the log, in
// first-use order.
func CollectTools(entries []Entry) []string {
	var tools []string
	seen := make(map[string]bool)
	for _, e := range entries {
		for _, tool := range e.Tools {
			if !seen[tool] {
				seen[tool] = true
				tools = append(tools, tool)
			}
		}
	}
	return tools
}

// MonotonicTimestamp returns ts adjusted so it never precedes prev. Appends
// use it to keep the log time-monotonic even when caller clocks skew.
func MonotonicTimestamp(ts, prev time.Time) time.Time {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if ts.Before(prev) {
		return prev
	}
	return ts
}
