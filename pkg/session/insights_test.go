package session_test

import (
	"github.com/papercomputeco/recall/pkg/session"

	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ExtractTopics", func() {
	It("returns nil for an empty log", func() {
		Expect(session.ExtractTopics(nil)).To(BeEmpty())
	})

	It("finds topics by keyword, sorted", func() {
		entries := []session.Entry{
			{Role: "user", Text: "What's the weather tomorrow?"},
			{Role: "user", Text: "Schedule a meeting with Dana"},
			{Role: "assistant", Text: "Done. I added the event to your calendar."},
		}

		Expect(session.ExtractTopics(entries)).To(Equal([]string{"calendar", "weather"}))
	})

	It("reports each topic once", func() {
		entries := []session.Entry{
			{Role: "user", Text: "check my email"},
			{Role: "user", Text: "send that email now"},
		}

		Expect(session.ExtractTopics(entries)).To(Equal([]string{"email"}))
	})
})

var _ = Describe("ScoreImportance", func() {
	It("starts from the baseline", func() {
		e := session.Entry{Role: "user", Text: "ok"}
		Expect(session.ScoreImportance(e)).To(BeNumerically("~", 0.3, 1e-9))
	})

	It("rewards preference statements", func() {
		e := session.Entry{Role: "user", Text: "i prefer tea"}
		Expect(session.ScoreImportance(e)).To(BeNumerically("~", 0.6, 1e-9))
	})

	It("rewards tool usage", func() {
		e := session.Entry{Role: "user", Text: "ok", Tools: []string{"calendar"}}
		Expect(session.ScoreImportance(e)).To(BeNumerically("~", 0.5, 1e-9))
	})

	It("rewards length and important topics", func() {
		e := session.Entry{
			Role: "user",
			Text: "please remember that the quarterly report deadline moved to friday",
		}
		// baseline 0.3 + length 0.1 + "remember" 0.1
		Expect(session.ScoreImportance(e)).To(BeNumerically("~", 0.5, 1e-9))
	})

	It("never exceeds 1", func() {
		e := session.Entry{
			Role:  "user",
			Text:  "i always want you to remember my schedule preferences, it really matters to me",
			Tools: []string{"calendar", "reminders"},
		}
		Expect(session.ScoreImportance(e)).To(BeNumerically("<=", 1.0))
	})
})

var _ = Describe("Summarize", func() {
	It("describes an empty session", func() {
		Expect(session.Summarize(nil, nil, nil)).To(Equal("Brief session"))
	})

	It("mentions interactions, tools and topics", func() {
		entries := []session.Entry{
			{Role: "user", Text: "hi"},
			{Role: "assistant", Text: "hello"},
		}
		summary := session.Summarize(entries, []string{"weather"}, []string{"forecast"})
		Expect(summary).To(Equal("Session with 2 interactions. Used tools: forecast. Discussed: weather"))
	})

	It("truncates the topic list at three", func() {
		summary := session.Summarize(nil, []string{"a", "b", "c", "d"}, nil)
		Expect(summary).To(Equal("Discussed: a, b, c"))
	})
})

var _ = Describe("Outcomes", func() {
	It("counts significant user interactions", func() {
		entries := []session.Entry{
			{Role: "user", Text: "i always prefer my schedule emailed every morning without fail", Tools: []string{"email"}},
			{Role: "user", Text: "thanks"},
			{Role: "assistant", Text: "i prefer long walks", Tools: []string{"email"}},
		}

		outcomes := session.Outcomes(entries, nil)
		Expect(outcomes).To(ContainElement("Completed 1 significant tasks"))
	})

	It("adds topic-level outcomes", func() {
		outcomes := session.Outcomes(nil, []string{"calendar", "email", "weather"})
		Expect(outcomes).To(Equal([]string{"Calendar management", "Email management"}))
	})
})

var _ = Describe("CollectTools", func() {
	It("keeps first-use order and deduplicates", func() {
		entries := []session.Entry{
			{Tools: []string{"calendar", "email"}},
			{Tools: []string{"email", "maps"}},
		}

		Expect(session.CollectTools(entries)).To(Equal([]string{"calendar", "email", "maps"}))
	})
})

var _ = Describe("MonotonicTimestamp", func() {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	It("keeps a timestamp that is already in order", func() {
		ts := base.Add(time.Second)
		Expect(session.MonotonicTimestamp(ts, base)).To(Equal(ts))
	})

	It("clamps a timestamp that went backwards", func() {
		ts := base.Add(-time.Second)
		Expect(session.MonotonicTimestamp(ts, base)).To(Equal(base))
	})

	It("fills a zero timestamp with now", func() {
		got := session.MonotonicTimestamp(time.Time{}, base)
		Expect(got.IsZero()).To(BeFalse())
		Expect(got.Before(base)).To(BeFalse())
	})
})
