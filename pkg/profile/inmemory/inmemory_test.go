package inmemory

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/profile"
)

var _ = Describe("Store", func() {
	var (
		store *Store
		ctx   context.Context
	)

	BeforeEach(func() {
		store = NewStore()
		ctx = context.Background()
	})

	Describe("GetProfile", func() {
		It("creates a default profile on first sight", func() {
			p, err := store.GetProfile(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.UserID).To(Equal("alice"))
			Expect(p.Preferences).To(BeEmpty())
			Expect(p.Style).To(Equal(profile.NeutralStyle()))
		})

		It("returns a copy, not the live record", func() {
			p1, err := store.GetProfile(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())

			p1.Preferences["units"] = profile.Preference{Key: "units"}

			p2, err := store.GetProfile(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(p2.Preferences).To(BeEmpty())
		})
	})

	Describe("UpsertPreference", func() {
		It("rejects out-of-range confidence", func() {
			err := store.UpsertPreference(ctx, "alice", profile.Preference{
				Key:        "units",
				Value:      profile.StringValue("metric"),
				Confidence: 1.5,
				Source:     profile.SourceExplicit,
			})

			var verr profile.ValidationError
			Expect(err).To(BeAssignableToTypeOf(verr))
		})

		It("keeps at most one record per key", func() {
			for _, v := range []string{"metric", "imperial", "metric"} {
				Expect(store.UpsertPreference(ctx, "alice", profile.Preference{
					Key:        "units",
					Value:      profile.StringValue(v),
					Confidence: 0.8,
					Source:     profile.SourceExplicit,
				})).To(Succeed())
			}

			prefs, err := store.ListPreferences(ctx, "alice", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(prefs).To(HaveLen(1))
		})

		It("merges instead of overwriting blindly", func() {
			Expect(store.UpsertPreference(ctx, "alice", profile.Preference{
				Key:            "response_style",
				Value:          profile.StringValue("concise"),
				Confidence:     0.9,
				Source:         profile.SourceExplicit,
				LastReinforced: time.Now().UTC(),
			})).To(Succeed())

			Expect(store.UpsertPreference(ctx, "alice", profile.Preference{
				Key:            "response_style",
				Value:          profile.StringValue("detailed"),
				Confidence:     0.85,
				Source:         profile.SourceImplicit,
				LastReinforced: time.Now().UTC(),
			})).To(Succeed())

			prefs, err := store.ListPreferences(ctx, "alice", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(prefs).To(HaveLen(1))
			Expect(prefs[0].Value.Str).To(Equal("concise"))
		})

		It("does not lose updates under concurrent upserts for one user", func() {
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := store.UpsertPreference(ctx, "alice", profile.Preference{
						Key:        "language",
						Value:      profile.StringValue("go"),
						Confidence: 0.5,
						Source:     profile.SourceExplicit,
					})
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			prefs, err := store.ListPreferences(ctx, "alice", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(prefs).To(HaveLen(1))
			// Every upsert after the first reinforces the same value.
			Expect(prefs[0].Confidence).To(BeNumerically(">", 0.5))
		})
	})

	Describe("ListPreferences", func() {
		BeforeEach(func() {
			base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
			for i, pref := range []profile.Preference{
				{Key: "a", Value: profile.StringValue("1"), Confidence: 0.4, Source: profile.SourceInferred},
				{Key: "b", Value: profile.StringValue("2"), Confidence: 0.9, Source: profile.SourceExplicit},
				{Key: "c", Value: profile.StringValue("3"), Confidence: 0.7, Source: profile.SourceImplicit},
			} {
				pref.LastReinforced = base.Add(time.Duration(i) * time.Minute)
				Expect(store.UpsertPreference(ctx, "alice", pref)).To(Succeed())
			}
		})

		It("orders by confidence descending", func() {
			prefs, err := store.ListPreferences(ctx, "alice", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(prefs[0].Key).To(Equal("b"))
			Expect(prefs[1].Key).To(Equal("c"))
			Expect(prefs[2].Key).To(Equal("a"))
		})

		It("honors the limit", func() {
			prefs, err := store.ListPreferences(ctx, "alice", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(prefs).To(HaveLen(2))
		})
	})

	Describe("RecordInteractionStat", func() {
		It("accumulates deltas under concurrency", func() {
			var wg sync.WaitGroup
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					Expect(store.RecordInteractionStat(ctx, "alice", profile.Stats{Turns: 1})).To(Succeed())
				}()
			}
			wg.Wait()

			p, err := store.GetProfile(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Stats.Turns).To(Equal(100))
		})
	})

	Describe("UpdateStyle", func() {
		It("replaces the style descriptor", func() {
			style := profile.CommunicationStyle{
				Verbosity: "concise",
				Tone:      "casual",
				Formality: "informal",
			}
			Expect(store.UpdateStyle(ctx, "alice", style)).To(Succeed())

			p, err := store.GetProfile(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Style).To(Equal(style))
		})
	})
})
