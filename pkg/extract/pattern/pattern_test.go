package pattern

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/extract"
	"github.com/papercomputeco/recall/pkg/profile"
)

var _ = Describe("Extractor", func() {
	var x *Extractor

	BeforeEach(func() {
		x = NewExtractor()
	})

	It("returns nothing for empty text", func() {
		Expect(x.Extract("", extract.InteractionUser)).To(BeEmpty())
		Expect(x.Extract("   ", extract.InteractionUser)).To(BeEmpty())
	})

	It("ignores text not authored by the user", func() {
		Expect(x.Extract("I prefer metric units", "assistant")).To(BeEmpty())
		Expect(x.Extract("I prefer metric units", "system")).To(BeEmpty())
	})

	Describe("names", func() {
		It("captures an introduction with high confidence", func() {
			candidates := x.Extract("Hello, my name is Marisol.", extract.InteractionUser)
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Key).To(Equal("name"))
			Expect(candidates[0].Value.Str).To(Equal("Marisol"))
			Expect(candidates[0].Confidence).To(Equal(0.95))
			Expect(candidates[0].Source).To(Equal(profile.SourceExplicit))
			Expect(candidates[0].Category).To(Equal(CategoryPersonal))
		})

		It("captures a nickname request", func() {
			candidates := x.Extract("You can call me Ed", extract.InteractionUser)
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Key).To(Equal("name"))
			Expect(candidates[0].Value.Str).To(Equal("Ed"))
			Expect(candidates[0].Confidence).To(Equal(0.9))
		})

		It("prefers the stronger marker when both appear", func() {
			candidates := x.Extract("My name is Edward but call me Ed", extract.InteractionUser)
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Value.Str).To(Equal("Edward"))
			Expect(candidates[0].Confidence).To(Equal(0.95))
		})
	})

	Describe("preference phrases", func() {
		DescribeTable("assigns the marker's confidence and source",
			func(text string, confidence float64, source profile.SourceType) {
				candidates := x.Extract(text, extract.InteractionUser)
				Expect(candidates).To(HaveLen(1))
				Expect(candidates[0].Confidence).To(Equal(confidence))
				Expect(candidates[0].Source).To(Equal(source))
			},
			Entry("i prefer", "I prefer metric units", 0.9, profile.SourceExplicit),
			Entry("i hate", "I hate pop-up reminders", 0.9, profile.SourceExplicit),
			Entry("i always", "I always start early", 0.85, profile.SourceExplicit),
			Entry("i don't like", "I don't like long intros", 0.85, profile.SourceExplicit),
			Entry("i like", "I like concise answers", 0.8, profile.SourceExplicit),
			Entry("i usually", "I usually skim first", 0.75, profile.SourceImplicit),
			Entry("i want", "I want fewer alerts", 0.7, profile.SourceImplicit),
			Entry("i need", "I need reminders daily", 0.7, profile.SourceImplicit),
		)

		It("stores the sentence as the value under a category key", func() {
			candidates := x.Extract("I prefer metric units", extract.InteractionUser)
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Key).To(Equal("preference_general"))
			Expect(candidates[0].Value.Str).To(Equal("I prefer metric units"))
			Expect(candidates[0].Source).To(Equal(profile.SourceExplicit))
		})

		It("emits one candidate per sentence", func() {
			text := "I prefer you explain things briefly. I hate this layout!"
			candidates := x.Extract(text, extract.InteractionUser)
			Expect(candidates).To(HaveLen(2))
			Expect(candidates[0].Key).NotTo(Equal(candidates[1].Key))
		})

		It("keeps the highest-confidence candidate when keys collide", func() {
			text := "I like metric units. I prefer metric units."
			candidates := x.Extract(text, extract.InteractionUser)
			Expect(candidates).To(HaveLen(1))
			Expect(candidates[0].Confidence).To(Equal(0.9))
		})

		It("ignores sentences without a marker", func() {
			candidates := x.Extract("The weather is nice today", extract.InteractionUser)
			Expect(candidates).To(BeEmpty())
		})
	})

	Describe("categories", func() {
		DescribeTable("buckets by content keywords",
			func(text, category string) {
				candidates := x.Extract(text, extract.InteractionUser)
				Expect(candidates).To(HaveLen(1))
				Expect(candidates[0].Category).To(Equal(category))
				Expect(candidates[0].Key).To(Equal("preference_" + category))
			},
			Entry("communication", "I prefer you explain things briefly", CategoryCommunication),
			Entry("interface", "I like a compact layout", CategoryInterface),
			Entry("task", "I always review my workflow on mondays", CategoryTask),
			Entry("general", "I prefer metric units", CategoryGeneral),
		)
	})
})
