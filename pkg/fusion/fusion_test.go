package fusion

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/profile"
	profileinmemory "github.com/papercomputeco/recall/pkg/profile/inmemory"
	"github.com/papercomputeco/recall/pkg/semantic"
	"github.com/papercomputeco/recall/pkg/session"
	sessionlocal "github.com/papercomputeco/recall/pkg/session/local"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
)

// failingProfiles wraps a profile store and fails every read.
type failingProfiles struct {
	profile.Store
}

func (f failingProfiles) GetProfile(context.Context, string) (*profile.Profile, error) {
	return nil, errors.New("profile store down")
}

var _ = Describe("Engine", func() {
	var (
		profiles  *profileinmemory.Store
		sessions  *sessionlocal.Store
		index     *testutils.MockIndex
		embedder  *testutils.MockEmbedder
		engine    *Engine
		ctx       context.Context
		sessionID string
	)

	newEngine := func(p profile.Store) *Engine {
		return NewEngine(Config{
			SessionWindow:  3,
			MaxPreferences: 2,
			TopK:           5,
			TierTimeout:    time.Second,
		}, sessions, p, index, embedder, zap.NewNop())
	}

	BeforeEach(func() {
		ctx = context.Background()
		profiles = profileinmemory.NewStore()
		sessions = sessionlocal.NewStore(sessionlocal.Config{
			Archive:             sessionlocal.NewArchive(),
			Profiles:            profiles,
			SnapshotPreferences: 10,
		}, zap.NewNop())
		index = testutils.NewMockIndex()
		embedder = testutils.NewMockEmbedder()
		engine = newEngine(profiles)

		var err error
		sessionID, err = sessions.Open(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		for i := 0; i < 5; i++ {
			Expect(sessions.Append(ctx, sessionID, session.Entry{
				Role: "user",
				Text: fmt.Sprintf("turn %d", i),
			})).To(Succeed())
		}
	})

	It("assembles all three tiers", func() {
		Expect(profiles.UpsertPreference(ctx, "alice", profile.Preference{
			Key:        "units",
			Value:      profile.StringValue("metric"),
			Confidence: 0.9,
			Source:     profile.SourceExplicit,
		})).To(Succeed())
		index.SearchResults = []semantic.Result{
			{Fragment: semantic.Fragment{ID: "f1", UserID: "alice"}, Score: 0.9},
		}

		pkg, err := engine.BuildContext(ctx, "alice", sessionID, "what units do I use?")
		Expect(err).NotTo(HaveOccurred())

		Expect(pkg.UserID).To(Equal("alice"))
		Expect(pkg.SessionID).To(Equal(sessionID))
		Expect(pkg.Entries).To(HaveLen(3))
		Expect(pkg.Entries[2].Text).To(Equal("turn 4"))
		Expect(pkg.Preferences).To(HaveLen(1))
		Expect(pkg.Fragments).To(HaveLen(1))
		Expect(pkg.Degraded).To(BeEmpty())
		Expect(pkg.BuiltAt.IsZero()).To(BeFalse())
	})

	It("caps preferences at the configured maximum", func() {
		for i := 0; i < 5; i++ {
			Expect(profiles.UpsertPreference(ctx, "alice", profile.Preference{
				Key:        fmt.Sprintf("pref_%d", i),
				Value:      profile.StringValue("v"),
				Confidence: 0.5,
				Source:     profile.SourceExplicit,
			})).To(Succeed())
		}

		pkg, err := engine.BuildContext(ctx, "alice", sessionID, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(pkg.Preferences).To(HaveLen(2))
	})

	It("fails with ContextUnavailableError when the session tier is missing", func() {
		_, err := engine.BuildContext(ctx, "alice", "no-such-session", "query")

		var unavailable ContextUnavailableError
		Expect(errors.As(err, &unavailable)).To(BeTrue())
		Expect(unavailable.SessionID).To(Equal("no-such-session"))

		var nf session.NotFoundError
		Expect(errors.As(err, &nf)).To(BeTrue())
	})

	It("degrades the semantic tier on search failure", func() {
		index.FailSearch = true

		pkg, err := engine.BuildContext(ctx, "alice", sessionID, "query")
		Expect(err).NotTo(HaveOccurred())
		Expect(pkg.Degraded).To(ConsistOf(TierSemantic))
		Expect(pkg.Fragments).To(BeEmpty())
		Expect(pkg.Entries).To(HaveLen(3))
	})

	It("degrades the semantic tier on embedding failure", func() {
		embedder.FailAll = true

		pkg, err := engine.BuildContext(ctx, "alice", sessionID, "query")
		Expect(err).NotTo(HaveOccurred())
		Expect(pkg.Degraded).To(ConsistOf(TierSemantic))
	})

	It("skips the semantic tier without a query", func() {
		pkg, err := engine.BuildContext(ctx, "alice", sessionID, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(pkg.Fragments).To(BeEmpty())
		Expect(pkg.Degraded).To(BeEmpty())
		Expect(embedder.Calls).To(BeEmpty())
	})

	It("degrades the profile tier to a neutral style", func() {
		engine = newEngine(failingProfiles{profiles})

		pkg, err := engine.BuildContext(ctx, "alice", sessionID, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(pkg.Degraded).To(ConsistOf(TierProfile))
		Expect(pkg.Style).To(Equal(profile.NeutralStyle()))
		Expect(pkg.Preferences).To(BeEmpty())
	})

	It("records an access for each packaged fragment", func() {
		index.SearchResults = []semantic.Result{
			{Fragment: semantic.Fragment{ID: "f1", UserID: "alice"}, Score: 0.9},
			{Fragment: semantic.Fragment{ID: "f2", UserID: "alice"}, Score: 0.8},
		}

		_, err := engine.BuildContext(ctx, "alice", sessionID, "query")
		Expect(err).NotTo(HaveOccurred())

		Eventually(index.TouchedIDs).Should(ConsistOf("f1", "f2"))
	})

	It("does not touch fragments from a degraded semantic tier", func() {
		index.FailSearch = true

		_, err := engine.BuildContext(ctx, "alice", sessionID, "query")
		Expect(err).NotTo(HaveOccurred())

		Consistently(index.TouchedIDs, 100*time.Millisecond).Should(BeEmpty())
	})
})
