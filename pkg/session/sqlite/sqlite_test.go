package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/session"
	"github.com/papercomputeco/recall/pkg/session/sqlite"
	"github.com/papercomputeco/recall/pkg/storage"
)

var _ = Describe("Archive", func() {
	var (
		archive *sqlite.Archive
		ctx     context.Context
	)

	newRecord := func(id string, endedAt time.Time) *session.Record {
		return &session.Record{
			SessionID: id,
			UserID:    "alice",
			StartedAt: endedAt.Add(-time.Minute),
			EndedAt:   endedAt,
			Entries: []session.Entry{
				{Role: "user", Text: "hello", Timestamp: endedAt.Add(-time.Minute)},
			},
			Summary: "Session with 1 interactions",
			Topics:  []string{"greeting"},
		}
	}

	BeforeEach(func() {
		var err error
		archive, err = sqlite.NewArchive(sqlite.Config{
			DBPath: filepath.Join(GinkgoT().TempDir(), "sessions.db"),
			Retry:  storage.RetryConfig{Attempts: 1, Backoff: time.Millisecond},
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(archive.Close()).To(Succeed())
	})

	It("requires a database path", func() {
		_, err := sqlite.NewArchive(sqlite.Config{}, zap.NewNop())
		Expect(err).To(HaveOccurred())
	})

	It("round-trips a full record", func() {
		endedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		rec := newRecord("s1", endedAt)
		Expect(archive.Save(ctx, rec)).To(Succeed())

		got, err := archive.Get(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.SessionID).To(Equal("s1"))
		Expect(got.UserID).To(Equal("alice"))
		Expect(got.EndedAt).To(BeTemporally("==", endedAt))
		Expect(got.Entries).To(HaveLen(1))
		Expect(got.Entries[0].Text).To(Equal("hello"))
		Expect(got.Topics).To(Equal([]string{"greeting"}))
	})

	It("replaces a record saved twice", func() {
		endedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		Expect(archive.Save(ctx, newRecord("s1", endedAt))).To(Succeed())

		updated := newRecord("s1", endedAt.Add(time.Minute))
		updated.Summary = "Session with 2 interactions"
		Expect(archive.Save(ctx, updated)).To(Succeed())

		got, err := archive.Get(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Summary).To(Equal("Session with 2 interactions"))

		recs, err := archive.Recent(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(1))
	})

	It("reports missing sessions as NotFoundError", func() {
		_, err := archive.Get(ctx, "nope")

		var nf session.NotFoundError
		Expect(errors.As(err, &nf)).To(BeTrue())
		Expect(nf.SessionID).To(Equal("nope"))
	})

	It("surfaces a missing session without burning the retry budget", func() {
		slow, err := sqlite.NewArchive(sqlite.Config{
			DBPath: filepath.Join(GinkgoT().TempDir(), "sessions.db"),
			Retry:  storage.RetryConfig{Attempts: 3, Backoff: 150 * time.Millisecond},
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		defer slow.Close()

		start := time.Now()
		_, err = slow.Get(ctx, "no-such-session")
		elapsed := time.Since(start)

		// Not found is definitive: no backoff sleeps, no storage wrapper.
		Expect(err).To(BeAssignableToTypeOf(session.NotFoundError{}))
		var serr *storage.Error
		Expect(errors.As(err, &serr)).To(BeFalse())
		Expect(elapsed).To(BeNumerically("<", 100*time.Millisecond))
	})

	It("lists recent records newest first", func() {
		base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			rec := newRecord(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Hour))
			Expect(archive.Save(ctx, rec)).To(Succeed())
		}

		recs, err := archive.Recent(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(3))
		Expect(recs[0].SessionID).To(Equal("s4"))
		Expect(recs[1].SessionID).To(Equal("s3"))
		Expect(recs[2].SessionID).To(Equal("s2"))
	})

	It("survives reopening the database file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "durable.db")

		first, err := sqlite.NewArchive(sqlite.Config{DBPath: path}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Save(ctx, newRecord("s1", time.Now().UTC()))).To(Succeed())
		Expect(first.Close()).To(Succeed())

		second, err := sqlite.NewArchive(sqlite.Config{DBPath: path}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		defer second.Close()

		got, err := second.Get(ctx, "s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.SessionID).To(Equal("s1"))
	})
})
