package system_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/session"
	"github.com/papercomputeco/recall/pkg/system"
)

// inMemoryConfig returns a config that keeps every store in process memory.
func inMemoryConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Storage.Provider = "inmemory"
	cfg.VectorStore.Provider = "inmemory"
	return cfg
}

var _ = Describe("New", func() {
	var logger *zap.Logger

	BeforeEach(func() {
		logger = zap.NewNop()
	})

	It("assembles every component from an in-memory config", func() {
		sys, err := system.New(inMemoryConfig(), logger)
		Expect(err).NotTo(HaveOccurred())
		defer sys.Close()

		Expect(sys.Profiles).NotTo(BeNil())
		Expect(sys.Sessions).NotTo(BeNil())
		Expect(sys.Archive).NotTo(BeNil())
		Expect(sys.Index).NotTo(BeNil())
		Expect(sys.Embedder).NotTo(BeNil())
		Expect(sys.Engine).NotTo(BeNil())
		Expect(sys.Retention).NotTo(BeNil())
		Expect(sys.Capture).NotTo(BeNil())
		Expect(sys.Publisher).NotTo(BeNil())
	})

	It("assembles sqlite-backed stores from the default config", func() {
		dir := GinkgoT().TempDir()
		cfg := config.NewDefaultConfig()
		cfg.Storage.SQLitePath = filepath.Join(dir, "recall.db")

		sys, err := system.New(cfg, logger)
		Expect(err).NotTo(HaveOccurred())
		sys.Close()
	})

	It("rejects unknown providers", func() {
		cfg := inMemoryConfig()
		cfg.Storage.Provider = "etcd"
		_, err := system.New(cfg, logger)
		Expect(err).To(HaveOccurred())

		cfg = inMemoryConfig()
		cfg.VectorStore.Provider = "qdrant"
		_, err = system.New(cfg, logger)
		Expect(err).To(HaveOccurred())

		cfg = inMemoryConfig()
		cfg.Embedding.Provider = "openai"
		_, err = system.New(cfg, logger)
		Expect(err).To(HaveOccurred())

		cfg = inMemoryConfig()
		cfg.EventStream.Provider = "rabbitmq"
		_, err = system.New(cfg, logger)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("CloseSession", func() {
	var (
		sys *system.System
		ctx context.Context
	)

	BeforeEach(func() {
		var err error
		sys, err = system.New(inMemoryConfig(), zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		sys.Close()
	})

	It("finalizes the session and archives the record", func() {
		id, err := sys.Sessions.Open(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(sys.Sessions.Append(ctx, id, session.Entry{Role: "user", Text: "hello"})).To(Succeed())

		rec, err := sys.CloseSession(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.SessionID).To(Equal(id))

		archived, err := sys.Archive.Get(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(archived.SessionID).To(Equal(id))
	})

	It("returns the same record when called again", func() {
		id, err := sys.Sessions.Open(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())

		rec1, err := sys.CloseSession(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		rec2, err := sys.CloseSession(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec2).To(BeIdenticalTo(rec1))
	})

	It("propagates unknown session ids", func() {
		_, err := sys.CloseSession(ctx, "nope")
		var nf session.NotFoundError
		Expect(err).To(BeAssignableToTypeOf(nf))
	})
})

var _ = Describe("StartRetention", func() {
	It("treats an empty schedule as disabled", func() {
		sys, err := system.New(inMemoryConfig(), zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		defer sys.Close()

		Expect(sys.StartRetention("")).To(Succeed())
	})

	It("rejects malformed schedules", func() {
		sys, err := system.New(inMemoryConfig(), zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		defer sys.Close()

		Expect(sys.StartRetention("every tuesday")).To(HaveOccurred())
	})
})
