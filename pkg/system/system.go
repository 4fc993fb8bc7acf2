// Package system wires the memory tiers into one explicitly constructed,
// injectable set of handles: stores, index, embedder, fusion engine,
// retention manager, capture pool, and eventstream publisher. Nothing here
// is a process-wide singleton; a System is built once at startup and torn
// down on shutdown.
package system

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/embeddings"
	embeddingsollama "github.com/papercomputeco/recall/pkg/embeddings/ollama"
	"github.com/papercomputeco/recall/pkg/eventstream"
	eventstreamkafka "github.com/papercomputeco/recall/pkg/eventstream/kafka"
	eventstreamnop "github.com/papercomputeco/recall/pkg/eventstream/nop"
	"github.com/papercomputeco/recall/pkg/extract/pattern"
	"github.com/papercomputeco/recall/pkg/fusion"
	"github.com/papercomputeco/recall/pkg/profile"
	profileinmemory "github.com/papercomputeco/recall/pkg/profile/inmemory"
	profilesqlite "github.com/papercomputeco/recall/pkg/profile/sqlite"
	"github.com/papercomputeco/recall/pkg/retention"
	"github.com/papercomputeco/recall/pkg/semantic"
	semanticinmemory "github.com/papercomputeco/recall/pkg/semantic/inmemory"
	semanticsqlitevec "github.com/papercomputeco/recall/pkg/semantic/sqlitevec"
	"github.com/papercomputeco/recall/pkg/session"
	sessionlocal "github.com/papercomputeco/recall/pkg/session/local"
	sessionsqlite "github.com/papercomputeco/recall/pkg/session/sqlite"
	"github.com/papercomputeco/recall/pkg/storage"
	"github.com/papercomputeco/recall/pkg/worker"
)

// System holds every assembled component of the memory engine.
type System struct {
	Profiles  profile.Store
	Sessions  session.Store
	Archive   session.Archive
	Index     semantic.Index
	Embedder  embeddings.Embedder
	Engine    *fusion.Engine
	Retention *retention.Manager
	Capture   *worker.Pool
	Publisher eventstream.Publisher

	logger *zap.Logger
}

// New assembles a System from configuration. Components are constructed
// leaf-first so a failure tears down everything already opened.
func New(cfg *config.Config, logger *zap.Logger) (*System, error) {
	s := &System{logger: logger}

	retryCfg := storage.RetryConfig{
		Attempts: cfg.Storage.RetryAttempts,
		Backoff:  cfg.Storage.RetryBackoff,
	}

	var err error
	switch cfg.Storage.Provider {
	case "sqlite", "":
		s.Profiles, err = profilesqlite.NewStore(profilesqlite.Config{
			DBPath: cfg.Storage.SQLitePath,
			Retry:  retryCfg,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating profile store: %w", err)
		}

		s.Archive, err = sessionsqlite.NewArchive(sessionsqlite.Config{
			DBPath: cfg.Storage.SQLitePath,
			Retry:  retryCfg,
		}, logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating session archive: %w", err)
		}
	case "inmemory":
		s.Profiles = profileinmemory.NewStore()
		s.Archive = sessionlocal.NewArchive()
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}

	vectorPath := cfg.VectorStore.SQLitePath
	if vectorPath == "" {
		vectorPath = cfg.Storage.SQLitePath
	}

	switch cfg.VectorStore.Provider {
	case "sqlitevec", "":
		s.Index, err = semanticsqlitevec.NewIndex(semanticsqlitevec.Config{
			DBPath:     vectorPath,
			Dimensions: cfg.Embedding.Dimensions,
		}, logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating fragment index: %w", err)
		}
	case "inmemory":
		s.Index = semanticinmemory.NewIndex()
	default:
		s.Close()
		return nil, fmt.Errorf("unknown vector store provider %q", cfg.VectorStore.Provider)
	}

	switch cfg.Embedding.Provider {
	case "ollama", "":
		s.Embedder, err = embeddingsollama.NewEmbedder(embeddingsollama.Config{
			BaseURL: cfg.Embedding.Target,
			Model:   cfg.Embedding.Model,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
	default:
		s.Close()
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	switch cfg.EventStream.Provider {
	case "nop", "":
		s.Publisher = eventstreamnop.NewPublisher()
	case "kafka":
		s.Publisher, err = eventstreamkafka.NewPublisher(eventstreamkafka.Config{
			Brokers: cfg.EventStream.Brokers,
			Topic:   cfg.EventStream.Topic,
		}, logger)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating eventstream publisher: %w", err)
		}
	default:
		s.Close()
		return nil, fmt.Errorf("unknown eventstream provider %q", cfg.EventStream.Provider)
	}

	s.Sessions = sessionlocal.NewStore(sessionlocal.Config{
		Archive:             s.Archive,
		Profiles:            s.Profiles,
		SnapshotPreferences: cfg.Capture.SnapshotPreferences,
	}, logger)

	s.Engine = fusion.NewEngine(fusion.Config{
		SessionWindow:  cfg.Fusion.SessionWindow,
		MaxPreferences: cfg.Fusion.MaxPreferences,
		TopK:           cfg.Fusion.TopK,
		TierTimeout:    cfg.Fusion.TierTimeout,
	}, s.Sessions, s.Profiles, s.Index, s.Embedder, logger)

	s.Retention = retention.NewManager(s.Index, retention.Policy{
		HalfLife:       cfg.Retention.HalfLife,
		AccessWeight:   cfg.Retention.AccessWeight,
		PruneThreshold: cfg.Retention.PruneThreshold,
		Staleness:      cfg.Retention.Staleness,
	}, s.Publisher, logger)

	s.Capture, err = worker.NewPool(&worker.Config{
		Profiles:        s.Profiles,
		Index:           s.Index,
		Embedder:        s.Embedder,
		Extractor:       pattern.NewExtractor(),
		Publisher:       s.Publisher,
		ConfidenceFloor: cfg.Capture.ConfidenceFloor,
		NumWorkers:      cfg.Capture.NumWorkers,
		QueueSize:       cfg.Capture.QueueSize,
		Logger:          logger,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating capture pool: %w", err)
	}

	return s, nil
}

// CloseSession finalizes a session and, if this call was the one that
// closed it, hands the record to the capture pool. Subsequent calls return
// the same record without re-capturing.
func (s *System) CloseSession(ctx context.Context, sessionID string) (*session.Record, error) {
	rec, first, err := s.Sessions.End(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if first {
		if !s.Capture.Enqueue(worker.Job{Record: rec}) {
			s.logger.Warn("capture queue full, session not captured",
				zap.String("session_id", sessionID),
			)
		}
	}

	return rec, nil
}

// StartRetention begins scheduled sweeps if the config names a schedule.
func (s *System) StartRetention(schedule string) error {
	if schedule == "" {
		return nil
	}
	return s.Retention.Start(schedule)
}

// Close tears components down in reverse dependency order. Safe to call on
// a partially constructed System.
func (s *System) Close() {
	if s.Retention != nil {
		s.Retention.Stop()
	}
	if s.Capture != nil {
		s.Capture.Close()
	}
	if s.Sessions != nil {
		if err := s.Sessions.Close(); err != nil {
			s.logger.Warn("closing session store", zap.Error(err))
		}
	}
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			s.logger.Warn("closing eventstream publisher", zap.Error(err))
		}
	}
	if s.Embedder != nil {
		if err := s.Embedder.Close(); err != nil {
			s.logger.Warn("closing embedder", zap.Error(err))
		}
	}
	if s.Index != nil {
		if err := s.Index.Close(); err != nil {
			s.logger.Warn("closing fragment index", zap.Error(err))
		}
	}
	if s.Archive != nil {
		if err := s.Archive.Close(); err != nil {
			s.logger.Warn("closing session archive", zap.Error(err))
		}
	}
	if s.Profiles != nil {
		if err := s.Profiles.Close(); err != nil {
			s.logger.Warn("closing profile store", zap.Error(err))
		}
	}
}
