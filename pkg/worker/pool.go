// Package worker provides the asynchronous capture pool that turns closed
// session records into durable memory: preference upserts into the profile
// store and embedded fragments in the semantic index.
//
// The pool decouples capture from the session-close hot path; closing a
// session never waits on embedding calls or index writes.
package worker

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/extract"
	"github.com/papercomputeco/recall/pkg/profile"
	"github.com/papercomputeco/recall/pkg/semantic"
	"github.com/papercomputeco/recall/pkg/session"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Fragment importances assigned at capture. Summaries and facts outrank
// raw preference sentences.
const (
	summaryImportance    = 0.8
	factImportance       = 0.8
	preferenceImportance = 0.7
)

// significantEntry is the importance above which a raw entry is worth
// indexing on its own.
const significantEntry = 0.7

// factIndicators mark sentences that state something durable about the user.
var factIndicators = []string{"i am", "i'm", "my name is", "i work", "i live"}

// Job is a unit of work for the capture pool: one closed session record.
type Job struct {
	Record *session.Record
}

// Config is the configuration options for the capture pool.
type Config struct {
	// Profiles receives extracted preferences and style updates.
	Profiles profile.Store

	// Index is the semantic fragment index capture writes into.
	Index semantic.Index

	// Embedder generates fragment embeddings.
	Embedder embeddings.Embedder

	// Extractor mines preference candidates from user entries.
	Extractor extract.Extractor

	// Publisher emits session-closed events. Optional.
	Publisher eventstream.Publisher

	// ConfidenceFloor is the minimum candidate confidence written to the
	// profile. Candidates below it are discarded.
	ConfidenceFloor float64

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes capture jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new capture pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	if job.Record == nil {
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("capture job queued",
			zap.String("session_id", job.Record.SessionID),
			zap.String("user_id", job.Record.UserID),
		)
		return true
	default:
		p.logger.Error("capture job not queued, queue full, job dropped",
			zap.String("session_id", job.Record.SessionID),
			zap.String("user_id", job.Record.UserID),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the session stores have stopped
// producing records.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("capture worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("capture worker stopped", zap.Uint("worker_id", id))
}

// processJob captures one closed session: preferences, style, fragments,
// then the session-closed event.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()
	rec := job.Record

	upserted := p.capturePreferences(ctx, rec)
	p.captureStyle(ctx, rec)
	indexed := p.captureFragments(ctx, rec)

	p.logger.Info("session captured",
		zap.String("session_id", rec.SessionID),
		zap.String("user_id", rec.UserID),
		zap.Int("preferences_upserted", upserted),
		zap.Int("fragments_indexed", indexed),
	)

	p.publishClosed(ctx, rec, upserted, indexed)
}

// capturePreferences runs the extractor over user entries and upserts every
// candidate that clears the confidence floor.
func (p *Pool) capturePreferences(ctx context.Context, rec *session.Record) int {
	upserted := 0

	for _, entry := range rec.Entries {
		if entry.Role != extract.InteractionUser {
			continue
		}

		for _, candidate := range p.config.Extractor.Extract(entry.Text, entry.Role) {
			if candidate.Confidence < p.config.ConfidenceFloor {
				continue
			}

			err := p.config.Profiles.UpsertPreference(ctx, rec.UserID, profile.Preference{
				Key:            candidate.Key,
				Value:          candidate.Value,
				Confidence:     candidate.Confidence,
				Source:         candidate.Source,
				LastReinforced: entry.Timestamp,
			})
			if err != nil {
				p.logger.Warn("failed to upsert extracted preference",
					zap.String("user_id", rec.UserID),
					zap.String("key", candidate.Key),
					zap.Error(err),
				)
				continue
			}
			upserted++
		}
	}

	return upserted
}

// captureStyle votes over per-entry style observations and updates the
// profile when the session shows a consistent lean.
func (p *Pool) captureStyle(ctx context.Context, rec *session.Record) {
	formality := make(map[string]int)
	verbosity := make(map[string]int)

	observed := 0
	for _, entry := range rec.Entries {
		if entry.Role != extract.InteractionUser {
			continue
		}
		obs := extract.ObserveStyle(entry.Text)
		formality[obs.Formality]++
		verbosity[obs.Verbosity]++
		observed++
	}
	if observed == 0 {
		return
	}

	prof, err := p.config.Profiles.GetProfile(ctx, rec.UserID)
	if err != nil {
		p.logger.Warn("failed to load profile for style update",
			zap.String("user_id", rec.UserID),
			zap.Error(err),
		)
		return
	}

	style := prof.Style
	style.Formality = majority(formality, style.Formality)
	style.Verbosity = majority(verbosity, style.Verbosity)

	if style == prof.Style {
		return
	}

	if err := p.config.Profiles.UpdateStyle(ctx, rec.UserID, style); err != nil {
		p.logger.Warn("failed to update communication style",
			zap.String("user_id", rec.UserID),
			zap.Error(err),
		)
	}
}

// majority returns the label with the most votes, keeping current unless a
// non-balanced label strictly wins.
func majority(votes map[string]int, current string) string {
	best, bestN := current, 0
	for label, n := range votes {
		if label == extract.StyleBalanced {
			continue
		}
		if n > bestN {
			best, bestN = label, n
		}
	}

	if bestN > votes[extract.StyleBalanced] {
		return best
	}
	return current
}

// captureFragments indexes the session summary, stated facts, preference
// sentences, and significant raw entries.
func (p *Pool) captureFragments(ctx context.Context, rec *session.Record) int {
	indexed := 0

	if rec.Summary != "" {
		if p.indexFragment(ctx, semantic.Fragment{
			UserID:     rec.UserID,
			Type:       semantic.TypeExperience,
			Content:    rec.Summary,
			Importance: summaryImportance,
			CreatedAt:  rec.EndedAt,
			Tags:       rec.Topics,
		}) {
			indexed++
		}
	}

	for _, entry := range rec.Entries {
		if entry.Role != extract.InteractionUser {
			continue
		}

		for _, sentence := range splitSentences(entry.Text) {
			lower := strings.ToLower(sentence)
			switch {
			case containsAny(lower, factIndicators):
				if p.indexFragment(ctx, semantic.Fragment{
					UserID:     rec.UserID,
					Type:       semantic.TypeFact,
					Content:    sentence,
					Importance: factImportance,
					CreatedAt:  entry.Timestamp,
				}) {
					indexed++
				}
			case len(p.config.Extractor.Extract(sentence, extract.InteractionUser)) > 0:
				if p.indexFragment(ctx, semantic.Fragment{
					UserID:     rec.UserID,
					Type:       semantic.TypePreference,
					Content:    sentence,
					Importance: preferenceImportance,
					CreatedAt:  entry.Timestamp,
				}) {
					indexed++
				}
			}
		}

		if score := session.ScoreImportance(entry); score > significantEntry {
			if p.indexFragment(ctx, semantic.Fragment{
				UserID:     rec.UserID,
				Type:       semantic.TypeConversation,
				Content:    entry.Text,
				Importance: score,
				CreatedAt:  entry.Timestamp,
				Tags:       entry.Tools,
			}) {
				indexed++
			}
		}
	}

	return indexed
}

// indexFragment embeds and stores one fragment. Errors are logged but not
// returned; a failed fragment never fails the rest of the capture.
func (p *Pool) indexFragment(ctx context.Context, frag semantic.Fragment) bool {
	embedding, err := p.config.Embedder.Embed(ctx, frag.Content)
	if err != nil {
		p.logger.Warn("failed to generate embedding",
			zap.String("user_id", frag.UserID),
			zap.String("type", string(frag.Type)),
			zap.Error(err),
		)
		return false
	}
	frag.Embedding = embedding

	id, err := p.config.Index.Store(ctx, frag)
	if err != nil {
		p.logger.Warn("failed to index fragment",
			zap.String("user_id", frag.UserID),
			zap.String("type", string(frag.Type)),
			zap.Error(err),
		)
		return false
	}

	p.logger.Debug("indexed fragment",
		zap.String("fragment_id", id),
		zap.String("type", string(frag.Type)),
		zap.Int("embedding_dim", len(embedding)),
	)

	return true
}

// publishClosed emits the session-closed event with capture counts.
func (p *Pool) publishClosed(ctx context.Context, rec *session.Record, upserted, indexed int) {
	if p.config.Publisher == nil {
		return
	}

	err := p.config.Publisher.PublishSessionClosed(ctx, &eventstream.SessionClosedEvent{
		SchemaVersion:       eventstream.SchemaVersionV1,
		EventType:           eventstream.EventTypeSessionClosed,
		EventID:             uuid.NewString(),
		EmittedAt:           time.Now().UTC(),
		SessionID:           rec.SessionID,
		UserID:              rec.UserID,
		StartedAt:           rec.StartedAt,
		EndedAt:             rec.EndedAt,
		Summary:             rec.Summary,
		Topics:              rec.Topics,
		Entries:             len(rec.Entries),
		PreferencesUpserted: upserted,
		FragmentsIndexed:    indexed,
	})
	if err != nil {
		p.logger.Warn("failed to publish session-closed event",
			zap.String("session_id", rec.SessionID),
			zap.Error(err),
		)
	}
}

func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})

	sentences := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
