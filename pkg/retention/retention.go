// Package retention governs how long semantic fragments stay indexed.
//
// A fragment's base importance never decays in storage; sweeps compute an
// effective importance on read from the base score, access count, and time
// since last access. That keeps sweeps idempotent: re-running a sweep over
// the same state examines the same values and prunes nothing new.
package retention

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/semantic"
)

// Policy describes the decay curve and prune conditions.
type Policy struct {
	// HalfLife is the idle time after which effective importance halves.
	HalfLife time.Duration

	// AccessWeight scales the logarithmic bonus earned per recorded access.
	AccessWeight float64

	// PruneThreshold is the effective importance below which a fragment
	// becomes a prune candidate.
	PruneThreshold float64

	// Staleness is the minimum idle time before any fragment may be
	// pruned, regardless of score.
	Staleness time.Duration
}

// DefaultPolicy returns the policy used when configuration leaves retention
// unset.
func DefaultPolicy() Policy {
	return Policy{
		HalfLife:       30 * 24 * time.Hour,
		AccessWeight:   0.1,
		PruneThreshold: 0.2,
		Staleness:      90 * 24 * time.Hour,
	}
}

// Effective computes the decayed importance of a fragment: exponential decay
// in idle time, offset by a logarithmic access bonus, clamped to [0,1].
func (p Policy) Effective(base float64, accessCount int, sinceAccess time.Duration) float64 {
	if sinceAccess < 0 {
		sinceAccess = 0
	}
	if accessCount < 0 {
		accessCount = 0
	}

	decay := 1.0
	if p.HalfLife > 0 {
		decay = math.Pow(0.5, float64(sinceAccess)/float64(p.HalfLife))
	}

	bonus := 1.0 + p.AccessWeight*math.Log1p(float64(accessCount))

	return math.Max(0, math.Min(1, base*decay*bonus))
}

// ShouldPrune reports whether the fragment is both weak and stale. Both
// conditions must hold; a low score alone never prunes a fresh fragment.
func (p Policy) ShouldPrune(frag semantic.Fragment, now time.Time) bool {
	sinceAccess := now.Sub(frag.LastAccess)
	if sinceAccess <= p.Staleness {
		return false
	}

	return p.Effective(frag.Importance, frag.AccessCount, sinceAccess) < p.PruneThreshold
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Examined int           `json:"examined"`
	Pruned   int           `json:"pruned"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
}

// Manager runs retention sweeps over a fragment index, on demand or on a
// cron schedule.
type Manager struct {
	index     semantic.Index
	policy    Policy
	publisher eventstream.Publisher
	logger    *zap.Logger

	// sweepMu serializes sweeps so a slow manual sweep and a scheduled one
	// never interleave deletions.
	sweepMu sync.Mutex

	cron *cron.Cron
}

// NewManager creates a retention manager. A nil publisher disables events.
func NewManager(index semantic.Index, policy Policy, publisher eventstream.Publisher, logger *zap.Logger) *Manager {
	return &Manager{
		index:     index,
		policy:    policy,
		publisher: publisher,
		logger:    logger,
	}
}

// Sweep examines every fragment and prunes those that are both below the
// effective-importance threshold and past the staleness window.
func (m *Manager) Sweep(ctx context.Context) (SweepReport, error) {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	start := time.Now().UTC()
	report := SweepReport{Start: start}

	frags, err := m.index.List(ctx)
	if err != nil {
		return report, fmt.Errorf("listing fragments: %w", err)
	}
	report.Examined = len(frags)

	for _, frag := range frags {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if !m.policy.ShouldPrune(frag, start) {
			continue
		}

		if err := m.index.Delete(ctx, frag.ID); err != nil {
			return report, fmt.Errorf("pruning fragment %s: %w", frag.ID, err)
		}
		report.Pruned++

		m.logger.Debug("pruned fragment",
			zap.String("fragment_id", frag.ID),
			zap.String("user_id", frag.UserID),
			zap.Float64("importance", frag.Importance),
			zap.Time("last_access", frag.LastAccess),
		)
	}

	report.Duration = time.Since(start)

	m.logger.Info("retention sweep completed",
		zap.Int("examined", report.Examined),
		zap.Int("pruned", report.Pruned),
		zap.Duration("duration", report.Duration),
	)

	m.publishReport(ctx, report)

	return report, nil
}

// publishReport emits the sweep event. Best-effort: a publish failure never
// fails the sweep that already ran.
func (m *Manager) publishReport(ctx context.Context, report SweepReport) {
	if m.publisher == nil {
		return
	}

	err := m.publisher.PublishSweepCompleted(ctx, &eventstream.SweepCompletedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeSweepCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Examined:      report.Examined,
		Pruned:        report.Pruned,
		SweepStart:    report.Start,
		Duration:      report.Duration,
	})
	if err != nil {
		m.logger.Warn("failed to publish sweep event", zap.Error(err))
	}
}

// Start schedules sweeps with a cron expression. Call Stop to cancel.
func (m *Manager) Start(schedule string) error {
	if m.cron != nil {
		return fmt.Errorf("retention schedule already started")
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := m.Sweep(context.Background()); err != nil {
			m.logger.Error("scheduled sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	c.Start()
	m.cron = c

	m.logger.Info("retention schedule started", zap.String("schedule", schedule))

	return nil
}

// Stop cancels the sweep schedule and waits for a running scheduled sweep.
func (m *Manager) Stop() {
	if m.cron == nil {
		return
	}

	ctx := m.cron.Stop()
	<-ctx.Done()
	m.cron = nil
}
