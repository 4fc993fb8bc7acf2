// Package fusion assembles context packages from the three memory tiers:
// live session state, the durable user profile, and the semantic fragment
// index. The three fetches run concurrently under per-tier timeouts; the
// session tier is mandatory, the other two degrade to flagged absence.
package fusion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/profile"
	"github.com/papercomputeco/recall/pkg/semantic"
	"github.com/papercomputeco/recall/pkg/session"
)

// Tier names a memory tier in degradation flags.
type Tier string

const (
	TierSession  Tier = "session"
	TierProfile  Tier = "profile"
	TierSemantic Tier = "semantic"
)

// ContextUnavailableError is returned when the mandatory session tier cannot
// be read.
type ContextUnavailableError struct {
	SessionID string
	Err       error
}

func (e ContextUnavailableError) Error() string {
	return fmt.Sprintf("context unavailable for session %s: %v", e.SessionID, e.Err)
}

func (e ContextUnavailableError) Unwrap() error {
	return e.Err
}

// Package is one assembled context bundle. Tier contents keep their tier's
// internal order; nothing is re-ranked across tiers.
type Package struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`

	Entries     []session.Entry            `json:"entries"`
	Style       profile.CommunicationStyle `json:"style"`
	Preferences []profile.Preference       `json:"preferences"`
	Fragments   []semantic.Result          `json:"fragments"`

	// Degraded lists the optional tiers that failed or timed out.
	Degraded []Tier    `json:"degraded,omitempty"`
	BuiltAt  time.Time `json:"built_at"`
}

// Config tunes the fusion engine.
type Config struct {
	// SessionWindow caps how many recent entries the session tier yields.
	SessionWindow int

	// MaxPreferences caps the preferences included in a package.
	MaxPreferences int

	// TopK caps the semantic fragments retrieved per query.
	TopK int

	// TierTimeout bounds each tier fetch individually.
	TierTimeout time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		SessionWindow:  20,
		MaxPreferences: 10,
		TopK:           5,
		TierTimeout:    3 * time.Second,
	}
}

// Engine coordinates the tier fetches.
type Engine struct {
	config   Config
	sessions session.Store
	profiles profile.Store
	index    semantic.Index
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// NewEngine creates a fusion engine over the given tier handles.
func NewEngine(
	c Config,
	sessions session.Store,
	profiles profile.Store,
	index semantic.Index,
	embedder embeddings.Embedder,
	logger *zap.Logger,
) *Engine {
	if c.SessionWindow <= 0 {
		c.SessionWindow = DefaultConfig().SessionWindow
	}
	if c.MaxPreferences <= 0 {
		c.MaxPreferences = DefaultConfig().MaxPreferences
	}
	if c.TopK <= 0 {
		c.TopK = DefaultConfig().TopK
	}
	if c.TierTimeout <= 0 {
		c.TierTimeout = DefaultConfig().TierTimeout
	}

	return &Engine{
		config:   c,
		sessions: sessions,
		profiles: profiles,
		index:    index,
		embedder: embedder,
		logger:   logger,
	}
}

// BuildContext fetches all three tiers concurrently and merges the results.
// Caller cancellation propagates to every in-flight fetch. A session tier
// failure aborts with ContextUnavailableError; profile or semantic failures
// degrade the package instead.
func (e *Engine) BuildContext(ctx context.Context, userID, sessionID, queryText string) (*Package, error) {
	var (
		wg sync.WaitGroup

		entries    []session.Entry
		sessionErr error

		style      profile.CommunicationStyle
		prefs      []profile.Preference
		profileErr error

		fragments   []semantic.Result
		semanticErr error
	)

	wg.Add(3)

	go func() {
		defer wg.Done()
		tierCtx, cancel := context.WithTimeout(ctx, e.config.TierTimeout)
		defer cancel()

		entries, sessionErr = e.sessions.Window(tierCtx, sessionID, e.config.SessionWindow)
	}()

	go func() {
		defer wg.Done()
		tierCtx, cancel := context.WithTimeout(ctx, e.config.TierTimeout)
		defer cancel()

		prof, err := e.profiles.GetProfile(tierCtx, userID)
		if err != nil {
			profileErr = err
			return
		}
		style = prof.Style

		prefs, profileErr = e.profiles.ListPreferences(tierCtx, userID, e.config.MaxPreferences)
	}()

	go func() {
		defer wg.Done()
		tierCtx, cancel := context.WithTimeout(ctx, e.config.TierTimeout)
		defer cancel()

		if queryText == "" {
			return
		}

		embedding, err := e.embedder.Embed(tierCtx, queryText)
		if err != nil {
			semanticErr = err
			return
		}

		fragments, semanticErr = e.index.Search(tierCtx, userID, embedding, e.config.TopK)
	}()

	wg.Wait()

	if sessionErr != nil {
		return nil, ContextUnavailableError{SessionID: sessionID, Err: sessionErr}
	}

	pkg := &Package{
		UserID:      userID,
		SessionID:   sessionID,
		Entries:     entries,
		Style:       style,
		Preferences: prefs,
		Fragments:   fragments,
		BuiltAt:     time.Now().UTC(),
	}

	if profileErr != nil {
		pkg.Degraded = append(pkg.Degraded, TierProfile)
		pkg.Style = profile.NeutralStyle()
		pkg.Preferences = nil
		e.logger.Warn("profile tier degraded",
			zap.String("user_id", userID),
			zap.Error(profileErr),
		)
	}
	if semanticErr != nil {
		pkg.Degraded = append(pkg.Degraded, TierSemantic)
		pkg.Fragments = nil
		e.logger.Warn("semantic tier degraded",
			zap.String("user_id", userID),
			zap.Error(semanticErr),
		)
	}

	e.reinforce(pkg.Fragments)

	e.logger.Debug("context built",
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
		zap.Int("entries", len(pkg.Entries)),
		zap.Int("preferences", len(pkg.Preferences)),
		zap.Int("fragments", len(pkg.Fragments)),
		zap.Int("degraded", len(pkg.Degraded)),
	)

	return pkg, nil
}

// reinforce records an access for each packaged fragment. Best-effort and
// detached from the caller's context: an under-counted access is acceptable,
// a failed package is not.
func (e *Engine) reinforce(fragments []semantic.Result) {
	if len(fragments) == 0 {
		return
	}

	now := time.Now().UTC()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.config.TierTimeout)
		defer cancel()

		for _, result := range fragments {
			if err := e.index.Touch(ctx, result.Fragment.ID, now); err != nil {
				e.logger.Debug("fragment touch failed",
					zap.String("fragment_id", result.Fragment.ID),
					zap.Error(err),
				)
			}
		}
	}()
}
