// Package boundary detects context shifts in the stream of tool activity.
// A sliding window of recent keyword sets is compared against each new
// event by Jaccard similarity; a drop below the threshold marks a boundary,
// which is recorded as a fact triple. Window state is session-scoped and
// discarded at session end.
package boundary

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mnemod/mnemod/internal/keywords"
	"github.com/mnemod/mnemod/internal/metrics"
	"github.com/mnemod/mnemod/pkg/record"
)

// Provenance is stamped on facts written by the detector.
const Provenance = "boundary-detector"

// PredicateBoundary is the predicate of boundary facts.
const PredicateBoundary = "boundary-detected"

const (
	defaultThreshold = 0.20
	defaultWindow    = 5
)

// FactWriter is the subset of the store the detector needs.
type FactWriter interface {
	PutFact(ctx context.Context, f record.Fact) (string, error)
}

// Config holds detector tuning.
type Config struct {
	// Threshold is the Jaccard similarity under which a boundary fires.
	// Defaults to 0.20.
	Threshold float64

	// Window is how many recent activities form the comparison set.
	// Defaults to 5.
	Window int

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Now overrides time.Now for testing.
	Now func() time.Time
}

// Detector observes per-session activity and emits boundary facts.
// Safe for concurrent use across sessions.
type Detector struct {
	threshold float64
	window    int
	facts     FactWriter
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string][]keywords.Set
}

// New creates a Detector writing boundary facts through facts.
func New(facts FactWriter, cfg Config) *Detector {
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaultThreshold
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Detector{
		threshold: cfg.Threshold,
		window:    cfg.Window,
		facts:     facts,
		logger:    cfg.Logger.With("component", "boundary"),
		metrics:   cfg.Metrics,
		now:       cfg.Now,
		sessions:  make(map[string][]keywords.Set),
	}
}

// Observe ingests one activity event and reports whether it crosses a
// context boundary. On a boundary it records a fact triple; fact write
// failures are logged, never propagated; detection must not disturb the
// host session.
func (d *Detector) Observe(ctx context.Context, act record.ToolActivity) bool {
	kw := keywords.Extract(act.Tool+" "+act.Description, 0)

	d.mu.Lock()
	window := d.sessions[act.SessionID]
	similarity := 1.0
	if len(window) > 0 {
		similarity = keywords.Jaccard(kw, keywords.Union(window...))
	}
	crossed := len(window) > 0 && similarity < d.threshold

	window = append(window, kw)
	if len(window) > d.window {
		window = window[len(window)-d.window:]
	}
	d.sessions[act.SessionID] = window
	d.mu.Unlock()

	if !crossed {
		return false
	}

	d.metrics.IncBoundary()
	d.logger.Debug("context boundary detected",
		"session", act.SessionID,
		"similarity", similarity,
	)

	ts := act.Timestamp
	if ts.IsZero() {
		ts = d.now()
	}
	fact := record.Fact{
		Subject:    act.SessionID,
		Predicate:  PredicateBoundary,
		Object:     fmt.Sprintf("%s: %s", ts.UTC().Format(time.RFC3339), firstWords(act.Description, 8)),
		Provenance: Provenance,
	}
	if _, err := d.facts.PutFact(ctx, fact); err != nil {
		d.logger.Warn("boundary fact write failed", "error", err)
	}

	return true
}

// EndSession discards the window state for a session.
func (d *Detector) EndSession(sessionID string) {
	d.mu.Lock()
	delete(d.sessions, sessionID)
	d.mu.Unlock()
}

// firstWords truncates s to its first n space-separated words.
func firstWords(s string, n int) string {
	count := 0
	for i, r := range s {
		if r == ' ' {
			count++
			if count >= n {
				return s[:i]
			}
		}
	}
	return s
}
