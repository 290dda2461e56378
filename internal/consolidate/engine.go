// Package consolidate reinforces or decays record importance based on
// access patterns, and removes records that have become both unimportant
// and unvisited.
package consolidate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/mnemod/mnemod/internal/metrics"
	"github.com/mnemod/mnemod/internal/store"
	"github.com/mnemod/mnemod/pkg/record"
)

const (
	// DefaultBoostFactor scales the access-driven reinforcement term.
	DefaultBoostFactor = 0.03

	// DefaultDecayPerDay is the daily importance decay for unaccessed
	// records. Decisions and discoveries decay at half this rate.
	DefaultDecayPerDay = 0.02

	// DefaultImportanceFloor is the deletion threshold.
	DefaultImportanceFloor = 0.05

	// DefaultStaleAfter is how long a record must be unaccessed before
	// the floor triggers deletion.
	DefaultStaleAfter = 90 * 24 * time.Hour

	defaultBatchSize = 200
)

// Config tunes the engine.
type Config struct {
	BoostFactor     float64
	DecayPerDay     float64
	ImportanceFloor float64
	StaleAfter      time.Duration
	BatchSize       int

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Now overrides time.Now for testing.
	Now func() time.Time
}

// Engine is the consolidation pass. A single Run walks the whole store in
// id-ordered batches.
type Engine struct {
	store   *store.Store
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Result summarizes one consolidation pass.
type Result struct {
	Scanned int
	Boosted int
	Decayed int
	Deleted int
}

// New creates an Engine over s.
func New(s *store.Store, cfg Config) *Engine {
	if cfg.BoostFactor <= 0 {
		cfg.BoostFactor = DefaultBoostFactor
	}
	if cfg.DecayPerDay <= 0 {
		cfg.DecayPerDay = DefaultDecayPerDay
	}
	if cfg.ImportanceFloor <= 0 {
		cfg.ImportanceFloor = DefaultImportanceFloor
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		store:   s,
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "consolidate"),
		metrics: cfg.Metrics,
		now:     cfg.Now,
	}
}

// Run executes one consolidation pass. It holds the store maintenance lock
// for the duration, so it never overlaps a compression pass.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var res Result
	err := e.store.Maintenance("consolidation", func() error {
		var err error
		res, err = e.run(ctx)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("consolidation pass: %w", err)
	}

	e.metrics.IncMaintenance("consolidation")
	e.logger.Info("consolidation pass complete",
		"scanned", res.Scanned, "boosted", res.Boosted,
		"decayed", res.Decayed, "deleted", res.Deleted)
	return res, nil
}

func (e *Engine) run(ctx context.Context) (Result, error) {
	var (
		res     Result
		afterID string
	)
	now := e.now()

	for {
		batch, err := e.store.MaintBatch(ctx, afterID, e.cfg.BatchSize)
		if err != nil {
			return res, err
		}
		if len(batch) == 0 {
			return res, nil
		}
		afterID = batch[len(batch)-1].ID

		for _, mr := range batch {
			res.Scanned++
			if err := e.consolidate(ctx, now, mr, &res); err != nil {
				return res, err
			}
		}
	}
}

// consolidate adjusts one record. The boost term counts accesses since the
// previous pass, not the lifetime total, so a record's importance converges
// once it stops being read instead of being re-boosted every pass for
// accesses already rewarded.
func (e *Engine) consolidate(ctx context.Context, now time.Time, mr store.MaintRecord, res *Result) error {
	since := mr.ConsolidatedAt
	if since.IsZero() {
		since = mr.CreatedAt
	}

	accesses := mr.AccessedCount - mr.AccessSnapshot
	importance := mr.Importance

	if accesses > 0 {
		importance += e.cfg.BoostFactor * math.Log1p(float64(accesses))
		if importance > 1 {
			importance = 1
		}
		res.Boosted++
	} else {
		days := now.Sub(since).Hours() / 24
		if days > 0 {
			rate := e.cfg.DecayPerDay
			if mr.Type == record.TypeDecision || mr.Type == record.TypeDiscovery {
				rate /= 2
			}
			importance -= rate * days
			if importance < 0 {
				importance = 0
			}
			res.Decayed++
		}
	}

	if importance < e.cfg.ImportanceFloor && e.stale(now, mr) {
		res.Deleted++
		return e.store.DeleteStale(ctx, mr.ID, "consolidated away: stale and unimportant")
	}

	return e.store.ApplyConsolidation(ctx, mr.ID, importance, mr.AccessedCount, now)
}

// stale reports whether the record has gone unaccessed past the stale
// window. Never-accessed records measure from creation.
func (e *Engine) stale(now time.Time, mr store.MaintRecord) bool {
	last := mr.LastAccessedAt
	if last.IsZero() {
		last = mr.CreatedAt
	}
	return now.Sub(last) > e.cfg.StaleAfter
}
