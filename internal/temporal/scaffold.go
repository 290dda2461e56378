// Package temporal classifies records into age-based scales and balances
// retrieval across them, so very recent context does not crowd out
// long-lived project knowledge (or the reverse).
package temporal

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/mnemod/mnemod/internal/store"
)

// Scale is an age bucket. Scales are derived from created_at at query
// time, never stored.
type Scale int

// The four scales, ordered youngest to oldest.
const (
	ScaleImmediate Scale = iota
	ScaleTask
	ScaleSession
	ScaleProject
)

// NumScales is the number of temporal scales.
const NumScales = 4

func (s Scale) String() string {
	switch s {
	case ScaleImmediate:
		return "immediate"
	case ScaleTask:
		return "task"
	case ScaleSession:
		return "session"
	case ScaleProject:
		return "project"
	}
	return "unknown"
}

// Boundaries holds the age cutoffs between scales. A record younger than
// Immediate is immediate, younger than Task is task, younger than Session
// is session, and anything older is project-scale.
type Boundaries struct {
	Immediate time.Duration
	Task      time.Duration
	Session   time.Duration
}

// DefaultBoundaries returns the standard cutoffs: 5m / 30m / 2h.
func DefaultBoundaries() Boundaries {
	return Boundaries{
		Immediate: 5 * time.Minute,
		Task:      30 * time.Minute,
		Session:   2 * time.Hour,
	}
}

// Classify returns the scale of a record created at created, as of now.
func (b Boundaries) Classify(created, now time.Time) Scale {
	age := now.Sub(created)
	switch {
	case age < b.Immediate:
		return ScaleImmediate
	case age < b.Task:
		return ScaleTask
	case age < b.Session:
		return ScaleSession
	default:
		return ScaleProject
	}
}

// Allocation is the per-scale result budget for balanced retrieval,
// indexed by Scale.
type Allocation [NumScales]int

// DefaultAllocation returns the standard 1/2/1/1 split.
func DefaultAllocation() Allocation {
	return Allocation{1, 2, 1, 1}
}

// Total returns the summed budget.
func (a Allocation) Total() int {
	n := 0
	for _, v := range a {
		n += v
	}
	return n
}

// Searcher is the store capability the scaffold consumes.
type Searcher interface {
	Search(ctx context.Context, q store.Query) ([]store.Result, error)
}

// Scaffold performs scale-balanced retrieval over a store.
type Scaffold struct {
	searcher Searcher
	bounds   Boundaries
	alloc    Allocation
	logger   *slog.Logger
	now      func() time.Time
}

// Config tunes a Scaffold. Zero values take defaults.
type Config struct {
	Boundaries Boundaries
	Allocation Allocation
	Logger     *slog.Logger
	Now        func() time.Time
}

// New creates a Scaffold over the given searcher.
func New(searcher Searcher, cfg Config) *Scaffold {
	def := DefaultBoundaries()
	if cfg.Boundaries.Immediate <= 0 {
		cfg.Boundaries.Immediate = def.Immediate
	}
	if cfg.Boundaries.Task <= 0 {
		cfg.Boundaries.Task = def.Task
	}
	if cfg.Boundaries.Session <= 0 {
		cfg.Boundaries.Session = def.Session
	}
	if cfg.Allocation == (Allocation{}) {
		cfg.Allocation = DefaultAllocation()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scaffold{
		searcher: searcher,
		bounds:   cfg.Boundaries,
		alloc:    cfg.Allocation,
		logger:   cfg.Logger.With("component", "temporal"),
		now:      cfg.Now,
	}
}

// BalancedRetrieve runs the query once per scale bucket with that bucket's
// result cap, deduplicates across buckets by id, and returns one list in
// descending composite score order. If every bucket comes back empty, it
// falls back to a single unscaled search with the combined budget.
func (s *Scaffold) BalancedRetrieve(ctx context.Context, q store.Query) ([]store.Result, error) {
	now := s.now()
	cutoffs := []time.Time{
		now.Add(-s.bounds.Immediate),
		now.Add(-s.bounds.Task),
		now.Add(-s.bounds.Session),
		{}, // project scale has no lower bound
	}

	var (
		merged []store.Result
		seen   = make(map[string]struct{})
	)

	lower := now // exclusive upper bound of the first bucket is "now"
	for scale := ScaleImmediate; scale < NumScales; scale++ {
		budget := s.alloc[scale]
		if budget <= 0 {
			lower = cutoffs[scale]
			continue
		}

		bq := q
		bq.Limit = budget
		bq.CreatedBefore = lower
		bq.CreatedAfter = cutoffs[scale]
		if scale == ScaleImmediate {
			// The youngest bucket has no upper cutoff besides now itself;
			// leaving it unset avoids excluding records written this instant.
			bq.CreatedBefore = time.Time{}
		}

		results, err := s.searcher.Search(ctx, bq)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			merged = append(merged, r)
		}

		lower = cutoffs[scale]
	}

	if len(merged) == 0 {
		fq := q
		fq.Limit = s.alloc.Total()
		return s.searcher.Search(ctx, fq)
	}

	slices.SortFunc(merged, func(a, b store.Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return merged, nil
}
