// Package compress merges clusters of old, similar records into single
// summary records, reclaiming capacity while keeping their gist.
package compress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mnemod/mnemod/internal/keywords"
	"github.com/mnemod/mnemod/internal/metrics"
	"github.com/mnemod/mnemod/internal/store"
	"github.com/mnemod/mnemod/pkg/record"
)

const (
	// DefaultMinAge is how old a record must be before it is eligible
	// for compression.
	DefaultMinAge = 7 * 24 * time.Hour

	// DefaultSimilarity is the keyword Jaccard threshold for joining a
	// cluster.
	DefaultSimilarity = 0.5

	// DefaultMinCluster is the smallest cluster worth summarizing.
	DefaultMinCluster = 3

	defaultCandidateLimit = 500
)

// Config tunes the engine.
type Config struct {
	MinAge         time.Duration
	Similarity     float64
	MinCluster     int
	CandidateLimit int

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Now overrides time.Now for testing.
	Now func() time.Time
}

// Engine is the compression pass.
type Engine struct {
	store   *store.Store
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Result summarizes one compression pass.
type Result struct {
	Candidates int
	Clusters   int
	Merged     int
	SummaryIDs []string
}

// New creates an Engine over s.
func New(s *store.Store, cfg Config) *Engine {
	if cfg.MinAge <= 0 {
		cfg.MinAge = DefaultMinAge
	}
	if cfg.Similarity <= 0 {
		cfg.Similarity = DefaultSimilarity
	}
	if cfg.MinCluster <= 0 {
		cfg.MinCluster = DefaultMinCluster
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = defaultCandidateLimit
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
		logger:  cfg.Logger.With("component", "compress"),
		metrics: cfg.Metrics,
		now:     cfg.Now,
	}
}

// Run executes one compression pass under the store maintenance lock.
// Members of a cluster are only deleted after their summary was stored, so
// an interrupted pass never loses content.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var res Result
	err := e.store.Maintenance("compression", func() error {
		var err error
		res, err = e.run(ctx)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("compression pass: %w", err)
	}

	e.metrics.IncMaintenance("compression")
	e.logger.Info("compression pass complete",
		"candidates", res.Candidates, "clusters", res.Clusters, "merged", res.Merged)
	return res, nil
}

func (e *Engine) run(ctx context.Context) (Result, error) {
	var res Result

	cutoff := e.now().Add(-e.cfg.MinAge)
	candidates, err := e.store.List(ctx, store.Query{
		CreatedBefore: cutoff,
		Limit:         e.cfg.CandidateLimit,
		Sensitivity:   store.SensitivityContext{AllowPrivate: true, AllowSecret: true},
	})
	if err != nil {
		return res, err
	}
	res.Candidates = len(candidates)
	if len(candidates) < e.cfg.MinCluster {
		return res, nil
	}

	for _, cluster := range Cluster(candidates, e.cfg.Similarity, e.cfg.MinCluster) {
		category := cluster[0].Category
		summary := store.ComposeSummary(category, cluster)

		ids := make([]string, len(cluster))
		for i, m := range cluster {
			ids[i] = m.ID
		}
		summaryID, err := e.store.ReplaceWithSummary(ctx, summary, ids)
		if err != nil {
			return res, err
		}

		res.Clusters++
		res.Merged += len(cluster)
		res.SummaryIDs = append(res.SummaryIDs, summaryID)
	}

	return res, nil
}

// Cluster groups records by keyword similarity to a cluster seed. Records
// are consumed greedily in order: the first unassigned record seeds a
// cluster and collects every later unassigned record whose content keyword
// set is at least threshold-similar to the seed's and shares its category.
// Clusters smaller than minSize are discarded.
func Cluster(records []record.Memory, threshold float64, minSize int) [][]record.Memory {
	sets := make([]keywords.Set, len(records))
	for i, m := range records {
		sets[i] = keywords.Extract(m.Content+" "+m.Title, 0)
	}

	assigned := make([]bool, len(records))
	var clusters [][]record.Memory

	for i := range records {
		if assigned[i] {
			continue
		}
		cluster := []record.Memory{records[i]}
		assigned[i] = true

		for j := i + 1; j < len(records); j++ {
			if assigned[j] || records[j].Category != records[i].Category {
				continue
			}
			if keywords.Jaccard(sets[i], sets[j]) >= threshold {
				cluster = append(cluster, records[j])
				assigned[j] = true
			}
		}

		if len(cluster) >= minSize {
			clusters = append(clusters, cluster)
		}
	}
	return clusters
}
