// Package metrics defines the prometheus instrumentation for the memory
// subsystem. A nil *Metrics is valid and records nothing, so components
// can be wired without observability in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors shared across components.
type Metrics struct {
	Captures       *prometheus.CounterVec
	Discards       prometheus.Counter
	Boundaries     prometheus.Counter
	Searches       prometheus.Counter
	Evictions      prometheus.Counter
	Purged         prometheus.Counter
	Redactions     prometheus.Counter
	Maintenance    *prometheus.CounterVec
	SearchDuration prometheus.Histogram
}

// New creates the collector set and registers it on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mnemod",
			Name:      "captures_total",
			Help:      "Observations stored by the capture pipeline, by record type.",
		}, []string{"type"}),
		Discards: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mnemod",
			Name:      "capture_discards_total",
			Help:      "Observations discarded below the memorability gate.",
		}),
		Boundaries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mnemod",
			Name:      "boundaries_total",
			Help:      "Context-shift boundaries detected.",
		}),
		Searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mnemod",
			Name:      "searches_total",
			Help:      "Scored search queries executed.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mnemod",
			Name:      "evictions_total",
			Help:      "Records evicted by the capacity cap.",
		}),
		Purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mnemod",
			Name:      "ttl_purged_total",
			Help:      "Records removed by TTL purge.",
		}),
		Redactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mnemod",
			Name:      "governor_redactions_total",
			Help:      "Directive-like fragments redacted at injection time.",
		}),
		Maintenance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mnemod",
			Name:      "maintenance_runs_total",
			Help:      "Consolidation and compression passes, by engine.",
		}, []string{"engine"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mnemod",
			Name:      "search_duration_seconds",
			Help:      "Latency of scored search queries.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.Captures, m.Discards, m.Boundaries, m.Searches, m.Evictions,
		m.Purged, m.Redactions, m.Maintenance, m.SearchDuration,
	)
	return m
}

// IncCapture records a stored capture. Safe on a nil receiver.
func (m *Metrics) IncCapture(recordType string) {
	if m != nil {
		m.Captures.WithLabelValues(recordType).Inc()
	}
}

// IncDiscard records a memorability-gate discard.
func (m *Metrics) IncDiscard() {
	if m != nil {
		m.Discards.Inc()
	}
}

// IncBoundary records a detected boundary.
func (m *Metrics) IncBoundary() {
	if m != nil {
		m.Boundaries.Inc()
	}
}

// IncSearch records one scored search.
func (m *Metrics) IncSearch() {
	if m != nil {
		m.Searches.Inc()
	}
}

// AddEvictions records n capacity evictions.
func (m *Metrics) AddEvictions(n int) {
	if m != nil && n > 0 {
		m.Evictions.Add(float64(n))
	}
}

// AddPurged records n TTL purges.
func (m *Metrics) AddPurged(n int) {
	if m != nil && n > 0 {
		m.Purged.Add(float64(n))
	}
}

// AddRedactions records n governor redactions.
func (m *Metrics) AddRedactions(n int) {
	if m != nil && n > 0 {
		m.Redactions.Add(float64(n))
	}
}

// IncMaintenance records one consolidation or compression pass.
func (m *Metrics) IncMaintenance(engine string) {
	if m != nil {
		m.Maintenance.WithLabelValues(engine).Inc()
	}
}

// ObserveSearch records the duration of one search in seconds.
func (m *Metrics) ObserveSearch(seconds float64) {
	if m != nil {
		m.SearchDuration.Observe(seconds)
	}
}
