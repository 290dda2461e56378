// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for mnemod.
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Log           LogConfig           `yaml:"log"`
	Store         StoreConfig         `yaml:"store"`
	Capture       CaptureConfig       `yaml:"capture"`
	Boundary      BoundaryConfig      `yaml:"boundary"`
	Search        SearchConfig        `yaml:"search"`
	Temporal      TemporalConfig      `yaml:"temporal"`
	Injection     InjectionConfig     `yaml:"injection"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	Compression   CompressionConfig   `yaml:"compression"`
	Maintenance   MaintenanceConfig   `yaml:"maintenance"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Audit         AuditConfig         `yaml:"audit"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`

	// Format is "text" or "json". Defaults to text.
	Format string `yaml:"format"`
}

// StoreConfig controls the persistent memory store.
type StoreConfig struct {
	// Path is the SQLite database file. Defaults to
	// ~/.mnemod/memory.db.
	Path string `yaml:"path"`

	// MaxMemories caps the record count; the least-used records are
	// evicted past it. Defaults to 10000.
	MaxMemories int `yaml:"max_memories"`

	// BusyTimeout is the SQLite busy timeout. Defaults to 5s.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// CaptureConfig controls automatic observation capture.
type CaptureConfig struct {
	// Threshold is the memorability gate in (0,1]. Observations scoring
	// below it are discarded. Defaults to 0.30.
	Threshold float64 `yaml:"threshold"`
}

// BoundaryConfig controls context boundary detection.
type BoundaryConfig struct {
	// Threshold is the keyword similarity below which a boundary is
	// declared. Defaults to 0.20.
	Threshold float64 `yaml:"threshold"`

	// Window is the number of recent activities compared against.
	// Defaults to 5.
	Window int `yaml:"window"`
}

// SearchConfig controls retrieval scoring.
type SearchConfig struct {
	// MinScore filters retrieval results below this composite score.
	// Defaults to 0.35.
	MinScore float64 `yaml:"min_score"`

	// HalfLifeDays is the recency half-life. Defaults to 21.
	HalfLifeDays float64 `yaml:"half_life_days"`
}

// TemporalConfig controls scale-balanced retrieval windows.
type TemporalConfig struct {
	// Immediate, Task, and Session are the scale boundaries.
	// Default 5m, 30m, and 2h.
	Immediate time.Duration `yaml:"immediate"`
	Task      time.Duration `yaml:"task"`
	Session   time.Duration `yaml:"session"`
}

// InjectionConfig controls the prompt injection governor.
type InjectionConfig struct {
	// TokenBudget caps the injected block size. Defaults to 2000.
	TokenBudget int `yaml:"token_budget"`

	// MaxRecords caps records per block. Defaults to 5.
	MaxRecords int `yaml:"max_records"`

	// AllowPrivate and AllowSecret widen the sensitivity tiers eligible
	// for injection. Both default to false.
	AllowPrivate bool `yaml:"allow_private"`
	AllowSecret  bool `yaml:"allow_secret"`
}

// ConsolidationConfig controls the importance consolidation engine.
type ConsolidationConfig struct {
	// BoostFactor scales access reinforcement. Defaults to 0.03.
	BoostFactor float64 `yaml:"boost_factor"`

	// DecayPerDay is the daily importance decay. Defaults to 0.02.
	DecayPerDay float64 `yaml:"decay_per_day"`

	// StaleAfter is the unaccessed window before floor deletion.
	// Defaults to 2160h (90 days).
	StaleAfter time.Duration `yaml:"stale_after"`
}

// CompressionConfig controls the record compression engine.
type CompressionConfig struct {
	// MinAge is how old records must be before compression. Defaults
	// to 168h (7 days).
	MinAge time.Duration `yaml:"min_age"`

	// Similarity is the clustering threshold. Defaults to 0.5.
	Similarity float64 `yaml:"similarity"`

	// MinCluster is the smallest cluster summarized. Defaults to 3.
	MinCluster int `yaml:"min_cluster"`
}

// MaintenanceConfig schedules background maintenance.
type MaintenanceConfig struct {
	// PurgeSchedule is a cron expression for TTL purges.
	// Defaults to "0 3 * * *".
	PurgeSchedule string `yaml:"purge_schedule"`

	// ConsolidationSchedule runs the consolidation engine as a safety
	// net outside session ends. Defaults to "30 3 * * *".
	ConsolidationSchedule string `yaml:"consolidation_schedule"`

	// CompressionSchedule runs the compression engine.
	// Defaults to "0 4 * * 0".
	CompressionSchedule string `yaml:"compression_schedule"`
}

// GatewayConfig controls the admin HTTP gateway.
type GatewayConfig struct {
	// Enabled turns the gateway on. Defaults to false.
	Enabled bool `yaml:"enabled"`

	// Listen is the bind address. Defaults to 127.0.0.1:7468.
	Listen string `yaml:"listen"`

	// Token is the bearer token protecting the API routes. Required
	// when the gateway is enabled.
	Token string `yaml:"token"`
}

// AuditConfig controls the append-only audit log.
type AuditConfig struct {
	// Path is the JSONL audit file. Empty disables file auditing.
	Path string `yaml:"path"`
}
