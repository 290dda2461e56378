// Package store is the single source of truth for memory records, fact
// triples, and the append-only mutation journal. It is backed by
// modernc.org/sqlite (pure Go, no CGO) with an FTS5 full-text index over
// content/title/subtitle, WAL mode, and a single write connection.
//
// All mutating operations are serialized per store instance: capacity
// eviction is check-then-act under the same critical section as the
// triggering insert, and read-increments cannot race deletes. Read-only
// queries go through the same single-connection pool, so a half-written
// record is never observable.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mnemod/mnemod/internal/metrics"
	"github.com/mnemod/mnemod/pkg/record"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeout = 5 * time.Second

// Weights are the composite score weights. They should sum to 1.
type Weights struct {
	Match      float64 `yaml:"match"`
	Recency    float64 `yaml:"recency"`
	Importance float64 `yaml:"importance"`
	Trust      float64 `yaml:"trust"`
}

// DefaultWeights returns the standard composite score weighting.
func DefaultWeights() Weights {
	return Weights{Match: 0.55, Recency: 0.20, Importance: 0.15, Trust: 0.10}
}

// Config holds the store configuration.
type Config struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait on a busy lock. Defaults to 5s.
	BusyTimeout time.Duration

	// MaxMemories caps the record count; 0 means unlimited. Exceeding the
	// cap after an insert triggers eviction.
	MaxMemories int

	// MinScore is the composite score floor for search results. Defaults to 0.35.
	MinScore float64

	// Weights are the composite score weights. Zero value uses DefaultWeights.
	Weights Weights

	// HalfLifeDays is the recency decay half-life. Defaults to 21.
	HalfLifeDays float64

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics may be nil.
	Metrics *metrics.Metrics

	// Now overrides time.Now for testing.
	Now func() time.Time
}

func (c *Config) defaults() {
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	if c.MinScore == 0 {
		c.MinScore = 0.35
	}
	if c.Weights == (Weights{}) {
		c.Weights = DefaultWeights()
	}
	if c.HalfLifeDays == 0 {
		c.HalfLifeDays = 21
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Store is a durable memory store. Safe for concurrent use.
type Store struct {
	db      *sql.DB
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// mu serializes all mutating operations on records and facts.
	mu sync.Mutex

	// maintMu serializes consolidation and compression passes across
	// concurrently ending sessions sharing this store.
	maintMu sync.Mutex

	// idMu guards the monotonic ULID entropy source.
	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy

	// subsMu guards journal subscribers.
	subsMu sync.Mutex
	subs   map[chan record.JournalEntry]struct{}
}

// Open opens or creates the store database at cfg.Path.
func Open(cfg Config) (*Store, error) {
	cfg.defaults()

	if cfg.Path == "" {
		return nil, record.NewValidationError("path", "must not be empty")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Path, err)
	}

	// SQLite handles one writer at a time; limit pool to 1 connection
	// so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	ctx := context.TODO()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds())); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:      db,
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "store"),
		metrics: cfg.Metrics,
		now:     cfg.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
		subs:    make(map[chan record.JournalEntry]struct{}),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return record.NewStorageError("ping", err)
	}
	return nil
}

// Maintenance runs fn under the maintenance lock, guaranteeing that at most
// one consolidation or compression pass mutates the store at a time.
func (s *Store) Maintenance(name string, fn func() error) error {
	s.maintMu.Lock()
	defer s.maintMu.Unlock()

	s.logger.Debug("maintenance pass starting", "pass", name)
	return fn()
}

func (s *Store) newID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

func timeString(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
