// Package app wires the memory subsystem together: store, capture
// pipeline, maintenance engines, injection governor, hook pipeline,
// scheduler, and admin gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mnemod/mnemod/internal/audit"
	"github.com/mnemod/mnemod/internal/boundary"
	"github.com/mnemod/mnemod/internal/capture"
	"github.com/mnemod/mnemod/internal/compress"
	"github.com/mnemod/mnemod/internal/config"
	"github.com/mnemod/mnemod/internal/consolidate"
	"github.com/mnemod/mnemod/internal/cron"
	"github.com/mnemod/mnemod/internal/gateway"
	"github.com/mnemod/mnemod/internal/hook"
	"github.com/mnemod/mnemod/internal/inject"
	"github.com/mnemod/mnemod/internal/memscore"
	"github.com/mnemod/mnemod/internal/metrics"
	"github.com/mnemod/mnemod/internal/sanitize"
	"github.com/mnemod/mnemod/internal/store"
	"github.com/mnemod/mnemod/internal/temporal"
	"github.com/mnemod/mnemod/pkg/record"
)

// App is the assembled memory subsystem.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	secrets  *sanitize.Secrets
	audit    *audit.Logger
	auditOut *os.File

	store        *store.Store
	scorer       *memscore.Scorer
	detector     *boundary.Detector
	classifier   *capture.Classifier
	scaffold     *temporal.Scaffold
	consolidator *consolidate.Engine
	compressor   *compress.Engine
	governor     *inject.Governor

	pipeline  *hook.Pipeline
	scheduler *cron.Scheduler
	gateway   *gateway.Server
}

// New builds the App from cfg. The config must already be validated.
func New(cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	a.secrets = sanitize.NewSecrets()
	a.logger = buildLogger(cfg.Log, a.secrets)
	slog.SetDefault(a.logger)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector())
	a.metrics = metrics.New(a.registry)

	if err := a.buildAudit(); err != nil {
		return nil, err
	}
	if err := a.buildStore(); err != nil {
		return nil, err
	}
	a.buildEngines()
	a.buildPipeline()
	if err := a.buildScheduler(); err != nil {
		a.closeQuiet()
		return nil, err
	}

	if cfg.Gateway.Enabled {
		a.gateway = gateway.New(a.store, a.registry, a.logger, gateway.Config{
			Listen: cfg.Gateway.Listen,
			Token:  cfg.Gateway.Token,
		})
	}

	return a, nil
}

func buildLogger(cfg config.LogConfig, secrets *sanitize.Secrets) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var inner slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		inner = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		inner = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(sanitize.NewRedactingHandler(inner, secrets))
}

func (a *App) buildAudit() error {
	cfg := audit.Config{Secrets: a.secrets}
	if path := a.cfg.Audit.Path; path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("audit dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("audit file: %w", err)
		}
		a.auditOut = f
		cfg.Writer = f
	}
	a.audit = audit.New(cfg)
	return nil
}

func (a *App) buildStore() error {
	st, err := store.Open(store.Config{
		Path:         a.cfg.Store.Path,
		BusyTimeout:  a.cfg.Store.BusyTimeout,
		MaxMemories:  a.cfg.Store.MaxMemories,
		MinScore:     a.cfg.Search.MinScore,
		HalfLifeDays: a.cfg.Search.HalfLifeDays,
		Logger:       a.logger,
		Metrics:      a.metrics,
	})
	if err != nil {
		return err
	}
	a.store = st
	return nil
}

func (a *App) buildEngines() {
	cfg := a.cfg

	a.scorer = memscore.New(0)
	a.detector = boundary.New(a.store, boundary.Config{
		Threshold: cfg.Boundary.Threshold,
		Window:    cfg.Boundary.Window,
		Logger:    a.logger,
		Metrics:   a.metrics,
	})
	a.classifier = capture.New(a.store, a.scorer, capture.Config{
		Threshold: cfg.Capture.Threshold,
		Logger:    a.logger,
		Metrics:   a.metrics,
		Audit:     a.audit,
		Secrets:   a.secrets,
	})
	a.scaffold = temporal.New(a.store, temporal.Config{
		Boundaries: temporal.Boundaries{
			Immediate: cfg.Temporal.Immediate,
			Task:      cfg.Temporal.Task,
			Session:   cfg.Temporal.Session,
		},
		Logger: a.logger,
	})
	a.consolidator = consolidate.New(a.store, consolidate.Config{
		BoostFactor: cfg.Consolidation.BoostFactor,
		DecayPerDay: cfg.Consolidation.DecayPerDay,
		StaleAfter:  cfg.Consolidation.StaleAfter,
		Logger:      a.logger,
		Metrics:     a.metrics,
	})
	a.compressor = compress.New(a.store, compress.Config{
		MinAge:     cfg.Compression.MinAge,
		Similarity: cfg.Compression.Similarity,
		MinCluster: cfg.Compression.MinCluster,
		Logger:     a.logger,
		Metrics:    a.metrics,
	})
	a.governor = inject.New(a.scaffold, inject.Config{
		TokenBudget: cfg.Injection.TokenBudget,
		MaxRecords:  cfg.Injection.MaxRecords,
		Sensitivity: store.SensitivityContext{
			AllowPrivate: cfg.Injection.AllowPrivate,
			AllowSecret:  cfg.Injection.AllowSecret,
		},
		Logger:  a.logger,
		Metrics: a.metrics,
		Audit:   a.audit,
	})
}

func (a *App) buildScheduler() error {
	a.scheduler = cron.NewScheduler(a.logger)

	jobs := []cron.Job{
		&cron.PurgeJob{
			Store:        a.store,
			Logger:       a.logger,
			ScheduleExpr: a.cfg.Maintenance.PurgeSchedule,
		},
		&cron.EngineJob{
			JobName: "consolidation",
			Runner: func(ctx context.Context) error {
				_, err := a.consolidator.Run(ctx)
				return err
			},
			ScheduleExpr: orDefault(a.cfg.Maintenance.ConsolidationSchedule, "30 3 * * *"),
		},
		&cron.EngineJob{
			JobName: "compression",
			Runner: func(ctx context.Context) error {
				_, err := a.compressor.Run(ctx)
				return err
			},
			ScheduleExpr: orDefault(a.cfg.Maintenance.CompressionSchedule, "0 4 * * 0"),
		},
	}
	for _, j := range jobs {
		if err := a.scheduler.RegisterJob(j); err != nil {
			return err
		}
	}
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Store exposes the underlying store for the CLI and MCP surfaces.
func (a *App) Store() *store.Store { return a.store }

// Logger exposes the redacting logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Secrets exposes the secret scrubber shared across surfaces.
func (a *App) Secrets() *sanitize.Secrets { return a.secrets }

// HandleToolPost runs the tool:post lifecycle hooks for one activity.
func (a *App) HandleToolPost(ctx context.Context, act record.ToolActivity) {
	a.pipeline.Run(ctx, hook.EventToolPost, &hook.Context{
		SessionID: act.SessionID,
		Activity:  &act,
		Metadata:  map[string]any{},
		Logger:    a.logger,
	})
}

// HandleSessionStart runs the session:start lifecycle hooks.
func (a *App) HandleSessionStart(ctx context.Context, sessionID string) {
	a.pipeline.Run(ctx, hook.EventSessionStart, &hook.Context{
		SessionID: sessionID,
		Metadata:  map[string]any{},
		Logger:    a.logger,
	})
}

// HandleSessionEnd runs the session:end lifecycle hooks: the session
// summary, then the consolidation and compression passes.
func (a *App) HandleSessionEnd(ctx context.Context, sessionID string) {
	a.pipeline.Run(ctx, hook.EventSessionEnd, &hook.Context{
		SessionID: sessionID,
		Metadata:  map[string]any{},
		Logger:    a.logger,
	})
}

// HandlePromptSubmit runs the prompt:submit hooks and returns the memory
// context block to inject, or the empty string.
func (a *App) HandlePromptSubmit(ctx context.Context, sessionID, prompt string) string {
	hctx := &hook.Context{
		SessionID: sessionID,
		Prompt:    prompt,
		Metadata:  map[string]any{},
		Logger:    a.logger,
	}
	a.pipeline.Run(ctx, hook.EventPromptSubmit, hctx)
	return hctx.ContextBlock
}

// Start launches the scheduler and, when enabled, the gateway.
func (a *App) Start() error {
	if err := a.scheduler.Start(); err != nil {
		return err
	}
	if a.gateway != nil {
		if err := a.gateway.Start(); err != nil {
			_ = a.scheduler.Stop(context.Background())
			return err
		}
	}
	return nil
}

// Stop shuts everything down in reverse order of Start.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	if a.gateway != nil {
		errs = append(errs, a.gateway.Stop(ctx))
	}
	if a.scheduler != nil {
		errs = append(errs, a.scheduler.Stop(ctx))
	}
	errs = append(errs, a.closeStore())
	if a.auditOut != nil {
		errs = append(errs, a.auditOut.Close())
	}
	return errors.Join(errs...)
}

func (a *App) closeStore() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

func (a *App) closeQuiet() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = a.Stop(ctx)
}
