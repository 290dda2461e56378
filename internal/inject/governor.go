// Package inject formats retrieved memories into a bounded context block
// for prompt injection. The governor enforces a token budget, a record
// cap, sensitivity tiers, and directive redaction so stored text cannot
// steer the model.
package inject

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mnemod/mnemod/internal/audit"
	"github.com/mnemod/mnemod/internal/metrics"
	"github.com/mnemod/mnemod/internal/sanitize"
	"github.com/mnemod/mnemod/internal/store"
	"github.com/mnemod/mnemod/internal/tokens"
)

const (
	// DefaultTokenBudget caps the token footprint of an injected block.
	DefaultTokenBudget = 2000

	// DefaultMaxRecords caps the number of records per block regardless
	// of remaining budget.
	DefaultMaxRecords = 5

	openTag  = "<memory-context>"
	closeTag = "</memory-context>"
)

// Retriever is the retrieval stage the governor draws from.
type Retriever interface {
	BalancedRetrieve(ctx context.Context, q store.Query) ([]store.Result, error)
}

// Config tunes the governor.
type Config struct {
	TokenBudget int
	MaxRecords  int

	// Sensitivity controls which tiers the block may include.
	Sensitivity store.SensitivityContext

	// Estimator counts tokens. Defaults to tokens.NewEstimator().
	Estimator tokens.Estimator

	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Audit   *audit.Logger
}

// Governor builds injection blocks.
type Governor struct {
	retriever  Retriever
	directives *sanitize.Directives
	cfg        Config
	estimator  tokens.Estimator
	logger     *slog.Logger
	metrics    *metrics.Metrics
	audit      *audit.Logger
}

// New creates a Governor over r.
func New(r Retriever, cfg Config) *Governor {
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = DefaultTokenBudget
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}
	if cfg.Estimator == nil {
		cfg.Estimator = tokens.NewEstimator()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Governor{
		retriever:  r,
		directives: sanitize.NewDirectives(),
		cfg:        cfg,
		estimator:  cfg.Estimator,
		logger:     cfg.Logger.With("component", "inject"),
		metrics:    cfg.Metrics,
		audit:      cfg.Audit,
	}
}

// Build retrieves memories relevant to prompt and formats them into a
// memory-context block. It returns the empty string when nothing relevant
// was found or retrieval failed; injection is best-effort and never blocks
// the prompt.
func (g *Governor) Build(ctx context.Context, sessionID, prompt string) string {
	if g == nil || g.retriever == nil || strings.TrimSpace(prompt) == "" {
		return ""
	}

	results, err := g.retriever.BalancedRetrieve(ctx, store.Query{
		Text:        prompt,
		Sensitivity: g.cfg.Sensitivity,
	})
	if err != nil {
		g.logger.Warn("injection retrieval failed", "session", sessionID, "error", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(openTag + "\n")
	used := g.estimator.Estimate(openTag + "\n" + closeTag)
	included := 0

	for _, r := range results {
		if included >= g.cfg.MaxRecords {
			break
		}

		entry := g.formatEntry(ctx, sessionID, r)
		cost := g.estimator.Estimate(entry)
		if used+cost > g.cfg.TokenBudget {
			continue
		}

		b.WriteString(entry)
		used += cost
		included++
	}

	if included == 0 {
		return ""
	}
	b.WriteString(closeTag)

	g.logger.Debug("injection block built",
		"session", sessionID, "records", included, "tokens", used)
	return b.String()
}

// formatEntry renders one record with its provenance line. Directive
// phrases embedded in stored content are neutralized before injection.
func (g *Governor) formatEntry(ctx context.Context, sessionID string, r store.Result) string {
	content, redacted := g.directives.Redact(r.Content)
	if redacted > 0 {
		g.metrics.AddRedactions(redacted)
		g.audit.Log(audit.Event{
			Type:      audit.EventRedaction,
			SessionID: sessionID,
			RecordID:  r.ID,
			Detail:    fmt.Sprintf("%d directive phrases neutralized", redacted),
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n", headline(r))
	fmt.Fprintf(&b, "[id=%s type=%s score=%.2f match=%.2f recency=%.2f recorded=%s]\n",
		r.ID, r.Type, r.Score, r.Match, r.Recency, r.CreatedAt.UTC().Format(time.DateOnly))
	b.WriteString(strings.TrimSpace(content))
	b.WriteString("\n\n")
	return b.String()
}

func headline(r store.Result) string {
	if r.Title != "" {
		return r.Title
	}
	line := strings.TrimSpace(r.Content)
	if i := strings.IndexByte(line, '\n'); i > 0 {
		line = line[:i]
	}
	if len(line) > 80 {
		line = line[:77] + "..."
	}
	return line
}
