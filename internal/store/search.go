package store

import (
	"context"
	"database/sql"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/mnemod/mnemod/internal/keywords"
	"github.com/mnemod/mnemod/pkg/record"
)

// qualifiedColumns mirrors recordColumns with the "r." prefix for joins
// against the FTS index, where content/title/subtitle are ambiguous.
const qualifiedColumns = `r.id, r.content, r.content_hash, r.title, r.subtitle, r.category, r.type,
	r.importance, r.trust, r.sensitivity, r.tags, r.concepts, r.files_read, r.files_modified,
	r.session_id, r.project, r.provenance, r.expires_at, r.created_at, r.updated_at,
	r.last_accessed_at, r.accessed_count`

// SensitivityContext carries the caller's read allowances. The zero value
// grants access to public records only.
type SensitivityContext struct {
	AllowPrivate bool
	AllowSecret  bool
}

// tiers returns the allowed sensitivity values. Gating is a whitelist:
// values outside the three known tiers never match, so an unrecognized
// tier is denied unconditionally.
func (c SensitivityContext) tiers() []string {
	allowed := []string{string(record.SensitivityPublic)}
	if c.AllowPrivate {
		allowed = append(allowed, string(record.SensitivityPrivate))
	}
	if c.AllowSecret {
		allowed = append(allowed, string(record.SensitivitySecret))
	}
	return allowed
}

// Query describes a scored search.
type Query struct {
	Text      string
	Category  string
	Type      record.Type
	Project   string
	SessionID string

	// CreatedAfter/CreatedBefore bound created_at (half-open interval).
	CreatedAfter  time.Time
	CreatedBefore time.Time

	// Limit caps the result count. 0 means 20.
	Limit int

	// MinScore overrides the configured floor when > 0.
	MinScore float64

	Sensitivity SensitivityContext
}

// Result is a search hit with its composite score breakdown.
type Result struct {
	record.Memory

	Score   float64 `json:"score"`
	Match   float64 `json:"match"`
	Recency float64 `json:"recency"`
}

// Search runs a full-text scored search. Results are sorted by descending
// composite score (ties broken by more recent updated_at) and exclude
// anything scoring under the minimum. A query matching nothing returns an
// empty slice, never an error.
func (s *Store) Search(ctx context.Context, q Query) ([]Result, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSearch(time.Since(start).Seconds()) }()
	s.metrics.IncSearch()

	now := s.now()
	match := ftsExpression(q.Text)

	var (
		sqlText string
		args    []any
	)

	where, filterArgs := q.filterSQL(now)

	if match != "" {
		sqlText = `SELECT ` + qualifiedColumns + `, bm25(records_fts) AS rank
			FROM records_fts
			JOIN records r ON r.rowid = records_fts.rowid
			WHERE records_fts MATCH ? AND ` + where
		args = append(args, match)
	} else {
		// No usable query tokens: scan with zero match contribution so
		// importance/recency/trust can still surface strong records.
		sqlText = `SELECT ` + qualifiedColumns + `, 0.0 AS rank
			FROM records r WHERE ` + where
	}
	args = append(args, filterArgs...)

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, record.NewStorageError("search", err)
	}
	defer func() { _ = rows.Close() }()

	minScore := q.MinScore
	if minScore <= 0 {
		minScore = s.cfg.MinScore
	}

	var results []Result
	for rows.Next() {
		var rank float64
		m, err := scanRecordRank(rows, &rank)
		if err != nil {
			return nil, record.NewStorageError("search-scan", err)
		}

		r := s.score(m, rank, now)
		if r.Score >= minScore {
			results = append(results, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, record.NewStorageError("search-scan", err)
	}

	slices.SortFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		case a.UpdatedAt.After(b.UpdatedAt):
			return -1
		case a.UpdatedAt.Before(b.UpdatedAt):
			return 1
		}
		return 0
	})

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// score computes the composite score for a record. rank is the raw FTS5
// bm25 value (more negative is better; 0 when no text match applies).
func (s *Store) score(m record.Memory, rank float64, now time.Time) Result {
	w := s.cfg.Weights

	match := normalizeRank(rank)
	ageDays := now.Sub(m.UpdatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	recency := math.Pow(0.5, ageDays/s.cfg.HalfLifeDays)

	score := w.Match*match + w.Recency*recency + w.Importance*clamp01(m.Importance) + w.Trust*clamp01(m.Trust)

	return Result{Memory: m, Score: score, Match: match, Recency: recency}
}

// normalizeRank maps a bm25 rank onto [0,1). FTS5 assigns numerically
// smaller (more negative) values to better matches.
func normalizeRank(rank float64) float64 {
	b := -rank
	if b <= 0 {
		return 0
	}
	return b / (b + 1)
}

// ftsExpression builds a sanitized FTS5 MATCH expression: each token is
// quoted and OR-ed, so caller text can never inject FTS syntax.
func ftsExpression(text string) string {
	set := keywords.Extract(text, 2)
	if len(set) == 0 {
		return ""
	}
	toks := keywords.Top(set, 12)
	for i, t := range toks {
		toks[i] = `"` + t + `"`
	}
	return strings.Join(toks, " OR ")
}

// filterSQL renders the shared WHERE clause: sensitivity whitelist, TTL
// exclusion, and the optional field filters.
func (q Query) filterSQL(now time.Time) (string, []any) {
	var (
		where []string
		args  []any
	)

	tiers := q.Sensitivity.tiers()
	where = append(where, "r.sensitivity IN ("+placeholders(len(tiers))+")")
	for _, t := range tiers {
		args = append(args, t)
	}

	where = append(where, "(r.expires_at IS NULL OR r.expires_at > ?)")
	args = append(args, timeString(now))

	if q.Category != "" {
		where = append(where, "r.category = ?")
		args = append(args, q.Category)
	}
	if q.Type != "" {
		where = append(where, "r.type = ?")
		args = append(args, string(q.Type))
	}
	if q.Project != "" {
		where = append(where, "r.project = ?")
		args = append(args, q.Project)
	}
	if q.SessionID != "" {
		where = append(where, "r.session_id = ?")
		args = append(args, q.SessionID)
	}
	if !q.CreatedAfter.IsZero() {
		where = append(where, "r.created_at >= ?")
		args = append(args, timeString(q.CreatedAfter))
	}
	if !q.CreatedBefore.IsZero() {
		where = append(where, "r.created_at < ?")
		args = append(args, timeString(q.CreatedBefore))
	}

	return strings.Join(where, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// SearchByFile returns records whose files_read or files_modified mention
// the given path fragment, newest first.
func (s *Store) SearchByFile(ctx context.Context, path string, sctx SensitivityContext) ([]record.Memory, error) {
	if path == "" {
		return nil, record.NewValidationError("path", "must not be empty")
	}
	return s.listWhere(ctx, sctx,
		"(instr(r.files_read, ?) > 0 OR instr(r.files_modified, ?) > 0)",
		[]any{path, path})
}

// SearchByConcept returns records whose concept set contains the given
// name, newest first.
func (s *Store) SearchByConcept(ctx context.Context, name string, sctx SensitivityContext) ([]record.Memory, error) {
	if name == "" {
		return nil, record.NewValidationError("concept", "must not be empty")
	}
	return s.listWhere(ctx, sctx, "instr(r.concepts, ?) > 0", []any{name})
}

// Timeline returns records matching the filters in chronological order
// (oldest first).
func (s *Store) Timeline(ctx context.Context, q Query) ([]record.Memory, error) {
	where, args := q.filterSQL(s.now())

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+qualifiedColumns+` FROM records r WHERE `+where+` ORDER BY r.created_at ASC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, record.NewStorageError("timeline", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRecords(rows)
}

// List returns records matching the filters, newest first.
func (s *Store) List(ctx context.Context, q Query) ([]record.Memory, error) {
	where, args := q.filterSQL(s.now())

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+qualifiedColumns+` FROM records r WHERE `+where+` ORDER BY r.updated_at DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, record.NewStorageError("list", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRecords(rows)
}

func (s *Store) listWhere(ctx context.Context, sctx SensitivityContext, cond string, condArgs []any) ([]record.Memory, error) {
	q := Query{Sensitivity: sctx}
	where, args := q.filterSQL(s.now())
	args = append(args, condArgs...)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+qualifiedColumns+` FROM records r WHERE `+where+` AND `+cond+` ORDER BY r.updated_at DESC`,
		args...,
	)
	if err != nil {
		return nil, record.NewStorageError("list", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]record.Memory, error) {
	var out []record.Memory
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, record.NewStorageError("scan", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, record.NewStorageError("scan", err)
	}
	return out, nil
}

func scanRecordRank(rows *sql.Rows, rank *float64) (record.Memory, error) {
	return scanRecordExtra(rows, rank)
}
