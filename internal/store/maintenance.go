package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mnemod/mnemod/internal/keywords"
	"github.com/mnemod/mnemod/pkg/record"
)

// PurgeExpired removes every TTL-expired record, journaling each deletion.
// Running it again with no new expirations removes nothing.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM records WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		timeString(now))
	if err != nil {
		return 0, record.NewStorageError("purge-select", err)
	}
	var expired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, record.NewStorageError("purge-scan", err)
		}
		expired = append(expired, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, record.NewStorageError("purge-scan", err)
	}

	for _, id := range expired {
		if err := s.deleteLocked(ctx, id, "ttl expired"); err != nil {
			return 0, err
		}
	}

	s.metrics.AddPurged(len(expired))
	if len(expired) > 0 {
		s.logger.Info("purged expired records", "count", len(expired))
	}
	return len(expired), nil
}

// SummarizeOld condenses the records of a category older than olderThan
// into a single summary record whose provenance lists the originals. The
// originals are kept; destructive merging belongs to the compression
// engine. Returns record.ErrNotFound when the category has fewer than two
// qualifying records.
func (s *Store) SummarizeOld(ctx context.Context, category string, olderThan time.Duration) (string, error) {
	if category == "" {
		return "", record.NewValidationError("category", "must not be empty")
	}
	if olderThan <= 0 {
		olderThan = 7 * 24 * time.Hour
	}

	cutoff := s.now().Add(-olderThan)
	members, err := s.List(ctx, Query{
		Category:      category,
		CreatedBefore: cutoff,
		Limit:         200,
		Sensitivity:   SensitivityContext{AllowPrivate: true, AllowSecret: true},
	})
	if err != nil {
		return "", err
	}
	if len(members) < 2 {
		return "", record.ErrNotFound
	}

	summary := ComposeSummary(category, members)
	return s.Put(ctx, summary)
}

// ComposeSummary builds a summary record from member records: condensed
// content, union of tags/concepts/files, maximum importance and trust, and
// provenance listing the member ids. Summaries inherit the most restrictive
// sensitivity among their members.
func ComposeSummary(category string, members []record.Memory) record.Memory {
	var (
		b          strings.Builder
		ids        []string
		importance float64
		trust      float64
	)

	sens := record.SensitivityPublic
	union := func(items []string) keywords.Set {
		s := make(keywords.Set, len(items))
		for _, it := range items {
			s[it] = struct{}{}
		}
		return s
	}

	var tagSets, conceptSets, readSets, modSets []keywords.Set
	for _, m := range members {
		ids = append(ids, m.ID)
		line := m.Title
		if line == "" {
			line = firstSentence(m.Content)
		}
		fmt.Fprintf(&b, "- %s\n", line)

		tagSets = append(tagSets, union(m.Tags))
		conceptSets = append(conceptSets, union(m.Concepts))
		readSets = append(readSets, union(m.FilesRead))
		modSets = append(modSets, union(m.FilesMod))

		if m.Importance > importance {
			importance = m.Importance
		}
		if m.Trust > trust {
			trust = m.Trust
		}
		sens = stricter(sens, m.Sensitivity)
	}

	topic := keywords.Top(keywords.Extract(b.String(), 0), 3)

	return record.Memory{
		Content:     fmt.Sprintf("Summary of %d earlier %s records:\n%s", len(members), category, b.String()),
		Title:       "Summary: " + strings.Join(topic, " "),
		Subtitle:    fmt.Sprintf("%d merged records", len(members)),
		Category:    category,
		Type:        record.TypeDiscovery,
		Importance:  importance,
		Trust:       trust,
		Sensitivity: sens,
		Tags:        setToList(keywords.Union(tagSets...)),
		Concepts:    setToList(keywords.Union(conceptSets...)),
		FilesRead:   setToList(keywords.Union(readSets...)),
		FilesMod:    setToList(keywords.Union(modSets...)),
		Provenance:  ids,
	}
}

func setToList(s keywords.Set) []string {
	if len(s) == 0 {
		return nil
	}
	return keywords.Top(s, len(s))
}

func stricter(a, b record.Sensitivity) record.Sensitivity {
	rank := func(s record.Sensitivity) int {
		switch s {
		case record.SensitivitySecret:
			return 2
		case record.SensitivityPrivate:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func firstSentence(content string) string {
	content = strings.TrimSpace(content)
	if i := strings.IndexAny(content, ".\n"); i > 0 {
		content = content[:i]
	}
	const maxLen = 120
	if len(content) > maxLen {
		content = content[:maxLen]
	}
	return content
}

// MaintRecord is a record together with the consolidation bookkeeping the
// engines need.
type MaintRecord struct {
	record.Memory

	// AccessSnapshot is accessed_count as of the last consolidation pass.
	AccessSnapshot int

	// ConsolidatedAt is when the record was last consolidated. Zero for
	// never-consolidated records.
	ConsolidatedAt time.Time
}

// MaintBatch returns up to limit records with id greater than afterID,
// ordered by id, for batched full scans. ULID ids make this a stable
// keyset pagination.
func (s *Store) MaintBatch(ctx context.Context, afterID string, limit int) ([]MaintRecord, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+qualifiedColumns+`, r.access_snapshot, r.consolidated_at
		FROM records r WHERE r.id > ? ORDER BY r.id ASC LIMIT ?`,
		afterID, limit)
	if err != nil {
		return nil, record.NewStorageError("maint-batch", err)
	}
	defer func() { _ = rows.Close() }()

	var out []MaintRecord
	for rows.Next() {
		var (
			mr     MaintRecord
			consAt sql.NullString
		)
		m, err := scanRecordExtra(rows, &mr.AccessSnapshot, &consAt)
		if err != nil {
			return nil, record.NewStorageError("maint-scan", err)
		}
		mr.Memory = m
		if consAt.Valid {
			mr.ConsolidatedAt = parseTime(consAt.String)
		}
		out = append(out, mr)
	}
	if err := rows.Err(); err != nil {
		return nil, record.NewStorageError("maint-scan", err)
	}
	return out, nil
}

// ApplyConsolidation writes back a record's adjusted importance and resets
// its consolidation bookkeeping. Importance drift from consolidation is
// deliberately not journaled: the journal tracks discrete mutations, not
// continuous decay.
func (s *Store) ApplyConsolidation(ctx context.Context, id string, importance float64, snapshot int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET importance = ?, access_snapshot = ?, consolidated_at = ?
		WHERE id = ?`,
		importance, snapshot, timeString(at), id,
	); err != nil {
		return record.NewStorageError("consolidate-apply", err)
	}
	return nil
}

// DeleteStale removes a record on behalf of a maintenance engine, with the
// reason recorded in the journal.
func (s *Store) DeleteStale(ctx context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(ctx, id, reason)
}

// ReplaceWithSummary stores the summary record and deletes the member
// records, all inside the mutation lock. Members are deleted only after the
// summary insert succeeded; each deletion is journaled with a pointer to
// the summary.
func (s *Store) ReplaceWithSummary(ctx context.Context, summary record.Memory, memberIDs []string) (string, error) {
	id, err := s.Put(ctx, summary)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, member := range memberIDs {
		if err := s.deleteLocked(ctx, member, "compressed into "+id); err != nil {
			return id, err
		}
	}
	return id, nil
}

// Stats summarizes the store contents.
type Stats struct {
	Records       int            `json:"records"`
	Facts         int            `json:"facts"`
	JournalLen    int64          `json:"journal_len"`
	ByType        map[string]int `json:"by_type"`
	BySensitivity map[string]int `json:"by_sensitivity"`
}

// ReadStats collects store statistics.
func (s *Store) ReadStats(ctx context.Context) (Stats, error) {
	st := Stats{ByType: map[string]int{}, BySensitivity: map[string]int{}}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&st.Records); err != nil {
		return Stats{}, record.NewStorageError("stats", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts`).Scan(&st.Facts); err != nil {
		return Stats{}, record.NewStorageError("stats", err)
	}
	var err error
	if st.JournalLen, err = s.JournalLen(ctx); err != nil {
		return Stats{}, err
	}

	groups := map[string]string{
		"type":        "SELECT type, COUNT(*) FROM records GROUP BY type",
		"sensitivity": "SELECT sensitivity, COUNT(*) FROM records GROUP BY sensitivity",
	}
	for col, q := range groups {
		rows, err := s.db.QueryContext(ctx, q)
		if err != nil {
			return Stats{}, record.NewStorageError("stats", err)
		}
		for rows.Next() {
			var (
				key string
				n   int
			)
			if err := rows.Scan(&key, &n); err != nil {
				_ = rows.Close()
				return Stats{}, record.NewStorageError("stats", err)
			}
			if col == "type" {
				st.ByType[key] = n
			} else {
				st.BySensitivity[key] = n
			}
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return Stats{}, record.NewStorageError("stats", err)
		}
	}

	return st, nil
}
