package store

import (
	"context"
	"strings"
	"time"

	"github.com/mnemod/mnemod/pkg/record"
)

// PutFact stores an immutable fact triple and returns its id.
func (s *Store) PutFact(ctx context.Context, f record.Fact) (string, error) {
	if strings.TrimSpace(f.Subject) == "" {
		return "", record.NewValidationError("subject", "must not be empty")
	}
	if strings.TrimSpace(f.Predicate) == "" {
		return "", record.NewValidationError("predicate", "must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f.ID = s.newID()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO facts (id, subject, predicate, object, provenance, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.Subject, f.Predicate, f.Object, f.Provenance, timeString(f.CreatedAt),
	); err != nil {
		return "", record.NewStorageError("fact-insert", err)
	}

	return f.ID, nil
}

// FactQuery filters fact lookups. Zero fields match everything.
type FactQuery struct {
	Subject    string
	Predicate  string
	Object     string
	Provenance string
	Since      time.Time
	Limit      int
}

// QueryFacts returns facts matching the filters, newest first.
func (s *Store) QueryFacts(ctx context.Context, q FactQuery) ([]record.Fact, error) {
	where := []string{"1=1"}
	var args []any

	if q.Subject != "" {
		where = append(where, "subject = ?")
		args = append(args, q.Subject)
	}
	if q.Predicate != "" {
		where = append(where, "predicate = ?")
		args = append(args, q.Predicate)
	}
	if q.Object != "" {
		where = append(where, "object = ?")
		args = append(args, q.Object)
	}
	if q.Provenance != "" {
		where = append(where, "provenance = ?")
		args = append(args, q.Provenance)
	}
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, timeString(q.Since))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject, predicate, object, provenance, created_at
		FROM facts WHERE `+strings.Join(where, " AND ")+`
		ORDER BY created_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, record.NewStorageError("fact-query", err)
	}
	defer func() { _ = rows.Close() }()

	var facts []record.Fact
	for rows.Next() {
		var (
			f  record.Fact
			at string
		)
		if err := rows.Scan(&f.ID, &f.Subject, &f.Predicate, &f.Object, &f.Provenance, &at); err != nil {
			return nil, record.NewStorageError("fact-scan", err)
		}
		f.CreatedAt = parseTime(at)
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, record.NewStorageError("fact-scan", err)
	}
	return facts, nil
}

// DeleteFact removes a fact by id. Deletion is the only fact mutation and
// is journaled. Absent ids are a no-op, mirroring record deletion.
func (s *Store) DeleteFact(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM facts WHERE id = ?`, id)
	if err != nil {
		return record.NewStorageError("fact-delete", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return record.NewStorageError("fact-delete", err)
	} else if n == 0 {
		return nil
	}

	s.journal(ctx, record.JournalDelete, id, "fact deleted")
	return nil
}
