package store

import (
	"context"

	"github.com/mnemod/mnemod/pkg/record"
)

// journal appends a mutation entry. The journal table has no public
// update or delete path: appending is the only operation the store ever
// performs on it. Failures are logged, never propagated; a journal write
// must not fail the mutation it describes.
//
// Caller must hold s.mu.
func (s *Store) journal(ctx context.Context, op record.JournalOp, recordID, detail string) {
	now := s.now()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO journal (op, record_id, detail, created_at) VALUES (?, ?, ?, ?)`,
		string(op), recordID, detail, timeString(now),
	)
	if err != nil {
		s.logger.Error("journal append failed", "op", string(op), "record", recordID, "error", err)
		return
	}

	entry := record.JournalEntry{
		Op:        op,
		RecordID:  recordID,
		Detail:    detail,
		CreatedAt: now,
	}
	if seq, err := res.LastInsertId(); err == nil {
		entry.Seq = seq
	}

	s.publish(entry)
}

// RecentJournal returns the newest journal entries, newest first.
func (s *Store) RecentJournal(ctx context.Context, limit int) ([]record.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, op, record_id, detail, created_at
		FROM journal ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, record.NewStorageError("journal-read", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []record.JournalEntry
	for rows.Next() {
		var (
			e  record.JournalEntry
			op string
			at string
		)
		if err := rows.Scan(&e.Seq, &op, &e.RecordID, &e.Detail, &at); err != nil {
			return nil, record.NewStorageError("journal-scan", err)
		}
		e.Op = record.JournalOp(op)
		e.CreatedAt = parseTime(at)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, record.NewStorageError("journal-scan", err)
	}
	return entries, nil
}

// JournalLen returns the number of journal entries ever written.
func (s *Store) JournalLen(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM journal`).Scan(&n); err != nil {
		return 0, record.NewStorageError("journal-len", err)
	}
	return n, nil
}

// Subscribe returns a channel receiving journal entries as they are
// appended, and a cancel function. Slow subscribers drop entries rather
// than blocking mutations.
func (s *Store) Subscribe(buffer int) (<-chan record.JournalEntry, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan record.JournalEntry, buffer)

	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	cancel := func() {
		s.subsMu.Lock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
		s.subsMu.Unlock()
	}
	return ch, cancel
}

func (s *Store) publish(entry record.JournalEntry) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- entry:
		default:
			// Subscriber is lagging; drop rather than stall the store.
		}
	}
}
