package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mnemod/mnemod/pkg/record"
)

// recordColumns is the canonical column order used by every record scan.
const recordColumns = `id, content, content_hash, title, subtitle, category, type,
	importance, trust, sensitivity, tags, concepts, files_read, files_modified,
	session_id, project, provenance, expires_at, created_at, updated_at,
	last_accessed_at, accessed_count`

// notExpired is the SQL predicate excluding TTL-expired rows. Bind the
// current timestamp for the placeholder.
const notExpired = `(expires_at IS NULL OR expires_at > ?)`

// Put stores a record and returns its id. If a non-expired record with the
// same content hash already exists, its updated_at is refreshed and its id
// returned; no new row is created and a "dedup-refresh" journal entry is
// written instead of an "insert".
func (s *Store) Put(ctx context.Context, m record.Memory) (string, error) {
	if err := normalize(&m); err != nil {
		return "", err
	}

	now := s.now()
	if !m.ExpiresAt.IsZero() && !m.ExpiresAt.After(now) {
		return "", record.NewValidationError("ttl", "expiry horizon is in the past")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Dedup check and insert are one critical section: two concurrent
	// writers of identical content cannot both miss the existing row.
	var existing string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM records WHERE content_hash = ? AND `+notExpired+` LIMIT 1`,
		m.ContentHash, timeString(now),
	).Scan(&existing)

	switch {
	case err == nil:
		if _, err := s.db.ExecContext(ctx,
			`UPDATE records SET updated_at = ? WHERE id = ?`,
			timeString(now), existing,
		); err != nil {
			return "", record.NewStorageError("dedup-refresh", err)
		}
		s.journal(ctx, record.JournalDedupRefresh, existing, "identical content re-stored")
		return existing, nil

	case errors.Is(err, sql.ErrNoRows):
		// New content, fall through to insert.

	default:
		return "", record.NewStorageError("dedup-check", err)
	}

	m.ID = s.newID()
	m.CreatedAt = now
	m.UpdatedAt = now

	var expires any
	if !m.ExpiresAt.IsZero() {
		expires = timeString(m.ExpiresAt)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, 0)`,
		m.ID, m.Content, m.ContentHash, m.Title, m.Subtitle, m.Category, string(m.Type),
		m.Importance, m.Trust, string(m.Sensitivity),
		marshalList(m.Tags), marshalList(m.Concepts),
		marshalList(m.FilesRead), marshalList(m.FilesMod),
		m.SessionID, m.Project, marshalList(m.Provenance),
		expires, timeString(m.CreatedAt), timeString(m.UpdatedAt),
	); err != nil {
		return "", record.NewStorageError("insert", err)
	}

	s.journal(ctx, record.JournalInsert, m.ID, fmt.Sprintf("type=%s category=%s", m.Type, m.Category))

	if evicted, err := s.evictLocked(ctx); err != nil {
		s.logger.Error("capacity eviction failed", "error", err)
	} else {
		s.metrics.AddEvictions(evicted)
	}

	return m.ID, nil
}

// Get returns a record by id and atomically increments its accessed_count.
// Returns record.ErrNotFound if the id is absent or the record has expired.
func (s *Store) Get(ctx context.Context, id string) (record.Memory, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET accessed_count = accessed_count + 1, last_accessed_at = ?
		WHERE id = ? AND `+notExpired,
		timeString(now), id, timeString(now),
	)
	if err != nil {
		return record.Memory{}, record.NewStorageError("get", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return record.Memory{}, record.NewStorageError("get", err)
	} else if n == 0 {
		return record.Memory{}, record.ErrNotFound
	}

	return s.loadLocked(ctx, id)
}

// Peek returns a record without touching its accessed_count. Internal
// consumers (engines, formatting) use it so curation reads do not count
// as accesses.
func (s *Store) Peek(ctx context.Context, id string) (record.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadLocked(ctx, id)
	if err != nil {
		return record.Memory{}, err
	}
	if m.Expired(s.now()) {
		return record.Memory{}, record.ErrNotFound
	}
	return m, nil
}

func (s *Store) loadLocked(ctx context.Context, id string) (record.Memory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)

	m, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Memory{}, record.ErrNotFound
	}
	if err != nil {
		return record.Memory{}, record.NewStorageError("load", err)
	}
	return m, nil
}

// Update holds the partial-update fields. Nil pointers leave the column
// untouched.
type Update struct {
	Content     *string
	Title       *string
	Subtitle    *string
	Category    *string
	Type        *record.Type
	Importance  *float64
	Trust       *float64
	Sensitivity *record.Sensitivity
	Tags        *[]string
	Concepts    *[]string
	FilesRead   *[]string
	FilesMod    *[]string
	ExpiresAt   *time.Time
}

// Apply performs a partial update and journals it. Returns
// record.ErrNotFound if the id is absent or expired.
func (s *Store) Apply(ctx context.Context, id string, u Update) error {
	sets, args, changed, err := buildUpdate(u)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		return nil
	}

	now := s.now()
	sets = append(sets, "updated_at = ?")
	args = append(args, timeString(now))

	s.mu.Lock()
	defer s.mu.Unlock()

	args = append(args, id, timeString(now))
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET `+strings.Join(sets, ", ")+` WHERE id = ? AND `+notExpired,
		args...,
	)
	if err != nil {
		return record.NewStorageError("update", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return record.NewStorageError("update", err)
	} else if n == 0 {
		return record.ErrNotFound
	}

	s.journal(ctx, record.JournalUpdate, id, "fields: "+strings.Join(changed, ","))
	return nil
}

func buildUpdate(u Update) (sets []string, args []any, changed []string, err error) {
	add := func(col string, val any) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
		changed = append(changed, col)
	}

	if u.Content != nil {
		if *u.Content == "" {
			return nil, nil, nil, record.NewValidationError("content", "must not be empty")
		}
		add("content", *u.Content)
		add("content_hash", record.HashContent(*u.Content))
	}
	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Subtitle != nil {
		add("subtitle", *u.Subtitle)
	}
	if u.Category != nil {
		add("category", *u.Category)
	}
	if u.Type != nil {
		if !record.ValidType(*u.Type) {
			return nil, nil, nil, record.NewValidationError("type", fmt.Sprintf("unknown type %q", *u.Type))
		}
		add("type", string(*u.Type))
	}
	if u.Importance != nil {
		add("importance", clamp01(*u.Importance))
	}
	if u.Trust != nil {
		add("trust", clamp01(*u.Trust))
	}
	if u.Sensitivity != nil {
		if !record.ValidSensitivity(*u.Sensitivity) {
			return nil, nil, nil, record.NewValidationError("sensitivity", fmt.Sprintf("unknown tier %q", *u.Sensitivity))
		}
		add("sensitivity", string(*u.Sensitivity))
	}
	if u.Tags != nil {
		add("tags", marshalList(*u.Tags))
	}
	if u.Concepts != nil {
		add("concepts", marshalList(*u.Concepts))
	}
	if u.FilesRead != nil {
		add("files_read", marshalList(*u.FilesRead))
	}
	if u.FilesMod != nil {
		add("files_modified", marshalList(*u.FilesMod))
	}
	if u.ExpiresAt != nil {
		if u.ExpiresAt.IsZero() {
			add("expires_at", nil)
		} else {
			add("expires_at", timeString(*u.ExpiresAt))
		}
	}
	return sets, args, changed, nil
}

// Delete removes a record and its index entries, journaling the deletion.
// Deleting an absent id is a deliberate no-op (no error, no journal entry):
// callers retrying a delete after a timeout must not fail or double-journal.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(ctx, id, "explicit delete")
}

func (s *Store) deleteLocked(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return record.NewStorageError("delete", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return record.NewStorageError("delete", err)
	} else if n == 0 {
		return nil
	}

	s.journal(ctx, record.JournalDelete, id, reason)
	return nil
}

// evictLocked enforces the capacity cap. Caller must hold s.mu. Victims are
// chosen by lowest accessed_count, then oldest updated_at, then lowest
// importance. Returns the number of evicted records.
func (s *Store) evictLocked(ctx context.Context) (int, error) {
	if s.cfg.MaxMemories <= 0 {
		return 0, nil
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return 0, record.NewStorageError("evict-count", err)
	}
	excess := count - s.cfg.MaxMemories
	if excess <= 0 {
		return 0, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM records
		ORDER BY accessed_count ASC, updated_at ASC, importance ASC
		LIMIT ?`, excess)
	if err != nil {
		return 0, record.NewStorageError("evict-select", err)
	}
	var victims []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, record.NewStorageError("evict-scan", err)
		}
		victims = append(victims, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, record.NewStorageError("evict-scan", err)
	}

	for _, id := range victims {
		if err := s.deleteLocked(ctx, id, "evicted: capacity cap"); err != nil {
			return 0, err
		}
	}
	return len(victims), nil
}

// normalize validates a record for storage, fills defaults, and computes
// the content hash.
func normalize(m *record.Memory) error {
	if strings.TrimSpace(m.Content) == "" {
		return record.NewValidationError("content", "must not be empty")
	}

	if m.Type == "" {
		m.Type = record.TypeChange
	}
	if !record.ValidType(m.Type) {
		return record.NewValidationError("type", fmt.Sprintf("unknown type %q", m.Type))
	}

	if m.Sensitivity == "" {
		m.Sensitivity = record.SensitivityPublic
	}
	if !record.ValidSensitivity(m.Sensitivity) {
		return record.NewValidationError("sensitivity", fmt.Sprintf("unknown tier %q", m.Sensitivity))
	}

	if m.Importance == 0 {
		m.Importance = 0.5
	}
	m.Importance = clamp01(m.Importance)
	if m.Trust == 0 {
		m.Trust = 0.5
	}
	m.Trust = clamp01(m.Trust)

	m.ContentHash = record.HashContent(m.Content)
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalList(raw string) []string {
	if raw == "" || raw == "[]" || raw == "null" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (record.Memory, error) {
	return scanRecordExtra(row)
}

// scanRecordExtra scans the canonical record columns plus any trailing
// extras (e.g. an FTS rank) selected after them.
func scanRecordExtra(row rowScanner, extra ...any) (record.Memory, error) {
	var (
		m                           record.Memory
		typ, sens                   string
		tags, concepts, fRead, fMod string
		provenance                  string
		expires, lastAccess         sql.NullString
		created, updated            string
	)

	dest := []any{
		&m.ID, &m.Content, &m.ContentHash, &m.Title, &m.Subtitle, &m.Category, &typ,
		&m.Importance, &m.Trust, &sens, &tags, &concepts, &fRead, &fMod,
		&m.SessionID, &m.Project, &provenance, &expires, &created, &updated,
		&lastAccess, &m.AccessedCount,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return record.Memory{}, err
	}

	m.Type = record.Type(typ)
	m.Sensitivity = record.Sensitivity(sens)
	m.Tags = unmarshalList(tags)
	m.Concepts = unmarshalList(concepts)
	m.FilesRead = unmarshalList(fRead)
	m.FilesMod = unmarshalList(fMod)
	m.Provenance = unmarshalList(provenance)
	m.CreatedAt = parseTime(created)
	m.UpdatedAt = parseTime(updated)
	if expires.Valid {
		m.ExpiresAt = parseTime(expires.String)
	}
	if lastAccess.Valid {
		m.LastAccessedAt = parseTime(lastAccess.String)
	}
	return m, nil
}
