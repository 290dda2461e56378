// Package record defines the shared data contract of the memory subsystem:
// memory records, fact triples, journal entries, tool activity events, and
// the error taxonomy surfaced by tool-facing operations.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Type classifies what kind of observation a record captures.
type Type string

// Supported record types.
const (
	TypeBugfix    Type = "bugfix"
	TypeFeature   Type = "feature"
	TypeRefactor  Type = "refactor"
	TypeChange    Type = "change"
	TypeDiscovery Type = "discovery"
	TypeDecision  Type = "decision"
)

// ValidType reports whether t is one of the known record types.
func ValidType(t Type) bool {
	switch t {
	case TypeBugfix, TypeFeature, TypeRefactor, TypeChange, TypeDiscovery, TypeDecision:
		return true
	}
	return false
}

// Sensitivity controls read-time visibility of a record.
type Sensitivity string

// The three sensitivity tiers. Any other value is fail-closed: excluded
// from every read path regardless of caller allowance flags.
const (
	SensitivityPublic  Sensitivity = "public"
	SensitivityPrivate Sensitivity = "private"
	SensitivitySecret  Sensitivity = "secret"
)

// ValidSensitivity reports whether s is one of the three known tiers.
func ValidSensitivity(s Sensitivity) bool {
	return s == SensitivityPublic || s == SensitivityPrivate || s == SensitivitySecret
}

// Memory is a single stored observation.
type Memory struct {
	ID          string      `json:"id"`
	Content     string      `json:"content"`
	ContentHash string      `json:"content_hash"`
	Title       string      `json:"title,omitempty"`
	Subtitle    string      `json:"subtitle,omitempty"`
	Category    string      `json:"category,omitempty"`
	Type        Type        `json:"type"`
	Importance  float64     `json:"importance"`
	Trust       float64     `json:"trust"`
	Sensitivity Sensitivity `json:"sensitivity"`
	Tags        []string    `json:"tags,omitempty"`
	Concepts    []string    `json:"concepts,omitempty"`
	FilesRead   []string    `json:"files_read,omitempty"`
	FilesMod    []string    `json:"files_modified,omitempty"`
	SessionID   string      `json:"session_id,omitempty"`
	Project     string      `json:"project,omitempty"`

	// Provenance lists the ids of records merged into this one by
	// compression or summarization. Empty for ordinary records.
	Provenance []string `json:"provenance,omitempty"`

	// ExpiresAt is the optional TTL horizon. Zero means no expiry.
	ExpiresAt time.Time `json:"expires_at,omitzero"`

	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	LastAccessedAt time.Time `json:"last_accessed_at,omitzero"`
	AccessedCount  int       `json:"accessed_count"`
}

// Expired reports whether the record's TTL horizon has passed.
func (m *Memory) Expired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && !m.ExpiresAt.After(now)
}

// HashContent computes the dedup digest for a content string.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Fact is an immutable subject/predicate/object triple. Deletion is the
// only mutation, and deletions are journaled.
type Fact struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Predicate  string    `json:"predicate"`
	Object     string    `json:"object"`
	Provenance string    `json:"provenance,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// JournalOp identifies the kind of mutation a journal entry records.
type JournalOp string

// Journal operations.
const (
	JournalInsert       JournalOp = "insert"
	JournalUpdate       JournalOp = "update"
	JournalDelete       JournalOp = "delete"
	JournalDedupRefresh JournalOp = "dedup-refresh"
)

// JournalEntry is one row of the append-only mutation journal. The journal
// is the tamper-evident audit trail: no public operation modifies or
// deletes entries.
type JournalEntry struct {
	Seq       int64     `json:"seq"`
	Op        JournalOp `json:"op"`
	RecordID  string    `json:"record_id"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToolActivity is one tool invocation observed by the capture pipeline.
type ToolActivity struct {
	SessionID   string    `json:"session_id"`
	Project     string    `json:"project,omitempty"`
	Tool        string    `json:"tool"`
	Description string    `json:"description"`
	Diff        string    `json:"diff,omitempty"`
	FilesRead   []string  `json:"files_read,omitempty"`
	FilesMod    []string  `json:"files_modified,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
