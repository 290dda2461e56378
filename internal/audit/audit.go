// Package audit writes structured JSONL audit events for the curation
// pipeline: captures, discards, governor redactions, evictions, and
// maintenance runs. Redaction outcomes are not errors, but they must be
// observable after the fact; this log is where they land.
package audit

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/mnemod/mnemod/internal/sanitize"
)

// EventType categorizes audit events.
type EventType string

// Audit event types.
const (
	EventCapture     EventType = "capture"
	EventDiscard     EventType = "discard"
	EventBoundary    EventType = "boundary"
	EventRedaction   EventType = "governor_redaction"
	EventEviction    EventType = "eviction"
	EventPurge       EventType = "purge"
	EventMaintenance EventType = "maintenance"
)

// Event is a single audit log entry.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	SessionID string            `json:"session_id,omitempty"`
	RecordID  string            `json:"record_id,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Config configures the audit logger.
type Config struct {
	// Writer is the destination for JSONL output. If nil, events are only
	// dispatched to OnEvent (useful for testing).
	Writer io.Writer

	// Secrets, if non-nil, scrubs Detail and Metadata values before writing.
	Secrets *sanitize.Secrets

	// OnEvent, if non-nil, is called for every event (used in tests).
	OnEvent func(Event)

	// Now overrides time.Now for testing.
	Now func() time.Time
}

// Logger writes audit events as JSONL with optional secret scrubbing.
// A nil *Logger is valid and records nothing.
type Logger struct {
	writer  io.Writer
	secrets *sanitize.Secrets
	onEvent func(Event)
	now     func() time.Time
	mu      sync.Mutex
}

// New creates an audit logger.
func New(cfg Config) *Logger {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Logger{
		writer:  cfg.Writer,
		secrets: cfg.Secrets,
		onEvent: cfg.OnEvent,
		now:     now,
	}
}

// Log writes an audit event. The timestamp is set automatically. The
// caller's Metadata map is never mutated.
func (l *Logger) Log(event Event) {
	if l == nil {
		return
	}
	event.Timestamp = l.now()

	if len(event.Metadata) > 0 {
		cp := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			cp[k] = v
		}
		event.Metadata = cp
	}

	if l.secrets != nil {
		event.Detail = l.secrets.Scrub(event.Detail)
		for k, v := range event.Metadata {
			event.Metadata[k] = l.secrets.Scrub(v)
		}
	}

	// Dispatch and write under one lock so ordering stays consistent.
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.onEvent != nil {
		l.onEvent(event)
	}
	if l.writer != nil {
		_ = json.NewEncoder(l.writer).Encode(event)
	}
}
