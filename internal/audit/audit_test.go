package audit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mnemod/mnemod/internal/sanitize"
)

func TestLogWritesJSONL(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(Config{Writer: &buf, Now: func() time.Time { return at }})

	l.Log(Event{Type: EventCapture, SessionID: "s1", RecordID: "m1", Detail: "type=decision"})
	l.Log(Event{Type: EventDiscard, SessionID: "s1"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != EventCapture || ev.RecordID != "m1" {
		t.Errorf("event = %+v", ev)
	}
	if !ev.Timestamp.Equal(at) {
		t.Errorf("timestamp = %v, want %v", ev.Timestamp, at)
	}
}

func TestLogScrubsSecrets(t *testing.T) {
	var buf bytes.Buffer
	secrets := sanitize.NewSecrets()
	secrets.AddLiteral("hunter2")
	l := New(Config{Writer: &buf, Secrets: secrets})

	l.Log(Event{
		Type:     EventRedaction,
		Detail:   "token hunter2 seen",
		Metadata: map[string]string{"value": "hunter2"},
	})

	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("secret leaked: %q", buf.String())
	}
}

func TestLogDoesNotMutateCallerMetadata(t *testing.T) {
	secrets := sanitize.NewSecrets()
	secrets.AddLiteral("hunter2")
	l := New(Config{Secrets: secrets, OnEvent: func(Event) {}})

	meta := map[string]string{"value": "hunter2"}
	l.Log(Event{Type: EventCapture, Metadata: meta})

	if meta["value"] != "hunter2" {
		t.Errorf("caller map mutated: %v", meta)
	}
}

func TestLogDispatchesOnEvent(t *testing.T) {
	var seen []Event
	l := New(Config{OnEvent: func(ev Event) { seen = append(seen, ev) }})

	l.Log(Event{Type: EventBoundary, SessionID: "s1"})
	if len(seen) != 1 || seen[0].Type != EventBoundary {
		t.Errorf("seen = %+v", seen)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Log(Event{Type: EventPurge})
}
