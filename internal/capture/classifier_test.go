package capture

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/mnemod/mnemod/internal/memscore"
	"github.com/mnemod/mnemod/pkg/record"
)

type fakeStore struct {
	puts []record.Memory
	err  error
}

func (f *fakeStore) Put(_ context.Context, m record.Memory) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.puts = append(f.puts, m)
	return "mem-" + strconv.Itoa(len(f.puts)), nil
}

func newTestClassifier(t *testing.T) (*Classifier, *fakeStore) {
	t.Helper()
	st := &fakeStore{}
	c := New(st, memscore.New(0), Config{})
	return c, st
}

func decisionActivity(session string) record.ToolActivity {
	return record.ToolActivity{
		SessionID:   session,
		Project:     "mnemod",
		Tool:        "edit",
		Description: "decided to keep a single sqlite writer connection instead of a pool to avoid lock contention",
		FilesMod:    []string{"internal/store/store.go"},
	}
}

func TestOnActivityCapturesDecision(t *testing.T) {
	c, st := newTestClassifier(t)
	c.StartSession("s1")
	c.OnActivity(context.Background(), decisionActivity("s1"), false)

	if len(st.puts) != 1 {
		t.Fatalf("puts = %d, want 1", len(st.puts))
	}
	m := st.puts[0]
	if m.Type != record.TypeDecision {
		t.Errorf("type = %v, want decision", m.Type)
	}
	if m.Importance != 0.80 {
		t.Errorf("importance = %v, want 0.80", m.Importance)
	}
	if m.Trust != captureTrust {
		t.Errorf("trust = %v, want %v", m.Trust, captureTrust)
	}
	if m.Category != "observation" {
		t.Errorf("category = %q", m.Category)
	}
	if m.SessionID != "s1" || m.Project != "mnemod" {
		t.Errorf("session/project = %q/%q", m.SessionID, m.Project)
	}
	if len(m.Concepts) == 0 {
		t.Error("expected extracted concepts")
	}
}

func TestOnActivityBoundaryTag(t *testing.T) {
	c, st := newTestClassifier(t)
	c.StartSession("s1")
	c.OnActivity(context.Background(), decisionActivity("s1"), true)

	if len(st.puts) != 1 {
		t.Fatalf("puts = %d, want 1", len(st.puts))
	}
	found := false
	for _, tag := range st.puts[0].Tags {
		if tag == "boundary" {
			found = true
		}
	}
	if !found {
		t.Errorf("tags = %v, missing boundary", st.puts[0].Tags)
	}
}

func TestOnActivityDiscardsRepeatedTrivia(t *testing.T) {
	c, st := newTestClassifier(t)
	c.StartSession("s1")

	trivial := record.ToolActivity{
		SessionID:   "s1",
		Tool:        "bash",
		Description: "ran ls",
	}
	c.OnActivity(context.Background(), trivial, false)
	before := len(st.puts)
	c.OnActivity(context.Background(), trivial, false)
	if len(st.puts) != before {
		t.Errorf("repeated trivial activity was stored")
	}
}

func TestOnActivityOpensImplicitSession(t *testing.T) {
	c, st := newTestClassifier(t)

	// No StartSession call; the activity must still be captured.
	c.OnActivity(context.Background(), decisionActivity("orphan"), false)
	if len(st.puts) != 1 {
		t.Fatalf("puts = %d, want 1", len(st.puts))
	}

	c.EndSession(context.Background(), "orphan")
	if len(st.puts) != 2 {
		t.Errorf("puts = %d, want summary after end", len(st.puts))
	}
}

func TestOnActivityStoreFailureSwallowed(t *testing.T) {
	st := &fakeStore{err: errors.New("disk full")}
	c := New(st, memscore.New(0), Config{})
	c.StartSession("s1")
	c.OnActivity(context.Background(), decisionActivity("s1"), false)
	// Nothing to assert beyond not panicking; the session stays usable.
	c.EndSession(context.Background(), "s1")
}

func TestEndSessionComposesSummary(t *testing.T) {
	c, st := newTestClassifier(t)
	c.StartSession("s1")
	c.OnActivity(context.Background(), decisionActivity("s1"), true)
	c.EndSession(context.Background(), "s1")

	if len(st.puts) != 2 {
		t.Fatalf("puts = %d, want observation plus summary", len(st.puts))
	}
	sum := st.puts[1]
	if sum.Category != "session-summary" {
		t.Errorf("category = %q", sum.Category)
	}
	if sum.Type != record.TypeDiscovery {
		t.Errorf("type = %v", sum.Type)
	}
	if sum.Importance != 0.6 {
		t.Errorf("importance = %v", sum.Importance)
	}
	if len(sum.FilesMod) != 1 {
		t.Errorf("files modified = %v", sum.FilesMod)
	}
}

func TestEndSessionWithoutCapturesWritesNothing(t *testing.T) {
	c, st := newTestClassifier(t)
	c.StartSession("empty")
	c.EndSession(context.Background(), "empty")
	if len(st.puts) != 0 {
		t.Errorf("puts = %d, want 0", len(st.puts))
	}
}

func TestEndSessionUnknownSessionNoop(t *testing.T) {
	c, st := newTestClassifier(t)
	c.EndSession(context.Background(), "never-started")
	if len(st.puts) != 0 {
		t.Errorf("puts = %d, want 0", len(st.puts))
	}
}

func TestSessionsIsolated(t *testing.T) {
	c, st := newTestClassifier(t)
	c.StartSession("a")
	c.StartSession("b")
	c.OnActivity(context.Background(), decisionActivity("a"), false)

	c.EndSession(context.Background(), "b")
	if len(st.puts) != 1 {
		t.Fatalf("puts = %d, session b should not summarize", len(st.puts))
	}
	c.EndSession(context.Background(), "a")
	if len(st.puts) != 2 {
		t.Errorf("puts = %d, session a summary missing", len(st.puts))
	}
}
