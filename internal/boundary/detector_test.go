package boundary

import (
	"context"
	"testing"
	"time"

	"github.com/mnemod/mnemod/pkg/record"
)

type factRecorder struct {
	facts []record.Fact
	err   error
}

func (f *factRecorder) PutFact(_ context.Context, fact record.Fact) (string, error) {
	f.facts = append(f.facts, fact)
	return "fact-1", f.err
}

func activity(session, description string) record.ToolActivity {
	return record.ToolActivity{
		SessionID:   session,
		Tool:        "edit",
		Description: description,
		Timestamp:   time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestFirstActivityNeverBoundary(t *testing.T) {
	d := New(&factRecorder{}, Config{})

	if d.Observe(context.Background(), activity("s1", "anything at all")) {
		t.Error("boundary fired on first activity")
	}
}

func TestTopicShiftFiresBoundary(t *testing.T) {
	rec := &factRecorder{}
	d := New(rec, Config{})
	ctx := context.Background()

	d.Observe(ctx, activity("s1", "refactoring the authentication handler token parsing"))
	d.Observe(ctx, activity("s1", "authentication handler now validates token expiry"))

	crossed := d.Observe(ctx, activity("s1", "investigating prometheus scrape intervals dashboards"))
	if !crossed {
		t.Fatal("topic shift did not fire a boundary")
	}

	if len(rec.facts) != 1 {
		t.Fatalf("got %d facts, want 1", len(rec.facts))
	}
	f := rec.facts[0]
	if f.Subject != "s1" || f.Predicate != PredicateBoundary || f.Provenance != Provenance {
		t.Errorf("fact = %+v", f)
	}
}

func TestContinuedTopicNoBoundary(t *testing.T) {
	d := New(&factRecorder{}, Config{})
	ctx := context.Background()

	d.Observe(ctx, activity("s1", "refactoring the authentication handler token parsing"))
	if d.Observe(ctx, activity("s1", "authentication handler token parsing now covers refresh tokens")) {
		t.Error("boundary fired on continued topic")
	}
}

func TestSessionsIsolated(t *testing.T) {
	d := New(&factRecorder{}, Config{})
	ctx := context.Background()

	d.Observe(ctx, activity("s1", "refactoring the authentication handler token parsing"))

	// A different session starts fresh; its first event is never a boundary.
	if d.Observe(ctx, activity("s2", "investigating prometheus scrape intervals dashboards")) {
		t.Error("boundary fired across sessions")
	}
}

func TestEndSessionClearsWindow(t *testing.T) {
	d := New(&factRecorder{}, Config{})
	ctx := context.Background()

	d.Observe(ctx, activity("s1", "refactoring the authentication handler token parsing"))
	d.EndSession("s1")

	if d.Observe(ctx, activity("s1", "investigating prometheus scrape intervals dashboards")) {
		t.Error("boundary fired against a cleared window")
	}
}

func TestFactWriteFailureSwallowed(t *testing.T) {
	rec := &factRecorder{err: context.DeadlineExceeded}
	d := New(rec, Config{})
	ctx := context.Background()

	d.Observe(ctx, activity("s1", "refactoring the authentication handler token parsing"))
	d.Observe(ctx, activity("s1", "authentication handler now validates token expiry"))

	// The boundary is still reported even though the fact write failed.
	if !d.Observe(ctx, activity("s1", "investigating prometheus scrape intervals dashboards")) {
		t.Error("boundary suppressed by fact write failure")
	}
}
