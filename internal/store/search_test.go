package store

import (
	"context"
	"testing"
	"time"

	"github.com/mnemod/mnemod/pkg/record"
)

func seedSearchStore(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(t)
	ctx := context.Background()

	seeds := []record.Memory{
		{
			Content:   "fixed the websocket reconnect backoff in the gateway",
			Title:     "websocket backoff fix",
			Category:  "networking",
			Type:      record.TypeBugfix,
			Project:   "gateway",
			FilesMod:  []string{"internal/gateway/ws.go"},
			Concepts:  []string{"backoff", "websocket"},
			SessionID: "s1",
		},
		{
			Content:   "decided to keep sqlite as the only storage backend",
			Title:     "sqlite decision",
			Category:  "storage",
			Type:      record.TypeDecision,
			Project:   "core",
			SessionID: "s1",
		},
		{
			Content:     "internal deployment token rotation procedure",
			Title:       "token rotation",
			Category:    "ops",
			Sensitivity: record.SensitivityPrivate,
			SessionID:   "s2",
		},
	}
	for _, m := range seeds {
		if _, err := s.Put(ctx, m); err != nil {
			t.Fatalf("seed put: %v", err)
		}
	}
	return s
}

func TestSearchMatchesText(t *testing.T) {
	s := seedSearchStore(t)

	results, err := s.Search(context.Background(), Query{Text: "websocket reconnect", MinScore: 0.01})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results")
	}
	if results[0].Title != "websocket backoff fix" {
		t.Errorf("top result = %q", results[0].Title)
	}
	if results[0].Score <= 0 || results[0].Score > 1 {
		t.Errorf("score out of range: %v", results[0].Score)
	}
}

func TestSearchExcludesPrivateByDefault(t *testing.T) {
	s := seedSearchStore(t)
	ctx := context.Background()

	results, err := s.Search(ctx, Query{Text: "token rotation", MinScore: 0.01})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range results {
		if r.Sensitivity != record.SensitivityPublic {
			t.Errorf("non-public record leaked: %s", r.ID)
		}
	}

	allowed, err := s.Search(ctx, Query{
		Text:        "token rotation",
		MinScore:    0.01,
		Sensitivity: SensitivityContext{AllowPrivate: true},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	found := false
	for _, r := range allowed {
		if r.Title == "token rotation" {
			found = true
		}
	}
	if !found {
		t.Error("private record missing despite AllowPrivate")
	}
}

func TestUnknownSensitivityTierExcluded(t *testing.T) {
	s := seedSearchStore(t)
	ctx := context.Background()

	// Corrupt one row to a tier outside the known three. Only raw SQL can
	// produce this state; every write path validates the tier.
	if _, err := s.db.ExecContext(ctx,
		`UPDATE records SET sensitivity = 'internal' WHERE title = 'websocket backoff fix'`,
	); err != nil {
		t.Fatalf("tamper: %v", err)
	}

	wide := SensitivityContext{AllowPrivate: true, AllowSecret: true}

	results, err := s.Search(ctx, Query{Text: "websocket reconnect", MinScore: 0.01, Sensitivity: wide})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range results {
		if r.Title == "websocket backoff fix" {
			t.Error("unknown-tier record surfaced in search")
		}
	}

	listed, err := s.List(ctx, Query{Sensitivity: wide})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, m := range listed {
		if m.Title == "websocket backoff fix" {
			t.Error("unknown-tier record surfaced in list")
		}
	}
}

func TestSearchMinScoreFilters(t *testing.T) {
	s := seedSearchStore(t)

	results, err := s.Search(context.Background(), Query{Text: "websocket", MinScore: 0.99})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results above an impossible floor", len(results))
	}
}

func TestSearchCategoryFilter(t *testing.T) {
	s := seedSearchStore(t)

	results, err := s.Search(context.Background(), Query{
		Text:     "sqlite storage websocket",
		Category: "storage",
		MinScore: 0.01,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range results {
		if r.Category != "storage" {
			t.Errorf("result outside category: %s", r.Category)
		}
	}
}

func TestSearchByFile(t *testing.T) {
	s := seedSearchStore(t)

	records, err := s.SearchByFile(context.Background(), "gateway/ws.go", SensitivityContext{})
	if err != nil {
		t.Fatalf("search by file: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Title != "websocket backoff fix" {
		t.Errorf("wrong record: %q", records[0].Title)
	}
}

func TestSearchByConcept(t *testing.T) {
	s := seedSearchStore(t)

	records, err := s.SearchByConcept(context.Background(), "backoff", SensitivityContext{})
	if err != nil {
		t.Fatalf("search by concept: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
}

func TestTimelineOrder(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s := newTestStore(t, func(c *Config) {
		c.Now = func() time.Time { return now }
	})
	ctx := context.Background()

	for _, content := range []string{"first entry", "second entry", "third entry"} {
		if _, err := s.Put(ctx, record.Memory{Content: content}); err != nil {
			t.Fatalf("put: %v", err)
		}
		now = now.Add(time.Hour)
	}

	records, err := s.Timeline(ctx, Query{})
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].CreatedAt.Before(records[i-1].CreatedAt) {
			t.Errorf("timeline out of order at %d", i)
		}
	}
}

func TestRecencyScoreHalves(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s := newTestStore(t, func(c *Config) {
		c.Now = func() time.Time { return now }
	})
	ctx := context.Background()

	if _, err := s.Put(ctx, record.Memory{Content: "aging observation about recency decay"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	fresh, err := s.Search(ctx, Query{Text: "recency decay", MinScore: 0.01})
	if err != nil || len(fresh) != 1 {
		t.Fatalf("fresh search: %v (%d results)", err, len(fresh))
	}
	if fresh[0].Recency < 0.99 {
		t.Errorf("fresh recency = %v, want ~1", fresh[0].Recency)
	}

	now = now.Add(21 * 24 * time.Hour)
	aged, err := s.Search(ctx, Query{Text: "recency decay", MinScore: 0.01})
	if err != nil || len(aged) != 1 {
		t.Fatalf("aged search: %v (%d results)", err, len(aged))
	}
	if aged[0].Recency < 0.45 || aged[0].Recency > 0.55 {
		t.Errorf("recency after one half-life = %v, want ~0.5", aged[0].Recency)
	}
}

func TestFactsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.PutFact(ctx, record.Fact{
		Subject:    "s1",
		Predicate:  "boundary-detected",
		Object:     "2026-04-01T09:00:00Z: switched from auth to billing",
		Provenance: "boundary-detector",
	})
	if err != nil {
		t.Fatalf("put fact: %v", err)
	}
	if id == "" {
		t.Fatal("empty fact id")
	}

	facts, err := s.QueryFacts(ctx, FactQuery{Subject: "s1", Predicate: "boundary-detected"})
	if err != nil {
		t.Fatalf("query facts: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("got %d facts, want 1", len(facts))
	}
	if facts[0].Provenance != "boundary-detector" {
		t.Errorf("provenance = %q", facts[0].Provenance)
	}
}

func TestPutFactRequiresSubject(t *testing.T) {
	s := newTestStore(t)

	_, err := s.PutFact(context.Background(), record.Fact{Predicate: "p"})
	if !record.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}
