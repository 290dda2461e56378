package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mnemod/mnemod/internal/store"
	"github.com/mnemod/mnemod/pkg/record"
)

const testToken = "test-token"

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()

	st, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "gateway.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	srv := New(st, prometheus.NewRegistry(), nil, Config{Token: testToken})
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)
	return ts, st
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthPublic(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := get(t, ts.URL+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var h HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.Status != "ok" {
		t.Errorf("status = %q", h.Status)
	}
}

func TestMetricsPublic(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := get(t, ts.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	ts, _ := newTestServer(t)

	for _, path := range []string{"/api/stats", "/api/records", "/api/search?q=x", "/api/journal"} {
		if resp := get(t, ts.URL+path, ""); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s without token: status = %d", path, resp.StatusCode)
		}
		if resp := get(t, ts.URL+path, "wrong-token"); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s with bad token: status = %d", path, resp.StatusCode)
		}
	}
}

func TestAPIUnmountedWithoutToken(t *testing.T) {
	st, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "gateway.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	srv := New(st, nil, nil, Config{})
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	if resp := get(t, ts.URL+"/api/stats", "anything"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unmounted api", resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	ts, st := newTestServer(t)
	if _, err := st.Put(context.Background(), record.Memory{Content: "one stored record"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	resp := get(t, ts.URL+"/api/stats", testToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var stats struct {
		Records int `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Records != 1 {
		t.Errorf("records = %d, want 1", stats.Records)
	}
}

func TestGetRecord(t *testing.T) {
	ts, st := newTestServer(t)
	id, err := st.Put(context.Background(), record.Memory{Content: "retrievable record"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	resp := get(t, ts.URL+"/api/records/"+id, testToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var m record.Memory
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.ID != id {
		t.Errorf("id = %q, want %q", m.ID, id)
	}

	// Gateway reads must not inflate access counts.
	peeked, err := st.Peek(context.Background(), id)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if peeked.AccessedCount != 0 {
		t.Errorf("accessed count = %d, want 0", peeked.AccessedCount)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	if resp := get(t, ts.URL+"/api/records/missing-id", testToken); resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	ts, _ := newTestServer(t)
	if resp := get(t, ts.URL+"/api/search", testToken); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSearchFindsRecord(t *testing.T) {
	ts, st := newTestServer(t)
	if _, err := st.Put(context.Background(), record.Memory{
		Content:    "chose keyset pagination for the maintenance scanner",
		Type:       record.TypeDecision,
		Importance: 0.8,
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	resp := get(t, ts.URL+"/api/search?q=keyset+pagination+maintenance", testToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var results []store.Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) == 0 {
		t.Error("no results")
	}
}

func TestListRecordsHidesPrivateByDefault(t *testing.T) {
	ts, st := newTestServer(t)
	ctx := context.Background()
	if _, err := st.Put(ctx, record.Memory{Content: "a public note"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := st.Put(ctx, record.Memory{
		Content: "a private note", Sensitivity: record.SensitivityPrivate,
	}); err != nil {
		t.Fatalf("put: %v", err)
	}

	count := func(url string) int {
		resp := get(t, url, testToken)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		var records []record.Memory
		if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return len(records)
	}

	if n := count(ts.URL + "/api/records"); n != 1 {
		t.Errorf("default tier records = %d, want 1", n)
	}
	if n := count(ts.URL + "/api/records?tiers=private"); n != 2 {
		t.Errorf("private tier records = %d, want 2", n)
	}
}

func TestJournal(t *testing.T) {
	ts, st := newTestServer(t)
	if _, err := st.Put(context.Background(), record.Memory{Content: "journaled insert"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	resp := get(t, ts.URL+"/api/journal", testToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var entries []record.JournalEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Op != record.JournalInsert {
		t.Errorf("entries = %+v", entries)
	}
}
