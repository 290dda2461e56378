package compress

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mnemod/mnemod/internal/store"
	"github.com/mnemod/mnemod/pkg/record"
)

func mem(content, category string) record.Memory {
	return record.Memory{
		Content:  content,
		Category: category,
		Type:     record.TypeChange,
	}
}

func TestClusterGroupsSimilarRecords(t *testing.T) {
	records := []record.Memory{
		mem("gateway retry backoff tuned for flaky upstreams", "observation"),
		mem("sqlite journal checkpoint interval lowered", "observation"),
		mem("gateway retry backoff tuned again", "observation"),
		mem("gateway retry backoff flaky upstreams", "observation"),
	}

	clusters := Cluster(records, 0.5, 3)
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(clusters))
	}
	if len(clusters[0]) != 3 {
		t.Errorf("cluster size = %d, want 3", len(clusters[0]))
	}
	for _, m := range clusters[0] {
		if m.Content == "sqlite journal checkpoint interval lowered" {
			t.Error("dissimilar record joined the cluster")
		}
	}
}

func TestClusterRespectsCategory(t *testing.T) {
	records := []record.Memory{
		mem("gateway retry backoff tuned", "observation"),
		mem("gateway retry backoff tuned twice", "session-summary"),
		mem("gateway retry backoff tuned thrice", "observation"),
		mem("gateway retry backoff tuned more", "observation"),
	}

	clusters := Cluster(records, 0.5, 3)
	if len(clusters) != 1 {
		t.Fatalf("clusters = %d, want 1", len(clusters))
	}
	for _, m := range clusters[0] {
		if m.Category != "observation" {
			t.Errorf("cluster mixed categories: %q", m.Category)
		}
	}
}

func TestClusterDiscardsSmallGroups(t *testing.T) {
	records := []record.Memory{
		mem("gateway retry backoff tuned", "observation"),
		mem("gateway retry backoff tuned twice", "observation"),
		mem("unrelated docs wording pass", "observation"),
	}

	if clusters := Cluster(records, 0.5, 3); len(clusters) != 0 {
		t.Errorf("clusters = %d, want 0", len(clusters))
	}
}

func TestClusterEmptyInput(t *testing.T) {
	if clusters := Cluster(nil, 0.5, 3); clusters != nil {
		t.Errorf("clusters = %v, want nil", clusters)
	}
}

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time { return c.t }

func newTestEngine(t *testing.T) (*Engine, *store.Store, *testClock) {
	t.Helper()
	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	st, err := store.Open(store.Config{
		Path: filepath.Join(t.TempDir(), "compress.db"),
		Now:  clock.now,
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	eng := New(st, Config{Now: clock.now})
	return eng, st, clock
}

func TestRunMergesOldCluster(t *testing.T) {
	eng, st, clock := newTestEngine(t)
	ctx := context.Background()

	contents := []string{
		"gateway retry backoff tuned for flaky upstreams",
		"gateway retry backoff tuned again",
		"gateway retry backoff flaky upstreams",
	}
	var memberIDs []string
	for _, c := range contents {
		id, err := st.Put(ctx, record.Memory{Content: c, Category: "observation", Type: record.TypeChange})
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		memberIDs = append(memberIDs, id)
	}
	outlierID, err := st.Put(ctx, record.Memory{
		Content: "sqlite journal checkpoint interval lowered", Category: "observation", Type: record.TypeChange,
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	clock.t = clock.t.Add(8 * 24 * time.Hour)
	res, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Candidates != 4 {
		t.Errorf("candidates = %d, want 4", res.Candidates)
	}
	if res.Clusters != 1 || res.Merged != 3 {
		t.Fatalf("result = %+v, want 1 cluster of 3", res)
	}
	if len(res.SummaryIDs) != 1 {
		t.Fatalf("summary ids = %v", res.SummaryIDs)
	}

	for _, id := range memberIDs {
		if _, err := st.Peek(ctx, id); !errors.Is(err, record.ErrNotFound) {
			t.Errorf("member %s should be gone, got %v", id, err)
		}
	}
	if _, err := st.Peek(ctx, outlierID); err != nil {
		t.Errorf("outlier should survive: %v", err)
	}

	sum, err := st.Peek(ctx, res.SummaryIDs[0])
	if err != nil {
		t.Fatalf("peek summary: %v", err)
	}
	if sum.Category != "observation" {
		t.Errorf("summary category = %q", sum.Category)
	}
}

func TestRunSkipsFreshRecords(t *testing.T) {
	eng, st, _ := newTestEngine(t)
	ctx := context.Background()

	// All records created at the current instant, well inside the minimum
	// age window.
	for _, c := range []string{
		"gateway retry backoff tuned for flaky upstreams",
		"gateway retry backoff tuned again",
		"gateway retry backoff flaky upstreams",
	} {
		if _, err := st.Put(ctx, record.Memory{Content: c, Category: "observation", Type: record.TypeChange}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	res, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Candidates != 0 || res.Merged != 0 {
		t.Errorf("result = %+v, want nothing eligible", res)
	}
}

func TestRunTooFewCandidates(t *testing.T) {
	eng, st, clock := newTestEngine(t)
	ctx := context.Background()

	for _, c := range []string{
		"gateway retry backoff tuned",
		"gateway retry backoff tuned twice",
	} {
		if _, err := st.Put(ctx, record.Memory{Content: c, Category: "observation", Type: record.TypeChange}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	clock.t = clock.t.Add(8 * 24 * time.Hour)
	res, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Merged != 0 {
		t.Errorf("result = %+v, want no merges", res)
	}
}
