package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRunLifecycle(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	id, err := st.StartRun(ctx, start)
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if len(id) != 36 {
		t.Fatalf("expected uuid run id, got %q", id)
	}
	run := Run{RunID: id, AlertsFetched: 5, Posted: 2, Duplicates: 1, Failed: 1, Skipped: 1}
	if err := st.FinishRun(ctx, run, start.Add(time.Minute)); err != nil {
		t.Fatalf("finish run: %v", err)
	}
	got, err := st.GetRun(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("get run: %v %v", got, err)
	}
	if got.Posted != 2 || got.AlertsFetched != 5 || got.FinishedAt == nil {
		t.Fatalf("unexpected run %+v", got)
	}
	missing, err := st.GetRun(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown run, got %v %v", missing, err)
	}
}

func TestRecordAndListPosts(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, status := range []string{StatusPosted, StatusFailed} {
		p := &Post{RunID: "r1", Roadway: "ROUTE28", Kind: KindIncident, Ref: "a" + string(rune('1'+i)), Status: status, Body: "text", CreatedAt: now}
		if err := st.RecordPost(ctx, p); err != nil {
			t.Fatalf("record: %v", err)
		}
		if p.ID == 0 {
			t.Fatal("expected id to be assigned")
		}
	}
	posts, err := st.ListPosts(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 2 || posts[0].Ref != "a2" || posts[0].Status != StatusFailed {
		t.Fatalf("unexpected posts %+v", posts)
	}
	if err := st.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	st := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	first, _ := st.StartRun(ctx, base)
	second, _ := st.StartRun(ctx, base.Add(10*time.Minute))
	if err := st.FinishRun(ctx, Run{RunID: second, Posted: 1}, base.Add(11*time.Minute)); err != nil {
		t.Fatal(err)
	}
	runs, err := st.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != second || runs[1].RunID != first {
		t.Fatalf("unexpected order %+v", runs)
	}
	if runs[0].FinishedAt == nil || runs[1].FinishedAt != nil {
		t.Fatalf("unexpected finish times %+v", runs)
	}
}
