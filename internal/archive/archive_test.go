package archive

import (
	"context"
	"testing"

	"github.com/jatanrathod13/researcher/internal/session"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	if err := m.SaveRun(ctx, session.Snapshot{ID: "a", Topic: "first", Status: session.StatusComplete}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := m.SaveRun(ctx, session.Snapshot{ID: "b", Topic: "second", Status: session.StatusFailed}); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	runs, err := m.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "b" || runs[1].ID != "a" {
		t.Fatalf("expected newest first, got %s then %s", runs[0].ID, runs[1].ID)
	}
}

func TestMemoryEvictsPastCapacity(t *testing.T) {
	m := NewMemory(2)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := m.SaveRun(ctx, session.Snapshot{ID: id}); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}
	runs, err := m.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected capacity eviction to 2, got %d", len(runs))
	}
	if runs[0].ID != "c" || runs[1].ID != "b" {
		t.Fatalf("oldest run must be evicted, got %s then %s", runs[0].ID, runs[1].ID)
	}
}

func TestMemorySaveIsIdempotentOnID(t *testing.T) {
	m := NewMemory(5)
	ctx := context.Background()
	_ = m.SaveRun(ctx, session.Snapshot{ID: "a", Topic: "v1"})
	_ = m.SaveRun(ctx, session.Snapshot{ID: "a", Topic: "v2"})

	runs, _ := m.RecentRuns(ctx, 5)
	if len(runs) != 1 {
		t.Fatalf("resaving the same run must not duplicate it, got %d", len(runs))
	}
	if runs[0].Topic != "v2" {
		t.Fatalf("resave must overwrite, got %q", runs[0].Topic)
	}
}

func TestDisabledArchiveIsNoOp(t *testing.T) {
	var a Archive = Disabled{}
	if err := a.SaveRun(context.Background(), session.Snapshot{ID: "x"}); err != nil {
		t.Fatalf("SaveRun on disabled archive: %v", err)
	}
	runs, err := a.RecentRuns(context.Background(), 5)
	if err != nil || runs != nil {
		t.Fatalf("disabled archive must return nothing, got %v %v", runs, err)
	}
}
