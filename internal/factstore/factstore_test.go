package factstore

import (
	"sync"
	"testing"
	"time"

	"github.com/jatanrathod13/researcher/internal/schema"
)

func TestRecordAndSnapshot(t *testing.T) {
	s := New()
	fact := s.Record("GR III has a 24MP APS-C sensor", "https://example.com/review")
	if fact.Source != "https://example.com/review" {
		t.Fatalf("unexpected source: %q", fact.Source)
	}
	if fact.RecordedAt.IsZero() {
		t.Fatalf("expected recorded_at to be set")
	}
	s.Record("no source here", "")

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(snap))
	}
	if snap[1].Source != schema.SourceUnspecified {
		t.Fatalf("expected default source, got %q", snap[1].Source)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := New()
	s.Record("first", "")
	snap := s.Snapshot()
	s.Record("second", "")
	if len(snap) != 1 {
		t.Fatalf("snapshot mutated by later record: %d", len(snap))
	}
}

func TestConcurrentRecordAndSnapshot(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.Record("A", "") }()
	go func() { defer wg.Done(); s.Record("B", "") }()
	go func() { defer wg.Done(); _ = s.Snapshot() }()
	wg.Wait()

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected both facts after concurrent records, got %d", len(snap))
	}
	seen := map[string]bool{}
	for _, f := range snap {
		if f.Text == "" || f.RecordedAt.IsZero() {
			t.Fatalf("partially written fact observed: %+v", f)
		}
		seen[f.Text] = true
	}
	if !seen["A"] || !seen["B"] {
		t.Fatalf("missing fact in snapshot: %+v", snap)
	}
}

func TestSubscribeDeliversAppends(t *testing.T) {
	s := New()
	ch, cancel := s.Subscribe()
	defer cancel()

	s.Record("one", "")
	select {
	case size := <-ch:
		if size != 1 {
			t.Fatalf("expected size 1, got %d", size)
		}
	case <-time.After(time.Second):
		t.Fatalf("no notification for first append")
	}

	s.Record("two", "")
	select {
	case size := <-ch:
		if size != 2 {
			t.Fatalf("expected size 2, got %d", size)
		}
	case <-time.After(time.Second):
		t.Fatalf("no notification for second append")
	}
}

func TestSubscribeCancelIsIdempotent(t *testing.T) {
	s := New()
	_, cancel := s.Subscribe()
	cancel()
	cancel()
	// writer must not block or panic after cancellation
	s.Record("after cancel", "")
}

func TestReset(t *testing.T) {
	s := New()
	s.Record("stale", "")
	s.Reset()
	if s.Size() != 0 {
		t.Fatalf("expected empty store after reset, got %d", s.Size())
	}
}
