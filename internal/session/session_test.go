package session

import (
	"context"
	"strings"
	"testing"

	"github.com/jatanrathod13/researcher/internal/schema"
)

func TestTransitionForwardPath(t *testing.T) {
	s := newSession("id", "topic")
	if s.Status() != StatusNotStarted {
		t.Fatalf("fresh session must be not_started, got %s", s.Status())
	}
	for _, next := range []Status{StatusPlanning, StatusResearching, StatusEditing, StatusComplete} {
		if err := s.Transition(next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if !s.Status().Terminal() {
		t.Fatalf("complete must be terminal")
	}
	if s.SnapshotState().EndedAt == nil {
		t.Fatalf("terminal session must record end time")
	}
}

func TestTransitionRejectsBackward(t *testing.T) {
	s := newSession("id", "topic")
	if err := s.Transition(StatusResearching); err != nil {
		t.Fatalf("skip ahead is allowed: %v", err)
	}
	if err := s.Transition(StatusPlanning); err == nil {
		t.Fatalf("backward transition must fail")
	}
	if err := s.Transition(StatusResearching); err == nil {
		t.Fatalf("self transition must fail")
	}
}

func TestTransitionFailedFromAnyNonTerminal(t *testing.T) {
	for _, from := range []Status{StatusNotStarted, StatusPlanning, StatusResearching, StatusEditing} {
		s := newSession("id", "topic")
		for _, step := range []Status{StatusPlanning, StatusResearching, StatusEditing} {
			if s.Status() == from {
				break
			}
			if err := s.Transition(step); err != nil {
				t.Fatalf("setup transition to %s: %v", step, err)
			}
		}
		if err := s.Transition(StatusFailed); err != nil {
			t.Fatalf("failed from %s: %v", from, err)
		}
	}
}

func TestTransitionOutOfTerminalRejected(t *testing.T) {
	s := newSession("id", "topic")
	if err := s.Transition(StatusFailed); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := s.Transition(StatusPlanning); err == nil {
		t.Fatalf("transition out of failed must be rejected")
	}
	if err := s.Transition(StatusFailed); err == nil {
		t.Fatalf("failed is terminal, re-failing must be rejected")
	}
}

func TestPlanAndResultWriteOnce(t *testing.T) {
	s := newSession("id", "topic")
	plan := schema.ResearchPlan{Topic: "t", SearchQueries: []string{"q"}, FocusAreas: []string{"f"}}
	if err := s.SetPlan(plan); err != nil {
		t.Fatalf("SetPlan: %v", err)
	}
	if err := s.SetPlan(plan); err == nil {
		t.Fatalf("second SetPlan must fail")
	}

	if err := s.SetResult(schema.Result{Kind: schema.ResultDegraded, Raw: "text"}); err != nil {
		t.Fatalf("SetResult: %v", err)
	}
	if err := s.SetResult(schema.Result{}); err == nil {
		t.Fatalf("second SetResult must fail")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := newSession("id", "topic")
	s.Facts().Record("fact one", "src")
	s.AddProgress("researching")

	snap := s.SnapshotState()
	snap.Facts[0].Text = "mutated"
	snap.Progress[0].Message = "mutated"

	again := s.SnapshotState()
	if again.Facts[0].Text != "fact one" {
		t.Fatalf("snapshot facts must not alias session state")
	}
	if again.Progress[0].Message != "researching" {
		t.Fatalf("snapshot progress must not alias session state")
	}
	if again.Progress[0].FactCount != 1 {
		t.Fatalf("progress must capture fact count, got %d", again.Progress[0].FactCount)
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	sess, runCtx := m.Create(context.Background(), "quantum computing")
	if sess.Topic() != "quantum computing" {
		t.Fatalf("unexpected topic: %q", sess.Topic())
	}
	if sess.ID() == "" || strings.Count(sess.ID(), "-") != 4 {
		t.Fatalf("expected uuid run id, got %q", sess.ID())
	}

	got, ok := m.Get(sess.ID())
	if !ok || got != sess {
		t.Fatalf("Get must return the stored session")
	}
	if _, ok := m.Get("missing"); ok {
		t.Fatalf("Get must miss for unknown id")
	}

	if err := m.Cancel(sess.ID()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	select {
	case <-runCtx.Done():
	default:
		t.Fatalf("cancel must abort the run context")
	}

	m.Remove(sess.ID())
	if _, ok := m.Get(sess.ID()); ok {
		t.Fatalf("removed session must be gone")
	}
}

func TestManagerCancelTerminalRejected(t *testing.T) {
	m := NewManager()
	sess, _ := m.Create(context.Background(), "t")
	if err := sess.Transition(StatusFailed); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := m.Cancel(sess.ID()); err == nil {
		t.Fatalf("canceling a finished session must fail")
	}
}

func TestManagerListNewestFirst(t *testing.T) {
	m := NewManager()
	a, _ := m.Create(context.Background(), "first")
	b, _ := m.Create(context.Background(), "second")
	list := m.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	seen := map[string]bool{list[0].ID: true, list[1].ID: true}
	if !seen[a.ID()] || !seen[b.ID()] {
		t.Fatalf("list must contain both sessions")
	}
	if list[1].StartedAt.After(list[0].StartedAt) {
		t.Fatalf("expected newest first")
	}
}
