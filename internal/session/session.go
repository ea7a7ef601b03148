// Package session tracks the lifecycle of one research run: a monotonic
// status machine, the accumulated transcript, the fact store, and the final
// result. Sessions are owned by a Manager keyed by run ID.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/jatanrathod13/researcher/internal/completion"
	"github.com/jatanrathod13/researcher/internal/factstore"
	"github.com/jatanrathod13/researcher/internal/schema"
)

// Status is a workflow lifecycle stage.
type Status string

const (
	StatusNotStarted  Status = "not_started"
	StatusPlanning    Status = "planning"
	StatusResearching Status = "researching"
	StatusEditing     Status = "editing"
	StatusComplete    Status = "complete"
	StatusFailed      Status = "failed"
)

// order positions statuses along the forward path. Failed sits outside the
// path and is reachable from any non-terminal status.
var order = map[Status]int{
	StatusNotStarted:  0,
	StatusPlanning:    1,
	StatusResearching: 2,
	StatusEditing:     3,
	StatusComplete:    4,
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// ProgressUpdate is one observation surfaced while a session runs.
type ProgressUpdate struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	FactCount int       `json:"fact_count"`
	At        time.Time `json:"at"`
}

// Snapshot is a point-in-time, caller-owned view of a session.
type Snapshot struct {
	ID        string               `json:"id"`
	Topic     string               `json:"topic"`
	Status    Status               `json:"status"`
	Plan      *schema.ResearchPlan `json:"plan,omitempty"`
	Facts     []schema.Fact        `json:"facts"`
	Progress  []ProgressUpdate     `json:"progress"`
	Result    *schema.Result       `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
	StartedAt time.Time            `json:"started_at"`
	EndedAt   *time.Time           `json:"ended_at,omitempty"`
}

// Session is the mutable state of one research run. All methods are safe for
// concurrent use.
type Session struct {
	mu sync.Mutex

	id        string
	topic     string
	status    Status
	plan      *schema.ResearchPlan
	result    *schema.Result
	errText   string
	progress  []ProgressUpdate
	startedAt time.Time
	endedAt   *time.Time

	transcript completion.Transcript
	facts      *factstore.Store
}

func newSession(id, topic string) *Session {
	return &Session{
		id:        id,
		topic:     topic,
		status:    StatusNotStarted,
		startedAt: time.Now(),
		facts:     factstore.New(),
	}
}

// ID returns the run identifier.
func (s *Session) ID() string { return s.id }

// Topic returns the research topic.
func (s *Session) Topic() string { return s.topic }

// Facts exposes the session fact store.
func (s *Session) Facts() *factstore.Store { return s.facts }

// Status returns the current lifecycle stage.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Transition advances the status. Forward transitions must move strictly
// ahead on the lifecycle path; Failed is accepted from any non-terminal
// status. Transitions out of a terminal status are rejected.
func (s *Session) Transition(next Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Terminal() {
		return fmt.Errorf("session %s is already %s", s.id, s.status)
	}
	if next == StatusFailed {
		s.status = StatusFailed
		s.markEnded()
		return nil
	}
	from, ok := order[s.status]
	to, okNext := order[next]
	if !ok || !okNext || to <= from {
		return fmt.Errorf("invalid transition %s -> %s", s.status, next)
	}
	s.status = next
	if next.Terminal() {
		s.markEnded()
	}
	return nil
}

func (s *Session) markEnded() {
	now := time.Now()
	s.endedAt = &now
}

// SetPlan records the adopted research plan. The plan is written once.
func (s *Session) SetPlan(plan schema.ResearchPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan != nil {
		return fmt.Errorf("session %s already has a plan", s.id)
	}
	p := plan
	s.plan = &p
	return nil
}

// Plan returns the adopted plan, or nil before planning finishes.
func (s *Session) Plan() *schema.ResearchPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.plan == nil {
		return nil
	}
	p := *s.plan
	return &p
}

// SetResult records the final outcome. The result is written once.
func (s *Session) SetResult(result schema.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != nil {
		return fmt.Errorf("session %s already has a result", s.id)
	}
	r := result
	s.result = &r
	return nil
}

// Result returns the final outcome, or nil while the session runs.
func (s *Session) Result() *schema.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

// SetError records the failure message shown to callers.
func (s *Session) SetError(msg string) {
	s.mu.Lock()
	s.errText = msg
	s.mu.Unlock()
}

// AddProgress appends a progress observation stamped with the current status
// and fact count.
func (s *Session) AddProgress(message string) {
	s.mu.Lock()
	s.progress = append(s.progress, ProgressUpdate{
		Status:    s.status,
		Message:   message,
		FactCount: s.facts.Size(),
		At:        time.Now(),
	})
	s.mu.Unlock()
}

// AppendTranscript adds a message to the session transcript.
func (s *Session) AppendTranscript(origin, content string) {
	s.mu.Lock()
	s.transcript = s.transcript.Append(origin, content)
	s.mu.Unlock()
}

// Transcript returns the accumulated transcript.
func (s *Session) Transcript() completion.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// SnapshotState returns a deep copy of the session for serving to callers.
func (s *Session) SnapshotState() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.id,
		Topic:     s.topic,
		Status:    s.status,
		Facts:     s.facts.Snapshot(),
		Error:     s.errText,
		StartedAt: s.startedAt,
	}
	if s.plan != nil {
		p := *s.plan
		snap.Plan = &p
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	if s.endedAt != nil {
		t := *s.endedAt
		snap.EndedAt = &t
	}
	snap.Progress = make([]ProgressUpdate, len(s.progress))
	copy(snap.Progress, s.progress)
	return snap
}
