package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Manager owns all live sessions, keyed by run ID, along with the cancel
// function for each run's workflow goroutine.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cancels  map[string]context.CancelFunc
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Create allocates a new session for the topic and returns it with a derived
// context the workflow should run under.
func (m *Manager) Create(ctx context.Context, topic string) (*Session, context.Context) {
	id := uuid.New().String()
	sess := newSession(id, topic)
	runCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.sessions[id] = sess
	m.cancels[id] = cancel
	m.mu.Unlock()

	return sess, runCtx
}

// Get returns the session for id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Cancel aborts a running session. Terminal sessions are left untouched.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	cancel := m.cancels[id]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("no session %s", id)
	}
	if sess.Status().Terminal() {
		return fmt.Errorf("session %s already finished", id)
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

// Finish releases the cancel func once a run's goroutine has exited. The
// session itself stays queryable.
func (m *Manager) Finish(id string) {
	m.mu.Lock()
	if cancel, ok := m.cancels[id]; ok {
		cancel()
		delete(m.cancels, id)
	}
	m.mu.Unlock()
}

// Remove drops the session entirely.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	if cancel, ok := m.cancels[id]; ok {
		cancel()
		delete(m.cancels, id)
	}
	delete(m.sessions, id)
	m.mu.Unlock()
}

// List returns snapshots of all sessions, newest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.SnapshotState())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}
