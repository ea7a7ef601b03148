package archive

import (
	"context"
	"sync"

	"github.com/jatanrathod13/researcher/internal/session"
)

// Memory is an in-process archive. Used in tests and in one-shot CLI runs
// where redis would be overkill.
type Memory struct {
	mu    sync.Mutex
	runs  map[string]session.Snapshot
	order []string
	cap   int
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 50
	}
	return &Memory{runs: make(map[string]session.Snapshot), cap: capacity}
}

func (m *Memory) SaveRun(_ context.Context, snap session.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[snap.ID]; !ok {
		m.order = append([]string{snap.ID}, m.order...)
	}
	m.runs[snap.ID] = snap
	for len(m.order) > m.cap {
		last := m.order[len(m.order)-1]
		m.order = m.order[:len(m.order)-1]
		delete(m.runs, last)
	}
	return nil
}

func (m *Memory) RecentRuns(_ context.Context, n int) ([]session.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.order) {
		n = len(m.order)
	}
	out := make([]session.Snapshot, 0, n)
	for _, id := range m.order[:n] {
		out = append(out, m.runs[id])
	}
	return out, nil
}
