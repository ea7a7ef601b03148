package factstore

import (
	"sync"
	"time"

	"github.com/jatanrathod13/researcher/internal/schema"
)

// Store is a session-scoped, append-only log of facts discovered during
// research. Record and Snapshot are safe to call concurrently; Snapshot
// returns a point-in-time copy that later appends never mutate.
type Store struct {
	mu    sync.RWMutex
	facts []schema.Fact
	subs  map[int]chan int
	next  int
}

func New() *Store {
	return &Store{subs: make(map[int]chan int)}
}

// Record appends a fact and returns the stored record. Subscribers are
// notified with the new size; a slow subscriber never blocks the writer.
func (s *Store) Record(text, source string) schema.Fact {
	fact := schema.NewFact(text, source, time.Now())

	s.mu.Lock()
	s.facts = append(s.facts, fact)
	size := len(s.facts)
	for _, ch := range s.subs {
		select {
		case ch <- size:
		default:
		}
	}
	s.mu.Unlock()

	return fact
}

// Snapshot returns an ordered copy of all facts recorded so far.
func (s *Store) Snapshot() []schema.Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.Fact, len(s.facts))
	copy(out, s.facts)
	return out
}

// Size returns the number of recorded facts.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facts)
}

// Reset clears all facts. Only called at session start.
func (s *Store) Reset() {
	s.mu.Lock()
	s.facts = nil
	s.mu.Unlock()
}

// Subscribe registers for append notifications. Each notification carries the
// store size after the append. The channel is buffered so bursts of appends
// coalesce rather than block; callers should re-read Size or Snapshot on each
// wake-up. The returned cancel func must be called to release the subscription.
func (s *Store) Subscribe() (<-chan int, func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	ch := make(chan int, 16)
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}
