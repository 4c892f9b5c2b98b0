package peer

import (
	"sort"
	"sync"
)

// Table holds at most one session per remote participant.
type Table struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewTable() *Table {
	return &Table{sessions: make(map[string]*Session)}
}

func (t *Table) Get(remoteID string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.sessions[remoteID]
	return s, ok
}

// Add stores s unless a session for the same peer already exists, in which
// case the existing one is returned with false.
func (t *Table) Add(s *Session) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.sessions[s.remoteID]; ok {
		return existing, false
	}
	t.sessions[s.remoteID] = s
	return s, true
}

func (t *Table) Remove(remoteID string) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.sessions[remoteID]
	delete(t.sessions, remoteID)
	return s
}

// RemoveSession deletes s only if it is still the stored session for its
// peer.
func (t *Table) RemoveSession(s *Session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sessions[s.remoteID] != s {
		return false
	}
	delete(t.sessions, s.remoteID)
	return true
}

func (t *Table) Drain() []*Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	t.sessions = make(map[string]*Session)
	return out
}

func (t *Table) List() []*Session {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].remoteID < out[j].remoteID })
	return out
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}
