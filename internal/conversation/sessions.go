package conversation

import (
	"context"
	"sync"
	"time"
)

// SessionStore holds in-progress flows keyed by session ID. The engine is
// its only user.
type SessionStore interface {
	// Get returns the flow for sessionID, or nil if the session is idle.
	Get(ctx context.Context, sessionID string) (*State, error)

	// Put stores the flow for sessionID, replacing any previous one.
	Put(ctx context.Context, sessionID string, state *State) error

	// Delete returns sessionID to idle.
	Delete(ctx context.Context, sessionID string) error
}

// IdleSweeper is implemented by stores that need an external sweep to
// expire abandoned flows.
type IdleSweeper interface {
	DeleteIdle(ctx context.Context, olderThan time.Time) (int, error)
}

// MemorySessionStore keeps flows in process memory. Flows are lost on
// restart. States are copied on the way in and out so callers never share
// a draft with the store.
type MemorySessionStore struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		states: make(map[string]*State),
	}
}

// Get returns a copy of the stored flow.
func (m *MemorySessionStore) Get(_ context.Context, sessionID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.states[sessionID]; ok {
		return s.Clone(), nil
	}
	return nil, nil
}

// Put stores a copy of state.
func (m *MemorySessionStore) Put(_ context.Context, sessionID string, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[sessionID] = state.Clone()
	return nil
}

// Delete removes the flow for sessionID.
func (m *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionID)
	return nil
}

// DeleteIdle removes flows last updated before olderThan.
func (m *MemorySessionStore) DeleteIdle(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.states {
		if s.UpdatedAt.Before(olderThan) {
			delete(m.states, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of active flows.
func (m *MemorySessionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

var (
	_ SessionStore = (*MemorySessionStore)(nil)
	_ IdleSweeper  = (*MemorySessionStore)(nil)
)
