package game

import "sync"

// SnapshotStore keeps the current and immediately-previous authoritative
// MapState. The previous snapshot only lives long enough to diff one round
// and is dropped on the next swap.
//
// Writers (the dispatcher) and readers (transport handlers) go through the
// same lock, so a reader can never observe the current state rotated but
// the previous one not yet.
type SnapshotStore struct {
	mu       sync.RWMutex
	current  *MapState
	previous *MapState
}

// NewSnapshotStore creates an empty store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Swap stores state as current, rotating the old current into previous.
// It returns the snapshot pair after the rotation. The stored state is
// deep-copied so the caller may keep mutating its own value.
func (s *SnapshotStore) Swap(state MapState) (previous, current *MapState) {
	cp := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.previous = s.current
	s.current = &cp
	return s.previous, s.current
}

// Current returns the current snapshot, or nil before the first round.
func (s *SnapshotStore) Current() *MapState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Previous returns the prior snapshot, or nil before round 2.
func (s *SnapshotStore) Previous() *MapState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previous
}
