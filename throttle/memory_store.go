package throttle

import (
	"context"
	"sync"
)

// MemoryStateStore keeps throttle reference points in process. Position
// throttling tolerates loss on restart: the next sample is simply admitted.
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]State
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		entries: map[string]State{},
	}
}

func (s *MemoryStateStore) Get(_ context.Context, key string) (State, error) {
	if s == nil {
		return State{}, ErrStateNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.entries[key]
	if !ok {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

func (s *MemoryStateStore) Upsert(_ context.Context, state State) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = map[string]State{}
	}
	s.entries[state.Key] = state
	return nil
}

func (s *MemoryStateStore) Delete(_ context.Context, key string) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

var _ StateStore = (*MemoryStateStore)(nil)
