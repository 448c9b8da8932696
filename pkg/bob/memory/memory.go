package memory

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore keeps conversation state in a map. Safe for concurrent
// use. State is copied on both Put and Get so callers cannot alias the
// stored bytes.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]byte
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string][]byte)}
}

func (s *InMemoryStore) Get(_ context.Context, threadID string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.threads[threadID]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(state))
	copy(out, state)
	return out, true, nil
}

func (s *InMemoryStore) Put(_ context.Context, threadID string, state []byte) error {
	stored := make([]byte, len(state))
	copy(stored, state)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadID] = stored
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads = make(map[string][]byte)
	return nil
}
