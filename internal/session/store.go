package session

import (
	"context"
	"sync"
)

// Store persists the two session entries. Implementations must apply a
// PutAll atomically: readers never see a new id with an old timestamp.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	PutAll(ctx context.Context, values map[string]string) error
	Close() error
}

type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) PutAll(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
