package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps markers in memory. It does not survive restarts and is
// meant for tests and single-process runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	expires, ok := s.records[key]
	if !ok {
		return false, nil
	}
	if !expires.IsZero() && !s.now().Before(expires) {
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Mark(_ context.Context, key string, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = expires
	return nil
}

// Len returns the number of stored markers, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
