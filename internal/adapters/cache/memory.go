package cache

import (
	"context"
	"sync"
	"time"

	"domainfinder/internal/domain"
)

type entry struct {
	outcome   domain.VerifyOutcome
	expiresAt time.Time
}

// MemoryStore is a process-local Store. Expired entries are dropped lazily
// on read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, host string) (domain.VerifyOutcome, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[host]
	s.mu.RUnlock()
	if !ok {
		return 0, false, nil
	}
	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, host)
		s.mu.Unlock()
		return 0, false, nil
	}
	return e.outcome, true, nil
}

func (s *MemoryStore) Set(_ context.Context, host string, outcome domain.VerifyOutcome, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[host] = entry{outcome: outcome, expiresAt: s.now().Add(ttl)}
	return nil
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
