package authcache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the single-process cache used in tests and when Redis is
// not configured but caching is still wanted.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // principal -> expiry
	clock   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		clock:   time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, principal string) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.entries[principal]
	if !ok {
		return false, false
	}
	if s.clock().After(expiry) {
		delete(s.entries, principal)
		return false, false
	}
	return true, true
}

func (s *MemoryStore) Set(_ context.Context, principal string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[principal] = s.clock().Add(ttl)
}

func (s *MemoryStore) Invalidate(_ context.Context, principal string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, principal)
}
