package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) ListByPrincipal(_ context.Context, principalID int64, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []Event
	for _, event := range s.events {
		if event.PrincipalID == principalID {
			matched = append(matched, event)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryStore) ListByToken(_ context.Context, tokenID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []Event
	for _, event := range s.events {
		if event.TokenID == tokenID {
			matched = append(matched, event)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.Before(matched[j].OccurredAt)
	})
	return matched, nil
}

// All returns every stored event in append order. Test helper.
func (s *MemoryStore) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
