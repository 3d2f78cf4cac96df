package principal

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"veritrail/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Principal
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[int64]*Principal)}
}

func (s *MemoryStore) Create(_ context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if strings.EqualFold(existing.LedgerAddress, p.LedgerAddress) || existing.Email == p.Email {
			return fmt.Errorf("principal %s: %w", p.LedgerAddress, sentinel.ErrConflict)
		}
	}
	s.nextID++
	p.ID = s.nextID
	cp := *p
	s.byID[p.ID] = &cp
	return nil
}

func (s *MemoryStore) SetAPIKeyHash(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("principal %d: %w", id, sentinel.ErrNotFound)
	}
	p.APIKeyHash = hash
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("principal %d: %w", id, sentinel.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetByAddress(_ context.Context, ledgerAddress string) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byID {
		if strings.EqualFold(p.LedgerAddress, ledgerAddress) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("principal %s: %w", ledgerAddress, sentinel.ErrNotFound)
}

func (s *MemoryStore) GetByAPIKeyHash(_ context.Context, hash string) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byID {
		if p.APIKeyHash == hash {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("principal: %w", sentinel.ErrNotFound)
}

// SetActive flips the active flag. Test helper for exercising inactive
// principal paths.
func (s *MemoryStore) SetActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.byID[id]; ok {
		p.IsActive = active
	}
}
