package record

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"veritrail/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and local development. It
// enforces the same status transitions as the PostgreSQL store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// WithClock overrides the clock used for created_at stamping.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.TokenID]; ok {
		return fmt.Errorf("record %s: %w", rec.TokenID, sentinel.ErrConflict)
	}
	rec.Status = StatusPending
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	cp := *rec
	s.records[rec.TokenID] = &cp
	return nil
}

func (s *MemoryStore) GetByTokenID(_ context.Context, tokenID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[tokenID]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", tokenID, sentinel.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) ListByPrincipal(_ context.Context, principalID int64, limit, offset int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*Record
	for _, rec := range s.records {
		if rec.PrincipalID == principalID {
			cp := *rec
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *MemoryStore) CountByPrincipal(_ context.Context, principalID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, rec := range s.records {
		if rec.PrincipalID == principalID {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CountByStatus(_ context.Context, principalID int64, status Status) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, rec := range s.records {
		if rec.PrincipalID == principalID && rec.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) ListPending(_ context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []*Record
	for _, rec := range s.records {
		if rec.Status == StatusPending {
			cp := *rec
			pending = append(pending, &cp)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && limit < len(pending) {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, tokenID string, conf Confirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[tokenID]
	if !ok {
		return fmt.Errorf("record %s: %w", tokenID, sentinel.ErrNotFound)
	}
	if rec.Status == StatusVerified {
		return fmt.Errorf("record %s: %w", tokenID, sentinel.ErrInvalidState)
	}
	rec.LedgerTxRef = conf.LedgerTxRef
	rec.LedgerBlock = conf.LedgerBlock
	rec.GasUsed = conf.GasUsed
	rec.Status = StatusVerified
	rec.FailureKind = FailureNone
	rec.IsVerified = true
	t := conf.VerifiedAt
	rec.VerifiedAt = &t
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, tokenID, failureKind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[tokenID]
	if !ok {
		return fmt.Errorf("record %s: %w", tokenID, sentinel.ErrNotFound)
	}
	if rec.Status == StatusVerified {
		return fmt.Errorf("record %s: %w", tokenID, sentinel.ErrInvalidState)
	}
	rec.Status = StatusFailed
	rec.FailureKind = failureKind
	return nil
}
