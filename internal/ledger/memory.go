package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryLedger is an in-process ledger for local development and tests. It
// honors the append-only contract: entries are never mutated after
// SubmitEntry returns. A configurable latency mimics confirmation delay and
// the Unavailable switch simulates a ledger outage.
type MemoryLedger struct {
	mu          sync.Mutex
	entries     map[string][]Entry // keyed by principal
	authorized  map[string]bool
	block       int64
	Latency     time.Duration
	Unavailable bool
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries:    make(map[string][]Entry),
		authorized: make(map[string]bool),
	}
}

// SetUnavailable toggles the simulated outage.
func (m *MemoryLedger) SetUnavailable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Unavailable = down
}

func (m *MemoryLedger) check(ctx context.Context) error {
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	down := m.Unavailable
	m.mu.Unlock()
	if down {
		return fmt.Errorf("%w: simulated outage", ErrUnavailable)
	}
	return nil
}

func (m *MemoryLedger) receipt() Receipt {
	m.block++
	return Receipt{
		TxRef:   fmt.Sprintf("0x%064x", m.block),
		Block:   m.block,
		GasUsed: 21000,
		Success: true,
	}
}

func (m *MemoryLedger) SetAuthorization(ctx context.Context, principal string, enabled bool) (Receipt, error) {
	if err := m.check(ctx); err != nil {
		return Receipt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorized[principal] = enabled
	return m.receipt(), nil
}

func (m *MemoryLedger) SubmitEntry(ctx context.Context, req SubmitRequest) (Receipt, error) {
	if err := m.check(ctx); err != nil {
		return Receipt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authorized[req.Principal] {
		return Receipt{}, ErrNotAuthorized
	}
	receipt := m.receipt()
	m.entries[req.Principal] = append(m.entries[req.Principal], Entry{
		TokenID:        req.TokenID,
		Principal:      req.Principal,
		Timestamp:      time.Now().Unix(),
		Type:           req.Type,
		AmountCents:    req.AmountCents,
		DataHash:       req.DataHash,
		ContentLocator: req.ContentLocator,
		Verified:       true,
	})
	return receipt, nil
}

func (m *MemoryLedger) ReadTrail(ctx context.Context, principal string) ([]Entry, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	trail := make([]Entry, len(m.entries[principal]))
	copy(trail, m.entries[principal])
	return trail, nil
}

func (m *MemoryLedger) VerifyEntry(ctx context.Context, tokenID, principal string) (bool, *Entry, error) {
	if err := m.check(ctx); err != nil {
		return false, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries[principal] {
		if e.TokenID == tokenID {
			entry := e
			return true, &entry, nil
		}
	}
	return false, nil, nil
}

func (m *MemoryLedger) VerifyIntegrity(ctx context.Context, tokenID, principal, expectedHash string) (bool, error) {
	exists, entry, err := m.VerifyEntry(ctx, tokenID, principal)
	if err != nil || !exists {
		return false, err
	}
	return strings.EqualFold(entry.DataHash, expectedHash), nil
}

func (m *MemoryLedger) CountEntries(ctx context.Context, principal string) (int64, error) {
	if err := m.check(ctx); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries[principal])), nil
}

func (m *MemoryLedger) IsAuthorized(ctx context.Context, principal string) (bool, error) {
	if err := m.check(ctx); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.authorized[principal], nil
}
