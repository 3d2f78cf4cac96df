package record

import (
	"context"
	"time"
)

// Confirmation carries the ledger receipt fields applied when a record is
// finalized as verified.
type Confirmation struct {
	LedgerTxRef string
	LedgerBlock int64
	GasUsed     int64
	VerifiedAt  time.Time
}

// Store persists records. Mutations are single-row, keyed by token ID, and
// must honor the status machine: pending records move to exactly one of
// verified or failed; failed records may move to verified on explicit
// resubmission; verified is terminal. Implementations return
// sentinel.ErrNotFound for unknown tokens and sentinel.ErrInvalidState for
// disallowed transitions, and join a context-carried SQL transaction where
// one is present.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	GetByTokenID(ctx context.Context, tokenID string) (*Record, error)
	ListByPrincipal(ctx context.Context, principalID int64, limit, offset int) ([]*Record, error)
	CountByPrincipal(ctx context.Context, principalID int64) (int64, error)
	CountByStatus(ctx context.Context, principalID int64, status Status) (int64, error)
	ListPending(ctx context.Context, limit int) ([]*Record, error)
	MarkVerified(ctx context.Context, tokenID string, conf Confirmation) error
	MarkFailed(ctx context.Context, tokenID, failureKind string) error
}
