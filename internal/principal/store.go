package principal

import "context"

// Store persists principals. Lookups by API key digest back the auth
// middleware; lookups by address back trail reads.
//
// Create assigns the ID and returns sentinel.ErrConflict when the ledger
// address or email is already registered. Missing rows surface as
// sentinel.ErrNotFound.
type Store interface {
	Create(ctx context.Context, p *Principal) error
	SetAPIKeyHash(ctx context.Context, id int64, hash string) error
	GetByID(ctx context.Context, id int64) (*Principal, error)
	GetByAddress(ctx context.Context, ledgerAddress string) (*Principal, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*Principal, error)
}
