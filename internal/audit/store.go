package audit

import "context"

// Store persists audit events. Append joins a context-carried transaction
// when one is present so an event can commit atomically with the record
// update it describes.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByPrincipal(ctx context.Context, principalID int64, limit int) ([]Event, error)
	ListByToken(ctx context.Context, tokenID string) ([]Event, error)
}
