package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher captures structured audit events. Record writes go through Append
// so the caller can bind them to its transaction; everything else is handed to
// the background worker and must never block or fail the request path.
type Publisher struct {
	store  Store
	inbox  chan<- Event
	logger *slog.Logger
}

func NewPublisher(store Store, inbox chan<- Event, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, inbox: inbox, logger: logger}
}

// Append persists an event synchronously, joining any transaction carried in
// ctx. Use for events that must commit atomically with a record update.
func (p *Publisher) Append(ctx context.Context, event Event) error {
	return p.store.Append(ctx, stamp(event))
}

// Emit hands an event to the background worker. A full inbox drops the event
// with a log line rather than stalling the caller.
func (p *Publisher) Emit(event Event) {
	event = stamp(event)
	select {
	case p.inbox <- event:
	default:
		p.logger.Warn("audit inbox full, dropping event",
			"action", event.Action, "token_id", event.TokenID)
	}
}

// List returns the audit trail for a principal, newest first.
func (p *Publisher) List(ctx context.Context, principalID int64, limit int) ([]Event, error) {
	return p.store.ListByPrincipal(ctx, principalID, limit)
}

func stamp(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.ActionType == "" {
		event.ActionType = TypeOf(event.Action)
	}
	if event.Status == "" {
		event.Status = StatusSuccess
	}
	return event
}
