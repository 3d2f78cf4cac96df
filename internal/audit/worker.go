package audit

import (
	"context"
	"log/slog"
	"time"
)

// Sink receives a copy of every persisted event, e.g. a Kafka topic for
// downstream consumers. Sink failures are logged and never stop the worker.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Worker consumes audit events from a channel and persists them. A nil sink
// disables fan-out. Run returns after ctx is cancelled and the inbox has been
// drained so shutdown does not lose queued events.
type Worker struct {
	store  Store
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.handle(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-w.inbox:
			w.handle(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) handle(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.Error("persist audit event",
			"action", event.Action, "token_id", event.TokenID, "error", err)
		return
	}
	if w.sink == nil {
		return
	}
	if err := w.sink.Publish(ctx, event); err != nil {
		w.logger.Warn("publish audit event to sink",
			"action", event.Action, "token_id", event.TokenID, "error", err)
	}
}
