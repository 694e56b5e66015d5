package notify

import (
	"context"

	"github.com/google/uuid"

	"carebridge/pkg/requestcontext"
)

// Publisher appends lifecycle events to the outbox. It is append-only and
// uses the storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = requestcontext.Now(ctx)
	}
	return p.store.Append(ctx, event)
}

// NopPublisher discards events. Used where notification wiring is optional.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) error { return nil }
