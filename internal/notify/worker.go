package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const drainBatchSize = 100

// Worker drains the outbox to a sink on a fixed interval. Events that fail to
// publish stay unpublished and are retried on the next tick; duplicates on
// the wire are possible (mark-after-publish), consumers must tolerate
// at-least-once delivery.
type Worker struct {
	store    Store
	sink     Sink
	interval time.Duration
	logger   *slog.Logger
}

func NewWorker(store Store, sink Sink, interval time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, sink: sink, interval: interval, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	events, err := w.store.ListUnpublished(ctx, drainBatchSize)
	if err != nil {
		return err
	}
	published := make([]uuid.UUID, 0, len(events))
	for _, event := range events {
		if err := w.sink.Publish(ctx, event); err != nil {
			w.logger.ErrorContext(ctx, "failed to publish notify event",
				"event_id", event.ID.String(),
				"action", string(event.Action),
				"error", err,
			)
			break
		}
		published = append(published, event.ID)
	}
	if len(published) == 0 {
		return nil
	}
	return w.store.MarkPublished(ctx, published)
}
