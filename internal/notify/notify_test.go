package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "carebridge/pkg/domain"
	"carebridge/pkg/requestcontext"
)

type captureSink struct {
	published []Event
	failAfter int
}

func (s *captureSink) Publish(_ context.Context, event Event) error {
	if s.failAfter > 0 && len(s.published) >= s.failAfter {
		return errors.New("broker unavailable")
	}
	s.published = append(s.published, event)
	return nil
}

func TestPublisherEmitFillsDefaults(t *testing.T) {
	store := NewMemoryStore()
	pub := NewPublisher(store)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	err := pub.Emit(ctx, Event{
		Action:             ActionConnectionCreated,
		ConnectionID:       id.NewConnectionID(),
		ActorProfileID:     id.NewProfileID(),
		RecipientProfileID: id.NewProfileID(),
	})
	require.NoError(t, err)

	events := store.All()
	require.Len(t, events, 1)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
	assert.Equal(t, now, events[0].OccurredAt)
}

func TestWorkerDrainPublishesAndMarks(t *testing.T) {
	store := NewMemoryStore()
	pub := NewPublisher(store)
	for i := 0; i < 3; i++ {
		require.NoError(t, pub.Emit(context.Background(), Event{
			Action:       ActionConnectionCreated,
			ConnectionID: id.NewConnectionID(),
		}))
	}

	sink := &captureSink{}
	w := NewWorker(store, sink, time.Second, nil)
	require.NoError(t, w.drain(context.Background()))

	assert.Len(t, sink.published, 3)
	remaining, err := store.ListUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestWorkerDrainRetainsFailedEvents(t *testing.T) {
	store := NewMemoryStore()
	pub := NewPublisher(store)
	for i := 0; i < 3; i++ {
		require.NoError(t, pub.Emit(context.Background(), Event{
			Action:       ActionConnectionEnded,
			ConnectionID: id.NewConnectionID(),
		}))
	}

	sink := &captureSink{failAfter: 1}
	w := NewWorker(store, sink, time.Second, nil)
	require.NoError(t, w.drain(context.Background()))

	// One event made it out; the rest wait for the next tick.
	assert.Len(t, sink.published, 1)
	remaining, err := store.ListUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}
