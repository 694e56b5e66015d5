//go:build integration

package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"carebridge/internal/notify"
	id "carebridge/pkg/domain"
	"carebridge/pkg/testutil/containers"
)

const testTopic = "carebridge.connection-events.test"

func TestKafkaSinkPublish(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()

	admin, err := kgo.NewClient(kgo.SeedBrokers(rp.Broker))
	require.NoError(t, err)
	defer admin.Close()
	_, err = kadm.NewClient(admin).CreateTopics(ctx, 1, 1, nil, testTopic)
	require.NoError(t, err)

	sink, err := notify.NewKafkaSink([]string{rp.Broker}, testTopic)
	require.NoError(t, err)
	defer sink.Close()

	event := notify.Event{
		ID:                 uuid.New(),
		Action:             notify.ActionConnectionCreated,
		ConnectionID:       id.NewConnectionID(),
		ActorProfileID:     id.NewProfileID(),
		RecipientProfileID: id.NewProfileID(),
		OccurredAt:         time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, sink.Publish(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(pollCtx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)

	require.Equal(t, event.ConnectionID.String(), string(records[0].Key),
		"records are keyed by connection so per-connection order survives partitioning")

	var got notify.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, event.ID, got.ID)
	require.Equal(t, event.Action, got.Action)
	require.Equal(t, event.RecipientProfileID, got.RecipientProfileID)
}
