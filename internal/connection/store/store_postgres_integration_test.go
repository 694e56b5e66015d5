//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"carebridge/internal/connection/models"
	"carebridge/internal/connection/store"
	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
	"carebridge/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "connections"))
}

func newConn(status models.Status) *models.Connection {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Connection{
		ID:            id.NewConnectionID(),
		FromProfileID: id.NewProfileID(),
		ToProfileID:   id.NewProfileID(),
		Type:          models.TypeInquiry,
		Status:        status,
		Message:       "Hello, we need weekend care for my mother.",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *PostgresStoreSuite) TestInsertFindRoundTrip() {
	ctx := context.Background()
	conn := newConn(models.StatusAccepted)
	sent := time.Now().UTC().Truncate(time.Microsecond)
	conn.Metadata.Thread = []models.ThreadMessage{
		{FromProfileID: conn.FromProfileID, Text: "When can you start?", CreatedAt: sent},
		{Text: "You ended this connection", CreatedAt: sent, Type: models.ThreadMessageSystem},
	}
	conn.Metadata.Hidden = true

	s.Require().NoError(s.store.Insert(ctx, conn))

	got, err := s.store.FindByID(ctx, conn.ID)
	s.Require().NoError(err)
	s.Equal(conn.ID, got.ID)
	s.Equal(conn.Status, got.Status)
	s.Equal(conn.Message, got.Message)
	s.Require().Len(got.Metadata.Thread, 2)
	s.Equal("When can you start?", got.Metadata.Thread[0].Text)
	s.Equal(models.ThreadMessageSystem, got.Metadata.Thread[1].Type)
	s.True(got.Metadata.Hidden)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), id.NewConnectionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCompareAndSwapGuard() {
	ctx := context.Background()
	conn := newConn(models.StatusPending)
	s.Require().NoError(s.store.Insert(ctx, conn))

	updated, err := s.store.CompareAndSwap(ctx, conn.ID, models.StatusPending, models.StatusAccepted, &conn.Metadata)
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, updated.Status)

	_, err = s.store.CompareAndSwap(ctx, conn.ID, models.StatusPending, models.StatusDeclined, &conn.Metadata)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	_, err = s.store.CompareAndSwap(ctx, id.NewConnectionID(), models.StatusPending, models.StatusAccepted, &conn.Metadata)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCompareAndSwapNilMetaKeepsDocument() {
	ctx := context.Background()
	conn := newConn(models.StatusPending)
	s.Require().NoError(s.store.Insert(ctx, conn))

	meta := conn.Metadata.AppendThread(models.ThreadMessage{
		FromProfileID: conn.FromProfileID,
		Text:          "Could we schedule a tour?",
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	})
	_, err := s.store.CompareAndSwap(ctx, conn.ID, models.StatusPending, models.StatusPending, &meta)
	s.Require().NoError(err)

	updated, err := s.store.CompareAndSwap(ctx, conn.ID, models.StatusPending, models.StatusAccepted, nil)
	s.Require().NoError(err)
	s.Equal(models.StatusAccepted, updated.Status)
	s.Require().Len(updated.Metadata.Thread, 1)
	s.Equal("Could we schedule a tour?", updated.Metadata.Thread[0].Text)
}

func (s *PostgresStoreSuite) TestConcurrentCompareAndSwap() {
	ctx := context.Background()
	conn := newConn(models.StatusPending)
	s.Require().NoError(s.store.Insert(ctx, conn))

	const goroutines = 20
	var wg sync.WaitGroup
	var wins, stale atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.CompareAndSwap(ctx, conn.ID, models.StatusPending, models.StatusAccepted, &conn.Metadata)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrInvalidState):
				stale.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load(), "exactly one swap should win")
	s.Equal(int32(goroutines-1), stale.Load())
}

func (s *PostgresStoreSuite) TestListFilters() {
	ctx := context.Background()
	me := id.NewProfileID()

	sent := newConn(models.StatusPending)
	sent.FromProfileID = me
	s.Require().NoError(s.store.Insert(ctx, sent))

	received := newConn(models.StatusAccepted)
	received.ToProfileID = me
	received.CreatedAt = received.CreatedAt.Add(time.Second)
	s.Require().NoError(s.store.Insert(ctx, received))

	hidden := newConn(models.StatusDeclined)
	hidden.ToProfileID = me
	hidden.Metadata.Hidden = true
	s.Require().NoError(s.store.Insert(ctx, hidden))

	all, err := s.store.ListByProfile(ctx, me, store.ListFilter{})
	s.Require().NoError(err)
	s.Len(all, 2, "hidden connections stay out by default")
	s.Equal(received.ID, all[0].ID, "newest first")

	withHidden, err := s.store.ListByProfile(ctx, me, store.ListFilter{IncludeHidden: true})
	s.Require().NoError(err)
	s.Len(withHidden, 3)

	pending := models.StatusPending
	byStatus, err := s.store.ListByProfile(ctx, me, store.ListFilter{Status: &pending})
	s.Require().NoError(err)
	s.Require().Len(byStatus, 1)
	s.Equal(sent.ID, byStatus[0].ID)

	onlyReceived, err := s.store.ListByProfile(ctx, me, store.ListFilter{Role: store.RoleReceived})
	s.Require().NoError(err)
	s.Require().Len(onlyReceived, 1)
	s.Equal(received.ID, onlyReceived[0].ID)
}
