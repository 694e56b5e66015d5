package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/tx"
)

// PostgresStore persists outbox rows. Append honors a transaction carried in
// context so an event commits or rolls back together with the domain write
// that produced it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) writer(ctx context.Context) execer {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO notify_outbox (id, action, connection_id, actor_profile_id,
			recipient_profile_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.writer(ctx).ExecContext(ctx, query,
		event.ID.String(), string(event.Action), event.ConnectionID.String(),
		event.ActorProfileID.String(), event.RecipientProfileID.String(),
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("append notify event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUnpublished(ctx context.Context, limit int) ([]Event, error) {
	query := `
		SELECT id, action, connection_id, actor_profile_id, recipient_profile_id,
			occurred_at
		FROM notify_outbox
		WHERE published_at IS NULL
		ORDER BY occurred_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e         Event
			eventID   string
			action    string
			connID    string
			actor     string
			recipient string
		)
		if err := rows.Scan(&eventID, &action, &connID, &actor, &recipient, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan notify event: %w", err)
		}
		if e.ID, err = uuid.Parse(eventID); err != nil {
			return nil, fmt.Errorf("stored event id: %w", err)
		}
		e.Action = Action(action)
		if e.ConnectionID, err = id.ParseConnectionID(connID); err != nil {
			return nil, fmt.Errorf("stored connection id: %w", err)
		}
		if e.ActorProfileID, err = id.ParseProfileID(actor); err != nil {
			return nil, fmt.Errorf("stored actor profile id: %w", err)
		}
		if e.RecipientProfileID, err = id.ParseProfileID(recipient); err != nil {
			return nil, fmt.Errorf("stored recipient profile id: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unpublished events: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, eventID := range ids {
		raw[i] = eventID.String()
	}
	query := `UPDATE notify_outbox SET published_at = $1 WHERE id = ANY($2)`
	if _, err := s.db.ExecContext(ctx, query, time.Now().UTC(), pq.Array(raw)); err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}
