package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"carebridge/internal/connection/models"
	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
	"carebridge/pkg/platform/tx"
)

// PostgresStore persists connections in PostgreSQL. Metadata lives in a JSONB
// column so new flags never require a migration; every transition is a single
// conditional UPDATE keyed on the expected prior status. Insert honors a
// transaction carried in context so a connection and its outbox event commit
// together.
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

const connectionColumns = `
	id, from_profile_id, to_profile_id, type, status, message, metadata,
	created_at, updated_at
`

func (s *PostgresStore) Insert(ctx context.Context, conn *models.Connection) error {
	meta, err := json.Marshal(conn.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	query := `
		INSERT INTO connections (id, from_profile_id, to_profile_id, type,
			status, message, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.writer(ctx).ExecContext(ctx, query,
		conn.ID.String(), conn.FromProfileID.String(), conn.ToProfileID.String(),
		string(conn.Type), string(conn.Status), conn.Message, meta,
		conn.CreatedAt, conn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, connID id.ConnectionID) (*models.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`
	conn, err := scanConnection(s.db.QueryRowContext(ctx, query, connID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find connection: %w", err)
	}
	return conn, nil
}

func (s *PostgresStore) ListByProfile(ctx context.Context, profileID id.ProfileID, filter ListFilter) ([]*models.Connection, error) {
	query := `
		SELECT ` + connectionColumns + `
		FROM connections
		WHERE (from_profile_id = $1 OR to_profile_id = $1)
			AND ($2::text IS NULL OR status = $2)
			AND ($3 OR NOT coalesce((metadata->>'hidden')::bool, false))
			AND ($4 = '' OR ($4 = 'sent' AND from_profile_id = $1)
				OR ($4 = 'received' AND to_profile_id = $1))
		ORDER BY created_at DESC
	`
	var status sql.NullString
	if filter.Status != nil {
		status = sql.NullString{String: string(*filter.Status), Valid: true}
	}
	rows, err := s.db.QueryContext(ctx, query, profileID.String(), status,
		filter.IncludeHidden, string(filter.Role))
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var out []*models.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("list connections: %w", err)
		}
		out = append(out, conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, connID id.ConnectionID, expected, next models.Status, meta *models.Metadata) (*models.Connection, error) {
	// A nil meta keeps the stored document: COALESCE sees a NULL parameter.
	var encoded []byte
	if meta != nil {
		var err error
		if encoded, err = json.Marshal(meta); err != nil {
			return nil, fmt.Errorf("encode metadata: %w", err)
		}
	}
	query := `
		UPDATE connections
		SET status = $3, metadata = COALESCE($4::jsonb, metadata), updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + connectionColumns
	conn, err := scanConnection(s.db.QueryRowContext(ctx, query,
		connID.String(), string(expected), string(next), encoded))
	if err == nil {
		return conn, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("swap connection status: %w", err)
	}
	// The guard rejected the write: either the row is gone or someone else
	// transitioned it first.
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM connections WHERE id = $1)`,
		connID.String()).Scan(&exists); err != nil {
		return nil, fmt.Errorf("swap connection status: %w", err)
	}
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return nil, sentinel.ErrInvalidState
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*models.Connection, error) {
	var (
		conn     models.Connection
		connID   string
		fromID   string
		toID     string
		connType string
		status   string
		message  sql.NullString
		meta     []byte
	)
	err := row.Scan(&connID, &fromID, &toID, &connType, &status, &message, &meta,
		&conn.CreatedAt, &conn.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if conn.ID, err = id.ParseConnectionID(connID); err != nil {
		return nil, fmt.Errorf("stored connection id: %w", err)
	}
	if conn.FromProfileID, err = id.ParseProfileID(fromID); err != nil {
		return nil, fmt.Errorf("stored from profile id: %w", err)
	}
	if conn.ToProfileID, err = id.ParseProfileID(toID); err != nil {
		return nil, fmt.Errorf("stored to profile id: %w", err)
	}
	if conn.Type, err = models.ParseType(connType); err != nil {
		return nil, fmt.Errorf("stored connection type: %w", err)
	}
	if conn.Status, err = models.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("stored connection status: %w", err)
	}
	conn.Message = message.String
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &conn.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return &conn, nil
}
