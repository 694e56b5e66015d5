package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"carebridge/internal/profile/models"
	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
)

// PostgresStore persists profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const profileColumns = `id, account_id, type, display_name, city, state, care_types,
	description, phone, email, website, active, created_at, updated_at`

func (s *PostgresStore) FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, profileID.String()))
}

func (s *PostgresStore) FindActiveByAccount(ctx context.Context, accountID id.AccountID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE account_id = $1 AND active ORDER BY updated_at DESC LIMIT 1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, accountID.String()))
}

func (s *PostgresStore) Upsert(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (id, account_id, type, display_name, city, state, care_types,
			description, phone, email, website, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			care_types = EXCLUDED.care_types,
			description = EXCLUDED.description,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			website = EXCLUDED.website,
			active = EXCLUDED.active,
			updated_at = now()
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID.String(), p.AccountID.String(), string(p.Type), p.DisplayName,
		p.City, p.State, pq.Array(p.CareTypes), p.Description,
		p.Phone, p.Email, p.Website, p.Active,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanOne(row *sql.Row) (*models.Profile, error) {
	var (
		p                    models.Profile
		profileID, accountID string
		profileType          string
	)
	err := row.Scan(
		&profileID, &accountID, &profileType, &p.DisplayName, &p.City, &p.State,
		pq.Array(&p.CareTypes), &p.Description, &p.Phone, &p.Email, &p.Website,
		&p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	if p.ID, err = id.ParseProfileID(profileID); err != nil {
		return nil, fmt.Errorf("stored profile id: %w", err)
	}
	if p.AccountID, err = id.ParseAccountID(accountID); err != nil {
		return nil, fmt.Errorf("stored account id: %w", err)
	}
	if p.Type, err = id.ParseProfileType(profileType); err != nil {
		return nil, fmt.Errorf("stored profile type: %w", err)
	}
	return &p, nil
}
