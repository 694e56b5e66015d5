package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"carebridge/internal/membership/models"
	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
)

// PostgresStore persists memberships in PostgreSQL. Quota consumption is a
// single conditional UPDATE keyed on the ceiling so concurrent gated actions
// serialize in the database, not in application code.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetByAccount(ctx context.Context, accountID id.AccountID) (*models.Membership, error) {
	query := `
		SELECT account_id, status, plan, free_responses_used, stripe_customer_id,
			stripe_subscription_id, billing_cycle, current_period_ends_at,
			created_at, updated_at
		FROM memberships WHERE account_id = $1
	`
	var (
		m         models.Membership
		acct      string
		status    string
		periodEnd sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, accountID.String()).Scan(
		&acct, &status, &m.Plan, &m.FreeResponsesUsed, &m.StripeCustomerID,
		&m.StripeSubscriptionID, &m.BillingCycle, &periodEnd,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}
	if m.AccountID, err = id.ParseAccountID(acct); err != nil {
		return nil, fmt.Errorf("stored account id: %w", err)
	}
	if m.Status, err = models.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("stored membership status: %w", err)
	}
	if periodEnd.Valid {
		t := periodEnd.Time
		m.CurrentPeriodEndsAt = &t
	}
	return &m, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, m *models.Membership) error {
	// free_responses_used is deliberately absent from the update list: the
	// webhook owns subscription fields, the gate owns the counter.
	query := `
		INSERT INTO memberships (account_id, status, plan, free_responses_used,
			stripe_customer_id, stripe_subscription_id, billing_cycle,
			current_period_ends_at, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5, $6, $7, now(), now())
		ON CONFLICT (account_id) DO UPDATE SET
			status = EXCLUDED.status,
			plan = EXCLUDED.plan,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			billing_cycle = EXCLUDED.billing_cycle,
			current_period_ends_at = EXCLUDED.current_period_ends_at,
			updated_at = now()
	`
	var periodEnd sql.NullTime
	if m.CurrentPeriodEndsAt != nil {
		periodEnd = sql.NullTime{Time: *m.CurrentPeriodEndsAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		m.AccountID.String(), string(m.Status), m.Plan,
		m.StripeCustomerID, m.StripeSubscriptionID, m.BillingCycle, periodEnd,
	)
	if err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) ConsumeFreeResponse(ctx context.Context, accountID id.AccountID, ceiling int) error {
	query := `
		UPDATE memberships
		SET free_responses_used = free_responses_used + 1, updated_at = now()
		WHERE account_id = $1 AND free_responses_used < $2
	`
	res, err := s.db.ExecContext(ctx, query, accountID.String(), ceiling)
	if err != nil {
		return fmt.Errorf("consume free response: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume free response: %w", err)
	}
	if rows == 0 {
		// Distinguish "no membership" from "quota spent".
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM memberships WHERE account_id = $1)`,
			accountID.String()).Scan(&exists); err != nil {
			return fmt.Errorf("consume free response: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrQuotaExhausted
	}
	return nil
}

func (s *PostgresStore) ReleaseFreeResponse(ctx context.Context, accountID id.AccountID) error {
	query := `
		UPDATE memberships
		SET free_responses_used = greatest(free_responses_used - 1, 0), updated_at = now()
		WHERE account_id = $1
	`
	res, err := s.db.ExecContext(ctx, query, accountID.String())
	if err != nil {
		return fmt.Errorf("release free response: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release free response: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
