// Package store persists profiles. Interface-driven so the connection engine
// stays testable without a live database.
package store

import (
	"context"

	"carebridge/internal/profile/models"
	id "carebridge/pkg/domain"
)

type Store interface {
	// FindByID returns the profile or sentinel.ErrNotFound.
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	// FindActiveByAccount resolves an account to its single active profile,
	// or sentinel.ErrNotFound when the account has none.
	FindActiveByAccount(ctx context.Context, accountID id.AccountID) (*models.Profile, error)
	// Upsert writes a profile row. The onboarding flow owns profile
	// mutation; this exists for seeding and tests.
	Upsert(ctx context.Context, profile *models.Profile) error
}
