// Package store persists membership rows and owns the atomic free-quota
// counter operations.
package store

import (
	"context"

	"carebridge/internal/membership/models"
	id "carebridge/pkg/domain"
)

type Store interface {
	// GetByAccount returns the membership or sentinel.ErrNotFound.
	GetByAccount(ctx context.Context, accountID id.AccountID) (*models.Membership, error)
	// Upsert writes the subscription fields. The webhook handler is the only
	// production caller.
	Upsert(ctx context.Context, m *models.Membership) error
	// ConsumeFreeResponse increments free_responses_used by one, atomically,
	// only while the counter is below ceiling. Returns
	// sentinel.ErrQuotaExhausted when the ceiling was already reached and
	// sentinel.ErrNotFound when the account has no membership. This is a
	// single conditional update, not a read-then-write, so concurrent gated
	// actions cannot both pass the check.
	ConsumeFreeResponse(ctx context.Context, accountID id.AccountID, ceiling int) error
	// ReleaseFreeResponse decrements the counter (floored at zero). Called
	// only to roll back a consumption whose action subsequently failed, so
	// the counter tracks successful actions exactly.
	ReleaseFreeResponse(ctx context.Context, accountID id.AccountID) error
}
