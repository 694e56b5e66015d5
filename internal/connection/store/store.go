// Package store persists connections. Two implementations: an in-memory map
// for unit tests and PostgreSQL for production.
package store

import (
	"context"

	"carebridge/internal/connection/models"
	id "carebridge/pkg/domain"
)

// Role restricts a listing to one direction of participation.
type Role string

const (
	RoleAny      Role = ""
	RoleSent     Role = "sent"
	RoleReceived Role = "received"
)

// ListFilter narrows ListByProfile results.
type ListFilter struct {
	Status        *models.Status
	Role          Role
	IncludeHidden bool
}

// Store is the persistence contract for connections.
//
// CompareAndSwap is the only mutation path for existing rows: it writes the
// new status, and the new metadata when meta is non-nil, only if the row
// still carries the expected status. A nil meta leaves the stored metadata
// untouched, so status-only transitions cannot clobber a concurrent thread
// append. Implementations return sentinel.ErrNotFound when the id does not
// resolve and sentinel.ErrInvalidState when the guard fails.
type Store interface {
	Insert(ctx context.Context, conn *models.Connection) error
	FindByID(ctx context.Context, connID id.ConnectionID) (*models.Connection, error)
	ListByProfile(ctx context.Context, profileID id.ProfileID, filter ListFilter) ([]*models.Connection, error)
	CompareAndSwap(ctx context.Context, connID id.ConnectionID, expected, next models.Status, meta *models.Metadata) (*models.Connection, error)
}
