package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"carebridge/internal/connection/models"
	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded map store for tests and local development.
// CompareAndSwap holds the write lock across the guard check and the write,
// giving the same atomicity the conditional UPDATE gives in PostgreSQL.
type InMemory struct {
	mu          sync.RWMutex
	connections map[id.ConnectionID]*models.Connection
}

func NewInMemory() *InMemory {
	return &InMemory{connections: make(map[id.ConnectionID]*models.Connection)}
}

func (s *InMemory) Insert(_ context.Context, conn *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.connections[conn.ID]; exists {
		return sentinel.ErrConflict
	}
	s.connections[conn.ID] = clone(conn)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, connID id.ConnectionID) (*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.connections[connID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(conn), nil
}

func (s *InMemory) ListByProfile(_ context.Context, profileID id.ProfileID, filter ListFilter) ([]*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Connection
	for _, conn := range s.connections {
		if !conn.HasParticipant(profileID) {
			continue
		}
		if filter.Role == RoleSent && conn.FromProfileID != profileID {
			continue
		}
		if filter.Role == RoleReceived && conn.ToProfileID != profileID {
			continue
		}
		if filter.Status != nil && conn.Status != *filter.Status {
			continue
		}
		if !filter.IncludeHidden && conn.Metadata.Hidden {
			continue
		}
		out = append(out, clone(conn))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) CompareAndSwap(_ context.Context, connID id.ConnectionID, expected, next models.Status, meta *models.Metadata) (*models.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connections[connID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if conn.Status != expected {
		return nil, sentinel.ErrInvalidState
	}
	conn.Status = next
	if meta != nil {
		conn.Metadata = *meta
	}
	conn.UpdatedAt = time.Now().UTC()
	return clone(conn), nil
}

func clone(conn *models.Connection) *models.Connection {
	cp := *conn
	if conn.Metadata.Thread != nil {
		cp.Metadata.Thread = append([]models.ThreadMessage(nil), conn.Metadata.Thread...)
	}
	return &cp
}
