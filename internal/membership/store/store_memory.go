package store

import (
	"context"
	"sync"

	"carebridge/internal/membership/models"
	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
)

// InMemoryStore keeps memberships in a mutex-guarded map. The quota
// operations hold the write lock across check and increment, giving the same
// atomicity the conditional UPDATE provides in PostgreSQL.
type InMemoryStore struct {
	mu          sync.RWMutex
	memberships map[id.AccountID]*models.Membership
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{memberships: make(map[id.AccountID]*models.Membership)}
}

func (s *InMemoryStore) GetByAccount(_ context.Context, accountID id.AccountID) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.memberships[accountID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Upsert(_ context.Context, m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	if existing, ok := s.memberships[m.AccountID]; ok {
		// The webhook owns subscription fields; the counter survives updates.
		cp.FreeResponsesUsed = existing.FreeResponsesUsed
	}
	s.memberships[m.AccountID] = &cp
	return nil
}

func (s *InMemoryStore) ConsumeFreeResponse(_ context.Context, accountID id.AccountID, ceiling int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[accountID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if m.FreeResponsesUsed >= ceiling {
		return sentinel.ErrQuotaExhausted
	}
	m.FreeResponsesUsed++
	return nil
}

func (s *InMemoryStore) ReleaseFreeResponse(_ context.Context, accountID id.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[accountID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if m.FreeResponsesUsed > 0 {
		m.FreeResponsesUsed--
	}
	return nil
}
