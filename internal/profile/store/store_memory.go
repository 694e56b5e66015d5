package store

import (
	"context"
	"sync"

	"carebridge/internal/profile/models"
	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
)

// InMemoryStore keeps profiles in a mutex-guarded map. It favors clarity over
// performance and backs unit tests and local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.ProfileID]*models.Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.ProfileID]*models.Profile)}
}

func (s *InMemoryStore) FindByID(_ context.Context, profileID id.ProfileID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[profileID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindActiveByAccount(_ context.Context, accountID id.AccountID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.AccountID == accountID && p.Active {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Upsert(_ context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *profile
	s.profiles[profile.ID] = &cp
	return nil
}
