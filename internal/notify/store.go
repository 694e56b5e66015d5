package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the outbox persistence contract.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListUnpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// MemoryStore keeps outbox rows in memory for tests.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStore) ListUnpublished(_ context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	marked := make(map[uuid.UUID]bool, len(ids))
	for _, eventID := range ids {
		marked[eventID] = true
	}
	for i := range s.events {
		if marked[s.events[i].ID] {
			t := now
			s.events[i].PublishedAt = &t
		}
	}
	return nil
}

// All returns every stored event, for test assertions.
func (s *MemoryStore) All() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}
