// Package notify carries connection lifecycle events to the outside world.
// Domain code appends events to a transactional outbox; a background worker
// drains the outbox to Kafka. Delivery to end users (email, push) is a
// downstream consumer's concern.
package notify

import (
	"time"

	"github.com/google/uuid"

	id "carebridge/pkg/domain"
)

// Action names a lifecycle moment a downstream notifier may react to.
type Action string

const (
	ActionConnectionCreated   Action = "connection.created"
	ActionConnectionResponded Action = "connection.responded"
	ActionConnectionEnded     Action = "connection.ended"
)

// Event is emitted from domain logic. Keep it transport-agnostic so stores
// and sinks can fan out.
type Event struct {
	ID                 uuid.UUID       `json:"id"`
	Action             Action          `json:"action"`
	ConnectionID       id.ConnectionID `json:"connection_id"`
	ActorProfileID     id.ProfileID    `json:"actor_profile_id"`
	RecipientProfileID id.ProfileID    `json:"recipient_profile_id"`
	OccurredAt         time.Time       `json:"occurred_at"`
	PublishedAt        *time.Time      `json:"-"`
}
