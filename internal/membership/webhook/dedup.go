package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedup remembers processed webhook event IDs so provider retries and
// replayed deliveries are no-ops.
type Dedup interface {
	// MarkProcessed records the event ID. Returns false when the event was
	// already seen.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
	// Forget releases the event ID. Called when applying the event failed, so
	// the provider's retry is processed fresh instead of acked as a replay.
	Forget(ctx context.Context, eventID string) error
}

const dedupKeyPrefix = "billing:event:"

// RedisDedup uses SETNX with a TTL. The TTL only bounds memory; the payment
// provider does not redeliver events older than days.
type RedisDedup struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDedup(client *redis.Client, ttl time.Duration) *RedisDedup {
	return &RedisDedup{client: client, ttl: ttl}
}

func (d *RedisDedup) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	return d.client.SetNX(ctx, dedupKeyPrefix+eventID, 1, d.ttl).Result()
}

func (d *RedisDedup) Forget(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, dedupKeyPrefix+eventID).Err()
}

// MemoryDedup backs unit tests and redis-less deployments.
type MemoryDedup struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{seen: make(map[string]struct{})}
}

func (d *MemoryDedup) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[eventID]; ok {
		return false, nil
	}
	d.seen[eventID] = struct{}{}
	return true, nil
}

func (d *MemoryDedup) Forget(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, eventID)
	return nil
}
