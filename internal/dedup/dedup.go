// Package dedup suppresses duplicate webhook deliveries.
//
// WhatsApp redelivers webhook events on slow or failed acknowledgements, so
// every provider message ID is claimed exactly once before dispatch. A Redis
// backend shares the claim set across replicas; the in-memory backend covers
// single-instance deployments and tests.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a claimed message ID stays remembered. Provider
// retries arrive well within this horizon.
const DefaultTTL = 24 * time.Hour

// Deduplicator claims provider message IDs.
type Deduplicator interface {
	// Seen claims the ID. Returns true when the ID was already claimed
	// (the event is a duplicate and must be dropped).
	Seen(ctx context.Context, messageID string) (bool, error)
	// Close releases backend resources.
	Close() error
}

// RedisDeduplicator claims IDs with SETNX so the claim is atomic across
// replicas.
type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduplicator connects to Redis at the given address and verifies
// the connection.
func NewRedisDeduplicator(ctx context.Context, addr, password string, db int) (*RedisDeduplicator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	slog.Debug("RedisDeduplicator connected", "addr", addr, "db", db)
	return &RedisDeduplicator{client: client, ttl: DefaultTTL}, nil
}

// NewRedisDeduplicatorFromClient wraps an existing client. Tests use this
// with miniredis.
func NewRedisDeduplicatorFromClient(client *redis.Client) *RedisDeduplicator {
	return &RedisDeduplicator{client: client, ttl: DefaultTTL}
}

func dedupKey(messageID string) string {
	return "webhook:seen:" + messageID
}

// Seen claims the message ID via SETNX.
func (d *RedisDeduplicator) Seen(ctx context.Context, messageID string) (bool, error) {
	claimed, err := d.client.SetNX(ctx, dedupKey(messageID), 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim message ID: %w", err)
	}
	return !claimed, nil
}

// Close closes the Redis connection.
func (d *RedisDeduplicator) Close() error {
	return d.client.Close()
}

// MemoryDeduplicator is an in-process claim set with TTL expiry.
type MemoryDeduplicator struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryDeduplicator creates an in-memory deduplicator.
func NewMemoryDeduplicator() *MemoryDeduplicator {
	return &MemoryDeduplicator{
		seen: make(map[string]time.Time),
		ttl:  DefaultTTL,
		now:  time.Now,
	}
}

// Seen claims the message ID, expiring stale claims as it goes.
func (d *MemoryDeduplicator) Seen(ctx context.Context, messageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	for id, at := range d.seen {
		if now.Sub(at) > d.ttl {
			delete(d.seen, id)
		}
	}
	if _, ok := d.seen[messageID]; ok {
		return true, nil
	}
	d.seen[messageID] = now
	return false, nil
}

// Close is a no-op.
func (d *MemoryDeduplicator) Close() error {
	return nil
}
