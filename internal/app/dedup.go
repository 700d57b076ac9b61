/**
 * @description
 * Webhook delivery deduplication. Providers deliver callbacks at least once;
 * the SQL status guard already makes replays harmless, so this cache is a
 * cheaper first filter that also suppresses replayed non-transition events.
 *
 * Two implementations: Redis (SETNX with TTL, shared across replicas) and an
 * in-process map used when Redis is not configured. The map variant is only
 * correct for a single replica, which is how the fallback environments run.
 *
 * @dependencies
 * - context, sync, time: Standard Go libraries.
 * - github.com/redis/go-redis/v9: Redis client.
 */
package app

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// WebhookDedup reports whether a webhook delivery key has been seen within the
// TTL window, marking it seen as a side effect. Forget releases a key that was
// marked for a delivery whose processing then failed, so the provider's retry
// is not swallowed as a duplicate.
type WebhookDedup interface {
	Seen(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error
}

// RedisWebhookDedup implements WebhookDedup on Redis SETNX.
type RedisWebhookDedup struct {
	client *redis.Client
	prefix string
}

// NewRedisWebhookDedup creates a Redis-backed dedup cache.
func NewRedisWebhookDedup(client *redis.Client, prefix string) *RedisWebhookDedup {
	if prefix == "" {
		prefix = "payments:webhook_dedup"
	}
	return &RedisWebhookDedup{client: client, prefix: prefix}
}

func (d *RedisWebhookDedup) Seen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	set, err := d.client.SetNX(ctx, d.prefix+":"+key, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

func (d *RedisWebhookDedup) Forget(ctx context.Context, key string) error {
	return d.client.Del(ctx, d.prefix+":"+key).Err()
}

// MemoryWebhookDedup implements WebhookDedup with an in-process map.
type MemoryWebhookDedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryWebhookDedup creates the in-process fallback cache.
func NewMemoryWebhookDedup() *MemoryWebhookDedup {
	return &MemoryWebhookDedup{seen: make(map[string]time.Time)}
}

func (d *MemoryWebhookDedup) Seen(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	// Opportunistic sweep of expired entries keeps the map bounded.
	for k, expiry := range d.seen {
		if now.After(expiry) {
			delete(d.seen, k)
		}
	}

	if expiry, ok := d.seen[key]; ok && now.Before(expiry) {
		return true, nil
	}
	d.seen[key] = now.Add(ttl)
	return false, nil
}

func (d *MemoryWebhookDedup) Forget(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}
