// Package dedup remembers provider message ids so webhook retries of the
// same message are acknowledged without being answered twice.
package dedup

import (
	"context"
	"time"

	"whatsapp-assistant/backend/pkg/cache"

	"github.com/redis/go-redis/v9"
)

// Guard claims message keys
type Guard interface {
	// Claim returns true the first time a key is seen within the TTL
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets a key so a later retry is processed again
	Release(ctx context.Context, key string) error
}

// RedisGuard shares claims between instances through SET NX
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisGuard creates a redis-backed guard
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl, prefix: "wa:inbound:"}
}

func (g *RedisGuard) Claim(ctx context.Context, key string) (bool, error) {
	return g.client.SetNX(ctx, g.prefix+key, time.Now().Unix(), g.ttl).Result()
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	return g.client.Del(ctx, g.prefix+key).Err()
}

// MemoryGuard keeps claims in process memory
type MemoryGuard struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewMemoryGuard creates an in-process guard
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{
		cache: cache.New(ttl, 10*time.Minute, 100_000),
		ttl:   ttl,
	}
}

func (g *MemoryGuard) Claim(_ context.Context, key string) (bool, error) {
	return g.cache.Add(key, struct{}{}, g.ttl), nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.cache.Delete(key)
	return nil
}

// Close stops the cache janitor
func (g *MemoryGuard) Close() {
	g.cache.Close()
}
