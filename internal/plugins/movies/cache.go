package movies

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResponseCache stores serialized upstream responses for a fixed time
// window. Only successful responses are ever written; failures always
// retry the upstream on the next request.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// --- In-memory implementation ---

type memoryCacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// memoryResponseCache is the single-process ResponseCache. Expired entries
// are dropped lazily on read and swept periodically in the background.
type memoryResponseCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
	ttl     time.Duration

	now func() time.Time // swappable in tests
}

// NewMemoryResponseCache creates an in-memory response cache with the
// given entry lifetime and starts its sweep goroutine.
func NewMemoryResponseCache(ttl time.Duration) ResponseCache {
	c := &memoryResponseCache{
		entries: make(map[string]memoryCacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
	go c.sweep()
	return c
}

func (c *memoryResponseCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

func (c *memoryResponseCache) Set(_ context.Context, key string, value []byte) {
	c.mu.Lock()
	c.entries[key] = memoryCacheEntry{data: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *memoryResponseCache) sweep() {
	for {
		time.Sleep(10 * time.Minute)

		c.mu.Lock()
		now := c.now()
		for key, entry := range c.entries {
			if now.After(entry.expiresAt) {
				delete(c.entries, key)
			}
		}
		c.mu.Unlock()
	}
}

// --- Redis implementation ---

// redisResponseCache shares cached responses across replicas. Redis
// handles expiry via per-key TTLs. Redis errors degrade to cache misses
// so a flaky Redis never takes movie browsing down.
type redisResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResponseCache creates a Redis-backed response cache.
func NewRedisResponseCache(client *redis.Client, ttl time.Duration) ResponseCache {
	return &redisResponseCache{client: client, ttl: ttl}
}

func (c *redisResponseCache) key(key string) string { return "omdb:" + key }

func (c *redisResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("redis cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (c *redisResponseCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.client.Set(ctx, c.key(key), value, c.ttl).Err(); err != nil {
		slog.Warn("redis cache write failed", "key", key, "error", err)
	}
}
