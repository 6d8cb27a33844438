package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tjmcgrath/reelbase/internal/config"
)

// LockoutStore tracks consecutive failed login attempts per identifier and
// enforces a temporary lockout once the threshold is hit. The identifier is
// the lowercased username or email the caller tried to log in as, so the
// throttle follows the targeted account rather than the attacking IP.
type LockoutStore interface {
	// CheckLocked returns the remaining cooldown for the identifier, or
	// zero when the identifier is not locked out.
	CheckLocked(ctx context.Context, identifier string) (time.Duration, error)
	// RecordFailure counts one failed attempt. When the consecutive
	// failure count reaches the threshold it starts a lockout, resets the
	// counter, and returns true.
	RecordFailure(ctx context.Context, identifier string) (bool, error)
	// Clear wipes all state for the identifier after a successful login.
	Clear(ctx context.Context, identifier string) error
}

// --- In-memory implementation ---

type lockoutEntry struct {
	failures    int
	lockedUntil time.Time
	lastAttempt time.Time
}

// memoryLockoutStore is the single-process LockoutStore. Entries idle for
// an hour are swept by a background goroutine so the map cannot grow
// without bound under a spray of distinct identifiers.
type memoryLockoutStore struct {
	mu        sync.Mutex
	entries   map[string]*lockoutEntry
	threshold int
	duration  time.Duration

	now func() time.Time // swappable in tests
}

// NewMemoryLockoutStore creates an in-memory lockout store and starts its
// sweep goroutine.
func NewMemoryLockoutStore(cfg config.AuthConfig) LockoutStore {
	s := &memoryLockoutStore{
		entries:   make(map[string]*lockoutEntry),
		threshold: cfg.LockoutThreshold,
		duration:  cfg.LockoutDuration,
		now:       time.Now,
	}
	go s.sweep()
	return s
}

func (s *memoryLockoutStore) CheckLocked(_ context.Context, identifier string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[identifier]
	if !ok {
		return 0, nil
	}

	remaining := entry.lockedUntil.Sub(s.now())
	if remaining <= 0 {
		return 0, nil
	}
	return remaining, nil
}

func (s *memoryLockoutStore) RecordFailure(_ context.Context, identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[identifier]
	if !ok {
		entry = &lockoutEntry{}
		s.entries[identifier] = entry
	}
	entry.failures++
	entry.lastAttempt = now

	if entry.failures >= s.threshold {
		entry.lockedUntil = now.Add(s.duration)
		// Reset so the next failure after the lockout expires starts a
		// fresh count instead of locking immediately.
		entry.failures = 0
		return true, nil
	}
	return false, nil
}

func (s *memoryLockoutStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, identifier)
	return nil
}

// sweep drops entries that have been idle for over an hour.
func (s *memoryLockoutStore) sweep() {
	for {
		time.Sleep(10 * time.Minute)

		s.mu.Lock()
		cutoff := s.now().Add(-time.Hour)
		for id, entry := range s.entries {
			if entry.lastAttempt.Before(cutoff) && entry.lockedUntil.Before(s.now()) {
				delete(s.entries, id)
			}
		}
		s.mu.Unlock()
	}
}

// --- Redis implementation ---

// redisLockoutStore shares lockout state across replicas. Failure counters
// live under lockout:fail:<id> with a bounded TTL; an active lockout is a
// lockout:until:<id> key whose TTL is the remaining cooldown.
type redisLockoutStore struct {
	client    *redis.Client
	threshold int
	duration  time.Duration
}

// NewRedisLockoutStore creates a Redis-backed lockout store.
func NewRedisLockoutStore(client *redis.Client, cfg config.AuthConfig) LockoutStore {
	return &redisLockoutStore{
		client:    client,
		threshold: cfg.LockoutThreshold,
		duration:  cfg.LockoutDuration,
	}
}

func (s *redisLockoutStore) failKey(id string) string { return "lockout:fail:" + id }
func (s *redisLockoutStore) lockKey(id string) string { return "lockout:until:" + id }

func (s *redisLockoutStore) CheckLocked(ctx context.Context, identifier string) (time.Duration, error) {
	remaining, err := s.client.PTTL(ctx, s.lockKey(identifier)).Result()
	if err != nil {
		return 0, fmt.Errorf("checking lockout: %w", err)
	}
	if remaining <= 0 {
		// PTTL returns a negative duration for missing keys.
		return 0, nil
	}
	return remaining, nil
}

func (s *redisLockoutStore) RecordFailure(ctx context.Context, identifier string) (bool, error) {
	key := s.failKey(identifier)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("recording failed attempt: %w", err)
	}
	// Counters decay after an hour of no attempts.
	if err := s.client.Expire(ctx, key, time.Hour).Err(); err != nil {
		return false, fmt.Errorf("recording failed attempt: %w", err)
	}

	if int(count) < s.threshold {
		return false, nil
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.lockKey(identifier), strconv.FormatInt(count, 10), s.duration)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("starting lockout: %w", err)
	}
	return true, nil
}

func (s *redisLockoutStore) Clear(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, s.failKey(identifier), s.lockKey(identifier)).Err(); err != nil {
		return fmt.Errorf("clearing lockout state: %w", err)
	}
	return nil
}
