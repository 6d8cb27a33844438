package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tjmcgrath/reelbase/internal/config"
)

func testLockoutConfig() config.AuthConfig {
	return config.AuthConfig{
		LockoutThreshold: 3,
		LockoutDuration:  30 * time.Second,
	}
}

// newClockedStore builds a memory store with a fake clock the test can
// advance. The sweep goroutine is not started.
func newClockedStore() (*memoryLockoutStore, *time.Time) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := &memoryLockoutStore{
		entries:   make(map[string]*lockoutEntry),
		threshold: 3,
		duration:  30 * time.Second,
		now:       func() time.Time { return now },
	}
	return s, &now
}

func TestMemoryLockout_BelowThresholdNotLocked(t *testing.T) {
	s, _ := newClockedStore()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		locked, err := s.RecordFailure(ctx, "alice")
		if err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
		if locked {
			t.Fatalf("locked after %d failures, threshold is 3", i+1)
		}
	}

	if remaining, _ := s.CheckLocked(ctx, "alice"); remaining != 0 {
		t.Errorf("expected no lockout, got %v remaining", remaining)
	}
}

func TestMemoryLockout_ThirdFailureLocks(t *testing.T) {
	s, _ := newClockedStore()
	ctx := context.Background()

	s.RecordFailure(ctx, "alice")
	s.RecordFailure(ctx, "alice")
	locked, err := s.RecordFailure(ctx, "alice")
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if !locked {
		t.Fatal("expected third failure to start a lockout")
	}

	remaining, _ := s.CheckLocked(ctx, "alice")
	if remaining != 30*time.Second {
		t.Errorf("expected 30s remaining, got %v", remaining)
	}
}

func TestMemoryLockout_ExpiresWithTime(t *testing.T) {
	s, now := newClockedStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.RecordFailure(ctx, "alice")
	}

	*now = now.Add(15 * time.Second)
	if remaining, _ := s.CheckLocked(ctx, "alice"); remaining != 15*time.Second {
		t.Errorf("expected 15s remaining mid-lockout, got %v", remaining)
	}

	*now = now.Add(16 * time.Second)
	if remaining, _ := s.CheckLocked(ctx, "alice"); remaining != 0 {
		t.Errorf("expected lockout to have expired, got %v remaining", remaining)
	}
}

func TestMemoryLockout_CounterResetsAfterLock(t *testing.T) {
	s, now := newClockedStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.RecordFailure(ctx, "alice")
	}
	*now = now.Add(time.Minute)

	// One more failure after the lockout expired starts a fresh count
	// instead of locking immediately.
	locked, _ := s.RecordFailure(ctx, "alice")
	if locked {
		t.Error("expected a fresh count after the lockout, not an immediate relock")
	}
}

func TestMemoryLockout_ClearWipesState(t *testing.T) {
	s, _ := newClockedStore()
	ctx := context.Background()

	s.RecordFailure(ctx, "alice")
	s.RecordFailure(ctx, "alice")
	if err := s.Clear(ctx, "alice"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	// Two failures before the clear plus two after must not lock.
	s.RecordFailure(ctx, "alice")
	locked, _ := s.RecordFailure(ctx, "alice")
	if locked {
		t.Error("expected counter to restart after Clear")
	}
}

func TestMemoryLockout_IdentifiersIndependent(t *testing.T) {
	s, _ := newClockedStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.RecordFailure(ctx, "alice")
	}

	if remaining, _ := s.CheckLocked(ctx, "bob"); remaining != 0 {
		t.Error("lockout on alice must not affect bob")
	}
}

// --- Redis implementation ---

func newRedisStore(t *testing.T) (LockoutStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLockoutStore(client, testLockoutConfig()), mr
}

func TestRedisLockout_ThresholdLocks(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if locked, err := s.RecordFailure(ctx, "alice"); err != nil || locked {
			t.Fatalf("attempt %d: locked=%v err=%v", i+1, locked, err)
		}
	}
	locked, err := s.RecordFailure(ctx, "alice")
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if !locked {
		t.Fatal("expected third failure to start a lockout")
	}

	remaining, err := s.CheckLocked(ctx, "alice")
	if err != nil {
		t.Fatalf("CheckLocked: %v", err)
	}
	if remaining <= 0 || remaining > 30*time.Second {
		t.Errorf("expected remaining in (0, 30s], got %v", remaining)
	}
}

func TestRedisLockout_ExpiresWithTime(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.RecordFailure(ctx, "alice")
	}

	mr.FastForward(31 * time.Second)
	remaining, err := s.CheckLocked(ctx, "alice")
	if err != nil {
		t.Fatalf("CheckLocked: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected lockout to have expired, got %v remaining", remaining)
	}
}

func TestRedisLockout_ClearWipesState(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.RecordFailure(ctx, "alice")
	}
	if err := s.Clear(ctx, "alice"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	if remaining, _ := s.CheckLocked(ctx, "alice"); remaining != 0 {
		t.Error("expected Clear to drop the active lockout")
	}
	if locked, _ := s.RecordFailure(ctx, "alice"); locked {
		t.Error("expected counter to restart after Clear")
	}
}
