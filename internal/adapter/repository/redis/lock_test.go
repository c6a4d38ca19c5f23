package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/iho/fintrack/internal/domain"
)

// newTestLock returns a lock backed by an in-process Redis that is torn
// down with the test.
func newTestLock(t *testing.T) (*SettlementLock, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewSettlementLock(client), mr
}

func TestSettlementLock_AcquireAndRelease(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, "2024-05-06", time.Minute)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	if !mr.Exists(lock.prefix + "2024-05-06") {
		t.Fatalf("expected lock key to be set")
	}
	if ttl := mr.TTL(lock.prefix + "2024-05-06"); ttl != time.Minute {
		t.Fatalf("expected lock TTL of one minute, got %s", ttl)
	}

	if _, err := lock.Acquire(ctx, "2024-05-06", time.Minute); !errors.Is(err, domain.ErrLockNotAcquired) {
		t.Fatalf("expected second acquire to fail, got %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if mr.Exists(lock.prefix + "2024-05-06") {
		t.Fatalf("expected lock key to be removed")
	}

	if _, err := lock.Acquire(ctx, "2024-05-06", time.Minute); err != nil {
		t.Fatalf("expected lock to be free after release, got %v", err)
	}
}

func TestSettlementLock_Expires(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	if _, err := lock.Acquire(ctx, "2024-05-06-09", time.Minute); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := lock.Acquire(ctx, "2024-05-06-09", time.Minute); err != nil {
		t.Fatalf("expected expired lock to be reacquired, got %v", err)
	}
}

func TestSettlementLock_ReleaseKeepsForeignLock(t *testing.T) {
	lock, mr := newTestLock(t)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, "2024-05-06", time.Second)
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	// Our lock expires and another run takes it.
	mr.FastForward(2 * time.Second)
	if _, err := lock.Acquire(ctx, "2024-05-06", time.Minute); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	if !mr.Exists(lock.prefix + "2024-05-06") {
		t.Fatalf("stale release must not delete the new holder's lock")
	}
}

func TestSettlementLock_BackendDown(t *testing.T) {
	lock, mr := newTestLock(t)
	mr.Close()

	_, err := lock.Acquire(context.Background(), "2024-05-06", time.Minute)
	if err == nil || errors.Is(err, domain.ErrLockNotAcquired) {
		t.Fatalf("expected a connection error, got %v", err)
	}
}
