package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/iho/fintrack/internal/domain"
)

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SettlementLock implements usecase.Locker using Redis SET NX.
type SettlementLock struct {
	client *redis.Client
	prefix string
}

// NewSettlementLock creates a new SettlementLock.
func NewSettlementLock(client *redis.Client) *SettlementLock {
	return &SettlementLock{
		client: client,
		prefix: "settle-lock:",
	}
}

// Acquire takes the lock for key. The lock expires after ttl if never released.
func (l *SettlementLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	fullKey := l.prefix + key
	token := ulid.Make().String()

	set, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire settlement lock: %w", err)
	}
	if !set {
		return nil, domain.ErrLockNotAcquired
	}

	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err()
	}

	return release, nil
}
