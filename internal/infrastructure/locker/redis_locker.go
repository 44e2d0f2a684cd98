package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shoppulse-ingest-layer/internal/ports"
)

// RedisSyncLocker guards full sync runs with a per-shop Redis lease so
// only one run per shop is in flight at a time, across all instances.
type RedisSyncLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSyncLocker creates a locker. The TTL bounds how long a crashed
// run can block the next one; it should comfortably exceed the longest
// expected full sync.
func NewRedisSyncLocker(client *redis.Client, ttl time.Duration) ports.SyncLocker {
	return &RedisSyncLocker{client: client, ttl: ttl}
}

func lockKey(shopID string) string {
	return fmt.Sprintf("sync:lock:%s", shopID)
}

// Acquire takes the lease for a shop. Returns false when another run
// already holds it.
func (l *RedisSyncLocker) Acquire(ctx context.Context, shopID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(shopID), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	return ok, nil
}

// Release frees the lease
func (l *RedisSyncLocker) Release(ctx context.Context, shopID string) error {
	if err := l.client.Del(ctx, lockKey(shopID)).Err(); err != nil {
		return fmt.Errorf("failed to release sync lock: %w", err)
	}
	return nil
}
