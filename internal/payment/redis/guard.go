package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultLockTTL = 30 * time.Second

// IdempotencyGuard holds a short-lived SETNX lock per (merchant, idempotency key)
// while a creation request is in flight.
type IdempotencyGuard struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewIdempotencyGuard(client *redis.Client, ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &IdempotencyGuard{Client: client, TTL: ttl}
}

func lockKey(merchantID int64, key string) string {
	return fmt.Sprintf("idem_lock:%d:%s", merchantID, key)
}

// Acquire reports whether this caller now owns the lock.
func (g *IdempotencyGuard) Acquire(ctx context.Context, merchantID int64, key string) (bool, error) {
	return g.Client.SetNX(ctx, lockKey(merchantID, key), time.Now().UTC().Format(time.RFC3339Nano), g.TTL).Result()
}

func (g *IdempotencyGuard) Release(ctx context.Context, merchantID int64, key string) error {
	err := g.Client.Del(ctx, lockKey(merchantID, key)).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

func (g *IdempotencyGuard) Held(ctx context.Context, merchantID int64, key string) (bool, error) {
	n, err := g.Client.Exists(ctx, lockKey(merchantID, key)).Result()
	return n > 0, err
}
