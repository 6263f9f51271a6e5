package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-payments/internal/logger"
)

// Connect opens a client for addr and fails unless the server answers a PING within 5s.
func Connect(ctx context.Context, addr string, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: 10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	log.Info("REDIS", fmt.Sprintf("Connected to Redis at %s (DB: %d)", addr, client.Options().DB))
	return client, nil
}
