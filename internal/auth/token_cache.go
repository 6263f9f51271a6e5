package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	tokenKeyPrefix = "access_token:"
	// TokenExpiryBuffer is how long before expiry a cached token stops being handed out
	TokenExpiryBuffer = 60 * time.Second
)

// CachedToken is an issued access token with its expiry time
type CachedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsValid checks if the token is still valid with a buffer time before expiry
func (tc *CachedToken) IsValid(now time.Time) bool {
	if tc == nil || tc.Token == "" {
		return false
	}
	return now.Add(TokenExpiryBuffer).Before(tc.ExpiresAt)
}

// RedisTokenCache lets repeated token requests from one client reuse the same token.
type RedisTokenCache struct {
	Client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{Client: client}
}

// GetToken returns nil without error when nothing usable is cached.
func (c *RedisTokenCache) GetToken(ctx context.Context, clientID string) (*CachedToken, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	tokenJSON, err := c.Client.Get(ctx, tokenKeyPrefix+clientID).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get token from Redis: %w", err)
	}

	var cached CachedToken
	if err := json.Unmarshal([]byte(tokenJSON), &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token cache: %w", err)
	}
	if !cached.IsValid(time.Now()) {
		return nil, nil
	}
	return &cached, nil
}

// SetToken stores a token until its expiry.
func (c *RedisTokenCache) SetToken(ctx context.Context, clientID string, token CachedToken) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	tokenJSON, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token cache: %w", err)
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := c.Client.Set(ctx, tokenKeyPrefix+clientID, tokenJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token in Redis: %w", err)
	}
	return nil
}

func (c *RedisTokenCache) Forget(ctx context.Context, clientID string) error {
	return c.Client.Del(ctx, tokenKeyPrefix+clientID).Err()
}
