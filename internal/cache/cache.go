package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "weather-report:"

// Store is a byte-oriented key/value store whose entries expire after a
// per-entry TTL. Get returns nil, nil on a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Key builds a cache key from its parts. Parts are trimmed but otherwise
// kept as given; callers fold case where the upstream does.
func Key(namespace string, parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(strings.TrimSpace(p))
	}
	return b.String()
}

// Redis stores entries in Redis using native key expiry.
type Redis struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed Store.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get retrieves the raw value for key.
// Returns nil, nil on a cache miss (not an error).
func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for key %s: %w", key, err)
	}
	return val, nil
}

// Set stores val under key for ttl. A nil value is a no-op.
func (c *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if val == nil {
		return nil
	}
	if err := c.client.Set(ctx, keyPrefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("cache set for key %s: %w", key, err)
	}
	return nil
}

// Delete removes the entry for key.
func (c *Redis) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("cache delete for key %s: %w", key, err)
	}
	return nil
}

// Ping checks Redis connectivity.
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var _ Store = (*Redis)(nil)
