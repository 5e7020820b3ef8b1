package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Connect parses redisURL, creates a client, and verifies connectivity with a ping.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}

// Open returns a Redis-backed Store when redisURL is set and an in-process
// Store otherwise. The returned close func is always non-nil.
func Open(ctx context.Context, redisURL string) (Store, func() error, error) {
	if redisURL == "" {
		return NewMemory(), func() error { return nil }, nil
	}

	client, err := Connect(ctx, redisURL)
	if err != nil {
		return nil, nil, err
	}
	return NewRedis(client), client.Close, nil
}
