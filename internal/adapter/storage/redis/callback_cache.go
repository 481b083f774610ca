package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// CallbackCache implements ports.CallbackDedupCache using Redis SET NX.
// It remembers recently applied delivery callbacks so replays can be
// dropped without touching the database.
type CallbackCache struct {
	client *goredis.Client
	prefix string
}

// NewCallbackCache creates a new Redis-backed callback dedup cache.
func NewCallbackCache(client *goredis.Client) *CallbackCache {
	return &CallbackCache{
		client: client,
		prefix: "callback:",
	}
}

// Seen reports whether the callback key was already marked.
func (c *CallbackCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis callback check: %w", err)
	}
	return n > 0, nil
}

// Mark records the callback key with a TTL.
func (c *CallbackCache) Mark(ctx context.Context, key string, ttl time.Duration) error {
	err := c.client.SetArgs(ctx, c.prefix+key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Err()
	if err != nil && err != goredis.Nil {
		return fmt.Errorf("redis callback mark: %w", err)
	}
	return nil
}
