package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache holds the replay payload of committed admin adjustments
// in front of the idempotency_logs table. The first stored payload for a key
// wins; later writes for the same key are ignored.
type IdempotencyCache struct {
	client *goredis.Client
}

func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{client: client}
}

func adjustmentKey(key string) string { return keyPrefix + "adjust:" + key }

// Get returns the cached adjustment payload, or nil when the key is unknown
// or has expired.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := c.client.Get(ctx, adjustmentKey(key)).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("read adjustment %q: %w", key, err)
	}
	return payload, nil
}

// Set records payload for key unless one is already present.
func (c *IdempotencyCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	err := c.client.SetArgs(ctx, adjustmentKey(key), payload, goredis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("cache adjustment %q: %w", key, err)
	}
	return nil
}
