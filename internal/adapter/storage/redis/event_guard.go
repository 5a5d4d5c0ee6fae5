package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// EventGuard implements ports.EventGuard using Redis SET NX. It remembers
// gateway callback event ids for ttl so a replayed notification is dropped.
type EventGuard struct {
	client *goredis.Client
	prefix string
}

// NewEventGuard creates a new Redis-backed callback replay guard.
func NewEventGuard(client *goredis.Client) *EventGuard {
	return &EventGuard{
		client: client,
		prefix: keyPrefix + "event:",
	}
}

// CheckAndSet atomically records an event id.
// Returns true if the event is new, false if it was already seen.
func (g *EventGuard) CheckAndSet(ctx context.Context, source string, eventID string, ttl time.Duration) (bool, error) {
	key := g.prefix + source + ":" + eventID
	result, err := g.client.SetArgs(ctx, key, time.Now().Unix(), goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis event guard: %w", err)
	}
	return result == "OK", nil
}

// Release drops a recorded event id. Releasing an unknown id is not an error.
func (g *EventGuard) Release(ctx context.Context, source string, eventID string) error {
	if err := g.client.Del(ctx, g.prefix+source+":"+eventID).Err(); err != nil {
		return fmt.Errorf("redis event guard release: %w", err)
	}
	return nil
}
