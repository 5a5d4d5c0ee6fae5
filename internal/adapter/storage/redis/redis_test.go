package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"wallet-ledger/config"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewClient(context.Background(), config.RedisConfig{Host: mr.Host(), Port: port}, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, NewHealthCheck(client).Ping(context.Background()))
	assert.Equal(t, "redis", NewHealthCheck(client).Name())
}

func TestNewClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewClient(ctx, config.RedisConfig{Host: "127.0.0.1", Port: 1}, zerolog.Nop())
	assert.Error(t, err)
}

func TestHealthCheck_Down(t *testing.T) {
	mr, client := newTestClient(t)
	mr.Close()

	assert.Error(t, NewHealthCheck(client).Ping(context.Background()))
}

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "admin-1:admin_credit:key-001"
	value := []byte(`{"id":"abc","balance_after":50000}`)

	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result)

	require.NoError(t, cache.Set(ctx, key, value, 24*time.Hour))

	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result)
	assert.True(t, mr.Exists("wallet:adjust:"+key))

	require.NoError(t, cache.Set(ctx, key, []byte(`{"id":"other"}`), 24*time.Hour))
	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result, "first stored payload wins")
}

func TestIdempotencyCache_TTLExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte(`{}`), time.Second))
	mr.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, result, "expired key should return nil")
}

func TestIdempotencyCache_Unavailable(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewIdempotencyCache(client)
	mr.Close()

	_, err := cache.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, cache.Set(context.Background(), "k", []byte("v"), time.Minute))
}

func TestEventGuard_CheckAndSet(t *testing.T) {
	mr, client := newTestClient(t)
	guard := NewEventGuard(client)
	ctx := context.Background()

	fresh, err := guard.CheckAndSet(ctx, "pgclient", "ORD-1:Success", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = guard.CheckAndSet(ctx, "pgclient", "ORD-1:Success", time.Hour)
	require.NoError(t, err)
	assert.False(t, fresh, "replayed event must be rejected")

	fresh, err = guard.CheckAndSet(ctx, "stripe", "ORD-1:Success", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh, "sources are namespaced")

	mr.FastForward(2 * time.Hour)
	fresh, err = guard.CheckAndSet(ctx, "pgclient", "ORD-1:Success", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh, "event is accepted again once the window passes")
}

func TestEventGuard_Release(t *testing.T) {
	mr, client := newTestClient(t)
	guard := NewEventGuard(client)
	ctx := context.Background()

	fresh, err := guard.CheckAndSet(ctx, "pgclient", "evt_9", time.Hour)
	require.NoError(t, err)
	require.True(t, fresh)
	assert.True(t, mr.Exists("wallet:event:pgclient:evt_9"))

	require.NoError(t, guard.Release(ctx, "pgclient", "evt_9"))
	assert.False(t, mr.Exists("wallet:event:pgclient:evt_9"))

	fresh, err = guard.CheckAndSet(ctx, "pgclient", "evt_9", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh, "a released event is accepted on redelivery")

	assert.NoError(t, guard.Release(ctx, "pgclient", "never-seen"))
}

func TestEventGuard_Unavailable(t *testing.T) {
	mr, client := newTestClient(t)
	guard := NewEventGuard(client)
	mr.Close()

	_, err := guard.CheckAndSet(context.Background(), "pgclient", "x", time.Minute)
	assert.Error(t, err)
	assert.Error(t, guard.Release(context.Background(), "pgclient", "x"))
}

func TestRateLimitStore_Allow(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewRateLimitStore(client)
	clock := time.Unix(1_700_000_040, 0)
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			result, err := store.Allow(ctx, "r-1:recharge", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "request %d should be allowed", i)
			assert.Equal(t, int64(3), result.Limit)
			assert.Equal(t, 3-i, result.Remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		result, err := store.Allow(ctx, "r-1:recharge", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, int64(0), result.Remaining)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		result, err := store.Allow(ctx, "r-2:recharge", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(4), result.Remaining)
	})

	t.Run("counter carries an expiry", func(t *testing.T) {
		keys := mr.Keys()
		require.NotEmpty(t, keys)
		for _, k := range keys {
			assert.Greater(t, mr.TTL(k), time.Duration(0), k)
		}
	})

	t.Run("next window resets", func(t *testing.T) {
		clock = clock.Add(time.Minute)
		result, err := store.Allow(ctx, "r-1:recharge", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(2), result.Remaining)
	})

	t.Run("sets ResetAt to window end", func(t *testing.T) {
		result, err := store.Allow(ctx, "r-3:recharge", 10, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, (clock.Unix()/60+1)*60, result.ResetAt)
	})
}
