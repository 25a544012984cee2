package limiter

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T, opts ...RedisStoreOption) (*RedisStore, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store, err := NewRedisStore(context.Background(), client, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, client, mr
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, client)
	assert.Error(t, err)
}

func TestRedisStore_ScriptCacheFlushed(t *testing.T) {
	store, client, _ := newMiniredisStore(t)
	l, _ := newTestLimiter(t, store, Config{MaxRequests: 2, Window: time.Minute, Strategy: TokenBucket})
	ctx := context.Background()

	checkN(t, l, "u1", 1)
	require.NoError(t, client.ScriptFlush(ctx).Err())

	dec, err := l.Check(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, int64(0), dec.Remaining)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	store, client, mr := newMiniredisStore(t)
	ctx := context.Background()

	for _, s := range strategies {
		l, _ := newTestLimiter(t, store, Config{MaxRequests: 5, Window: 10 * time.Second, Strategy: s}, WithPrefix("custom_app:"))
		checkN(t, l, "u1", 1)
	}

	assert.ElementsMatch(t, []string{
		"custom_app:fixed-window:u1:1700000000",
		"custom_app:sliding-window:u1",
		"custom_app:sliding-window:u1:counter",
		"custom_app:token-bucket:u1",
	}, mr.Keys())

	fields, err := client.HGetAll(ctx, "custom_app:token-bucket:u1").Result()
	require.NoError(t, err)
	assert.Equal(t, "4", fields["tokens"])
	assert.Equal(t, fmt.Sprint(epoch.UnixMilli()), fields["last_refill"])

	ttl := mr.TTL("custom_app:fixed-window:u1:1700000000")
	assert.Equal(t, 10*time.Second, ttl)
}

func TestRedisStore_DeleteMatchingBatches(t *testing.T) {
	store, client, mr := newMiniredisStore(t, WithDeleteBatchSize(2), WithScanCount(1))
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, client.Set(ctx, fmt.Sprintf("x:%d", i), 1, 0).Err())
	}
	require.NoError(t, client.Set(ctx, "y:0", 1, 0).Err())

	n, err := store.DeleteMatching(ctx, "x:*", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, []string{"y:0"}, mr.Keys())
}

func TestRedisStore_DeleteMatchingFilter(t *testing.T) {
	store, client, mr := newMiniredisStore(t, WithDeleteBatchSize(1), WithScanCount(1))
	ctx := context.Background()

	for _, k := range []string{"w:1", "w:2", "w:x:1", "w:x:2"} {
		require.NoError(t, client.Set(ctx, k, 1, 0).Err())
	}

	n, err := store.DeleteMatching(ctx, "w:*", func(key string) bool { return !strings.HasPrefix(key, "w:x:") })
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []string{"w:x:1", "w:x:2"}, mr.Keys())
}

func TestRedisStore_Delete(t *testing.T) {
	store, client, mr := newMiniredisStore(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "a", 1, 0).Err())
	require.NoError(t, client.Set(ctx, "b", 1, 0).Err())

	require.NoError(t, store.Delete(ctx, "a", "b", "missing"))
	require.NoError(t, store.Delete(ctx))
	assert.Empty(t, mr.Keys())
}

func TestRedisStore_ServerError(t *testing.T) {
	store, _, mr := newMiniredisStore(t)
	l, _ := newTestLimiter(t, store, Config{MaxRequests: 2, Window: time.Minute})

	mr.SetError("ERR store unavailable")
	_, err := l.Check(context.Background(), "u1")
	assert.ErrorContains(t, err, "store unavailable")

	mr.SetError("")
	_, err = l.Check(context.Background(), "u1")
	assert.NoError(t, err)
}

func TestRedisStore_Integration(t *testing.T) {
	opts := &redis.Options{
		Addr: "localhost:6379",
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping integration test: Redis not available (%v)", err)
	}

	store, err := NewRedisStore(ctx, client)
	if err != nil {
		t.Fatalf("Failed to create RedisStore: %v", err)
	}
	defer store.Close()

	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) {
			id := "it_test_" + uuid.NewString()
			cfg := Config{MaxRequests: 2, Window: 10 * time.Second, Strategy: s}

			// Two instances sharing one store simulate two nodes.
			nodeA, err := New(store, cfg, WithBlockOnLimit(false))
			if err != nil {
				t.Fatalf("Failed to create limiter: %v", err)
			}
			nodeB, err := New(store, cfg, WithBlockOnLimit(false))
			if err != nil {
				t.Fatalf("Failed to create limiter: %v", err)
			}
			defer nodeA.Reset(ctx, id)

			dec, err := nodeA.Check(ctx, id)
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if !dec.Allowed || dec.Remaining != 1 {
				t.Errorf("Request 1: expected allowed with 1 remaining, got allowed=%v remaining=%d", dec.Allowed, dec.Remaining)
			}

			dec, err = nodeB.Check(ctx, id)
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if !dec.Allowed {
				t.Errorf("Request 2: expected allowed on node B")
			}

			dec, err = nodeA.Check(ctx, id)
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if dec.Allowed {
				t.Errorf("Request 3: node A should see the quota consumed by node B")
			}
			if dec.ResetIn <= 0 {
				t.Errorf("Request 3: expected positive ResetIn, got %v", dec.ResetIn)
			}
		})
	}
}
