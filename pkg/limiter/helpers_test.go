package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// epoch is aligned to 10s so fixed windows start exactly at it.
var epoch = time.Unix(1_700_000_000, 0)

type backend struct {
	name  string
	store Store
	mr    *miniredis.Miniredis
}

// keyCount reports how many keys the backend currently holds.
func (b backend) keyCount() int {
	if b.mr != nil {
		return len(b.mr.Keys())
	}
	return b.store.(*MemoryStore).Len()
}

func backends(t *testing.T) []backend {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rs, err := NewRedisStore(context.Background(), client)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })

	return []backend{
		{name: "memory", store: NewMemoryStore()},
		{name: "redis", store: rs, mr: mr},
	}
}

func newTestLimiter(t *testing.T, store Store, cfg Config, opts ...Option) (*Limiter, *ManualClock) {
	t.Helper()
	clk := NewManualClock(epoch)
	l, err := New(store, cfg, append([]Option{WithClock(clk), WithBlockOnLimit(false)}, opts...)...)
	require.NoError(t, err)
	return l, clk
}

// checkN runs n checks and returns the decisions.
func checkN(t *testing.T, l *Limiter, id string, n int) []Decision {
	t.Helper()
	out := make([]Decision, n)
	for i := range n {
		dec, err := l.Check(context.Background(), id)
		require.NoError(t, err)
		out[i] = dec
	}
	return out
}

func allowedFlags(decs []Decision) []bool {
	out := make([]bool, len(decs))
	for i, d := range decs {
		out[i] = d.Allowed
	}
	return out
}
