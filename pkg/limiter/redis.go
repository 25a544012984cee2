package limiter

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

const (
	defaultScanCount       = 100
	defaultDeleteBatchSize = 1000
)

// RedisStore runs the strategy scripts on Redis. Scripts are loaded once at
// construction and invoked with EVALSHA; if Redis lost its script cache the
// call falls back to EVAL, which reloads it.
type RedisStore struct {
	client          redis.UniversalClient
	scripts         map[string]*redis.Script
	scanCount       int64
	deleteBatchSize int
}

type RedisStoreOption func(*RedisStore)

// WithScanCount sets the COUNT hint passed to SCAN during pattern deletes.
func WithScanCount(n int64) RedisStoreOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.scanCount = n
		}
	}
}

// WithDeleteBatchSize bounds the number of keys removed per round trip.
func WithDeleteBatchSize(n int) RedisStoreOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.deleteBatchSize = n
		}
	}
}

// NewRedisStore checks connectivity and loads every strategy script. The
// store takes ownership of client; Close closes it.
func NewRedisStore(ctx context.Context, client redis.UniversalClient, opts ...RedisStoreOption) (*RedisStore, error) {
	s := &RedisStore{
		client:          client,
		scripts:         make(map[string]*redis.Script),
		scanCount:       defaultScanCount,
		deleteBatchSize: defaultDeleteBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	for _, sc := range Scripts() {
		rs := redis.NewScript(sc.Source())
		if err := rs.Load(ctx, client).Err(); err != nil {
			return nil, fmt.Errorf("load script %s: %w", sc.Name(), err)
		}
		s.scripts[sc.Name()] = rs
	}
	return s, nil
}

func (s *RedisStore) Eval(ctx context.Context, script *Script, keys []string, args []string) ([]int64, error) {
	rs, ok := s.scripts[script.Name()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScript, script.Name())
	}

	argv := make([]any, len(args))
	for i, a := range args {
		argv[i] = a
	}

	reply, err := rs.Run(ctx, s.client, keys, argv...).Int64Slice()
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// DeleteMatching walks the keyspace with SCAN so Redis is never blocked by a
// full KEYS scan. On a cluster every master is scanned. Matches are collected
// until the cursor returns to 0 and only then deleted, in batches.
func (s *RedisStore) DeleteMatching(ctx context.Context, pattern string, keep func(key string) bool) (int64, error) {
	if cc, ok := s.client.(*redis.ClusterClient); ok {
		var total atomic.Int64
		err := cc.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			n, err := s.deleteMatching(ctx, node, pattern, keep)
			total.Add(n)
			return err
		})
		return total.Load(), err
	}
	return s.deleteMatching(ctx, s.client, pattern, keep)
}

func (s *RedisStore) deleteMatching(ctx context.Context, c redis.Cmdable, pattern string, keep func(string) bool) (int64, error) {
	var keys []string
	iter := c.Scan(ctx, 0, pattern, s.scanCount).Iterator()
	for iter.Next(ctx) {
		if key := iter.Val(); keep == nil || keep(key) {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}

	var deleted int64
	for batch := range slices.Chunk(keys, s.deleteBatchSize) {
		n, err := s.del(ctx, c, batch...)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	_, err := s.del(ctx, s.client, keys...)
	return err
}

// del issues one DEL per key in a single pipeline so keys hashing to
// different cluster slots can be removed together.
func (s *RedisStore) del(ctx context.Context, c redis.Cmdable, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	cmds := make([]*redis.IntCmd, len(keys))
	_, err := c.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.Del(ctx, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	var n int64
	for _, cmd := range cmds {
		n += cmd.Val()
	}
	return n, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
