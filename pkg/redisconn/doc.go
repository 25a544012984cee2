// Package redisconn creates the Redis client used by limiter.RedisStore.
//
// Connect validates the URL (redis:// or rediss://), builds a client and
// waits for Redis to answer a PING, retrying with exponential backoff:
//
//	cfg := redisconn.DefaultConfig()
//	client, err := redisconn.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	store, err := limiter.NewRedisStore(ctx, client,
//		limiter.WithScanCount(cfg.ScanCount),
//		limiter.WithDeleteBatchSize(cfg.DeleteBatchSize))
//
// Healthcheck wraps a PING for readiness endpoints.
//
// # Errors
//
//   - ErrEmptyConnectionURL: no URL configured
//   - ErrFailedToParseRedisConnString: the URL is malformed or uses another scheme
//   - ErrRedisNotReady: Redis did not answer within the retry budget
//   - ErrHealthcheckFailed: a health check ping failed
package redisconn
