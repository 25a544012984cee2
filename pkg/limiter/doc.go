// Package limiter provides distributed rate limiting with three
// interchangeable admission algorithms: token bucket, sliding window and
// fixed window.
//
// The primary entry point is Limiter:
//
//	dec, err := l.Check(ctx, "user_123")
//
// The returned Decision contains whether the request is allowed, how much
// quota remains, and timing hints for callers that want to set rate-limit
// headers (for example, Retry-After).
//
// # Overview
//
// Every decision is computed by a single atomic transaction against a shared
// Store. The Limiter itself holds no counters, so any number of goroutines,
// processes or machines may check the same identifier and the limit is still
// enforced globally.
//
// # Strategies
//
//   - SlidingWindow (default): a log of admitted request timestamps per
//     identifier. At most MaxRequests requests are admitted in any trailing
//     Window. Reset hints come from the oldest entry still in the window.
//   - FixedWindow: one counter per identifier and aligned window. Cheap, but
//     a caller may spend MaxRequests just before a boundary and MaxRequests
//     again right after it. ResetAt is the end of the current window.
//   - TokenBucket: a bucket of Capacity tokens refilled continuously at
//     RefillRate tokens per second (defaults MaxRequests and
//     MaxRequests / Window). Tokens are stored as floats, so partial refill
//     between checks accumulates; Remaining reports whole tokens.
//
// # Storage Details
//
// Keys are namespaced by strategy so limiters using different strategies
// never collide:
//
//	ratelimit:sliding-window:{id}          sorted set of request timestamps (ms)
//	ratelimit:sliding-window:{id}:counter  tie-breaker for same-millisecond entries
//	ratelimit:fixed-window:{id}:{start}    counter for the window starting at {start}
//	ratelimit:token-bucket:{id}            hash with "tokens" and "last_refill" (ms)
//
// The prefix "ratelimit:" can be changed with WithPrefix. Window keys expire
// with their window; bucket keys expire once the bucket would have refilled
// completely, at which point a fresh bucket is equivalent.
//
// # Backends
//
//   - RedisStore: runs each strategy as a Lua script. Scripts are loaded at
//     construction and invoked with EVALSHA, falling back to EVAL if Redis
//     lost its script cache. Reset of a fixed window uses SCAN, never KEYS.
//   - MemoryStore: an in-process store implementing the same transactions
//     under a mutex. Useful for tests and single-instance deployments; it
//     does not enforce a limit across replicas.
//
// On Redis Cluster the sliding window touches two keys per identifier. Use
// WithKeyFunc to wrap identifiers in a hash tag so both land in one slot:
//
//	limiter.WithKeyFunc(func(id string) string { return "{" + id + "}" })
//
// # Context and Error Policy
//
// Check, Status and Reset accept a context.Context which is passed through to
// the store; WithTimeout additionally bounds each call (default 5s). A
// transaction cancelled before it reaches the store leaves state untouched.
//
// This package does not impose a "fail open" vs "fail closed" policy. If the
// store is unavailable, Check returns its error unchanged and the caller
// decides whether to deny traffic or allow it. Nothing is retried.
//
// Denials are reported as a *LimitError (errors.Is(err, ErrLimitExceeded))
// carrying the Decision, unless WithBlockOnLimit(false) is set, in which case
// the denied Decision is returned with a nil error.
//
// # Status
//
// Status runs a read-only variant of the strategy's transaction and reports
// what Check would decide without consuming quota.
//
// # Configuration
//
// Limiter is configured with a Config and functional options:
//
//	l, err := limiter.New(store, limiter.Config{
//		MaxRequests: 100,
//		Window:      time.Minute,
//		Strategy:    limiter.TokenBucket,
//	},
//		limiter.WithPrefix("myapp:rate:"),
//		limiter.WithTimeout(100*time.Millisecond),
//		limiter.WithRecorder(limiter.NewPrometheusRecorder(prometheus.DefaultRegisterer, "myapp")),
//	)
//
// Supported options:
//
//   - WithKeyFunc(func(string) string): transforms identifiers (default identity).
//   - WithBlockOnLimit(bool): return *LimitError on denial (default true).
//   - WithErrorMessage(string): LimitError message (default "Rate limit exceeded").
//   - WithPrefix(string): key prefix (default "ratelimit:").
//   - WithTimeout(time.Duration): per-call store timeout (default 5s).
//   - WithClock(Clock): time source, read once per check.
//   - WithLogger(zerolog.Logger): debug logs per decision, warnings on store errors.
//   - WithRecorder(MetricsRecorder): metrics backend.
package limiter
