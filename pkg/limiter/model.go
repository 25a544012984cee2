package limiter

import (
	"context"
	"fmt"
	"time"
)

// Strategy names one of the admission algorithms. The value doubles as the
// strategy's key namespace.
type Strategy string

const (
	TokenBucket   Strategy = "token-bucket"
	SlidingWindow Strategy = "sliding-window"
	FixedWindow   Strategy = "fixed-window"
)

// DefaultStrategy is used when Config.Strategy is empty.
const DefaultStrategy = SlidingWindow

// ParseStrategy maps a configuration string onto a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(name); s {
	case TokenBucket, SlidingWindow, FixedWindow:
		return s, nil
	case "":
		return DefaultStrategy, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

func (s Strategy) String() string { return string(s) }

// TokenBucketConfig overrides the bucket shape derived from Config.
type TokenBucketConfig struct {
	// Capacity is the maximum number of tokens (default MaxRequests).
	Capacity int64
	// RefillRate is tokens added per second (default MaxRequests / window seconds).
	RefillRate float64
}

type Config struct {
	MaxRequests int64
	Window      time.Duration
	Strategy    Strategy
	TokenBucket *TokenBucketConfig
}

// Validate reports configuration errors. Window must be a whole number of
// seconds since fixed windows are aligned on second boundaries.
func (c Config) Validate() error {
	if c.MaxRequests <= 0 {
		return fmt.Errorf("%w: max requests must be positive, got %d", ErrInvalidConfig, c.MaxRequests)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfig, c.Window)
	}
	if c.Window%time.Second != 0 {
		return fmt.Errorf("%w: window must be a whole number of seconds, got %s", ErrInvalidConfig, c.Window)
	}
	if tb := c.TokenBucket; tb != nil {
		if tb.Capacity < 0 {
			return fmt.Errorf("%w: token bucket capacity must be positive, got %d", ErrInvalidConfig, tb.Capacity)
		}
		if tb.RefillRate < 0 {
			return fmt.Errorf("%w: token bucket refill rate must be positive, got %g", ErrInvalidConfig, tb.RefillRate)
		}
	}
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	return nil
}

func (c Config) windowSeconds() int64 { return int64(c.Window / time.Second) }

func (c Config) bucket() (capacity int64, refillRate float64) {
	capacity = c.MaxRequests
	refillRate = float64(c.MaxRequests) / float64(c.windowSeconds())
	if tb := c.TokenBucket; tb != nil {
		if tb.Capacity > 0 {
			capacity = tb.Capacity
		}
		if tb.RefillRate > 0 {
			refillRate = tb.RefillRate
		}
	}
	return capacity, refillRate
}

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed bool
	// Remaining is the number of whole quota units left after this check.
	Remaining int64
	// Limit is the configured capacity: bucket size for the token bucket,
	// max requests per window otherwise.
	Limit int64
	// ResetAt is when the quota is next expected to be available, truncated
	// to whole seconds.
	ResetAt time.Time
	// ResetIn is ResetAt relative to the time of the check, in whole seconds.
	ResetIn time.Duration
}

// RetryAfter is the hint a denied caller should wait before retrying.
func (d Decision) RetryAfter() time.Duration {
	if d.Allowed {
		return 0
	}
	return d.ResetIn
}

// newDecision normalizes a script reply of {allowed, remaining, reset_in_ms}.
func newDecision(reply []int64, limit int64, now time.Time) (Decision, error) {
	if len(reply) != 3 {
		return Decision{}, fmt.Errorf("%w: expected 3 values, got %d", ErrInvalidResponse, len(reply))
	}
	remaining := min(max(reply[1], 0), limit)
	resetInMs := max(reply[2], 0)
	resetIn := (resetInMs + 999) / 1000
	return Decision{
		Allowed:   reply[0] == 1,
		Remaining: remaining,
		Limit:     limit,
		ResetAt:   time.Unix(now.Unix()+resetIn, 0),
		ResetIn:   time.Duration(resetIn) * time.Second,
	}, nil
}

type RateLimiter interface {
	Check(ctx context.Context, id string) (Decision, error)
}
