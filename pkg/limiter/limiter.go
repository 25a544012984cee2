package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// strategy is implemented by fixedWindow, slidingWindow and tokenBucket only.
type strategy interface {
	kind() Strategy
	quota() int64
	check(ctx context.Context, key string, now time.Time) (Decision, error)
	peek(ctx context.Context, key string, now time.Time) (Decision, error)
	reset(ctx context.Context, key string) error
}

// Limiter applies one strategy against a shared Store. It holds no mutable
// state of its own and is safe for concurrent use.
type Limiter struct {
	store        Store
	strategy     strategy
	keys         keyCodec
	keyFunc      func(string) string
	blockOnLimit bool
	errorMessage string
	timeout      time.Duration
	clock        Clock
	logger       zerolog.Logger
	recorder     MetricsRecorder
}

var _ RateLimiter = (*Limiter)(nil)

// New validates cfg and builds a Limiter over store. The store stays owned
// by the caller.
func New(store Store, cfg Config, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Limiter{
		store:        store,
		keys:         keyCodec{prefix: DefaultPrefix},
		keyFunc:      func(id string) string { return id },
		blockOnLimit: true,
		errorMessage: DefaultErrorMessage,
		timeout:      defaultTimeout,
		clock:        SystemClock{},
		logger:       zerolog.Nop(),
		recorder:     &NoOpMetricsRecorder{},
	}
	for _, opt := range opts {
		opt(l)
	}

	s, err := l.newStrategy(cfg)
	if err != nil {
		return nil, err
	}
	l.strategy = s
	return l, nil
}

func (l *Limiter) newStrategy(cfg Config) (strategy, error) {
	kind, err := ParseStrategy(string(cfg.Strategy))
	if err != nil {
		return nil, err
	}

	switch kind {
	case TokenBucket:
		capacity, rate := cfg.bucket()
		return &tokenBucket{store: l.store, keys: l.keys, capacity: capacity, refillRate: rate}, nil
	case SlidingWindow:
		return &slidingWindow{store: l.store, keys: l.keys, maxRequests: cfg.MaxRequests, windowSeconds: cfg.windowSeconds()}, nil
	case FixedWindow:
		return &fixedWindow{store: l.store, keys: l.keys, maxRequests: cfg.MaxRequests, windowSeconds: cfg.windowSeconds()}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, kind)
}

func (l *Limiter) Strategy() Strategy { return l.strategy.kind() }

// Limit is the capacity reported in every Decision.
func (l *Limiter) Limit() int64 { return l.strategy.quota() }

// Check consumes one unit of quota for id. A denial is returned as a
// *LimitError (matching ErrLimitExceeded) unless blocking is disabled; the
// Decision is returned alongside it either way. Store errors are returned
// unchanged so the caller can pick fail-open or fail-closed.
func (l *Limiter) Check(ctx context.Context, id string) (Decision, error) {
	key := l.keyFunc(id)
	now := l.clock.Now()

	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	dec, err := l.strategy.check(ctx, key, now)
	l.record(start, dec, err)
	if err != nil {
		l.logger.Warn().Err(err).
			Str("strategy", string(l.Strategy())).
			Str("key", key).
			Msg("rate limit check failed")
		return Decision{}, err
	}

	l.logger.Debug().
		Str("strategy", string(l.Strategy())).
		Str("key", key).
		Bool("allowed", dec.Allowed).
		Int64("remaining", dec.Remaining).
		Dur("reset_in", dec.ResetIn).
		Msg("rate limit check")

	if !dec.Allowed && l.blockOnLimit {
		return dec, &LimitError{Message: l.errorMessage, Decision: dec}
	}
	return dec, nil
}

// Status reports what Check would decide for id right now without consuming
// quota. It never returns a *LimitError.
func (l *Limiter) Status(ctx context.Context, id string) (Decision, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()
	return l.strategy.peek(ctx, l.keyFunc(id), l.clock.Now())
}

// Reset removes all stored state for id. Resetting an unknown id is a no-op.
func (l *Limiter) Reset(ctx context.Context, id string) error {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	key := l.keyFunc(id)
	if err := l.strategy.reset(ctx, key); err != nil {
		return err
	}
	l.logger.Debug().Str("strategy", string(l.Strategy())).Str("key", key).Msg("rate limit reset")
	return nil
}

func (l *Limiter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.timeout)
}

func (l *Limiter) record(start time.Time, dec Decision, err error) {
	tags := map[string]string{"strategy": string(l.Strategy())}
	l.recorder.Observe(MetricLatency, time.Since(start).Seconds(), tags)

	if err != nil {
		l.recorder.Add(MetricError, 1, tags)
		return
	}
	result := "allowed"
	if !dec.Allowed {
		result = "denied"
	}
	l.recorder.Add(MetricCheck, 1, map[string]string{"strategy": string(l.Strategy()), "result": result})
}
