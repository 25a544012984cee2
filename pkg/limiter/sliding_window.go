package limiter

import (
	"context"
	"strconv"
	"time"
)

// slidingWindow keeps a log of admitted request timestamps (ms) per key and
// admits while fewer than maxRequests fall inside (now - window, now].
type slidingWindow struct {
	store         Store
	keys          keyCodec
	maxRequests   int64
	windowSeconds int64
}

func (s *slidingWindow) kind() Strategy { return SlidingWindow }
func (s *slidingWindow) quota() int64 { return s.maxRequests }

func (s *slidingWindow) check(ctx context.Context, key string, now time.Time) (Decision, error) {
	return s.eval(ctx, slidingWindowScript, key, now)
}

func (s *slidingWindow) peek(ctx context.Context, key string, now time.Time) (Decision, error) {
	return s.eval(ctx, slidingWindowPeekScript, key, now)
}

func (s *slidingWindow) eval(ctx context.Context, script *Script, key string, now time.Time) (Decision, error) {
	reply, err := s.store.Eval(ctx, script,
		[]string{s.keys.base(SlidingWindow, key), s.keys.sequence(key)},
		[]string{
			strconv.FormatInt(now.UnixMilli(), 10),
			strconv.FormatInt(s.windowSeconds*1000, 10),
			strconv.FormatInt(s.maxRequests, 10),
		},
	)
	if err != nil {
		return Decision{}, err
	}
	return newDecision(reply, s.maxRequests, now)
}

func (s *slidingWindow) reset(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.keys.base(SlidingWindow, key), s.keys.sequence(key))
}
