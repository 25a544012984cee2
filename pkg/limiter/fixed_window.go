package limiter

import (
	"context"
	"strconv"
	"time"
)

// fixedWindow counts requests per aligned window of windowSeconds. A caller
// can spend maxRequests at the end of one window and again right after the
// boundary; use slidingWindow when that burst matters.
//
// Decisions report the time left until the current window's boundary, not
// the full window length.
type fixedWindow struct {
	store         Store
	keys          keyCodec
	maxRequests   int64
	windowSeconds int64
}

func (f *fixedWindow) kind() Strategy { return FixedWindow }
func (f *fixedWindow) quota() int64 { return f.maxRequests }

func (f *fixedWindow) check(ctx context.Context, key string, now time.Time) (Decision, error) {
	return f.eval(ctx, fixedWindowScript, key, now)
}

func (f *fixedWindow) peek(ctx context.Context, key string, now time.Time) (Decision, error) {
	return f.eval(ctx, fixedWindowPeekScript, key, now)
}

func (f *fixedWindow) eval(ctx context.Context, script *Script, key string, now time.Time) (Decision, error) {
	windowStart := now.Unix() / f.windowSeconds * f.windowSeconds
	windowEnd := (windowStart + f.windowSeconds) * 1000

	reply, err := f.store.Eval(ctx, script,
		[]string{f.keys.window(key, windowStart)},
		[]string{
			strconv.FormatInt(f.maxRequests, 10),
			strconv.FormatInt(f.windowSeconds, 10),
			strconv.FormatInt(windowEnd, 10),
			strconv.FormatInt(now.UnixMilli(), 10),
		},
	)
	if err != nil {
		return Decision{}, err
	}
	return newDecision(reply, f.maxRequests, now)
}

// reset removes the counters of every window, not only the current one.
func (f *fixedWindow) reset(ctx context.Context, key string) error {
	_, err := f.store.DeleteMatching(ctx, f.keys.windows(key), func(candidate string) bool {
		return f.keys.isWindow(key, candidate)
	})
	return err
}
