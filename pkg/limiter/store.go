package limiter

import (
	"context"
	_ "embed"
)

// Script is a named atomic transaction over store keys. Every script replies
// with {allowed, remaining, reset_in_ms}.
type Script struct {
	name   string
	source string
}

func (s *Script) Name() string   { return s.name }
func (s *Script) Source() string { return s.source }

var (
	//go:embed scripts/fixed_window.lua
	fixedWindowSource string
	//go:embed scripts/fixed_window_peek.lua
	fixedWindowPeekSource string
	//go:embed scripts/sliding_window.lua
	slidingWindowSource string
	//go:embed scripts/sliding_window_peek.lua
	slidingWindowPeekSource string
	//go:embed scripts/token_bucket.lua
	tokenBucketSource string
	//go:embed scripts/token_bucket_peek.lua
	tokenBucketPeekSource string
)

var (
	fixedWindowScript       = &Script{name: "fixed_window", source: fixedWindowSource}
	fixedWindowPeekScript   = &Script{name: "fixed_window_peek", source: fixedWindowPeekSource}
	slidingWindowScript     = &Script{name: "sliding_window", source: slidingWindowSource}
	slidingWindowPeekScript = &Script{name: "sliding_window_peek", source: slidingWindowPeekSource}
	tokenBucketScript       = &Script{name: "token_bucket", source: tokenBucketSource}
	tokenBucketPeekScript   = &Script{name: "token_bucket_peek", source: tokenBucketPeekSource}
)

// Scripts returns every script the strategies may run, for preloading.
func Scripts() []*Script {
	return []*Script{
		fixedWindowScript,
		fixedWindowPeekScript,
		slidingWindowScript,
		slidingWindowPeekScript,
		tokenBucketScript,
		tokenBucketPeekScript,
	}
}

// Store is the shared counter store the strategies run against.
//
// Eval must execute the script atomically: no concurrent caller may observe
// a partially applied transaction. Implementations do not retry.
type Store interface {
	Eval(ctx context.Context, script *Script, keys []string, args []string) ([]int64, error)
	// DeleteMatching removes every key matching a Redis-style glob pattern
	// for which keep returns true (all matches when keep is nil) and reports
	// how many were removed. It must enumerate incrementally.
	DeleteMatching(ctx context.Context, pattern string, keep func(key string) bool) (int64, error)
	Delete(ctx context.Context, keys ...string) error
}
