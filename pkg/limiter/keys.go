package limiter

import (
	"strconv"
	"strings"
)

const DefaultPrefix = "ratelimit:"

// keyCodec derives the store keys for a strategy and caller key:
//
//	{prefix}{strategy}:{key}[:{windowStart}]
//
// Namespacing by strategy keeps the same caller key from colliding when
// several limiters share one store.
type keyCodec struct {
	prefix string
}

func (c keyCodec) base(s Strategy, key string) string {
	return c.prefix + string(s) + ":" + key
}

// window is the fixed-window counter key for the window starting at
// windowStart (unix seconds).
func (c keyCodec) window(key string, windowStart int64) string {
	return c.base(FixedWindow, key) + ":" + strconv.FormatInt(windowStart, 10)
}

// sequence is the sliding-window tie-breaker counter key.
func (c keyCodec) sequence(key string) string {
	return c.base(SlidingWindow, key) + ":counter"
}

// windows matches every fixed-window counter for key. Glob metacharacters in
// key are escaped, but the pattern still matches callers whose key extends
// key with ":"; filter candidates with isWindow.
func (c keyCodec) windows(key string) string {
	return escapeGlob(c.base(FixedWindow, key)) + ":*"
}

// isWindow reports whether candidate is a window counter of key itself:
// base + ":" + windowStart digits.
func (c keyCodec) isWindow(key, candidate string) bool {
	start, ok := strings.CutPrefix(candidate, c.base(FixedWindow, key)+":")
	if !ok || start == "" {
		return false
	}
	for i := 0; i < len(start); i++ {
		if start[i] < '0' || start[i] > '9' {
			return false
		}
	}
	return true
}

var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

func escapeGlob(s string) string { return globEscaper.Replace(s) }
