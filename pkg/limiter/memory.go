package limiter

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"
)

type entry struct {
	counter    int64
	tokens     float64
	lastRefill int64
	log        []int64
	expiresAt  int64 // unix ms, 0 means no expiry
}

// MemoryStore is an in-process Store. Each Eval runs under a single mutex,
// so transactions are atomic within the process.
//
// Its state is local to the process and is not shared across replicas. Use
// RedisStore when you need a single global limit across multiple instances.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemoryStore constructs a MemoryStore with empty state.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
	}
}

type memoryScript func(m *MemoryStore, keys []string, args []string) ([]int64, error)

var memoryScripts = map[string]memoryScript{
	fixedWindowScript.name:       memFixedWindow(true),
	fixedWindowPeekScript.name:   memFixedWindow(false),
	slidingWindowScript.name:     memSlidingWindow,
	slidingWindowPeekScript.name: memSlidingWindowPeek,
	tokenBucketScript.name:       memTokenBucket(true),
	tokenBucketPeekScript.name:   memTokenBucket(false),
}

func (m *MemoryStore) Eval(ctx context.Context, script *Script, keys []string, args []string) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	run, ok := memoryScripts[script.Name()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScript, script.Name())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return run(m, keys, args)
}

func (m *MemoryStore) DeleteMatching(ctx context.Context, pattern string, keep func(key string) bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key := range m.entries {
		if globMatch(pattern, key) && (keep == nil || keep(key)) {
			delete(m.entries, key)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

// Len reports the number of keys held, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Sweep drops entries whose TTL passed before now and returns how many were
// removed. Expired entries are otherwise only dropped when touched.
func (m *MemoryStore) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms := now.UnixMilli()
	removed := 0
	for key, e := range m.entries {
		if e.expired(ms) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps expired entries every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("sweep interval must be > 0, got %v", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}

func (e *entry) expired(now int64) bool {
	return e.expiresAt != 0 && now > e.expiresAt
}

// lookup returns the live entry for key, dropping it if it has expired.
func (m *MemoryStore) lookup(key string, now int64) *entry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if e.expired(now) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *MemoryStore) ensure(key string, now int64) *entry {
	if e := m.lookup(key, now); e != nil {
		return e
	}
	e := &entry{}
	m.entries[key] = e
	return e
}

func memFixedWindow(consume bool) memoryScript {
	return func(m *MemoryStore, keys []string, args []string) ([]int64, error) {
		v, err := parseArgs(args, 4)
		if err != nil {
			return nil, err
		}
		maxRequests, window, windowEnd, now := v[0], v[1], v[2], v[3]

		var count int64
		if e := m.lookup(keys[0], now); e != nil {
			count = e.counter
		}

		var allowed int64
		if count < maxRequests {
			allowed = 1
			if consume {
				e := m.ensure(keys[0], now)
				e.counter++
				e.expiresAt = now + window*1000
				count = e.counter
			}
		}

		return []int64{allowed, max(0, maxRequests-count), windowEnd - now}, nil
	}
}

func memSlidingWindow(m *MemoryStore, keys []string, args []string) ([]int64, error) {
	v, err := parseArgs(args, 3)
	if err != nil {
		return nil, err
	}
	now, windowMs, maxRequests := v[0], v[1], v[2]

	e := m.lookup(keys[0], now)
	if e != nil {
		e.log = e.log[pruneIndex(e.log, now-windowMs):]
		if len(e.log) == 0 {
			delete(m.entries, keys[0])
			e = nil
		}
	}

	var count int64
	if e != nil {
		count = int64(len(e.log))
	}

	var allowed, remaining int64
	if count < maxRequests {
		seq := m.ensure(keys[1], now)
		seq.counter++
		seq.expiresAt = now + windowMs

		e = m.ensure(keys[0], now)
		i, _ := slices.BinarySearch(e.log, now+1)
		e.log = slices.Insert(e.log, i, now)
		e.expiresAt = now + windowMs

		allowed = 1
		remaining = maxRequests - count - 1
	}

	resetIn := windowMs
	if e != nil && len(e.log) > 0 {
		resetIn = e.log[0] + windowMs - now
	}
	return []int64{allowed, remaining, resetIn}, nil
}

func memSlidingWindowPeek(m *MemoryStore, keys []string, args []string) ([]int64, error) {
	v, err := parseArgs(args, 3)
	if err != nil {
		return nil, err
	}
	now, windowMs, maxRequests := v[0], v[1], v[2]

	var live []int64
	if e := m.lookup(keys[0], now); e != nil {
		live = e.log[pruneIndex(e.log, now-windowMs):]
	}

	count := int64(len(live))
	var allowed int64
	if count < maxRequests {
		allowed = 1
	}

	resetIn := windowMs
	if len(live) > 0 {
		resetIn = live[0] + windowMs - now
	}
	return []int64{allowed, max(0, maxRequests-count), resetIn}, nil
}

// pruneIndex is the index of the first timestamp strictly after start.
func pruneIndex(log []int64, start int64) int {
	i, _ := slices.BinarySearch(log, start+1)
	return i
}

func memTokenBucket(consume bool) memoryScript {
	return func(m *MemoryStore, keys []string, args []string) ([]int64, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("%w: token bucket expects 3 args, got %d", ErrInvalidResponse, len(args))
		}
		capacity, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return nil, err
		}
		rate, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return nil, err
		}
		now, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return nil, err
		}

		tokens, lastRefill := capacity, now
		if e := m.lookup(keys[0], now); e != nil {
			tokens, lastRefill = e.tokens, e.lastRefill
		}

		if elapsed := float64(max(0, now-lastRefill)) / 1000; elapsed > 0 {
			tokens = math.Min(capacity, tokens+elapsed*rate)
			lastRefill = now
		}

		var allowed int64
		if tokens >= 1 {
			allowed = 1
			if consume {
				tokens--
			}
		}

		if consume {
			e := m.ensure(keys[0], now)
			e.tokens = tokens
			e.lastRefill = lastRefill
			e.expiresAt = now + max(1000, int64(math.Ceil(capacity/rate*1000)))
		}

		var resetIn int64
		if tokens < 1 {
			resetIn = int64(math.Ceil((1 - tokens) / rate * 1000))
		}
		return []int64{allowed, int64(math.Floor(tokens)), resetIn}, nil
	}
}

func parseArgs(args []string, n int) ([]int64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%w: expected %d args, got %d", ErrInvalidResponse, n, len(args))
	}
	out := make([]int64, n)
	for i, a := range args {
		v, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// globMatch implements Redis KEYS/SCAN pattern matching: *, ?, [set],
// [^set], [a-z] and backslash escapes.
func globMatch(pattern, s string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 1 && pattern[1] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if globMatch(pattern[1:], s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			pattern, s = pattern[1:], s[1:]
		case '[':
			if len(s) == 0 {
				return false
			}
			p := pattern[1:]
			negate := len(p) > 0 && p[0] == '^'
			if negate {
				p = p[1:]
			}
			matched := false
			for len(p) > 0 && p[0] != ']' {
				switch {
				case p[0] == '\\' && len(p) >= 2:
					matched = matched || p[1] == s[0]
					p = p[2:]
				case len(p) >= 3 && p[1] == '-' && p[2] != ']':
					lo, hi := min(p[0], p[2]), max(p[0], p[2])
					matched = matched || (s[0] >= lo && s[0] <= hi)
					p = p[3:]
				default:
					matched = matched || p[0] == s[0]
					p = p[1:]
				}
			}
			if len(p) > 0 {
				p = p[1:]
			}
			if matched == negate {
				return false
			}
			pattern, s = p, s[1:]
		case '\\':
			if len(pattern) >= 2 {
				pattern = pattern[1:]
			}
			fallthrough
		default:
			if len(s) == 0 || pattern[0] != s[0] {
				return false
			}
			pattern, s = pattern[1:], s[1:]
		}
	}
	return len(s) == 0
}
