package limiter

import (
	"time"

	"github.com/rs/zerolog"
)

const defaultTimeout = 5 * time.Second

type Option func(*Limiter)

// WithKeyFunc transforms caller identifiers before they reach the key codec.
// On a Redis cluster, wrapping the identifier in a hash tag ("{" + id + "}")
// keeps all keys of one caller in the same slot.
func WithKeyFunc(fn func(id string) string) Option {
	return func(l *Limiter) {
		if fn != nil {
			l.keyFunc = fn
		}
	}
}

// WithBlockOnLimit controls whether Check returns a *LimitError on denial
// (default true). When false, denied decisions are returned with a nil error.
func WithBlockOnLimit(block bool) Option {
	return func(l *Limiter) {
		l.blockOnLimit = block
	}
}

func WithErrorMessage(msg string) Option {
	return func(l *Limiter) {
		if msg != "" {
			l.errorMessage = msg
		}
	}
}

// WithPrefix sets the key prefix (default "ratelimit:").
func WithPrefix(prefix string) Option {
	return func(l *Limiter) {
		l.keys.prefix = prefix
	}
}

// WithTimeout bounds each store call (default 5s). Zero disables the bound
// and leaves deadlines to the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(l *Limiter) {
		if d >= 0 {
			l.timeout = d
		}
	}
}

func WithClock(c Clock) Option {
	return func(l *Limiter) {
		if c != nil {
			l.clock = c
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithRecorder(r MetricsRecorder) Option {
	return func(l *Limiter) {
		if r != nil {
			l.recorder = r
		}
	}
}
