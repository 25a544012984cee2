package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/manenim/distributed-rate-limiter/pkg/limiter"
	"github.com/rs/zerolog"
)

// Checker is the part of *limiter.Limiter the middleware needs.
type Checker interface {
	Check(ctx context.Context, id string) (limiter.Decision, error)
}

type options struct {
	keyFunc    func(r *http.Request) string
	skip       func(r *http.Request) bool
	failClosed bool
	logger     zerolog.Logger
}

type Option func(*options)

// WithKeyFunc sets how the identifier is extracted from a request. The
// default is the client IP taken from RemoteAddr.
func WithKeyFunc(fn func(r *http.Request) string) Option {
	return func(o *options) {
		if fn != nil {
			o.keyFunc = fn
		}
	}
}

// WithSkip exempts requests for which fn returns true.
func WithSkip(fn func(r *http.Request) bool) Option {
	return func(o *options) {
		o.skip = fn
	}
}

// WithFailClosed answers 503 when the limiter cannot reach its store. By
// default such requests are let through and the error is logged.
func WithFailClosed(failClosed bool) Option {
	return func(o *options) {
		o.failClosed = failClosed
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// SkipPaths exempts the given exact paths, typically health and metrics
// endpoints.
func SkipPaths(paths ...string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.URL.Path]
		return ok
	}
}

// ClientIP returns the host part of r.RemoteAddr, or "unknown".
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

type limitedBody struct {
	Error      string `json:"error"`
	RetryAfter int64  `json:"retryAfter"`
	ResetAt    int64  `json:"resetAt"`
}

// RateLimit admits each request through l. Every checked response carries
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset; denied
// requests get 429 with Retry-After and a JSON body.
func RateLimit(l Checker, opts ...Option) func(http.Handler) http.Handler {
	o := options{
		keyFunc: ClientIP,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if o.skip != nil && o.skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			id := o.keyFunc(r)
			dec, err := l.Check(r.Context(), id)

			message := limiter.DefaultErrorMessage
			var limitErr *limiter.LimitError
			switch {
			case errors.As(err, &limitErr):
				dec = limitErr.Decision
				message = limitErr.Message
			case err != nil:
				o.logger.Error().Err(err).Str("id", id).Bool("fail_closed", o.failClosed).Msg("rate limiter unavailable")
				if o.failClosed {
					writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "rate limiter unavailable"})
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(dec.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(dec.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(dec.ResetAt.Unix(), 10))

			if !dec.Allowed {
				retryAfter := int64(dec.ResetIn.Seconds())
				h.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				writeJSON(w, http.StatusTooManyRequests, limitedBody{
					Error:      message,
					RetryAfter: retryAfter,
					ResetAt:    dec.ResetAt.Unix(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
