package limiter

import "errors"

var (
	ErrInvalidConfig   = errors.New("limiter: invalid configuration")
	ErrUnknownStrategy = errors.New("limiter: unknown strategy")
	ErrLimitExceeded   = errors.New("limiter: rate limit exceeded")
	ErrInvalidResponse = errors.New("limiter: invalid script response")
	ErrUnknownScript   = errors.New("limiter: unknown script")
)

// DefaultErrorMessage is the LimitError message unless WithErrorMessage is used.
const DefaultErrorMessage = "Rate limit exceeded"

// LimitError is returned by Limiter.Check when a request is denied and the
// limiter blocks on limit. It carries the Decision so adapters can render
// headers without another round trip.
type LimitError struct {
	Message  string
	Decision Decision
}

func (e *LimitError) Error() string { return e.Message }

func (e *LimitError) Is(target error) bool { return target == ErrLimitExceeded }
