package limiter

import (
	"context"
	"strconv"
	"time"
)

// tokenBucket refills continuously at refillRate tokens per second up to
// capacity and spends one token per admitted request. Tokens are stored as
// floats so fractional refill between checks is never lost; Remaining
// reports whole tokens.
type tokenBucket struct {
	store      Store
	keys       keyCodec
	capacity   int64
	refillRate float64
}

func (b *tokenBucket) kind() Strategy { return TokenBucket }
func (b *tokenBucket) quota() int64 { return b.capacity }

func (b *tokenBucket) check(ctx context.Context, key string, now time.Time) (Decision, error) {
	return b.eval(ctx, tokenBucketScript, key, now)
}

func (b *tokenBucket) peek(ctx context.Context, key string, now time.Time) (Decision, error) {
	return b.eval(ctx, tokenBucketPeekScript, key, now)
}

func (b *tokenBucket) eval(ctx context.Context, script *Script, key string, now time.Time) (Decision, error) {
	reply, err := b.store.Eval(ctx, script,
		[]string{b.keys.base(TokenBucket, key)},
		[]string{
			strconv.FormatInt(b.capacity, 10),
			strconv.FormatFloat(b.refillRate, 'f', -1, 64),
			strconv.FormatInt(now.UnixMilli(), 10),
		},
	)
	if err != nil {
		return Decision{}, err
	}
	return newDecision(reply, b.capacity, now)
}

func (b *tokenBucket) reset(ctx context.Context, key string) error {
	return b.store.Delete(ctx, b.keys.base(TokenBucket, key))
}
