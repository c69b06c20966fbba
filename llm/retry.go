package llm

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 2 * time.Second
)

// RetryPolicy bounds how often a transient backend failure is retried. The
// delay before retry n is BaseDelay * 2^(n-1).
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy returns 4 attempts starting at 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, BaseDelay: DefaultBaseDelay}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p RetryPolicy) base() time.Duration {
	if p.BaseDelay <= 0 {
		return DefaultBaseDelay
	}
	return p.BaseDelay
}

// Do calls fn until it succeeds, fails with a non-transient error, or the
// attempt ceiling is reached. It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, int, error) {
	attempts := 0
	backoff := retry.WithMaxRetries(uint64(p.attempts()-1), retry.NewExponential(p.base()))
	out, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (string, error) {
		attempts++
		text, err := fn(ctx)
		if err != nil && IsTransient(err) {
			return "", retry.RetryableError(err)
		}
		return text, err
	})
	return out, attempts, err
}
