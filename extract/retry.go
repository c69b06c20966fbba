package extract

import (
	"context"
	"errors"
)

// Retry runs fn, re-running it (with a fresh model call inside fn) while it
// fails with an ExtractionError. attempts counts the first call, so 2 means
// one retry. Any other error stops immediately.
func Retry[T any](ctx context.Context, attempts int, fn func(ctx context.Context) (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}
	var (
		zero T
		err  error
	)
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		var out T
		out, err = fn(ctx)
		if err == nil {
			return out, nil
		}
		var ee *ExtractionError
		if !errors.As(err, &ee) {
			return zero, err
		}
	}
	return zero, err
}
