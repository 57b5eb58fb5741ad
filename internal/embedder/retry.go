package embedder

import (
	"context"
	"time"
)

// RetryBackoff is the embedding service's recovery policy: retry exactly
// once, after a fixed backoff. Storage calls are never retried. ctx
// cancellation aborts immediately without consuming the retry.
const RetryBackoff = 100 * time.Millisecond

// retryOnceWithBackoff runs fn, and if it fails, waits RetryBackoff (or
// returns fn's first error early on ctx cancellation) and runs it exactly
// one more time.
func retryOnceWithBackoff[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	result, err := fn()
	if err == nil {
		return result, nil
	}
	var zero T
	if ctx.Err() != nil {
		return zero, err
	}
	select {
	case <-ctx.Done():
		return zero, err
	case <-time.After(RetryBackoff):
	}
	return fn()
}
