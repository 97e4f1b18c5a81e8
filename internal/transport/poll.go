package transport

import (
	"context"
	"errors"
	"time"
)

// ErrPollExhausted is the terminal outcome when a bounded poll runs out of
// attempts without resolving.
var ErrPollExhausted = errors.New("poll attempts exhausted")

// Poll runs fn up to attempts times with a fixed delay between tries. fn
// reports done=true to stop successfully; a non-nil error aborts immediately
// unless retry is requested by returning (false, nil). There is no timeout:
// the fixed retry budget is the bound.
func Poll(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) (bool, error)) error {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return ErrPollExhausted
}
