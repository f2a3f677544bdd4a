// Package retry provides a small bounded retry combinator. It replaces the
// ad hoc sleep-and-loop blocks that tend to accumulate around conditional
// database updates with one reusable, context-aware loop.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned by Do when every attempt asked for a retry.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Backoff computes the delay before the next attempt. The attempt argument
// is 1-based: it is the number of attempts already made.
type Backoff func(attempt int) time.Duration

// Linear returns a backoff growing by step per attempt (step, 2*step, ...).
func Linear(step time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// Do invokes fn up to attempts times. fn reports done=true to stop the loop;
// the accompanying error (nil or terminal) is returned as-is. When fn asks
// for another attempt and the budget still allows one, Do sleeps for
// wait(attempt) first, aborting early if ctx is cancelled. If every attempt
// reported done=false, Do returns ErrExhausted.
func Do(ctx context.Context, attempts int, wait Backoff, fn func() (done bool, err error)) error {
	if attempts < 1 {
		attempts = 1
	}
	for i := 1; i <= attempts; i++ {
		done, err := fn()
		if done {
			return err
		}
		if i == attempts {
			break
		}
		d := time.Duration(0)
		if wait != nil {
			d = wait(i)
		}
		if d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
	}
	return ErrExhausted
}
