package util

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
)

var (
	// ErrNotReady is returned by a polled function whose condition does
	// not hold yet. Any other error stops the polling.
	ErrNotReady = errors.New("not ready")
	// ErrPollTimeout is returned by Poll when the condition never held.
	ErrPollTimeout = errors.New("polling timed out")
)

// Poll invokes fn every interval until it returns nil or an error other than
// ErrNotReady, for at most timeout. The context given to fn is cancelled when
// the timeout elapses.
func Poll(ctx context.Context, interval, timeout time.Duration, fn func(context.Context) error) error {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var last error
	attempts := 0

	err := backoff.Retry(func() error {
		attempts++
		last = fn(pctx)
		if last == nil || errors.Is(last, ErrNotReady) {
			return last
		}
		return backoff.Permanent(last)
	}, backoff.WithContext(backoff.NewConstantBackOff(interval), pctx))

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case pctx.Err() != nil:
		return errors.Wrapf(ErrPollTimeout, "after %v and %d attempts: %v", timeout, attempts, last)
	default:
		return err
	}
}
