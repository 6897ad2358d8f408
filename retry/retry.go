// Package retry runs operations that may fail transiently, waiting between
// attempts with a backoff and jitter strategy.
//
//	client, err := retry.DoValue(ctx, func(ctx context.Context) (*redis.Client, error) {
//	    return dial(ctx)
//	}, retry.WithAttempts(5), retry.WithBackoff(retry.ConstantBackoff(time.Second)))
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	defaultAttempts      = 4
	defaultBaseDelay     = 100 * time.Millisecond
	defaultMaxDelay      = 2 * time.Second
	defaultBackoffFactor = 2.0
)

// Option configures a call to Do or DoValue.
type Option func(*options)

type options struct {
	attempts uint
	backoff  Backoff
	jitter   Jitter
	timeout  time.Duration
	onRetry  func(attempt uint, err error)
}

func newOptions(opts []Option) *options {
	o := &options{
		attempts: defaultAttempts,
		backoff: ExpBackoff{
			Base:   defaultBaseDelay,
			Max:    defaultMaxDelay,
			Factor: defaultBackoffFactor,
		},
		jitter: FullJitter,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// WithAttempts sets the maximum number of attempts, including the first.
// Zero means retry until the context ends.
func WithAttempts(n uint) Option {
	return func(o *options) {
		o.attempts = n
	}
}

// WithBackoff sets the delay strategy between attempts.
func WithBackoff(b Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// WithJitter sets how much randomness is applied to each delay.
func WithJitter(j Jitter) Option {
	return func(o *options) {
		o.jitter = j
	}
}

// WithTimeout bounds each individual attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithOnRetry registers a callback invoked after every failed attempt that
// will be retried.
func WithOnRetry(f func(attempt uint, err error)) Option {
	return func(o *options) {
		o.onRetry = f
	}
}

// Do calls f until it succeeds, returns an Abort error, the attempts run out
// or ctx ends. The last error from f is returned when attempts run out.
func Do(ctx context.Context, f func(ctx context.Context) error, opts ...Option) error {
	_, err := DoValue(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f(ctx)
	}, opts...)

	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, f func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	o := newOptions(opts)

	var (
		out T
		err error
	)

	for attempt := uint(0); o.attempts == 0 || attempt < o.attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, errors.Join(ctxErr, err)
		}

		out, err = call(ctx, f, o.timeout)
		if err == nil {
			return out, nil
		}

		var retryErr Error
		if errors.As(err, &retryErr) && !retryErr.Temporary() {
			var p *permanentError
			if errors.As(err, &p) {
				return out, p.error
			}

			return out, err
		}

		if o.attempts != 0 && attempt+1 >= o.attempts {
			break
		}

		if o.onRetry != nil {
			o.onRetry(attempt, err)
		}

		timer := time.NewTimer(o.jitter.jitter(o.backoff.Delay(attempt)))
		select {
		case <-ctx.Done():
			timer.Stop()

			return out, errors.Join(ctx.Err(), err)
		case <-timer.C:
		}
	}

	return out, err
}

func call[T any](ctx context.Context, f func(ctx context.Context) (T, error), timeout time.Duration) (T, error) {
	if timeout <= 0 {
		return f(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return f(ctx)
}
