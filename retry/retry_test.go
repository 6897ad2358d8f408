package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func fast() []Option {
	return []Option{WithBackoff(ConstantBackoff(time.Millisecond)), WithJitter(WithoutJitter)}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(t.Context(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}

		return nil
	}, fast()...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	retried := 0
	err := Do(t.Context(), func(context.Context) error {
		calls++

		return errFlaky
	}, append(fast(), WithAttempts(2), WithOnRetry(func(uint, error) { retried++ }))...)

	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, retried)
}

func TestAbortStopsImmediately(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(t.Context(), func(context.Context) error {
		calls++

		return Abort(errFlaky)
	}, fast()...)

	require.ErrorIs(t, err, errFlaky)
	assert.Equal(t, 1, calls)

	var retryErr Error
	assert.False(t, errors.As(err, &retryErr), "abort wrapper should be removed")
}

func TestDoValue(t *testing.T) {
	t.Parallel()

	calls := 0
	out, err := DoValue(t.Context(), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errFlaky
		}

		return "ready", nil
	}, fast()...)

	require.NoError(t, err)
	assert.Equal(t, "ready", out)
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := Do(ctx, func(context.Context) error {
		t.Fatal("must not be called")

		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
}

func TestPerAttemptTimeout(t *testing.T) {
	t.Parallel()

	err := Do(t.Context(), func(ctx context.Context) error {
		<-ctx.Done()

		return ctx.Err()
	}, append(fast(), WithAttempts(2), WithTimeout(5*time.Millisecond))...)

	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	exp := ExpBackoff{Base: 100 * time.Millisecond, Max: time.Second, Factor: 2}
	assert.Equal(t, 100*time.Millisecond, exp.Delay(0))
	assert.Equal(t, 400*time.Millisecond, exp.Delay(2))
	assert.Equal(t, time.Second, exp.Delay(10))

	uncapped := ExpBackoff{Base: time.Second, Factor: 2}
	assert.Equal(t, 8*time.Second, uncapped.Delay(3))

	assert.Equal(t, time.Second, ConstantBackoff(time.Second).Delay(7))
}

func TestJitter(t *testing.T) {
	t.Parallel()

	d := 100 * time.Millisecond

	assert.Equal(t, d, WithoutJitter.jitter(d))
	assert.Equal(t, d, Jitter(0).jitter(d))

	for range 50 {
		full := FullJitter.jitter(d)
		assert.GreaterOrEqual(t, full, time.Duration(0))
		assert.LessOrEqual(t, full, d)

		equal := EqualJitter.jitter(d)
		assert.GreaterOrEqual(t, equal, d/2)
		assert.LessOrEqual(t, equal, d)
	}
}
