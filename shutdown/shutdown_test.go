package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitDone(t *testing.T, m *Manager) {
	t.Helper()

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("shutdown did not finish")
	}
}

func TestSignalRunsHooksInReverse(t *testing.T) {
	t.Parallel()

	m := New(time.Second)
	ctx := m.SetupHandler(t.Context())

	var (
		mu    sync.Mutex
		order []string
	)

	for _, name := range []string{"redis", "herd", "http"} {
		m.BeforeShutdown(name, func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()

			order = append(order, name)

			return nil
		})
	}

	m.signals <- syscall.SIGTERM

	waitDone(t, m)
	require.Error(t, ctx.Err())
	assert.Equal(t, []string{"http", "herd", "redis"}, order)
}

func TestShutdownTriggers(t *testing.T) {
	t.Parallel()

	m := New(time.Second)
	ctx := m.SetupHandler(t.Context())

	var alive bool

	m.BeforeShutdown("probe", func(context.Context) error {
		alive = ctx.Err() == nil

		return nil
	})

	m.Shutdown()
	m.Shutdown()

	waitDone(t, m)
	assert.True(t, alive, "context must stay alive while hooks run")
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestFailingHookDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	m := New(time.Second)
	m.SetupHandler(t.Context())

	ran := false

	m.BeforeShutdown("last", func(context.Context) error {
		ran = true

		return nil
	})
	m.BeforeShutdown("first", func(context.Context) error {
		return errors.New("boom")
	})

	m.Shutdown()

	waitDone(t, m)
	assert.True(t, ran)
}

func TestHooksGetDeadline(t *testing.T) {
	t.Parallel()

	m := New(20 * time.Millisecond)
	m.SetupHandler(t.Context())

	var hookErr error

	m.BeforeShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		hookErr = ctx.Err()

		return hookErr
	})

	m.Shutdown()

	waitDone(t, m)
	assert.ErrorIs(t, hookErr, context.DeadlineExceeded)
}

func TestParentCancelShutsDown(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithCancel(t.Context())
	m := New(time.Second)
	m.SetupHandler(parent)

	called := false
	m.BeforeShutdown("hook", func(context.Context) error {
		called = true

		return nil
	})

	cancel()

	waitDone(t, m)
	assert.True(t, called)
}

func TestShutdownWithoutSetup(t *testing.T) {
	t.Parallel()

	m := New(0)
	assert.Equal(t, defaultTimeout, m.timeout)
	assert.NotPanics(t, m.Shutdown)
}

func TestSetupHandlerIsIdempotent(t *testing.T) {
	t.Parallel()

	m := New(time.Second)
	first := m.SetupHandler(t.Context())
	second := m.SetupHandler(context.Background())

	assert.Equal(t, first, second)

	m.Shutdown()
	waitDone(t, m)
}
