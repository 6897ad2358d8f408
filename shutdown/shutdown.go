// Package shutdown coordinates graceful process exit. Hooks registered with
// BeforeShutdown run, most recent first, when SIGINT or SIGTERM arrives or
// Shutdown is called; the context from SetupHandler is canceled after them.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"
)

const defaultTimeout = 15 * time.Second

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// Manager owns a set of shutdown hooks.
type Manager struct {
	mu      sync.Mutex
	hooks   []hook
	timeout time.Duration

	signals chan os.Signal
	trigger chan struct{}
	done    chan struct{}

	triggerOnce sync.Once
	setupOnce   sync.Once
	ctx         context.Context //nolint:containedctx
}

// New returns a manager whose hooks share a deadline of timeout.
func New(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Manager{
		timeout: timeout,
		signals: make(chan os.Signal, 1),
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// BeforeShutdown registers a hook. The parent context is still alive while
// hooks run; each hook receives a context bounded by the manager's timeout.
func (m *Manager) BeforeShutdown(name string, fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hooks = append(m.hooks, hook{name: name, fn: fn})
}

// SetupHandler starts listening for SIGINT and SIGTERM and returns a context
// canceled once shutdown completes. Later calls return the same context.
func (m *Manager) SetupHandler(parent context.Context) context.Context {
	m.setupOnce.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		m.ctx = ctx

		signal.Notify(m.signals, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			defer close(m.done)
			defer cancel()

			select {
			case sig := <-m.signals:
				slog.Warn("Received " + sig.String() + ", shutting down...")
			case <-m.trigger:
				slog.Info("Shutdown requested")
			case <-parent.Done():
			}

			signal.Stop(m.signals)

			m.runHooks(context.WithoutCancel(parent))
		}()
	})

	return m.ctx
}

// Shutdown starts the shutdown sequence. It is safe to call more than once
// and before SetupHandler.
func (m *Manager) Shutdown() {
	m.triggerOnce.Do(func() {
		close(m.trigger)
	})
}

// Done is closed after every hook has returned.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) runHooks(parent context.Context) {
	m.mu.Lock()
	hooks := slices.Clone(m.hooks)
	m.hooks = nil
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, m.timeout)
	defer cancel()

	for _, h := range slices.Backward(hooks) {
		if err := h.fn(ctx); err != nil {
			slog.Error("Shutdown hook failed", "hook", h.name, "error", err)

			continue
		}

		slog.Debug("Shutdown hook finished", "hook", h.name)
	}
}

var std = New(defaultTimeout) //nolint:gochecknoglobals

// BeforeShutdown registers a hook on the process-wide manager.
func BeforeShutdown(name string, fn func(ctx context.Context) error) {
	std.BeforeShutdown(name, fn)
}

// SetupHandler installs the process-wide signal handler.
func SetupHandler(parent context.Context) context.Context {
	return std.SetupHandler(parent)
}

// Shutdown triggers the process-wide shutdown.
func Shutdown() {
	std.Shutdown()
}

// Done is closed once the process-wide shutdown has finished.
func Done() <-chan struct{} {
	return std.Done()
}
