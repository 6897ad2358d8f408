// Package server exposes a herd over HTTP: members can be created, fed
// facts, stepped and inspected, and the graph rendered as a Mermaid diagram.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/amp-labs/tickfsm/herd"
	"github.com/amp-labs/tickfsm/logger"
)

var (
	// ErrStart indicates that the server failed to start.
	ErrStart = errors.New("failed to start HTTP server")
	// ErrShutdown indicates that graceful shutdown failed.
	ErrShutdown = errors.New("failed to shutdown HTTP server gracefully")
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("server already running")
)

// Config holds listener settings.
type Config struct {
	Addr            string        `env:"TICKFSM_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"TICKFSM_HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"TICKFSM_HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"TICKFSM_HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"TICKFSM_HTTP_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// Option configures a Server.
type Option func(*Server)

// WithReadinessCheck adds a dependency probed by /readyz.
func WithReadinessCheck(check func(context.Context) error) Option {
	return func(s *Server) {
		if check != nil {
			s.ready = append(s.ready, check)
		}
	}
}

// Server serves the herd API.
type Server struct {
	herd  *herd.Herd
	cfg   Config
	ready []func(context.Context) error

	mu   sync.Mutex
	srv  *http.Server
	once sync.Once
}

// New returns a server for h. Nothing listens until Run.
func New(h *herd.Herd, cfg Config, opts ...Option) *Server {
	s := &Server{herd: h, cfg: cfg}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run listens on the configured address until ctx is done, then shuts the
// listener down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()

		return errors.Join(ErrStart, ErrAlreadyRunning)
	}

	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	s.srv = srv
	s.mu.Unlock()

	log := logger.Get(ctx)
	log.Info("HTTP server starting", slog.String("addr", s.cfg.Addr))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	var runErr error

	select {
	case <-ctx.Done():
		_ = s.Shutdown(context.WithoutCancel(ctx))
		runErr = <-errCh
	case runErr = <-errCh:
	}

	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
		return errors.Join(ErrStart, runErr)
	}

	log.Info("HTTP server stopped")

	return nil
}

// Shutdown stops the listener, waiting up to the configured timeout for
// in-flight requests. Repeated calls are no-ops.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error

	s.once.Do(func() {
		s.mu.Lock()
		srv := s.srv
		s.mu.Unlock()

		if srv == nil {
			return
		}

		if s.cfg.ShutdownTimeout > 0 {
			var cancel context.CancelFunc

			ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
			defer cancel()
		}

		err = srv.Shutdown(ctx)
	})

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Join(ErrShutdown, err)
	}

	return nil
}
