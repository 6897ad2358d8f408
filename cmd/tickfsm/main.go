// Command tickfsm runs a herd of tick-driven state machines behind an HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/amp-labs/tickfsm/build"
	"github.com/amp-labs/tickfsm/config"
	"github.com/amp-labs/tickfsm/herd"
	"github.com/amp-labs/tickfsm/logger"
	"github.com/amp-labs/tickfsm/server"
	"github.com/amp-labs/tickfsm/shutdown"
	"github.com/amp-labs/tickfsm/statemachine"
	"github.com/amp-labs/tickfsm/statemachine/redisstore"
	"github.com/amp-labs/tickfsm/telemetry"
	"github.com/redis/go-redis/v9"
)

const (
	storeMemory = "memory"
	storeRedis  = "redis"
)

var errUnknownStore = errors.New("unknown fact store")

type appConfig struct {
	Graph        string        `env:"TICKFSM_GRAPH" envDefault:"animal"`
	TickInterval time.Duration `env:"TICKFSM_TICK_INTERVAL" envDefault:"1s"`
	Store        string        `env:"TICKFSM_STORE" envDefault:"memory"`
	Workers      int           `env:"TICKFSM_WORKERS" envDefault:"8"`
	Watch        bool          `env:"TICKFSM_WATCH" envDefault:"false"`
	HerdName     string        `env:"TICKFSM_HERD_NAME" envDefault:"herd"`
	LogJSON      bool          `env:"LOG_JSON" envDefault:"true"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info"`

	Redis     redisstore.Config
	Telemetry telemetry.Config
	Server    server.Config
}

func main() {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, err) //nolint:forbidigo

		os.Exit(1)
	}

	ctx := shutdown.SetupHandler(context.Background())

	if err := run(ctx, &cfg); err != nil {
		logger.Fatal("tickfsm exited with error", logger.Error(err))
	}

	<-shutdown.Done()
}

func run(ctx context.Context, cfg *appConfig) error {
	providers, err := telemetry.Initialize(ctx, &cfg.Telemetry)
	if err != nil {
		return err
	}

	shutdown.BeforeShutdown("telemetry", providers.Shutdown)

	opts := logger.Options{
		Subsystem:   "tickfsm",
		JSON:        cfg.LogJSON,
		MinLevel:    parseLevel(cfg.LogLevel),
		LegacyLevel: slog.LevelWarn,
	}

	if handler := providers.LogHandler(); handler != nil {
		opts.Extra = append(opts.Extra, handler)
	}

	logger.ConfigureLoggingWithOptions(opts)

	graph, initial, err := loadGraph(cfg.Graph)
	if err != nil {
		return err
	}

	stores, ready, err := storeFactory(ctx, cfg)
	if err != nil {
		return err
	}

	h, err := herd.New(graph, initial,
		herd.WithName(cfg.HerdName),
		herd.WithWorkers(cfg.Workers),
		herd.WithStoreFactory(stores),
		herd.WithMachineOptions(statemachine.WithLogger(statemachine.NewSlogLogger(logger.Get(ctx)))),
	)
	if err != nil {
		return err
	}

	var srvOpts []server.Option
	if ready != nil {
		srvOpts = append(srvOpts, server.WithReadinessCheck(ready))
	}

	srv := server.New(h, cfg.Server, srvOpts...)

	// Hooks run in reverse: stop serving, then stop ticking, then flush telemetry.
	shutdown.BeforeShutdown("herd", func(context.Context) error {
		h.Close()

		return nil
	})
	shutdown.BeforeShutdown("http", srv.Shutdown)

	info := build.Current()

	logger.Get(ctx).Info("tickfsm starting",
		slog.String("version", info.Version),
		slog.String("commit", info.Commit),
		logger.Graph(graph.Name()),
		slog.String("store", cfg.Store),
		slog.Duration("interval", cfg.TickInterval),
		slog.Uint64("fingerprint", graph.Fingerprint()))

	go func() {
		if err := srv.Run(ctx); err != nil {
			logger.Get(ctx).Error("HTTP server failed", logger.Error(err))
			shutdown.Shutdown()
		}
	}()

	go func() {
		if err := h.Run(ctx, cfg.TickInterval); err != nil && !errors.Is(err, herd.ErrClosed) {
			logger.Get(ctx).Error("herd stopped", logger.Error(err))
			shutdown.Shutdown()
		}
	}()

	if cfg.Watch {
		if !isGraphFile(cfg.Graph) {
			logger.Get(ctx).Warn("graph watch needs a graph file, ignoring", slog.String("graph", cfg.Graph))

			return nil
		}

		watcher, err := watchGraph(ctx, cfg.Graph, h)
		if err != nil {
			return err
		}

		shutdown.BeforeShutdown("watcher", func(context.Context) error { return watcher.Close() })
	}

	return nil
}

// storeFactory returns the member store factory for cfg.Store and, for
// remote stores, a readiness probe.
func storeFactory(ctx context.Context, cfg *appConfig) (herd.StoreFactory, func(context.Context) error, error) {
	switch strings.ToLower(cfg.Store) {
	case "", storeMemory:
		return herd.MemoryStores, nil, nil
	case storeRedis:
		client, err := redisstore.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}

		shutdown.BeforeShutdown("redis", func(context.Context) error { return client.Close() })

		return redisStores(client, cfg.Redis.KeyPrefix), redisstore.Healthcheck(client), nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", errUnknownStore, cfg.Store)
	}
}

func redisStores(client redis.UniversalClient, prefix string) herd.StoreFactory {
	return func(_ context.Context, memberID string) (herd.Store, error) {
		return redisstore.New(client, prefix+memberID), nil
	}
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}

	return l
}
