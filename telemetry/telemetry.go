// Package telemetry wires OpenTelemetry trace and log export over OTLP/HTTP.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const (
	defaultServiceVersion = "1.0.0"
	gkeCollectorEndpoint  = "http://opentelemetry-collector.opentelemetry.svc.cluster.local:4318"
)

// Config holds the OpenTelemetry configuration.
type Config struct {
	Enabled        bool          `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName    string        `env:"OTEL_SERVICE_NAME" envDefault:"tickfsm"`
	ServiceVersion string        `env:"OTEL_SERVICE_VERSION" envDefault:"1.0.0"`
	Environment    string        `env:"ENVIRONMENT" envDefault:"local"`
	TracesEndpoint string        `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	LogsEndpoint   string        `env:"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"`
	Timeout        time.Duration `env:"OTEL_EXPORTER_OTLP_TIMEOUT" envDefault:"5s"`
}

// LoadConfigFromEnv reads Config from the environment. Inside Kubernetes the
// trace endpoint defaults to the in-cluster collector.
func LoadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse telemetry config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.TracesEndpoint == "" && os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		c.TracesEndpoint = gkeCollectorEndpoint
	}

	if c.ServiceVersion == "" {
		c.ServiceVersion = defaultServiceVersion
	}
}

// Providers holds whatever Initialize installed. The zero value is a valid
// disabled set.
type Providers struct {
	serviceName string
	traces      *sdktrace.TracerProvider
	logs        *sdklog.LoggerProvider
}

// Initialize installs global trace and log providers for the configured
// endpoints. With telemetry disabled or no endpoint it returns empty Providers.
func Initialize(ctx context.Context, config *Config) (*Providers, error) {
	providers := &Providers{serviceName: config.ServiceName}

	if !config.Enabled {
		slog.Info("OpenTelemetry is disabled")

		return providers, nil
	}

	if config.TracesEndpoint == "" && config.LogsEndpoint == "" {
		slog.Warn("OpenTelemetry endpoints not configured, telemetry will be disabled")

		return providers, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if config.TracesEndpoint != "" {
		exporter, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(config.TracesEndpoint),
			otlptracehttp.WithTimeout(config.Timeout),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}

		providers.traces = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)

		otel.SetTracerProvider(providers.traces)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	if config.LogsEndpoint != "" {
		exporter, err := otlploghttp.New(ctx,
			otlploghttp.WithEndpointURL(config.LogsEndpoint),
			otlploghttp.WithTimeout(config.Timeout),
		)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to create OTLP log exporter: %w", err), providers.Shutdown(ctx))
		}

		providers.logs = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
			sdklog.WithResource(res),
		)
	}

	slog.Info("OpenTelemetry initialized",
		"service", config.ServiceName,
		"version", config.ServiceVersion,
		"environment", config.Environment,
		"traces", config.TracesEndpoint,
		"logs", config.LogsEndpoint,
	)

	return providers, nil
}

// TracingEnabled reports whether a trace provider was installed.
func (p *Providers) TracingEnabled() bool {
	return p != nil && p.traces != nil
}

// LogHandler returns an slog handler exporting records over OTLP, or nil
// when log export is off.
func (p *Providers) LogHandler() slog.Handler {
	if p == nil || p.logs == nil {
		return nil
	}

	return otelslog.NewHandler(p.serviceName, otelslog.WithLoggerProvider(p.logs))
}

// Shutdown flushes and stops the installed providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error

	if p.traces != nil {
		slog.Info("Shutting down OpenTelemetry tracer provider")

		errs = append(errs, p.traces.Shutdown(ctx))
	}

	if p.logs != nil {
		errs = append(errs, p.logs.Shutdown(ctx))
	}

	return errors.Join(errs...)
}
