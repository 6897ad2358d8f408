package statemachine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Logger provides logging hooks for machine execution.
type Logger interface {
	StepCompleted(ctx context.Context, machineID string, result StepResult, duration time.Duration)
	TransitionTaken(ctx context.Context, machineID string, record TransitionRecord)
	ConditionFailed(ctx context.Context, machineID string, state string, err error)
}

type nopLogger struct{}

func (nopLogger) StepCompleted(context.Context, string, StepResult, time.Duration) {}
func (nopLogger) TransitionTaken(context.Context, string, TransitionRecord)         {}
func (nopLogger) ConditionFailed(context.Context, string, string, error)            {}

// DefaultLogger implements Logger using slog. Steps that change nothing are
// logged at debug level, transitions at info and diagnostics at warn.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a logger backed by slog.Default().
func NewDefaultLogger() *DefaultLogger {
	return NewSlogLogger(slog.Default())
}

// NewSlogLogger creates a logger backed by the given slog.Logger.
func NewSlogLogger(logger *slog.Logger) *DefaultLogger {
	if logger == nil {
		logger = slog.Default()
	}

	return &DefaultLogger{logger: logger}
}

func (l *DefaultLogger) StepCompleted(ctx context.Context, machineID string, result StepResult, duration time.Duration) {
	l.logger.DebugContext(ctx, "Step completed",
		withTrace(ctx,
			"machine_id", machineID,
			"tick", result.Tick,
			"from", result.From.Name(),
			"to", result.To.Name(),
			"changed", result.Changed,
			"duration_us", duration.Microseconds(),
		)...,
	)
}

func (l *DefaultLogger) TransitionTaken(ctx context.Context, machineID string, record TransitionRecord) {
	fields := []any{
		"machine_id", machineID,
		"tick", record.Tick,
		"from", record.From,
		"to", record.To,
	}

	if record.Label != "" {
		fields = append(fields, "label", record.Label)
	}

	l.logger.InfoContext(ctx, "Transition taken", withTrace(ctx, fields...)...)
}

func (l *DefaultLogger) ConditionFailed(ctx context.Context, machineID string, state string, err error) {
	l.logger.WarnContext(ctx, "Condition evaluated with diagnostics",
		withTrace(ctx,
			"machine_id", machineID,
			"state", state,
			"error", err,
		)...,
	)
}

// withTrace appends trace and span IDs when ctx carries a valid span.
func withTrace(ctx context.Context, fields ...any) []any {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return fields
	}

	return append(fields,
		"trace_id", spanCtx.TraceID().String(),
		"span_id", spanCtx.SpanID().String(),
	)
}
