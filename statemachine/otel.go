package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/amp-labs/tickfsm/statemachine"

// startStepSpan creates the span for one machine step. Uses the global tracer
// provider, which telemetry.Initialize replaces when tracing is enabled.
// The caller is responsible for calling span.End().
//
//nolint:spancheck // Span lifecycle managed by caller
func startStepSpan(ctx context.Context, m *Machine) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "statemachine.step")
	span.SetAttributes(
		attribute.String("machine_id", m.id),
		attribute.String("graph", m.graph.Name()),
	)

	return ctx, span
}
