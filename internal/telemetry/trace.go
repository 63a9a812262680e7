package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartRunSpan creates the root span of a supervisor run.
func StartRunSpan(ctx context.Context, threadID string) (context.Context, trace.Span) {
	ctx, span := GetTracerProvider().Tracer("supervisor").Start(ctx, "supervisor.run")
	span.SetAttributes(
		attribute.String("thread_id", threadID),
		attribute.String("component", "supervisor"),
	)
	return ctx, span
}

// StartStepSpan creates a span for one supervisor step.
//
//	ctx, span := telemetry.StartStepSpan(ctx, step, phase, route)
//	defer span.End()
func StartStepSpan(ctx context.Context, step int, phase, route string) (context.Context, trace.Span) {
	ctx, span := GetTracerProvider().Tracer("supervisor").Start(ctx, "supervisor.step")
	span.SetAttributes(
		attribute.Int("step", step),
		attribute.String("phase", phase),
		attribute.String("route", route),
	)
	return ctx, span
}

// StartAgentSpan creates a span around a specialist invocation.
func StartAgentSpan(ctx context.Context, agent string) (context.Context, trace.Span) {
	ctx, span := GetTracerProvider().Tracer("agents").Start(ctx, "agent."+agent)
	span.SetAttributes(
		attribute.String("agent", agent),
		attribute.String("component", "agent"),
	)
	return ctx, span
}

// StartProviderSpan creates a span for a language model API call.
func StartProviderSpan(ctx context.Context, providerName, model string) (context.Context, trace.Span) {
	ctx, span := GetTracerProvider().Tracer("llm").Start(ctx, "llm.generate")
	span.SetAttributes(
		attribute.String("provider", providerName),
		attribute.String("model", model),
		attribute.String("component", "llm"),
	)
	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool("error", true))
}
