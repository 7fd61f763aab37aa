package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "unifiedui/multiagent-service"

// Tracer returns the service tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartGatewaySpan starts a client span for one completion call.
func StartGatewaySpan(ctx context.Context, mode, chatID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "gateway."+mode,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gateway.mode", mode),
			attribute.String("chat.id", chatID),
		),
	)
}

// StartDispatchSpan starts a span around dispatch resolution.
func StartDispatchSpan(ctx context.Context, chatID string, discuss bool) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "dispatch.resolve",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Bool("dispatch.discuss", discuss),
		),
	)
}

// StartAgentSpan starts a span for one agent's response.
func StartAgentSpan(ctx context.Context, agentID, agentName, messageID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "agent.respond",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.String("agent.name", agentName),
			attribute.String("message.id", messageID),
		),
	)
}

// RecordError marks the span as failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
