package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "convosphere"

// StartRequestSpan starts a span for one chat request.
func StartRequestSpan(ctx context.Context, requestID, provider, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "chat.request",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("provider", provider),
			attribute.String("model", model),
		),
	)
}

// StartDispatchSpan starts a span for one provider dispatch within a request.
func StartDispatchSpan(ctx context.Context, provider string, round int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "provider.dispatch",
		trace.WithAttributes(
			attribute.String("provider", provider),
			attribute.Int("round", round),
		),
	)
}

// StartToolSpan starts a span for one tool invocation.
func StartToolSpan(ctx context.Context, invocationID, toolName string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tool.execute",
		trace.WithAttributes(
			attribute.String("invocation.id", invocationID),
			attribute.String("tool", toolName),
		),
	)
}

// StartRetrievalSpan starts a span for one RAG retrieval.
func StartRetrievalSpan(ctx context.Context, topK int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "rag.retrieve",
		trace.WithAttributes(
			attribute.Int("top_k", topK),
		),
	)
}
