package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "codementor"

// StartTurnSpan starts a span for one user turn.
func StartTurnSpan(ctx context.Context, chatID, turnID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("turn.id", turnID),
		),
	)
}

// StartToolDispatchSpan starts a span for a tool dispatch within a turn.
func StartToolDispatchSpan(ctx context.Context, turnID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tooldispatch",
		trace.WithAttributes(
			attribute.String("turn.id", turnID),
			attribute.String("tooldispatch.tool", tool),
		),
	)
}
