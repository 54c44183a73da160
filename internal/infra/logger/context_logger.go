package logger

import (
	"context"
	"log/slog"
)

type ContextKey string

const (
	// Business context keys for pipeline observability.
	RequestIDKey     ContextKey = "plan.request.id"
	CuisineKey       ContextKey = "plan.cuisine"
	PipelineStageKey ContextKey = "plan.pipeline.stage"
)

// WithRequestID adds the retrieval request ID to context for observability.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithCuisine adds the cuisine being processed to context for observability.
func WithCuisine(ctx context.Context, cuisine string) context.Context {
	return context.WithValue(ctx, CuisineKey, cuisine)
}

// WithPipelineStage adds the pipeline stage to context for observability.
func WithPipelineStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, PipelineStageKey, stage)
}

// contextAttrs extracts the business context values carried by ctx. Records
// logged through the *Context slog methods pick these up via
// TraceContextHandler.
func contextAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		attrs = append(attrs, slog.String(string(RequestIDKey), requestID))
	}
	if cuisine, ok := ctx.Value(CuisineKey).(string); ok {
		attrs = append(attrs, slog.String(string(CuisineKey), cuisine))
	}
	if stage, ok := ctx.Value(PipelineStageKey).(string); ok {
		attrs = append(attrs, slog.String(string(PipelineStageKey), stage))
	}

	return attrs
}
