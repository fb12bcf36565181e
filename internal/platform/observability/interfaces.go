package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Logger is the leveled subset of *zap.Logger the pipeline components log
// through. Lifecycle methods stay on the concrete logger owned by the app.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// Tracer opens spans. Satisfied by any trace.Tracer.
type Tracer interface {
	Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)
}

var (
	_ Logger = (*zap.Logger)(nil)
	_ Tracer = trace.Tracer(nil)
)
