package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if id := ChainRequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("chain.request_id", id))
	}
	if model := ModelFromContext(ctx); model != "" {
		fields = append(fields, zap.String("model", model))
	}

	return fields
}

type requestCtxKey struct{}
type chainRequestCtxKey struct{}
type modelCtxKey struct{}
type loggerCtxKey struct{}

const maxIDLen = 128

// idPattern covers echo's generated ids, UUIDs, decimal uint256 values
// and model names.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

func validID(id string) bool {
	return id != "" && len(id) <= maxIDLen && idPattern.MatchString(id)
}

// WithRequestID tags the context with an HTTP request id. Ids that are
// empty, too long or contain unexpected characters are dropped; they
// usually come from a client header.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if !validID(requestID) {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts the HTTP request id.
func RequestIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(requestCtxKey{}).(string)
	return s
}

// WithChainRequestID tags the context with an on-chain request id.
func WithChainRequestID(ctx context.Context, requestID string) context.Context {
	if !validID(requestID) {
		return ctx
	}
	return context.WithValue(ctx, chainRequestCtxKey{}, requestID)
}

// ChainRequestIDFromContext extracts the on-chain request id.
func ChainRequestIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(chainRequestCtxKey{}).(string)
	return s
}

// WithModel tags the context with the model serving the request.
func WithModel(ctx context.Context, model string) context.Context {
	if !validID(model) {
		return ctx
	}
	return context.WithValue(ctx, modelCtxKey{}, model)
}

// ModelFromContext extracts the model name.
func ModelFromContext(ctx context.Context) string {
	s, _ := ctx.Value(modelCtxKey{}).(string)
	return s
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves the logger, or a nop logger when none is stored.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
