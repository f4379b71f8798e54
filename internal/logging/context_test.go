package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestWithRequestID_DropsInvalid(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"echo id", "pLk3VxFz0QeXb9aHn2sM7cR1uW4yT6dJ", "pLk3VxFz0QeXb9aHn2sM7cR1uW4yT6dJ"},
		{"uuid", "0b7c8f2e-3c1d-4a55-9e0f-6b2d1a7c9e11", "0b7c8f2e-3c1d-4a55-9e0f-6b2d1a7c9e11"},
		{"empty", "", ""},
		{"newline injection", "abc\nlevel=error", ""},
		{"too long", strings.Repeat("a", maxIDLen+1), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithRequestID(context.Background(), tt.id)
			assert.Equal(t, tt.want, RequestIDFromContext(ctx))
		})
	}
}

func TestContextFields(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithChainRequestID(ctx, "115792089237316195423570985008687907853269984665640564039457")
	ctx = WithModel(ctx, "gemini-2.0-flash-lite")

	keys := map[string]string{}
	for _, f := range ContextFields(ctx) {
		keys[f.Key] = f.String
	}
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", keys["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", keys["span_id"])
	assert.Equal(t, "gemini-2.0-flash-lite", keys["model"])
	assert.Contains(t, keys, "chain.request_id")
	assert.NotContains(t, keys, "request.id")
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	FromContext(ctx).Info(ctx, "stored")
	assert.Len(t, tl.FilterMessage("stored").All(), 1)
}
