package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(t *testing.T, mutate func(*Config)) (*Logger, *bytes.Buffer) {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	cfg.Caller.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}
	var buf bytes.Buffer
	logger, err := newLogger(cfg, nil, &buf)
	require.NoError(t, err)
	return logger, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	return entry
}

func TestNewLogger_RejectsInvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
}

func TestLogger_WritesContextFields(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithChainRequestID(ctx, "42")
	ctx = WithModel(ctx, "gemini-1.5-flash")
	logger.Info(ctx, "claim checked", zap.String("classification", "FACT_CHECK"))

	entry := decodeLine(t, buf)
	assert.Equal(t, "claim checked", entry["msg"])
	assert.Equal(t, "factcheckd", entry["service"])
	assert.Equal(t, "req-1", entry["request.id"])
	assert.Equal(t, "42", entry["chain.request_id"])
	assert.Equal(t, "gemini-1.5-flash", entry["model"])
	assert.Equal(t, "FACT_CHECK", entry["classification"])
}

func TestLogger_RedactsPerCallFields(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	logger.Info(context.Background(), "loaded",
		zap.String("api_key", "AIza-secret"),
		zap.String("note", "Authorization: Bearer abc.def"),
		Secret("private_key", config.Secret("0xfeed")),
	)

	out := buf.String()
	assert.NotContains(t, out, "AIza-secret")
	assert.NotContains(t, out, "abc.def")
	assert.NotContains(t, out, "0xfeed")

	entry := decodeLine(t, buf)
	assert.Equal(t, "[REDACTED]", entry["api_key"])
	assert.Equal(t, map[string]any{"set": true, "len": float64(6)}, entry["private_key"])
}

func TestLogger_RedactsWithFields(t *testing.T) {
	logger, buf := newBufferLogger(t, nil)

	logger.With(zap.String("token", "t0k3n")).Warn(context.Background(), "child")
	assert.NotContains(t, buf.String(), "t0k3n")
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) { c.Level = zapcore.WarnLevel })

	logger.Info(context.Background(), "hidden")
	assert.Empty(t, buf.String())
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Enabled(zapcore.ErrorLevel))
}

func TestFromSettings(t *testing.T) {
	cfg, err := FromSettings(config.LoggingConfig{Level: "TRACE", Format: "console"}, "chainwatch")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "chainwatch", cfg.Fields["service"])

	_, err = FromSettings(config.LoggingConfig{Level: "loud"}, "")
	assert.Error(t, err)
}

func TestSampling_ErrorsAlwaysPass(t *testing.T) {
	logger, buf := newBufferLogger(t, func(c *Config) {
		c.Sampling = SamplingConfig{Enabled: true, Tick: config.Duration(1e9), Initial: 1, Thereafter: 0}
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		logger.Info(ctx, "repeated")
		logger.Error(ctx, "failure")
	}

	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	assert.Equal(t, 6, lines, "one sampled info line plus five errors")
}
