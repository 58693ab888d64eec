package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, zapcore.WarnLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.True(t, cfg.Output.Stderr)
	assert.True(t, cfg.Output.OTEL)
	assert.Equal(t, "otelrun", cfg.Fields["service"])
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "bad format",
			mutate: func(c *Config) { c.Format = "xml" },
			errMsg: "format must be",
		},
		{
			name: "no outputs",
			mutate: func(c *Config) {
				c.Output.Stderr = false
				c.Output.OTEL = false
			},
			errMsg: "at least one output",
		},
		{
			name:   "empty field key",
			mutate: func(c *Config) { c.Fields[""] = "x" },
			errMsg: "field key cannot be empty",
		},
		{
			name:   "empty field value",
			mutate: func(c *Config) { c.Fields["team"] = "" },
			errMsg: "has empty value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "yaml"

	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewLogger_NoOutputAvailable(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.Stderr = false
	cfg.Output.OTEL = true

	// OTEL requested but no provider supplied.
	_, err := NewLogger(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one output")
}

func TestNewLogger_WritesJSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Level = zapcore.InfoLevel
	cfg.Format = "json"

	logger, err := NewLogger(cfg, nil, WithWriter(&buf))
	require.NoError(t, err)

	ctx := WithRunID(context.Background(), "run-1")
	logger.Info(ctx, "script started", zap.String("script", "build.sh"))
	logger.Debug(ctx, "filtered out")
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "script started", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "build.sh", entry["script"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "otelrun", entry["service"])
	assert.Contains(t, entry, "ts")
}

func TestLogger_ContextAwareMethods(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}
	ctx := context.Background()

	tests := []struct {
		name    string
		logFunc func()
		level   zapcore.Level
	}{
		{name: "trace", logFunc: func() { logger.Trace(ctx, "msg") }, level: TraceLevel},
		{name: "debug", logFunc: func() { logger.Debug(ctx, "msg") }, level: zapcore.DebugLevel},
		{name: "info", logFunc: func() { logger.Info(ctx, "msg") }, level: zapcore.InfoLevel},
		{name: "warn", logFunc: func() { logger.Warn(ctx, "msg") }, level: zapcore.WarnLevel},
		{name: "error", logFunc: func() { logger.Error(ctx, "msg") }, level: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observed.TakeAll()
			tt.logFunc()

			logs := observed.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.level, logs[0].Level)
		})
	}
}

func TestLogger_TraceSkippedWhenDisabled(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := &Logger{zap: zap.New(core), config: NewDefaultConfig()}

	logger.Trace(context.Background(), "too verbose")

	assert.Empty(t, observed.All())
	assert.False(t, logger.Enabled(TraceLevel))
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	child := tl.With(zap.String("component", "carrier"))
	child.Info(ctx, "child entry")

	named := tl.Named("instrumentor")
	named.Info(ctx, "named entry")

	tl.AssertField(t, "child entry", "component", "carrier")
	entries := tl.FilterMessage("named entry").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "instrumentor", entries[0].LoggerName)
}

func TestLogger_TraceCorrelation(t *testing.T) {
	tl := NewTestLogger()
	tp := trace.NewTracerProvider(trace.WithSampler(trace.AlwaysSample()))
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	tl.Info(ctx, "inside span")

	tl.AssertTraceCorrelation(t, "inside span")
	tl.AssertField(t, "inside span", "trace_id", span.SpanContext().TraceID().String())
	tl.AssertField(t, "inside span", "trace_sampled", true)
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "trace", want: TraceLevel},
		{in: "debug", want: zapcore.DebugLevel},
		{in: "warn", want: zapcore.WarnLevel},
		{in: "loud", want: zapcore.InfoLevel, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := LevelFromString(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// recordingExporter captures exported log records in memory.
type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.records))
	for _, r := range e.records {
		out = append(out, r.Body().AsString())
	}
	return out
}

func TestNewLogger_BridgesToOTEL(t *testing.T) {
	exp := &recordingExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Level = zapcore.InfoLevel

	logger, err := NewLogger(cfg, provider, WithWriter(&buf))
	require.NoError(t, err)

	logger.Info(context.Background(), "bridged entry")
	logger.Debug(context.Background(), "below level")

	assert.Equal(t, []string{"bridged entry"}, exp.bodies())
	assert.Contains(t, buf.String(), "bridged entry")
}

func TestNewLogger_OTELOnly(t *testing.T) {
	exp := &recordingExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Output.Stderr = false

	logger, err := NewLogger(cfg, provider, WithWriter(&buf))
	require.NoError(t, err)

	logger.Warn(context.Background(), "only otel")

	assert.Equal(t, []string{"only otel"}, exp.bodies())
	assert.Empty(t, buf.String())
}
