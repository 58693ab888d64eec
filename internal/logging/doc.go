// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stderr + OpenTelemetry log bridge)
//   - Automatic context field injection (trace_id, span_id, run_id)
//
// Logs go to stderr so an instrumented script's stdout is left untouched.
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	logger.Info(ctx, "script started", zap.String("script", path))
//
// When the OTEL output is enabled and a LoggerProvider is supplied, every
// entry is also emitted as an OpenTelemetry log record through otelzap, so
// OTEL_LOGS_EXPORTER=file captures the tool's own logs.
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
package logging
