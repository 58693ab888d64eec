// Package telemetry builds the OpenTelemetry providers used by otelrun.
//
// # Overview
//
// Each signal (traces, metrics, logs) gets one exporter chosen by name:
//
//	file     append-only JSON file, see pkg/fileexport
//	console  pretty-printed JSON on stderr
//	otlp     OTLP over grpc or http/protobuf
//	none     no provider; the otel global is used instead
//
// # Usage
//
//	cfg := telemetry.NewDefaultConfig()
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	tracer := tel.Tracer("otelrun")
//	ctx, span := tracer.Start(ctx, "deploy.sh")
//	defer span.End()
//
// Shutdown flushes every provider and closes file exporters, so it must run
// before the process exits.
//
// # Configuration
//
//	telemetry:
//	  service_name: "otelrun"
//	  exporters:
//	    traces: file
//	    metrics: none
//	    logs: none
//	  otlp:
//	    endpoint: "localhost:4317"
//	    protocol: grpc
//	  metrics:
//	    export_interval: "60s"
//
// The standard OTEL_* environment variables override these keys; see
// cmd/otelrun.
//
// # Testing
//
// Use TestTelemetry for tests:
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "test-span")
//	span.End()
//	tt.AssertSpanExists(t, "test-span")
package telemetry
