// Package fileexport provides OpenTelemetry exporters that append spans,
// metrics and log records to files.
//
// Each exporter wraps the matching stdout exporter from the OpenTelemetry Go
// SDK and only changes where output goes: a file opened in append mode whose
// path comes from an environment variable, falling back to a fixed name in
// the working directory.
//
//	OTEL_FILE_SPAN_EXPORTER_NAME    otel_traces.log
//	OTEL_FILE_METRIC_EXPORTER_NAME  otel_metrics.log
//	OTEL_FILE_LOG_EXPORTER_NAME     otel_logs.log
//
// The file is owned by the exporter and closed by Shutdown. Providers call
// Shutdown on their exporters, so shutting the provider down is enough:
//
//	exp, err := fileexport.NewSpanExporter()
//	if err != nil {
//	    return err
//	}
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
//	defer tp.Shutdown(ctx)
package fileexport
