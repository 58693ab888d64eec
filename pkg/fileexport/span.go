package fileexport

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SpanExporter writes spans as JSON to a file.
type SpanExporter struct {
	sink  *fileSink
	inner *stdouttrace.Exporter
}

var _ sdktrace.SpanExporter = (*SpanExporter)(nil)

// NewSpanExporter opens the destination named by OTEL_FILE_SPAN_EXPORTER_NAME
// (default otel_traces.log) for appending.
func NewSpanExporter(opts ...Option) (*SpanExporter, error) {
	o := newOptions(spanVar, opts)

	sink, err := openSink(o.path)
	if err != nil {
		return nil, err
	}

	stdoutOpts := []stdouttrace.Option{stdouttrace.WithWriter(sink)}
	if o.prettyPrint {
		stdoutOpts = append(stdoutOpts, stdouttrace.WithPrettyPrint())
	}
	if o.noTimestamps {
		stdoutOpts = append(stdoutOpts, stdouttrace.WithoutTimestamps())
	}

	inner, err := stdouttrace.New(stdoutOpts...)
	if err != nil {
		_ = sink.close()
		return nil, err
	}

	return &SpanExporter{sink: sink, inner: inner}, nil
}

// Path returns the destination file.
func (e *SpanExporter) Path() string {
	return e.sink.path
}

// ExportSpans writes spans to the file.
func (e *SpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	return e.inner.ExportSpans(ctx, spans)
}

// ForceFlush syncs the file to disk.
func (e *SpanExporter) ForceFlush(context.Context) error {
	return e.sink.sync()
}

// Shutdown stops the exporter and closes the file. The file is closed even
// when the inner exporter fails to stop.
func (e *SpanExporter) Shutdown(ctx context.Context) error {
	return errors.Join(e.inner.Shutdown(ctx), e.sink.close())
}
