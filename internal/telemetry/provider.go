package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"google.golang.org/grpc/credentials"

	"github.com/fyrsmithlabs/otelcontrib/pkg/fileexport"
)

// newResource creates a resource describing the service and the SDK that
// produced the telemetry. The semconv version matches the SDK's built-in
// detectors so their schema URLs merge.
func newResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}
	return res, nil
}

func (c *Config) fileOptions(path string) []fileexport.Option {
	var opts []fileexport.Option
	if path != "" {
		opts = append(opts, fileexport.WithPath(path))
	}
	if c.Files.PrettyPrint {
		opts = append(opts, fileexport.WithPrettyPrint())
	}
	return opts
}

func (c *Config) tlsConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: c.OTLP.TLSSkipVerify, //nolint:gosec // User explicitly requested
	}
}

// newSpanExporter builds the exporter named by cfg.Exporters.Traces. It
// returns nil for "none".
func newSpanExporter(ctx context.Context, cfg *Config, console io.Writer) (trace.SpanExporter, error) {
	switch cfg.Exporters.Traces {
	case ExporterNone:
		return nil, nil
	case ExporterFile:
		return fileexport.NewSpanExporter(cfg.fileOptions(cfg.Files.Traces)...)
	case ExporterConsole:
		return stdouttrace.New(stdouttrace.WithWriter(console), stdouttrace.WithPrettyPrint())
	case ExporterOTLP:
		if cfg.OTLP.Protocol == ProtocolHTTP {
			opts := []otlptracehttp.Option{otlptracehttp.WithHeaders(cfg.OTLP.Headers.Pairs())}
			if cfg.OTLP.Endpoint != "" {
				opts = append(opts, otlptracehttp.WithEndpoint(stripScheme(cfg.OTLP.Endpoint)))
			}
			if cfg.OTLP.Insecure {
				opts = append(opts, otlptracehttp.WithInsecure())
			} else if cfg.OTLP.TLSSkipVerify {
				opts = append(opts, otlptracehttp.WithTLSClientConfig(cfg.tlsConfig()))
			}
			return otlptracehttp.New(ctx, opts...)
		}
		opts := []otlptracegrpc.Option{otlptracegrpc.WithHeaders(cfg.OTLP.Headers.Pairs())}
		if cfg.OTLP.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(stripScheme(cfg.OTLP.Endpoint)))
		}
		if cfg.OTLP.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else if cfg.OTLP.TLSSkipVerify {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(cfg.tlsConfig())))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("traces: %w %q", ErrUnknownExporter, cfg.Exporters.Traces)
	}
}

// newTracerProvider wraps exporter in a batching TracerProvider.
func newTracerProvider(cfg *Config, res *resource.Resource, exporter trace.SpanExporter) *trace.TracerProvider {
	var sampler trace.Sampler
	switch {
	case cfg.Sampling.Rate >= 1.0:
		sampler = trace.AlwaysSample()
	case cfg.Sampling.Rate <= 0:
		sampler = trace.NeverSample()
	default:
		sampler = trace.TraceIDRatioBased(cfg.Sampling.Rate)
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		// Parent-based so a sampled TRACEPARENT from the caller is honoured.
		trace.WithSampler(trace.ParentBased(sampler)),
	)
}

// newMetricExporter builds the exporter named by cfg.Exporters.Metrics. It
// returns nil for "none".
func newMetricExporter(ctx context.Context, cfg *Config, console io.Writer) (metric.Exporter, error) {
	switch cfg.Exporters.Metrics {
	case ExporterNone:
		return nil, nil
	case ExporterFile:
		return fileexport.NewMetricExporter(cfg.fileOptions(cfg.Files.Metrics)...)
	case ExporterConsole:
		return stdoutmetric.New(stdoutmetric.WithWriter(console), stdoutmetric.WithPrettyPrint())
	case ExporterOTLP:
		if cfg.OTLP.Protocol == ProtocolHTTP {
			opts := []otlpmetrichttp.Option{otlpmetrichttp.WithHeaders(cfg.OTLP.Headers.Pairs())}
			if cfg.OTLP.Endpoint != "" {
				opts = append(opts, otlpmetrichttp.WithEndpoint(stripScheme(cfg.OTLP.Endpoint)))
			}
			if cfg.OTLP.Insecure {
				opts = append(opts, otlpmetrichttp.WithInsecure())
			} else if cfg.OTLP.TLSSkipVerify {
				opts = append(opts, otlpmetrichttp.WithTLSClientConfig(cfg.tlsConfig()))
			}
			return otlpmetrichttp.New(ctx, opts...)
		}
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithHeaders(cfg.OTLP.Headers.Pairs())}
		if cfg.OTLP.Endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(stripScheme(cfg.OTLP.Endpoint)))
		}
		if cfg.OTLP.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		} else if cfg.OTLP.TLSSkipVerify {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(cfg.tlsConfig())))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("metrics: %w %q", ErrUnknownExporter, cfg.Exporters.Metrics)
	}
}

// newMeterProvider wraps exporter in a periodic reader. Shutdown performs a
// final collection, so a short-lived run still exports once.
func newMeterProvider(cfg *Config, res *resource.Resource, exporter metric.Exporter) *metric.MeterProvider {
	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(
			metric.NewPeriodicReader(
				exporter,
				metric.WithInterval(cfg.Metrics.ExportInterval.Duration()),
			),
		),
	)
}

// newLogExporter builds the exporter named by cfg.Exporters.Logs. It returns
// nil for "none".
func newLogExporter(ctx context.Context, cfg *Config, console io.Writer) (sdklog.Exporter, error) {
	switch cfg.Exporters.Logs {
	case ExporterNone:
		return nil, nil
	case ExporterFile:
		return fileexport.NewLogExporter(cfg.fileOptions(cfg.Files.Logs)...)
	case ExporterConsole:
		return stdoutlog.New(stdoutlog.WithWriter(console), stdoutlog.WithPrettyPrint())
	case ExporterOTLP:
		if cfg.OTLP.Protocol == ProtocolHTTP {
			opts := []otlploghttp.Option{otlploghttp.WithHeaders(cfg.OTLP.Headers.Pairs())}
			if cfg.OTLP.Endpoint != "" {
				opts = append(opts, otlploghttp.WithEndpoint(stripScheme(cfg.OTLP.Endpoint)))
			}
			if cfg.OTLP.Insecure {
				opts = append(opts, otlploghttp.WithInsecure())
			} else if cfg.OTLP.TLSSkipVerify {
				opts = append(opts, otlploghttp.WithTLSClientConfig(cfg.tlsConfig()))
			}
			return otlploghttp.New(ctx, opts...)
		}
		opts := []otlploggrpc.Option{otlploggrpc.WithHeaders(cfg.OTLP.Headers.Pairs())}
		if cfg.OTLP.Endpoint != "" {
			opts = append(opts, otlploggrpc.WithEndpoint(stripScheme(cfg.OTLP.Endpoint)))
		}
		if cfg.OTLP.Insecure {
			opts = append(opts, otlploggrpc.WithInsecure())
		} else if cfg.OTLP.TLSSkipVerify {
			opts = append(opts, otlploggrpc.WithTLSCredentials(credentials.NewTLS(cfg.tlsConfig())))
		}
		return otlploggrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("logs: %w %q", ErrUnknownExporter, cfg.Exporters.Logs)
	}
}

// newLoggerProvider wraps exporter in a batch processor.
func newLoggerProvider(res *resource.Resource, exporter sdklog.Exporter) *sdklog.LoggerProvider {
	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
}
