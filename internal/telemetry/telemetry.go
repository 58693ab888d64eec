package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Telemetry owns the tracer, meter and logger providers for one process.
//
// A signal configured with the "none" exporter has no provider; accessors
// then fall back to the global provider, which is a no-op unless something
// else installed one.
type Telemetry struct {
	config *Config

	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider
	propagator     propagation.TextMapPropagator

	healthy  atomic.Bool
	shutdown atomic.Bool
}

// Option configures New.
type Option func(*options)

type options struct {
	console   io.Writer
	setGlobal bool
}

// WithConsoleWriter sets where the "console" exporters write. Defaults to
// os.Stderr so the instrumented program's stdout is left alone.
func WithConsoleWriter(w io.Writer) Option {
	return func(o *options) {
		o.console = w
	}
}

// WithoutGlobals stops New from installing its providers and propagator as
// the otel globals.
func WithoutGlobals() Option {
	return func(o *options) {
		o.setGlobal = false
	}
}

// New validates cfg and builds one provider per exported signal.
//
// Exporter construction errors (an unwritable file path, an unknown exporter
// name) are returned; providers created before the failure are shut down.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	o := options{console: os.Stderr, setGlobal: true}
	for _, opt := range opts {
		opt(&o)
	}

	t := &Telemetry{
		config: cfg,
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	spanExp, err := newSpanExporter(ctx, cfg, o.console)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	if spanExp != nil {
		t.tracerProvider = newTracerProvider(cfg, res, spanExp)
	}

	metricExp, err := newMetricExporter(ctx, cfg, o.console)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	if metricExp != nil {
		t.meterProvider = newMeterProvider(cfg, res, metricExp)
	}

	logExp, err := newLogExporter(ctx, cfg, o.console)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, fmt.Errorf("creating log exporter: %w", err)
	}
	if logExp != nil {
		t.loggerProvider = newLoggerProvider(res, logExp)
	}

	if o.setGlobal {
		t.setGlobals()
	}
	t.healthy.Store(true)
	return t, nil
}

func (t *Telemetry) setGlobals() {
	if t.tracerProvider != nil {
		otel.SetTracerProvider(t.tracerProvider)
	}
	if t.meterProvider != nil {
		otel.SetMeterProvider(t.meterProvider)
	}
	if t.loggerProvider != nil {
		global.SetLoggerProvider(t.loggerProvider)
	}
	otel.SetTextMapPropagator(t.propagator)
}

// Tracer returns a tracer for the given instrumentation scope.
func (t *Telemetry) Tracer(name string, opts ...oteltrace.TracerOption) oteltrace.Tracer {
	return t.TracerProvider().Tracer(name, opts...)
}

// Meter returns a meter for the given instrumentation scope.
func (t *Telemetry) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return t.MeterProvider().Meter(name, opts...)
}

// TracerProvider returns the configured provider, or the global one when
// traces are not exported.
func (t *Telemetry) TracerProvider() oteltrace.TracerProvider {
	if t == nil || t.tracerProvider == nil {
		return otel.GetTracerProvider()
	}
	return t.tracerProvider
}

// MeterProvider returns the configured provider, or the global one when
// metrics are not exported.
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t == nil || t.meterProvider == nil {
		return otel.GetMeterProvider()
	}
	return t.meterProvider
}

// LoggerProvider returns the log provider for the zap bridge.
//
// Returns nil when logs are not exported.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if t == nil || t.loggerProvider == nil {
		return nil
	}
	return t.loggerProvider
}

// Propagator returns the W3C TraceContext and Baggage propagator.
func (t *Telemetry) Propagator() propagation.TextMapPropagator {
	if t == nil {
		return otel.GetTextMapPropagator()
	}
	return t.propagator
}

// Shutdown flushes and stops every provider, closing file exporters.
//
// Uses the shutdown timeout from config when ctx has no deadline. Later calls
// return nil.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || !t.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.Shutdown.Timeout.Duration())
		defer cancel()
	}

	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}

	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	// Last, so records logged while shutting the others down are kept.
	if t.loggerProvider != nil {
		if err := t.loggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logger provider shutdown: %w", err))
		}
	}

	t.healthy.Store(false)
	return errors.Join(errs...)
}

// HealthStatus reports which signals are exported and whether the providers
// are still running.
type HealthStatus struct {
	Healthy bool
	Traces  bool
	Metrics bool
	Logs    bool
}

// Health returns the current telemetry health status.
func (t *Telemetry) Health() HealthStatus {
	if t == nil {
		return HealthStatus{}
	}
	return HealthStatus{
		Healthy: t.healthy.Load(),
		Traces:  t.tracerProvider != nil,
		Metrics: t.meterProvider != nil,
		Logs:    t.loggerProvider != nil,
	}
}
