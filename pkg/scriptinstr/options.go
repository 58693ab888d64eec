package scriptinstr

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/otelcontrib/pkg/envcarrier"
	"github.com/fyrsmithlabs/otelcontrib/pkg/exithook"
)

type config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	propagator     propagation.TextMapPropagator
	env            envcarrier.Environ
	hooks          *exithook.Hooks
	logger         *zap.Logger
}

func newConfig(opts []Option) config {
	c := config{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
		env:    envcarrier.Process,
		hooks:  exithook.Default,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Option configures an Instrumentor.
type Option func(*config)

// WithTracerProvider sets the provider the script span is created from.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		if tp != nil {
			c.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets the provider for script.duration and script.runs.
// Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) {
		if mp != nil {
			c.meterProvider = mp
		}
	}
}

// WithPropagator replaces the W3C TraceContext and Baggage propagator.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(c *config) {
		if p != nil {
			c.propagator = p
		}
	}
}

// WithEnviron sets the environment context is extracted from and injected
// into. Defaults to the process environment.
func WithEnviron(env envcarrier.Environ) Option {
	return func(c *config) {
		if env != nil {
			c.env = env
		}
	}
}

// WithHooks sets the termination registry. Defaults to exithook.Default.
func WithHooks(h *exithook.Hooks) Option {
	return func(c *config) {
		if h != nil {
			c.hooks = h
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
