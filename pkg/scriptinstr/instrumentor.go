// Package scriptinstr wraps a whole script run in a single span.
//
// Instrument extracts a parent context from the environment (TRACEPARENT,
// TRACESTATE, BAGGAGE), starts a span named after the script, and injects
// the new context back so child processes join the trace. The span ends when
// the process terminates through the exithook registry:
//
//	ins := scriptinstr.New(scriptinstr.WithTracerProvider(tp))
//	defer exithook.Recover()
//	ctx, err := ins.Instrument(ctx, os.Args)
//	...
//	exithook.Exit(code)
//
// The span status is Ok for exit code 0 and Error otherwise. A panic is
// recorded on the span with its stack trace and counts as exit code 1.
package scriptinstr

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/otelcontrib/pkg/envcarrier"
	"github.com/fyrsmithlabs/otelcontrib/pkg/exithook"
)

const instrumentationName = "github.com/fyrsmithlabs/otelcontrib/pkg/scriptinstr"

// ErrAlreadyInstrumented is returned by Instrument once a run has been
// instrumented.
var ErrAlreadyInstrumented = errors.New("script already instrumented")

// State is the lifecycle position of an Instrumentor.
type State int

const (
	Uninstrumented State = iota
	Active
	Finalized
)

func (s State) String() string {
	switch s {
	case Uninstrumented:
		return "uninstrumented"
	case Active:
		return "active"
	case Finalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Instrumentor owns the span of one script run. It implements
// exithook.Listener.
type Instrumentor struct {
	tracer     trace.Tracer
	metrics    runMetrics
	propagator propagation.TextMapPropagator
	env        envcarrier.Environ
	hooks      *exithook.Hooks
	logger     *zap.Logger

	mu       sync.Mutex
	state    State
	name     string
	started  time.Time
	span     trace.Span
	spanCtx  context.Context
	changes  *envcarrier.ChangeSet
	cancel   func()
	code     int
	panicErr error
	once     *sync.Once
}

var _ exithook.Listener = (*Instrumentor)(nil)

// New creates an Instrumentor in the Uninstrumented state.
func New(opts ...Option) *Instrumentor {
	cfg := newConfig(opts)
	return &Instrumentor{
		tracer:     cfg.tracerProvider.Tracer(instrumentationName),
		metrics:    newRunMetrics(cfg.meterProvider.Meter(instrumentationName), cfg.logger),
		propagator: cfg.propagator,
		env:        cfg.env,
		hooks:      cfg.hooks,
		logger:     cfg.logger,
	}
}

// State returns the current lifecycle state.
func (i *Instrumentor) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Instrument starts the script span for argv and returns a context holding
// it. argv[0] is the script path.
//
// An empty argv, an empty argv[0] or "-c" (inline code) has no script to
// name, so Instrument returns ctx unchanged and stays Uninstrumented.
func (i *Instrumentor) Instrument(ctx context.Context, argv []string) (context.Context, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != Uninstrumented {
		return ctx, ErrAlreadyInstrumented
	}
	if len(argv) == 0 || argv[0] == "" || argv[0] == "-c" {
		i.logger.Debug("no script to instrument", zap.Strings("argv", argv))
		return ctx, nil
	}

	changes := envcarrier.Begin(i.env, i.logger)
	parent := i.propagator.Extract(ctx, changes)

	name := filepath.Base(argv[0])
	spanCtx, span := i.tracer.Start(parent, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrScriptFile.String(argv[0]),
			AttrScriptArgs.StringSlice(argv),
		),
	)

	if err := i.hooks.Register(i); err != nil {
		span.End()
		return ctx, fmt.Errorf("instrumenting %s: %w", name, err)
	}

	i.propagator.Inject(spanCtx, changes)

	i.state = Active
	i.name = name
	i.started = time.Now()
	i.span = span
	i.spanCtx = spanCtx
	i.changes = changes
	i.code = 0
	i.panicErr = nil
	i.once = &sync.Once{}
	i.cancel = i.hooks.AtExit(i.finalize)

	i.logger.Debug("script instrumented",
		zap.String("script", name),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.Bool("remote_parent", trace.SpanContextFromContext(parent).IsRemote()))

	return spanCtx, nil
}

// OnExit captures the exit code passed to exithook.Exit.
func (i *Instrumentor) OnExit(code any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != Active {
		return
	}
	i.code = exithook.ExitCode(code)
}

// OnPanic captures an unhandled panic. A run that panics without an explicit
// non-zero code exits 1.
func (i *Instrumentor) OnPanic(v any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != Active {
		return
	}
	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("%v", v)
	}
	i.panicErr = err
	if i.code == 0 {
		i.code = 1
	}
}

// finalize ends the span. It runs as an AtExit callback, once per run.
func (i *Instrumentor) finalize() {
	i.mu.Lock()
	once := i.once
	i.mu.Unlock()
	if once == nil {
		return
	}
	once.Do(i.doFinalize)
}

func (i *Instrumentor) doFinalize() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != Active {
		return
	}

	span := i.span
	switch {
	case i.panicErr != nil:
		span.SetStatus(codes.Error, i.panicErr.Error())
	case i.code != 0:
		span.SetStatus(codes.Error, fmt.Sprintf("exit code %d", i.code))
	default:
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(AttrExitCode.Int(i.code))

	if err := i.changes.Rollback(); err != nil {
		i.logger.Warn("failed to restore environment", zap.Error(err))
	}

	if i.panicErr != nil {
		span.RecordError(i.panicErr, trace.WithStackTrace(true))
	}
	span.End()

	i.metrics.record(i.spanCtx, i.name, i.code, time.Since(i.started))

	i.hooks.Unregister(i)
	i.cancel = nil
	i.state = Finalized

	i.logger.Debug("script span finalized", zap.String("script", i.name), zap.Int("exit_code", i.code))
}

// Uninstrument detaches from the exit hooks, restores the environment and
// ends the span. The span is exported with Unset status and without the
// script_exit_code attribute, and no run metrics are recorded. A Finalized
// instrumentor stays Finalized.
func (i *Instrumentor) Uninstrument() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state != Active {
		return
	}

	if i.cancel != nil {
		i.cancel()
		i.cancel = nil
	}
	i.hooks.Unregister(i)

	if err := i.changes.Rollback(); err != nil {
		i.logger.Warn("failed to restore environment", zap.Error(err))
	}
	i.span.End()

	i.span = nil
	i.spanCtx = nil
	i.changes = nil
	i.once = nil
	i.state = Uninstrumented
}
