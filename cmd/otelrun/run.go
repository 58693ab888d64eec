package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/otelcontrib/internal/logging"
	"github.com/fyrsmithlabs/otelcontrib/internal/telemetry"
	"github.com/fyrsmithlabs/otelcontrib/pkg/scriptinstr"
)

// exitNotStarted is the shell convention for a command that could not run.
const exitNotStarted = 127

func newRunCmd(a *app) *cobra.Command {
	var inline string

	cmd := &cobra.Command{
		Use:   "run [-c code] [--] script [args...]",
		Short: "Run a script inside a single span",
		Long: `Run a script as a child process and record the run as one span.

The span is named after the script's base file name and carries the
script_file, script_args and script_exit_code attributes. otelrun exits with
the script's exit code.

Inline code given with -c runs through "sh -c" and is not traced: there is
no script file to name the span after.

Examples:
  # Trace a script
  otelrun run ./deploy.sh --env prod

  # Send spans to a collector instead of a file
  OTEL_TRACES_EXPORTER=otlp OTEL_EXPORTER_OTLP_ENDPOINT=localhost:4317 \
    OTEL_EXPORTER_OTLP_INSECURE=true otelrun run ./deploy.sh`,
		Args: func(cmd *cobra.Command, args []string) error {
			if inline == "" && len(args) == 0 {
				return errors.New("requires a script path or -c")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScript(cmd, inline, args)
		},
	}

	cmd.Flags().StringVarP(&inline, "command", "c", "", "shell code to run with sh -c (not traced)")
	// Everything after the script path belongs to the script.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

// runScript executes the child under the instrumentor and terminates through
// the exit hooks with the child's exit code.
func (a *app) runScript(cmd *cobra.Command, inline string, args []string) error {
	defer a.hooks.Recover()

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Installed before the span starts so an early SIGINT or SIGTERM cannot
	// kill otelrun with the span still open.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	tel, err := telemetry.New(ctx, &cfg.Telemetry, telemetry.WithConsoleWriter(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(&cfg.Logging, tel.LoggerProvider(), logging.WithWriter(cmd.ErrOrStderr()))
	if err != nil {
		_ = tel.Shutdown(ctx)
		return fmt.Errorf("creating logger: %w", err)
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	ctx = logging.WithLogger(ctx, logger)

	health := tel.Health()
	logger.Debug(ctx, "telemetry ready",
		zap.Bool("traces", health.Traces),
		zap.Bool("metrics", health.Metrics),
		zap.Bool("logs", health.Logs),
	)

	// Registered before the instrumentor's finalizer so it runs after it.
	cancelShutdown := a.hooks.AtExit(func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
		}
		_ = logger.Sync()
	})

	name, childArgs, argv := commandLine(inline, args)

	ins := scriptinstr.New(
		scriptinstr.WithTracerProvider(tel.TracerProvider()),
		scriptinstr.WithMeterProvider(tel.MeterProvider()),
		scriptinstr.WithPropagator(tel.Propagator()),
		scriptinstr.WithHooks(a.hooks),
		scriptinstr.WithLogger(logger.Underlying().With(zap.String("run_id", runID))),
	)
	ctx, err = ins.Instrument(ctx, argv)
	if err != nil {
		cancelShutdown()
		_ = tel.Shutdown(context.Background())
		return err
	}

	logger.Debug(ctx, "starting script", zap.String("command", name), zap.Strings("args", childArgs))
	code := runChild(ctx, logger, cmd, sigCh, name, childArgs)
	logger.Debug(ctx, "script finished", zap.Int("exit_code", code))

	a.hooks.Exit(code)
	return nil
}

// commandLine returns the program to execute, its arguments, and the argv the
// instrumentor sees. Inline code keeps "-c" as argv[0].
func commandLine(inline string, args []string) (name string, childArgs, argv []string) {
	if inline != "" {
		argv = append([]string{"-c", inline}, args...)
		return "sh", argv, argv
	}
	return args[0], args[1:], args
}

// runChild runs the program with the current environment, which already holds
// the injected trace context, and relays signals from sigCh to it.
func runChild(ctx context.Context, logger *logging.Logger, cmd *cobra.Command, sigCh <-chan os.Signal, name string, args []string) int {
	child := exec.Command(name, args...)
	child.Stdin = cmd.InOrStdin()
	child.Stdout = cmd.OutOrStdout()
	child.Stderr = cmd.ErrOrStderr()

	if err := child.Start(); err != nil {
		logger.Error(ctx, "failed to start script", zap.String("command", name), zap.Error(err))
		fmt.Fprintf(cmd.ErrOrStderr(), "otelrun: %v\n", err)
		return exitNotStarted
	}

	done := make(chan struct{})
	defer close(done)
	go forwardSignals(sigCh, done, child.Process, terminalDelivers(child.Stdin))

	return exitStatus(child.Wait())
}

// forwardSignals relays signals to p until done is closed. When the child
// shares otelrun's foreground terminal, SIGINT already reached it from the
// terminal and is not sent a second time.
func forwardSignals(sigCh <-chan os.Signal, done <-chan struct{}, p *os.Process, fromTerminal bool) {
	for {
		select {
		case sig := <-sigCh:
			if fromTerminal && sig == os.Interrupt {
				continue
			}
			_ = p.Signal(sig)
		case <-done:
			return
		}
	}
}

// exitStatus maps a Wait error to a shell-style exit code. A child killed by
// a signal reports 128+signal.
func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return exitErr.ExitCode()
	}
	return 1
}
