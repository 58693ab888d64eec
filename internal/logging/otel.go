// internal/logging/otel.go
package logging

import (
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// instrumentationName is the scope name attached to bridged log records.
const instrumentationName = "github.com/fyrsmithlabs/otelcontrib/internal/logging"

// newDualCore creates core with stderr and/or OTEL outputs.
func newDualCore(cfg *Config, sink zapcore.WriteSyncer, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	cores := make([]zapcore.Core, 0, 2)

	if cfg.Output.Stderr {
		cores = append(cores, zapcore.NewCore(newEncoder(cfg.Format), sink, cfg.Level))
	}

	if cfg.Output.OTEL && otelProvider != nil {
		otelCore := otelzap.NewCore(instrumentationName,
			otelzap.WithLoggerProvider(otelProvider),
		)
		// otelzap has no level of its own; gate it on the configured level.
		cores = append(cores, &levelGateCore{Core: otelCore, level: cfg.Level})
	}

	switch len(cores) {
	case 0:
		return nil, fmt.Errorf("at least one output must be enabled and available")
	case 1:
		return cores[0], nil
	default:
		return zapcore.NewTee(cores...), nil
	}
}

// levelGateCore drops entries below level before they reach the wrapped core.
type levelGateCore struct {
	zapcore.Core
	level zapcore.Level
}

func (c *levelGateCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.level && c.Core.Enabled(lvl)
}

func (c *levelGateCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if e.Level < c.level {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelGateCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelGateCore{Core: c.Core.With(fields), level: c.level}
}
