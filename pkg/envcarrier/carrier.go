package envcarrier

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// Carrier adapts an Environ to propagation.TextMapCarrier. Writes go through
// an UndoBuffer so they can be reverted.
type Carrier struct {
	env    Environ
	undo   *UndoBuffer
	logger *zap.Logger
}

var _ propagation.TextMapCarrier = (*Carrier)(nil)

// NewCarrier returns a carrier over env recording into undo. A nil undo
// buffer gets a private one; a nil logger discards warnings.
func NewCarrier(env Environ, undo *UndoBuffer, logger *zap.Logger) *Carrier {
	if undo == nil {
		undo = &UndoBuffer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Carrier{env: env, undo: undo, logger: logger}
}

// Set stores value under the upper-cased key. Write failures are logged and
// dropped; propagation is best-effort.
func (c *Carrier) Set(key, value string) {
	ukey := strings.ToUpper(key)
	c.undo.record(c.env, ukey)
	if err := c.env.Setenv(ukey, value); err != nil {
		c.logger.Warn("failed to write propagation value to environment",
			zap.String("key", ukey), zap.Error(err))
		return
	}
	c.logger.Debug("propagation value written to environment", zap.String("key", ukey))
}

// SetValue stores value when it is a string. Anything else is rejected with
// a warning; propagation values must be serialized before they reach the
// environment.
func (c *Carrier) SetValue(key string, value any) {
	s, ok := value.(string)
	if !ok {
		c.logger.Warn("propagation of non-string values to environment is not supported",
			zap.String("key", key), zap.String("type", fmt.Sprintf("%T", value)))
		return
	}
	c.Set(key, s)
}

// Get returns the value stored under the upper-cased key, or "" if absent.
func (c *Carrier) Get(key string) string {
	v, _ := c.env.Lookup(strings.ToUpper(key))
	return v
}

// Values returns the value under the upper-cased key as a one-element slice,
// or nil and false when the key is absent.
func (c *Carrier) Values(key string) ([]string, bool) {
	v, ok := c.env.Lookup(strings.ToUpper(key))
	if !ok {
		return nil, false
	}
	return []string{v}, true
}

// Keys returns every environment key lower-cased, in the environment's order.
func (c *Carrier) Keys() []string {
	keys := c.env.Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = strings.ToLower(k)
	}
	return out
}

// Undo reverts every write recorded in the carrier's buffer.
func (c *Carrier) Undo() error {
	return c.undo.Undo()
}
