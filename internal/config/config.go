// Package config loads otelcontrib configuration.
//
// Configuration is layered with koanf:
//  1. Defaults (the struct passed to Load is pre-populated by the caller)
//  2. YAML file (optional, --config)
//  3. Environment variables, mapped explicitly through EnvBindings
//
// Only keys present in a layer are applied, so defaults survive for anything
// neither the file nor the environment mentions.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvBinding maps a single environment variable to a koanf key.
type EnvBinding struct {
	// Key is the dotted koanf path, e.g. "telemetry.otlp.endpoint".
	Key string
	// Transform optionally rewrites the raw value before unmarshaling.
	Transform func(value string) interface{}
}

// EnvBindings maps environment variable names to their bindings.
type EnvBindings map[string]EnvBinding

// lookup returns the koanf key and value for an environment variable, or an
// empty key when the variable is not bound.
func (b EnvBindings) lookup(name, value string) (string, interface{}) {
	binding, ok := b[name]
	if !ok || value == "" {
		return "", nil
	}
	if binding.Transform != nil {
		return binding.Key, binding.Transform(value)
	}
	return binding.Key, value
}

// Milliseconds converts an integer millisecond count, the unit used by the
// OTEL_*_INTERVAL and OTEL_*_TIMEOUT variables, into a duration string.
// Values that are not integers are passed through so validation can reject them.
func Milliseconds(value string) interface{} {
	ms, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return value
	}
	return strconv.FormatInt(ms, 10) + "ms"
}

// Validator is implemented by configuration structs that can check themselves.
type Validator interface {
	Validate() error
}

// validate runs Validate on out when it supports it.
func validate(out interface{}) error {
	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
