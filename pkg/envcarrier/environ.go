// Package envcarrier propagates OpenTelemetry context through environment
// variables and can undo every write it made.
//
// Keys are stored upper-case (traceparent becomes TRACEPARENT) so that child
// processes following the same convention can extract the context. Every
// write records the value it replaced, once per key, and a rollback restores
// those values or unsets keys that did not exist before.
//
//	cs := envcarrier.Begin(envcarrier.Process, logger)
//	defer cs.Rollback()
//	propagator.Inject(ctx, cs)
//	// start child processes here; they inherit TRACEPARENT
package envcarrier

import (
	"os"
	"strings"
	"sync"
)

// Environ is a mutable key/value environment.
//
// Implementations are used as map keys by UndoBuffer and must be comparable;
// use pointer receivers for anything holding state.
type Environ interface {
	Lookup(key string) (string, bool)
	Setenv(key, value string) error
	Unsetenv(key string) error
	// Keys returns every key in the environment's native order.
	Keys() []string
}

type processEnviron struct{}

// Process is the environment of the current process.
var Process Environ = processEnviron{}

func (processEnviron) Lookup(key string) (string, bool) { return os.LookupEnv(key) }
func (processEnviron) Setenv(key, value string) error   { return os.Setenv(key, value) }
func (processEnviron) Unsetenv(key string) error        { return os.Unsetenv(key) }

func (processEnviron) Keys() []string {
	env := os.Environ()
	keys := make([]string, 0, len(env))
	for _, kv := range env {
		key, _, _ := strings.Cut(kv, "=")
		if key == "" {
			// Windows per-drive entries look like "=C:=C:\".
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// Map is an in-memory Environ that keeps insertion order. It is useful for
// building a child process environment without touching the parent's.
type Map struct {
	mu     sync.RWMutex
	order  []string
	values map[string]string
}

// NewMap builds a Map from "KEY=value" entries such as os.Environ() returns.
// Later duplicates win.
func NewMap(entries ...string) *Map {
	m := &Map{values: make(map[string]string, len(entries))}
	for _, kv := range entries {
		key, value, _ := strings.Cut(kv, "=")
		if key == "" {
			continue
		}
		_ = m.Setenv(key, value)
	}
	return m
}

func (m *Map) Lookup(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Map) Setenv(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		m.order = append(m.order, key)
	}
	m.values[key] = value
	return nil
}

func (m *Map) Unsetenv(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		return nil
	}
	delete(m.values, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Map) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Environ returns the contents as "KEY=value" entries, suitable for
// exec.Cmd.Env.
func (m *Map) Environ() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, k+"="+m.values[k])
	}
	return out
}
