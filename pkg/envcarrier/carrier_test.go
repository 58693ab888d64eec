package envcarrier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// failingEnviron rejects writes to one key.
type failingEnviron struct {
	*Map
	reject string
}

func (f *failingEnviron) Setenv(key, value string) error {
	if key == f.reject {
		return errors.New("read-only")
	}
	return f.Map.Setenv(key, value)
}

func TestCarrier_SetUppercasesKey(t *testing.T) {
	env := NewMap()
	c := NewCarrier(env, nil, nil)

	c.Set("traceparent", "00-abc-def-01")

	v, ok := env.Lookup("TRACEPARENT")
	require.True(t, ok)
	assert.Equal(t, "00-abc-def-01", v)
	_, ok = env.Lookup("traceparent")
	assert.False(t, ok)
}

func TestCarrier_GetAndValues(t *testing.T) {
	env := NewMap("TRACESTATE=vendor=1")
	c := NewCarrier(env, nil, nil)

	assert.Equal(t, "vendor=1", c.Get("tracestate"))
	assert.Equal(t, "", c.Get("baggage"))

	vals, ok := c.Values("tracestate")
	require.True(t, ok)
	assert.Equal(t, []string{"vendor=1"}, vals)

	vals, ok = c.Values("baggage")
	assert.False(t, ok)
	assert.Nil(t, vals)
}

func TestCarrier_KeysLowercased(t *testing.T) {
	env := NewMap("HOME=/root", "TRACEPARENT=x", "Path=/bin")
	c := NewCarrier(env, nil, nil)

	assert.Equal(t, []string{"home", "traceparent", "path"}, c.Keys())
}

func TestCarrier_SetValueRejectsNonString(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	env := NewMap()
	c := NewCarrier(env, nil, zap.New(core))

	c.SetValue("baggage", 42)

	_, ok := env.Lookup("BAGGAGE")
	assert.False(t, ok, "non-string value must not be written")
	entries := logs.FilterMessage("propagation of non-string values to environment is not supported").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "int", entries[0].ContextMap()["type"])

	c.SetValue("baggage", "k=v")
	assert.Equal(t, "k=v", c.Get("baggage"))
}

func TestCarrier_SetErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	env := &failingEnviron{Map: NewMap(), reject: "TRACEPARENT"}
	c := NewCarrier(env, nil, zap.New(core))

	c.Set("traceparent", "v")

	assert.Equal(t, 1, logs.FilterMessage("failed to write propagation value to environment").Len())
	_, ok := env.Lookup("TRACEPARENT")
	assert.False(t, ok)
}

func TestUndo_AbsentKeyIsUnset(t *testing.T) {
	env := NewMap()
	c := NewCarrier(env, nil, nil)

	c.Set("traceparent", "v")
	require.NoError(t, c.Undo())

	_, ok := env.Lookup("TRACEPARENT")
	assert.False(t, ok, "key must be removed, not left empty")
	assert.Empty(t, env.Keys())
}

func TestUndo_RestoresOriginalAfterRepeatedSets(t *testing.T) {
	env := NewMap("TRACEPARENT=original")
	c := NewCarrier(env, nil, nil)

	c.Set("traceparent", "first")
	c.Set("traceparent", "second")
	c.Set("TraceParent", "third")
	require.NoError(t, c.Undo())

	v, ok := env.Lookup("TRACEPARENT")
	require.True(t, ok)
	assert.Equal(t, "original", v)
}

func TestUndo_Idempotent(t *testing.T) {
	env := NewMap("BAGGAGE=before")
	c := NewCarrier(env, nil, nil)
	c.Set("baggage", "during")
	c.Set("traceparent", "during")

	require.NoError(t, c.Undo())
	once := env.Environ()
	require.NoError(t, c.Undo())

	assert.Equal(t, once, env.Environ())
	assert.Equal(t, []string{"BAGGAGE=before"}, once)
}

func TestUndo_NewCycleAfterUndo(t *testing.T) {
	env := NewMap("TRACEPARENT=a")
	c := NewCarrier(env, nil, nil)

	c.Set("traceparent", "b")
	require.NoError(t, c.Undo())
	env.Setenv("TRACEPARENT", "c")
	c.Set("traceparent", "d")
	require.NoError(t, c.Undo())

	v, _ := env.Lookup("TRACEPARENT")
	assert.Equal(t, "c", v, "second cycle restores the value seen at its first write")
}

func TestUndo_SharedBufferAcrossEnvirons(t *testing.T) {
	var buf UndoBuffer
	a := NewMap("X=1")
	b := NewMap()

	NewCarrier(a, &buf, nil).Set("x", "2")
	NewCarrier(b, &buf, nil).Set("x", "3")
	assert.Equal(t, 2, buf.Len())

	require.NoError(t, buf.Undo())
	v, _ := a.Lookup("X")
	assert.Equal(t, "1", v)
	_, ok := b.Lookup("X")
	assert.False(t, ok)
	assert.Zero(t, buf.Len())
}

func TestUndo_ErrorsJoinedAndBufferCleared(t *testing.T) {
	env := &failingEnviron{Map: NewMap("TRACEPARENT=old")}
	c := NewCarrier(env, nil, nil)
	c.Set("traceparent", "new")
	c.Set("baggage", "new")
	env.reject = "TRACEPARENT"

	err := c.Undo()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restoring TRACEPARENT")

	_, ok := env.Lookup("BAGGAGE")
	assert.False(t, ok, "other keys are still restored")
	assert.NoError(t, c.Undo(), "buffer is cleared after a failed undo")
}

func TestChangeSet_Rollback(t *testing.T) {
	env := NewMap("HOME=/root")
	cs := Begin(env, nil)

	cs.Set("traceparent", "x")
	assert.Equal(t, 1, cs.Pending())

	require.NoError(t, cs.Rollback())
	require.NoError(t, cs.Rollback())
	assert.Zero(t, cs.Pending())
	assert.Equal(t, []string{"HOME=/root"}, env.Environ())
}

func TestApply_RollsBackOnErrorAndPanic(t *testing.T) {
	env := NewMap()
	boom := errors.New("boom")

	err := Apply(env, nil, func(cs *ChangeSet) error {
		cs.Set("traceparent", "x")
		assert.Equal(t, "x", cs.Get("traceparent"))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, env.Keys())

	assert.Panics(t, func() {
		_ = Apply(env, nil, func(cs *ChangeSet) error {
			cs.Set("baggage", "y")
			panic("fail")
		})
	})
	assert.Empty(t, env.Keys())
}

func TestCarrier_PropagationRoundTrip(t *testing.T) {
	prop := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	env := NewMap()
	err := Apply(env, nil, func(cs *ChangeSet) error {
		prop.Inject(ctx, cs)
		_, ok := env.Lookup("TRACEPARENT")
		assert.True(t, ok)

		got := trace.SpanContextFromContext(prop.Extract(context.Background(), cs))
		assert.Equal(t, sc.TraceID(), got.TraceID())
		assert.Equal(t, sc.SpanID(), got.SpanID())
		assert.True(t, got.IsRemote())
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, env.Keys())
}

func TestProcessEnviron(t *testing.T) {
	t.Setenv("ENVCARRIER_TEST_KEY", "before")
	cs := Begin(Process, nil)

	cs.Set("envcarrier_test_key", "after")
	cs.Set("envcarrier_test_absent", "set")
	assert.Contains(t, cs.Keys(), "envcarrier_test_key")

	require.NoError(t, cs.Rollback())
	v, _ := Process.Lookup("ENVCARRIER_TEST_KEY")
	assert.Equal(t, "before", v)
	_, ok := Process.Lookup("ENVCARRIER_TEST_ABSENT")
	assert.False(t, ok)
}
