package exithook

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	exits  []any
	panics []any
}

func (r *recordingListener) OnExit(code any) { r.exits = append(r.exits, code) }
func (r *recordingListener) OnPanic(v any)   { r.panics = append(r.panics, v) }

// newTestHooks returns hooks whose exit function records the code instead of
// terminating.
func newTestHooks(t *testing.T) (*Hooks, *[]int, *bytes.Buffer) {
	t.Helper()
	var codes []int
	var stderr bytes.Buffer
	return New(func(code int) { codes = append(codes, code) }, &stderr), &codes, &stderr
}

type codedError struct{ code int }

func (e codedError) Error() string { return "coded" }
func (e codedError) ExitCode() int { return e.code }

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"nil", nil, 0},
		{"zero", 0, 0},
		{"int", 3, 3},
		{"int8", int8(4), 4},
		{"int64", int64(130), 130},
		{"uint", uint(2), 2},
		{"negative", -1, -1},
		{"uint64 overflow", uint64(math.MaxUint64), 1},
		{"uintptr max int", uintptr(math.MaxInt), math.MaxInt},
		{"string", "x", 1},
		{"bool", true, 1},
		{"error", errors.New("bad"), 1},
		{"float", 2.0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.in))
		})
	}
}

func TestRegister_SingleOwner(t *testing.T) {
	h, _, _ := newTestHooks(t)
	a, b := &recordingListener{}, &recordingListener{}

	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(a), "same listener may register again")
	assert.ErrorIs(t, h.Register(b), ErrListenerRegistered)

	h.Unregister(b)
	assert.ErrorIs(t, h.Register(b), ErrListenerRegistered, "unregistering a non-owner is a no-op")

	h.Unregister(a)
	assert.NoError(t, h.Register(b))
}

func TestExit_NotifiesListenerThenRunsCallbacks(t *testing.T) {
	h, codes, stderr := newTestHooks(t)
	l := &recordingListener{}
	require.NoError(t, h.Register(l))

	var order []string
	h.AtExit(func() { order = append(order, "first") })
	h.AtExit(func() {
		assert.Equal(t, []any{7}, l.exits, "listener sees the code before callbacks run")
		order = append(order, "second")
	})

	h.Exit(7)

	assert.Equal(t, []string{"second", "first"}, order)
	assert.Equal(t, []int{7}, *codes)
	assert.Empty(t, stderr.String())
}

func TestExit_NonIntegerCodeIsPrinted(t *testing.T) {
	h, codes, stderr := newTestHooks(t)

	h.Exit("fatal: config missing")

	assert.Equal(t, []int{1}, *codes)
	assert.Equal(t, "fatal: config missing\n", stderr.String())
}

func TestExit_NilCode(t *testing.T) {
	h, codes, stderr := newTestHooks(t)
	h.Exit(nil)
	assert.Equal(t, []int{0}, *codes)
	assert.Empty(t, stderr.String())
}

func TestAtExit_RunsOnce(t *testing.T) {
	h, _, _ := newTestHooks(t)
	calls := 0
	h.AtExit(func() { calls++ })

	h.Exit(0)
	h.Exit(0)

	assert.Equal(t, 1, calls)
}

func TestAtExit_Cancel(t *testing.T) {
	h, _, _ := newTestHooks(t)
	ran := false
	cancel := h.AtExit(func() { ran = true })
	cancel()
	cancel()

	h.Exit(0)
	assert.False(t, ran)
}

func TestAtExit_PanickingCallbackDoesNotStopOthers(t *testing.T) {
	h, codes, stderr := newTestHooks(t)
	ran := false
	h.AtExit(func() { ran = true })
	h.AtExit(func() { panic("callback broke") })

	h.Exit(2)

	assert.True(t, ran)
	assert.Equal(t, []int{2}, *codes)
	assert.Contains(t, stderr.String(), "callback broke")
}

func TestRecover_RepanicsWithOriginalValue(t *testing.T) {
	h, codes, _ := newTestHooks(t)
	l := &recordingListener{}
	require.NoError(t, h.Register(l))
	ran := false
	h.AtExit(func() { ran = true })

	sentinel := errors.New("kaboom")
	assert.PanicsWithError(t, "kaboom", func() {
		defer h.Recover()
		panic(sentinel)
	})

	assert.Equal(t, []any{sentinel}, l.panics)
	assert.Empty(t, l.exits)
	assert.True(t, ran)
	assert.Empty(t, *codes, "recover never calls exit")
}

func TestRecover_NormalReturnRunsCallbacks(t *testing.T) {
	h, _, _ := newTestHooks(t)
	l := &recordingListener{}
	require.NoError(t, h.Register(l))
	ran := false
	h.AtExit(func() { ran = true })

	func() {
		defer h.Recover()
	}()

	assert.True(t, ran)
	assert.Empty(t, l.panics)
}

func TestRun(t *testing.T) {
	t.Run("nil error exits zero", func(t *testing.T) {
		h, codes, _ := newTestHooks(t)
		l := &recordingListener{}
		require.NoError(t, h.Register(l))

		h.Run(func() error { return nil })

		assert.Equal(t, []int{0}, *codes)
		assert.Equal(t, []any{0}, l.exits)
	})

	t.Run("error exits one", func(t *testing.T) {
		h, codes, stderr := newTestHooks(t)
		h.Run(func() error { return errors.New("went wrong") })
		assert.Equal(t, []int{1}, *codes)
		assert.Equal(t, "went wrong\n", stderr.String())
	})

	t.Run("error with exit code", func(t *testing.T) {
		h, codes, stderr := newTestHooks(t)
		h.Run(func() error { return codedError{code: 42} })
		assert.Equal(t, []int{42}, *codes)
		assert.Empty(t, stderr.String())
	})

	t.Run("panic is recovered and re-raised", func(t *testing.T) {
		h, codes, _ := newTestHooks(t)
		l := &recordingListener{}
		require.NoError(t, h.Register(l))

		assert.PanicsWithValue(t, "boom", func() {
			h.Run(func() error { panic("boom") })
		})
		assert.Equal(t, []any{"boom"}, l.panics)
		assert.Empty(t, *codes)
	})
}

func TestDefaultDelegates(t *testing.T) {
	saved := Default
	t.Cleanup(func() { Default = saved })

	var codes []int
	Default = New(func(code int) { codes = append(codes, code) }, nil)
	l := &recordingListener{}
	require.NoError(t, Register(l))

	ran := false
	cancel := AtExit(func() { ran = true })
	Exit(5)
	cancel()

	assert.True(t, ran)
	assert.Equal(t, []int{5}, codes)
	assert.Equal(t, []any{5}, l.exits)

	Unregister(l)
	assert.NoError(t, Default.Register(&recordingListener{}))

	assert.Panics(t, func() {
		defer Recover()
		panic("default panic")
	})
}
