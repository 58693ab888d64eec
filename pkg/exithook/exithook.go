// Package exithook gives one listener a chance to observe how the process is
// about to terminate, and runs registered cleanup before it does.
//
// Programs route termination through the registry instead of calling
// os.Exit directly:
//
//	func main() {
//		defer exithook.Recover()
//		...
//		exithook.Exit(code)
//	}
//
// Exit notifies the listener with the requested code, runs AtExit callbacks
// in LIFO order, and exits. Recover does the same for a panic and then
// re-panics with the original value.
package exithook

import (
	"errors"
	"fmt"
	"math"
	"io"
	"os"
	"reflect"
	"sync"
)

// ErrListenerRegistered is returned by Register when a different listener
// already owns the hooks.
var ErrListenerRegistered = errors.New("exit listener already registered")

// Listener observes process termination.
type Listener interface {
	// OnExit receives the raw code passed to Exit.
	OnExit(code any)
	// OnPanic receives the recovered panic value.
	OnPanic(v any)
}

type callback struct {
	id uint64
	fn func()
}

// Hooks is a termination registry. Use Default unless the exit function or
// stderr need to be replaced.
type Hooks struct {
	mu       sync.Mutex
	listener Listener
	nextID   uint64
	atExit   []callback
	exit     func(int)
	stderr   io.Writer
}

// Default is backed by os.Exit and os.Stderr.
var Default = New(os.Exit, os.Stderr)

// New returns a registry that terminates through exit and reports non-integer
// exit codes to stderr. Nil arguments fall back to os.Exit and io.Discard.
func New(exit func(int), stderr io.Writer) *Hooks {
	if exit == nil {
		exit = os.Exit
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &Hooks{exit: exit, stderr: stderr}
}

// Register makes l the termination listener. Registering the same listener
// twice is allowed.
func (h *Hooks) Register(l Listener) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener != nil && h.listener != l {
		return ErrListenerRegistered
	}
	h.listener = l
	return nil
}

// Unregister removes l if it is the current listener.
func (h *Hooks) Unregister(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == l {
		h.listener = nil
	}
}

// AtExit registers fn to run on Exit or Recover. Callbacks run once, newest
// first. The returned cancel removes fn if it has not run yet.
func (h *Hooks) AtExit(fn func()) (cancel func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.atExit = append(h.atExit, callback{id: id, fn: fn})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, cb := range h.atExit {
			if cb.id == id {
				h.atExit = append(h.atExit[:i], h.atExit[i+1:]...)
				return
			}
		}
	}
}

// Exit notifies the listener, runs AtExit callbacks and terminates with
// ExitCode(code). A code that is neither nil nor an integer is printed to
// stderr first.
func (h *Hooks) Exit(code any) {
	if l := h.currentListener(); l != nil {
		l.OnExit(code)
	}
	h.runAtExit()

	if code != nil && !isInteger(code) {
		fmt.Fprintln(h.stderr, code)
	}
	h.exit(ExitCode(code))
}

// Recover must be deferred directly. On panic it notifies the listener, runs
// AtExit callbacks and re-panics with the same value. On a normal return it
// only runs the callbacks.
func (h *Hooks) Recover() {
	h.handle(recover())
}

func (h *Hooks) handle(v any) {
	if v == nil {
		h.runAtExit()
		return
	}
	if l := h.currentListener(); l != nil {
		l.OnPanic(v)
	}
	h.runAtExit()
	panic(v)
}

// Run calls fn and exits with its outcome. A nil error exits 0. An error
// exposing ExitCode() int exits with that code, any other error prints to
// stderr and exits 1. Panics go through Recover.
func (h *Hooks) Run(fn func() error) {
	code := func() (code any) {
		defer func() {
			if r := recover(); r != nil {
				h.handle(r)
			}
		}()
		return runResult(fn(), h.stderr)
	}()
	h.Exit(code)
}

func runResult(err error, stderr io.Writer) any {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintln(stderr, err)
	return 1
}

func (h *Hooks) currentListener() Listener {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listener
}

// runAtExit drains the callback list and runs it outside the lock, so
// callbacks may register or cancel others. A panicking callback does not
// stop the rest.
func (h *Hooks) runAtExit() {
	h.mu.Lock()
	cbs := h.atExit
	h.atExit = nil
	h.mu.Unlock()

	for i := len(cbs) - 1; i >= 0; i-- {
		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Fprintf(h.stderr, "exit callback panicked: %v\n", r)
				}
			}()
			cbs[i].fn()
		}()
	}
}

// ExitCode normalizes a value passed to Exit: nil is 0, any integer kind is
// its value and everything else is 1. Integers that do not fit in an int are
// also 1.
func ExitCode(v any) int {
	if v == nil {
		return 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < math.MinInt || n > math.MaxInt {
			return 1
		}
		return int(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n := rv.Uint()
		if n > math.MaxInt {
			return 1
		}
		return int(n)
	default:
		return 1
	}
}

func isInteger(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

// Register makes l the listener of Default.
func Register(l Listener) error { return Default.Register(l) }

// Unregister removes l from Default.
func Unregister(l Listener) { Default.Unregister(l) }

// AtExit registers fn on Default.
func AtExit(fn func()) (cancel func()) { return Default.AtExit(fn) }

// Exit terminates through Default.
func Exit(code any) { Default.Exit(code) }

// Recover must be deferred directly in main.
func Recover() { Default.handle(recover()) }

// Run calls fn and exits through Default.
func Run(fn func() error) { Default.Run(fn) }
