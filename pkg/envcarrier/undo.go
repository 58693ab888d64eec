package envcarrier

import (
	"errors"
	"fmt"
	"sync"
)

// previous is the state of a key before its first write in an undo cycle.
type previous struct {
	value   string
	present bool
}

// changes holds what one Environ looked like before it was written to.
type changes struct {
	env   Environ
	order []string
	prior map[string]previous
}

// UndoBuffer records the pre-write state of every key written through a
// Carrier, grouped by Environ. The zero value is ready to use.
type UndoBuffer struct {
	mu    sync.Mutex
	order []Environ
	byEnv map[Environ]*changes
}

// record saves the current state of key in env unless this cycle already
// holds an entry for it. First write wins, so repeated writes still restore
// the value that existed before any of them.
func (b *UndoBuffer) record(env Environ, key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.byEnv == nil {
		b.byEnv = make(map[Environ]*changes)
	}
	c, ok := b.byEnv[env]
	if !ok {
		c = &changes{env: env, prior: make(map[string]previous)}
		b.byEnv[env] = c
		b.order = append(b.order, env)
	}
	if _, seen := c.prior[key]; seen {
		return
	}
	value, present := env.Lookup(key)
	c.prior[key] = previous{value: value, present: present}
	c.order = append(c.order, key)
}

// Len reports how many keys are pending restoration.
func (b *UndoBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.byEnv {
		n += len(c.order)
	}
	return n
}

// Undo restores every recorded key, either to its previous value or by
// unsetting it. The buffer is cleared even when some restores fail; the
// failures are joined into the returned error. Calling Undo again without
// new writes does nothing.
func (b *UndoBuffer) Undo() error {
	b.mu.Lock()
	order := b.order
	byEnv := b.byEnv
	b.order = nil
	b.byEnv = nil
	b.mu.Unlock()

	var errs []error
	for _, env := range order {
		c := byEnv[env]
		for _, key := range c.order {
			prev := c.prior[key]
			var err error
			if prev.present {
				err = c.env.Setenv(key, prev.value)
			} else {
				err = c.env.Unsetenv(key)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("restoring %s: %w", key, err))
			}
		}
	}
	return errors.Join(errs...)
}
