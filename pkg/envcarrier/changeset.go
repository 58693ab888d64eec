package envcarrier

import (
	"errors"

	"go.uber.org/zap"
)

// ChangeSet is a Carrier whose writes belong to one scope and are reverted by
// Rollback.
type ChangeSet struct {
	*Carrier
}

// Begin starts a change-set over env. Defer Rollback right away.
func Begin(env Environ, logger *zap.Logger) *ChangeSet {
	return &ChangeSet{Carrier: NewCarrier(env, &UndoBuffer{}, logger)}
}

// Pending reports how many keys Rollback would restore.
func (cs *ChangeSet) Pending() int {
	return cs.undo.Len()
}

// Rollback reverts every write made through the change-set. It is safe to
// call more than once.
func (cs *ChangeSet) Rollback() error {
	return cs.Undo()
}

// Apply runs fn with a fresh change-set over env and rolls it back when fn
// returns or panics. Errors from fn and from the rollback are joined.
func Apply(env Environ, logger *zap.Logger, fn func(cs *ChangeSet) error) (err error) {
	cs := Begin(env, logger)
	defer func() {
		err = errors.Join(err, cs.Rollback())
	}()
	return fn(cs)
}
