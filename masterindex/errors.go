package masterindex

import (
	"errors"
	"fmt"
)

// ErrConflict signals a token mismatch that the active resolution strategy
// could not reconcile. It is reserved for future strategies; last-write-wins
// never raises it.
var ErrConflict = errors.New("unresolved metadata conflict")

// CorruptError indicates that the stored master index state could not be
// parsed. This is fatal: the state must not be overwritten blindly.
//
// The original underlying error can be accessed via errors.Unwrap.
type CorruptError struct {
	cause error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("master index state is corrupt: %v", e.cause)
}

func (e *CorruptError) Unwrap() error { return e.cause }

// CollectionNotFoundError indicates an operation on an unregistered
// collection.
type CollectionNotFoundError struct {
	Collection string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection %q is not registered in the master index", e.Collection)
}
