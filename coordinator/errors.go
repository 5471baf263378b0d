package coordinator

import "fmt"

// LockUnavailableError is returned when the collection's advisory lock could
// not be acquired within the configured number of attempts.
type LockUnavailableError struct {
	Collection string
	Attempts   int
}

func (e *LockUnavailableError) Error() string {
	return fmt.Sprintf("collection %q lock unavailable after %d attempts", e.Collection, e.Attempts)
}
