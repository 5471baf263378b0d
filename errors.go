package docgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/docgo/blobstore"
	"github.com/hupe1980/docgo/coordinator"
	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/masterindex"
	"github.com/hupe1980/docgo/query"
	"github.com/hupe1980/docgo/update"
)

var (
	// ErrInvalidQuery is returned for malformed queries and unsupported
	// query operators.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidUpdate is returned for malformed update specifications,
	// unsupported update operators, and operator type mismatches.
	ErrInvalidUpdate = errors.New("invalid update")

	// ErrInvalidDocument is returned when a document uses a reserved field
	// name.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrConflict is returned when a metadata conflict cannot be resolved by
	// the active strategy. Last-write-wins never raises it.
	ErrConflict = errors.New("conflict")

	// ErrLockUnavailable is returned when a collection's advisory lock could
	// not be acquired within the bounded retries.
	ErrLockUnavailable = errors.New("lock unavailable")

	// ErrMasterIndexCorrupt is returned when the stored master index state
	// cannot be parsed.
	ErrMasterIndexCorrupt = errors.New("master index corrupt")

	// ErrStorage wraps failures propagated from the storage collaborators.
	ErrStorage = errors.New("storage failure")

	// ErrCollectionNotFound is returned for operations on an unregistered
	// collection.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when creating a collection whose name
	// is already registered.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrNotFound is returned when no document matches.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned when inserting a document whose identity
	// field collides with a stored document.
	ErrDuplicateID = errors.New("duplicate document id")
)

// translateError maps subsystem errors onto the public error contract while
// preserving the original error chain via errors.Unwrap.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var iq *query.InvalidQueryError
	if errors.As(err, &iq) {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	var iu *update.InvalidUpdateError
	if errors.As(err, &iu) {
		return fmt.Errorf("%w: %w", ErrInvalidUpdate, err)
	}
	var rf *document.ErrReservedField
	if errors.As(err, &rf) {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	var ce *masterindex.CorruptError
	if errors.As(err, &ce) {
		return fmt.Errorf("%w: %w", ErrMasterIndexCorrupt, err)
	}
	var lu *coordinator.LockUnavailableError
	if errors.As(err, &lu) {
		return fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}
	var nf *masterindex.CollectionNotFoundError
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %w", ErrCollectionNotFound, err)
	}
	if errors.Is(err, masterindex.ErrConflict) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return err
}

func isCollectionNotFound(err error) bool {
	return errors.Is(err, ErrCollectionNotFound)
}
