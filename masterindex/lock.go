package masterindex

import (
	"context"
	"time"
)

// expireLock applies lazy timeout expiry to a lock status. It returns the
// possibly-cleared status and whether a transition happened. Pure function:
// no I/O, no timers.
func expireLock(status LockStatus, now time.Time, fallback time.Duration) (LockStatus, bool) {
	if !status.IsLocked || status.LockedAt == nil {
		return status, false
	}
	if now.Sub(status.LockedAt.Time) < status.Timeout(fallback) {
		return status, false
	}
	return LockStatus{LockTimeoutMillis: status.LockTimeoutMillis}, true
}

// AcquireCollectionLock attempts to take a collection's advisory lock for the
// given operation id. It succeeds only when the lock is free or expired and
// never waits; callers implement their own bounded retry.
func (i *Index) AcquireCollectionLock(ctx context.Context, name, operationID string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.load(ctx); err != nil {
		return false, err
	}

	meta, ok := i.state.Collections[name]
	if !ok {
		return false, &CollectionNotFoundError{Collection: name}
	}

	now := time.Now()
	status, _ := expireLock(meta.LockStatus, now, i.lockTimeout)
	if status.IsLocked {
		return false, nil
	}

	at := NewTimestamp(now)
	meta.LockStatus = LockStatus{
		IsLocked:          true,
		LockedBy:          operationID,
		LockedAt:          &at,
		LockTimeoutMillis: status.Timeout(i.lockTimeout).Milliseconds(),
	}

	if err := i.persist(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseCollectionLock clears a collection's lock when operationID matches
// the current holder or the lock already expired. It reports whether the lock
// is free after the call.
func (i *Index) ReleaseCollectionLock(ctx context.Context, name, operationID string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.load(ctx); err != nil {
		return false, err
	}

	meta, ok := i.state.Collections[name]
	if !ok {
		return false, &CollectionNotFoundError{Collection: name}
	}

	status, expired := expireLock(meta.LockStatus, time.Now(), i.lockTimeout)
	if !status.IsLocked {
		if expired {
			meta.LockStatus = status
			if err := i.persist(ctx); err != nil {
				return false, err
			}
		}
		return true, nil
	}

	if status.LockedBy != operationID {
		return false, nil
	}

	meta.LockStatus = LockStatus{LockTimeoutMillis: status.LockTimeoutMillis}
	if err := i.persist(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// IsCollectionLocked lazily expires the lock before reporting its state.
func (i *Index) IsCollectionLocked(ctx context.Context, name string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.load(ctx); err != nil {
		return false, err
	}

	meta, ok := i.state.Collections[name]
	if !ok {
		return false, &CollectionNotFoundError{Collection: name}
	}

	status, expired := expireLock(meta.LockStatus, time.Now(), i.lockTimeout)
	if expired {
		meta.LockStatus = status
		if err := i.persist(ctx); err != nil {
			return false, err
		}
	}
	return status.IsLocked, nil
}

// CleanupExpiredCollectionLocks sweeps every collection, clearing expired
// locks, and reports whether anything changed.
func (i *Index) CleanupExpiredCollectionLocks(ctx context.Context) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if err := i.load(ctx); err != nil {
		return false, err
	}

	now := time.Now()
	changed := false
	for _, meta := range i.state.Collections {
		status, expired := expireLock(meta.LockStatus, now, i.lockTimeout)
		if expired {
			meta.LockStatus = status
			changed = true
		}
	}

	if changed {
		if err := i.persist(ctx); err != nil {
			return false, err
		}
	}
	return changed, nil
}
