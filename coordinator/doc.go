// Package coordinator serializes logical operations on a collection across
// stateless runs.
//
// Coordinate composes the master index with caller logic: acquire the
// collection's advisory lock with bounded backoff, reconcile a stale
// modification token, run the callback exactly once against refreshed
// metadata, commit a fresh token on success, and release the lock on every
// path. Lock expiry is the backstop when a release is skipped, e.g. on
// process death.
package coordinator
