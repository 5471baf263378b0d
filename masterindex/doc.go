// Package masterindex maintains the single durable coordination record shared
// by all stateless runs: per-collection metadata, modification tokens,
// advisory locks, and a bounded modification history.
//
// The whole state is serialized as one JSON value under one key of a durable
// key-value store. The store offers no compare-and-swap, so the advisory lock
// plus the modification token are the only defense against two concurrent runs
// overwriting the record from stale reads; every mutation must go through
// load, mutate, persist while holding a collection's lock.
//
// Lock timeouts are observed lazily: expiry is a pure state transition applied
// at the start of every lock-sensitive operation, never a timer.
package masterindex
