// Package kv abstracts the small durable key-value store that holds the
// serialized master index. The store only needs three operations; it does not
// need atomic compare-and-swap, which is exactly why the master index pairs it
// with advisory locks and modification tokens.
package kv

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned when a key has no stored value.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrKeyNotFound)`.
var ErrKeyNotFound = errors.New("key not found")

// Store is a durable string key-value store.
type Store interface {
	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
