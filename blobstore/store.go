package blobstore

import (
	"context"
	"os"
	"time"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// FileInfo describes a stored blob.
type FileInfo struct {
	// Name is the blob's locator within the store.
	Name string

	// Size is the blob size in bytes.
	Size int64

	// ModTime is the last modification time, when the backend reports one.
	ModTime time.Time
}

// Store is an abstraction for accessing collection bundle blobs.
type Store interface {
	// Get reads a blob in full.
	Get(ctx context.Context, name string) ([]byte, error)

	// Put writes a blob atomically, overwriting any previous content.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, name string) error

	// Exists reports whether a blob is present.
	Exists(ctx context.Context, name string) (bool, error)

	// Stat returns a blob's metadata.
	Stat(ctx context.Context, name string) (FileInfo, error)

	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
