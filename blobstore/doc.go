// Package blobstore abstracts the durable blob storage that holds collection
// bundles. Bundles are small and read and written whole, so the interface is
// byte-oriented rather than streaming.
//
// Backends: MemoryStore (tests), LocalStore (atomic temp-and-rename writes),
// plus S3 and MinIO implementations in subpackages. RetryStore wraps any
// backend with bounded retries and optional IO throttling; retry policy
// belongs here, not in the engines.
package blobstore
