// Package minio provides a blobstore.Store for MinIO and other S3-compatible
// object stores.
package minio
