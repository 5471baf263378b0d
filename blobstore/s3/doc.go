// Package s3 provides an S3-backed blobstore.Store for collection bundles.
package s3
