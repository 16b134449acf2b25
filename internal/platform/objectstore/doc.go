// Package objectstore stores backup artifacts in MinIO or any S3-compatible
// object store.
package objectstore
