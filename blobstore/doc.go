// Package blobstore provides the object storage used by object-store block
// devices (see bdev/blobdev).
//
// A Store holds named, immutable-per-write blobs. Every Put replaces the
// whole blob atomically, which is what chunked sector storage needs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and RAM-backed volumes
//   - LocalStore: local filesystem, one file per blob, atomic rename on Put
//   - s3.Store: Amazon S3 (and S3-compatible endpoints)
//   - minio.Store: MinIO via minio-go
//
// # Custom Implementations
//
//	type Store interface {
//	    Get(ctx, name) ([]byte, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
