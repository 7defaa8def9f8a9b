// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket", func(o *s3.Options) {
//	    o.Prefix = "volumes/vol0"
//	    o.Region = "eu-central-1"
//	})
//
//	dev, err := blobdev.Create(ctx, store, "", blobdev.Geometry{...})
//
// # Features
//
//   - Whole-object Get/Put matching chunked sector storage
//   - CRC32C integrity checksums on small puts
//   - Multipart uploads through the transfer manager for large blobs
//   - Automatic pagination for listing
//   - Custom endpoints and path-style addressing for S3-compatible servers
package s3
