// Package minio provides a blobstore.Store implementation using the MinIO client.
//
// MinIO is an S3-compatible object storage system. This package uses the
// official MinIO Go client library, which also works against other
// S3-compatible servers like Ceph, SeaweedFS and Garage. It is the air-gap
// friendly choice for edge hosts that carry no AWS configuration.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "volumes", "site-7/")
//	dev, err := blobdev.Open(ctx, store, "vol0")
package minio
