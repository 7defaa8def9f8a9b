// Package blobdev implements a block device on top of a blobstore.Store.
//
// The device is split into chunks of ChunkSectors sectors. Each chunk that
// was ever written is stored as one blob named "<prefix>/chunk-%016x";
// chunks that were never written read as zeros without touching the store.
// A descriptor blob "<prefix>/device.json" records the geometry, so a device
// can be reopened by any host that can reach the store.
//
// Writes are written through: WriteSectors returns only after every touched
// chunk was put. There is no cache and no write-back.
//
//	store := blobstore.NewLocalStore("/var/lib/edgeport")
//	dev, err := blobdev.Create(ctx, store, "vol0", bdev.Geometry{SectorSize: 512, SectorCount: 65536},
//	    blobdev.WithCompression(blobdev.CompressionLZ4))
package blobdev
