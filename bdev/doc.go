// Package bdev defines the block-device driver contract consumed by the
// edgeport block device adapter, together with host-backed devices.
//
// A device is an opaque handle whose operations table is expressed as a
// required interface plus optional capabilities:
//
//   - [Device]: raw sector reads (required)
//   - [Writer]: raw sector writes
//   - [Initializer]: the device-level initialization command
//   - [Syncer]: the synchronize command
//   - [Geometer]: the sector count and sector size queries
//
// Sector numbers passed to a device are absolute device sectors. Devices check
// ranges against their own extent and return [ErrOutOfRange]; range checks
// against a volume's extent are the adapter's job.
//
// # Built-in Devices
//
//   - [MemoryDevice]: RAM disk
//   - [FileDevice]: image file through the internal filesystem abstraction
//   - [MmapDevice]: memory-mapped image file
//   - blobdev.Device: sectors stored as chunks in a blob store
//
// # Wrappers
//
// [WithRetries], [Throttle] and [NewFaultyDevice] wrap a device while keeping
// its capability set observable: a wrapped device without [Geometer] reports
// [ErrNotSupported] from the geometry queries, and a wrapped device without
// [Syncer] syncs as a no-op.
package bdev
