// Package edgeport binds an embedded transactional file-system core to host
// block devices and host synchronization primitives.
//
// Two adapters make up the port:
//
//   - The block device adapter (BlockDevice, ReadOnlyBlockDevice) turns
//     volume-numbered requests into commands on the device registered for the
//     volume in a Table. Volume numbers, bindings, buffers and sector ranges
//     are validated before any device is touched.
//   - The metadata lock (MetadataLock) wraps one named host mutex that
//     serializes file-system metadata access across tasks.
//
// # Quick Start
//
//	table := edgeport.NewTable(1)
//	dev := bdev.NewMemoryDevice(512, 65536)
//	_ = table.Register(0, dev, edgeport.VolumeConfig{PathPrefix: "/"})
//
//	bd := edgeport.New(table, edgeport.WithLogLevel(slog.LevelDebug))
//	_ = bd.Open(ctx, 0, edgeport.OpenReadWrite)
//
//	var geo bdev.Geometry
//	_ = bd.GetGeometry(ctx, 0, &geo) // fills SectorSize and SectorCount
//
//	buf := make([]byte, 4*geo.SectorSize)
//	_ = bd.Write(ctx, 0, 10, 4, buf)
//	_ = bd.Flush(ctx, 0)
//
// Sector numbers are absolute device sectors. A volume with SectorOffset k
// accepts sectors k through k+SectorCount-1.
//
// # Devices
//
// Devices live in package bdev: a memory device, file and memory-mapped
// images, and bdev/blobdev, which stores sectors as compressed chunks in a
// blob store (local directory, S3 or MinIO). Wrappers add retries
// (VolumeConfig.BlockIORetries), throttling and fault injection.
//
// # Locking
//
// A MetadataLock is created on an osal.Host. osal.Kernel provides in-process
// mutexes; osal/ddblock provides a lease lock in DynamoDB for volumes shared
// between processes.
//
//	lock := edgeport.NewLocker(4, osal.NewKernel(osal.DefaultMaxObjects))
//	if err := lock.Init(); err != nil { ... }
//	lock.Acquire()
//	defer lock.Release()
//
// # Errors
//
// Failures wrap one of ErrInvalidArgument, ErrIO, ErrUnsupported or
// ErrResourceExhausted in a *VolumeError; StatusOf maps them to errno-style
// codes for C bindings.
package edgeport
