// Package mmap provides memory-mapped file access for sector devices.
//
// # Overview
//
// A mapping exposes a device image file as a byte slice, so sector reads and
// writes become copies into and out of the page cache. Sync pushes dirty pages
// back to the file and then to stable storage.
//
// # Usage
//
//	m, err := mmap.Open("vol0.img", mmap.ReadWrite)
//	if err != nil { ... }
//	defer m.Close()
//
//	_, _ = m.WriteAt(sector, 512*10)
//	_ = m.Sync()
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2), msync(2), madvise(2)
//   - Windows: CreateFileMapping/MapViewOfFile/FlushViewOfFile (advice is a no-op)
//
// # Thread Safety
//
// Close is idempotent and protected by an atomic flag. Callers must not touch
// Bytes() after Close returns. Concurrent writes to overlapping
// ranges are not ordered by this package.
package mmap
