package bdev

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
)

var (
	// ErrNotSupported is returned when a device cannot perform a command.
	ErrNotSupported = errors.New("bdev: operation not supported")
	// ErrOutOfRange is returned when a sector range exceeds the device.
	ErrOutOfRange = errors.New("bdev: sector range out of range")
	// ErrShortBuffer is returned when a buffer cannot hold the requested sectors.
	ErrShortBuffer = errors.New("bdev: buffer too small")
)

// Device is the required part of a block device's operations table.
type Device interface {
	// ReadSectors reads count sectors starting at start into buf.
	ReadSectors(ctx context.Context, start uint64, count uint32, buf []byte) error
}

// Writer is implemented by devices that accept sector writes.
type Writer interface {
	// WriteSectors writes count sectors starting at start from buf.
	WriteSectors(ctx context.Context, start uint64, count uint32, buf []byte) error
}

// Initializer is implemented by devices that need an initialization command
// before servicing I/O.
type Initializer interface {
	Init(ctx context.Context) error
}

// Syncer is implemented by devices with caches beneath them. Sync returns
// once all previously written sectors are on stable storage.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Geometer is implemented by devices that can report their geometry.
type Geometer interface {
	SectorCount(ctx context.Context) (uint64, error)
	SectorSize(ctx context.Context) (uint32, error)
}

// ReadWriter is a device that accepts both reads and writes.
type ReadWriter interface {
	Device
	Writer
}

// Geometry describes the sector layout of a device or volume.
type Geometry struct {
	SectorSize  uint32 // bytes per sector
	SectorCount uint64 // number of sectors
}

// Bytes returns the total size in bytes, saturating on overflow.
func (g Geometry) Bytes() uint64 {
	hi, lo := bits.Mul64(g.SectorCount, uint64(g.SectorSize))
	if hi != 0 {
		return ^uint64(0)
	}
	return lo
}

func (g Geometry) String() string {
	return fmt.Sprintf("%d x %dB", g.SectorCount, g.SectorSize)
}

// ByteSpan converts a sector range into a byte offset and length for a device
// of the given geometry. It rejects ranges that exceed the device or wrap, and
// buffers shorter than the range.
func ByteSpan(g Geometry, start uint64, count uint32, bufLen int) (off int64, n int, err error) {
	if start > g.SectorCount || uint64(count) > g.SectorCount-start {
		return 0, 0, fmt.Errorf("%w: start=%d count=%d sectors=%d", ErrOutOfRange, start, count, g.SectorCount)
	}
	size := uint64(count) * uint64(g.SectorSize)
	if size > uint64(bufLen) {
		return 0, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, size, bufLen)
	}
	return int64(start * uint64(g.SectorSize)), int(size), nil
}
