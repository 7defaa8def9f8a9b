package bdev

import (
	"context"
	"sync"
)

// MemoryDevice is an in-memory block device (RAM disk).
// It is safe for concurrent use.
type MemoryDevice struct {
	mu   sync.RWMutex
	geo  Geometry
	data []byte
}

// NewMemoryDevice creates a zero-filled RAM disk.
func NewMemoryDevice(sectorSize uint32, sectorCount uint64) *MemoryDevice {
	geo := Geometry{SectorSize: sectorSize, SectorCount: sectorCount}
	return &MemoryDevice{
		geo:  geo,
		data: make([]byte, geo.Bytes()),
	}
}

// Init implements Initializer.
func (d *MemoryDevice) Init(context.Context) error { return nil }

// Sync implements Syncer. Memory has nothing beneath it to flush.
func (d *MemoryDevice) Sync(context.Context) error { return nil }

// SectorCount implements Geometer.
func (d *MemoryDevice) SectorCount(context.Context) (uint64, error) { return d.geo.SectorCount, nil }

// SectorSize implements Geometer.
func (d *MemoryDevice) SectorSize(context.Context) (uint32, error) { return d.geo.SectorSize, nil }

// ReadSectors implements Device.
func (d *MemoryDevice) ReadSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	off, n, err := ByteSpan(d.geo, start, count, len(buf))
	if err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	copy(buf[:n], d.data[off:])
	return nil
}

// WriteSectors implements Writer.
func (d *MemoryDevice) WriteSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	off, n, err := ByteSpan(d.geo, start, count, len(buf))
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	copy(d.data[off:], buf[:n])
	return nil
}

// Bytes returns a copy of the device contents.
func (d *MemoryDevice) Bytes() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()

	copied := make([]byte, len(d.data))
	copy(copied, d.data)
	return copied
}
