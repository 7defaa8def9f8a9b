package bdev

import (
	"context"
	"errors"

	"github.com/hupe1980/edgeport/internal/mmap"
)

// MmapDevice is a block device backed by a memory-mapped image file.
// The image size is fixed at open time.
type MmapDevice struct {
	m        *mmap.Mapping
	geo      Geometry
	readOnly bool
}

// OpenMmap maps an existing image file as a block device.
func OpenMmap(path string, sectorSize uint32, readOnly bool) (*MmapDevice, error) {
	if sectorSize == 0 {
		return nil, errors.New("bdev: sector size must be positive")
	}
	mode := mmap.ReadWrite
	if readOnly {
		mode = mmap.ReadOnly
	}
	m, err := mmap.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return &MmapDevice{
		m:        m,
		geo:      Geometry{SectorSize: sectorSize, SectorCount: uint64(m.Size()) / uint64(sectorSize)},
		readOnly: readOnly,
	}, nil
}

// Init implements Initializer. Filesystem metadata access is random, so the
// kernel is told not to read ahead.
func (d *MmapDevice) Init(context.Context) error {
	return d.m.Advise(mmap.AccessRandom)
}

// Sync implements Syncer.
func (d *MmapDevice) Sync(context.Context) error {
	return d.m.Sync()
}

// SectorCount implements Geometer.
func (d *MmapDevice) SectorCount(context.Context) (uint64, error) { return d.geo.SectorCount, nil }

// SectorSize implements Geometer.
func (d *MmapDevice) SectorSize(context.Context) (uint32, error) { return d.geo.SectorSize, nil }

// ReadSectors implements Device.
func (d *MmapDevice) ReadSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	off, n, err := ByteSpan(d.geo, start, count, len(buf))
	if err != nil || n == 0 {
		return err
	}
	_, err = d.m.ReadAt(buf[:n], off)
	return err
}

// WriteSectors implements Writer.
func (d *MmapDevice) WriteSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	if d.readOnly {
		return ErrNotSupported
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	off, n, err := ByteSpan(d.geo, start, count, len(buf))
	if err != nil || n == 0 {
		return err
	}
	_, err = d.m.WriteAt(buf[:n], off)
	return err
}

// Close unmaps the image.
func (d *MmapDevice) Close() error {
	return d.m.Close()
}
