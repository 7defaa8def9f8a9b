package bdev

import (
	"context"

	"github.com/hupe1980/edgeport/resource"
)

// ThrottledDevice bounds in-flight commands and sector throughput of a device
// through a resource.Controller.
type ThrottledDevice struct {
	wrapped
	rc             *resource.Controller
	bytesPerSector uint32
}

// Throttle wraps dev with the limits of rc. sectorSize converts sector counts
// into bytes for the throughput limit.
func Throttle(dev Device, sectorSize uint32, rc *resource.Controller) *ThrottledDevice {
	return &ThrottledDevice{wrapped: wrapped{dev: dev}, rc: rc, bytesPerSector: sectorSize}
}

func (d *ThrottledDevice) admit(ctx context.Context, count uint32) error {
	if err := d.rc.AcquireInflight(ctx); err != nil {
		return err
	}
	if err := d.rc.AcquireIO(ctx, int(count)*int(d.bytesPerSector)); err != nil {
		d.rc.ReleaseInflight()
		return err
	}
	return nil
}

func (d *ThrottledDevice) Init(ctx context.Context) error { return d.init(ctx) }

func (d *ThrottledDevice) Sync(ctx context.Context) error {
	if err := d.rc.AcquireInflight(ctx); err != nil {
		return err
	}
	defer d.rc.ReleaseInflight()
	return d.sync(ctx)
}

func (d *ThrottledDevice) SectorCount(ctx context.Context) (uint64, error) {
	return d.sectorCount(ctx)
}

func (d *ThrottledDevice) SectorSize(ctx context.Context) (uint32, error) {
	return d.sectorSize(ctx)
}

func (d *ThrottledDevice) ReadSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	if err := d.admit(ctx, count); err != nil {
		return err
	}
	defer d.rc.ReleaseInflight()
	return d.read(ctx, start, count, buf)
}

func (d *ThrottledDevice) WriteSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	if err := d.admit(ctx, count); err != nil {
		return err
	}
	defer d.rc.ReleaseInflight()
	return d.write(ctx, start, count, buf)
}
