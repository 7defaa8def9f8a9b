package bdev

import (
	"context"
	"errors"
	"sync"
)

// ErrInjected is the error returned by injected device faults that carry no Err.
var ErrInjected = errors.New("bdev: injected fault")

// DeviceFault selects which device commands fail.
type DeviceFault struct {
	FailInit     bool
	FailSync     bool
	FailRead     bool
	FailWrite    bool
	FailGeometry bool
	// FailTimes limits how many times each selected command fails before it
	// starts succeeding. 0 means fail forever.
	FailTimes int
	Err       error
}

// FaultyDevice wraps a device and injects command failures. It is meant for
// exercising error paths of callers.
type FaultyDevice struct {
	wrapped

	mu     sync.Mutex
	fault  DeviceFault
	failed map[string]int
	calls  map[string]int
}

// NewFaultyDevice wraps dev with the given fault.
func NewFaultyDevice(dev Device, fault DeviceFault) *FaultyDevice {
	return &FaultyDevice{
		wrapped: wrapped{dev: dev},
		fault:   fault,
		failed:  make(map[string]int),
		calls:   make(map[string]int),
	}
}

// SetFault replaces the active fault and resets failure counts.
func (d *FaultyDevice) SetFault(fault DeviceFault) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fault = fault
	clear(d.failed)
}

// Calls returns how often the named command ("init", "sync", "count",
// "size", "read", "write") was invoked.
func (d *FaultyDevice) Calls(cmd string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[cmd]
}

func (d *FaultyDevice) inject(cmd string, selected func(DeviceFault) bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls[cmd]++
	if !selected(d.fault) {
		return nil
	}
	if d.fault.FailTimes > 0 && d.failed[cmd] >= d.fault.FailTimes {
		return nil
	}
	d.failed[cmd]++
	if d.fault.Err != nil {
		return d.fault.Err
	}
	return ErrInjected
}

func (d *FaultyDevice) Init(ctx context.Context) error {
	if err := d.inject("init", func(f DeviceFault) bool { return f.FailInit }); err != nil {
		return err
	}
	return d.init(ctx)
}

func (d *FaultyDevice) Sync(ctx context.Context) error {
	if err := d.inject("sync", func(f DeviceFault) bool { return f.FailSync }); err != nil {
		return err
	}
	return d.sync(ctx)
}

func (d *FaultyDevice) SectorCount(ctx context.Context) (uint64, error) {
	if err := d.inject("count", func(f DeviceFault) bool { return f.FailGeometry }); err != nil {
		return 0, err
	}
	return d.sectorCount(ctx)
}

func (d *FaultyDevice) SectorSize(ctx context.Context) (uint32, error) {
	if err := d.inject("size", func(f DeviceFault) bool { return f.FailGeometry }); err != nil {
		return 0, err
	}
	return d.sectorSize(ctx)
}

func (d *FaultyDevice) ReadSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	if err := d.inject("read", func(f DeviceFault) bool { return f.FailRead }); err != nil {
		return err
	}
	return d.read(ctx, start, count, buf)
}

func (d *FaultyDevice) WriteSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	if err := d.inject("write", func(f DeviceFault) bool { return f.FailWrite }); err != nil {
		return err
	}
	return d.write(ctx, start, count, buf)
}
