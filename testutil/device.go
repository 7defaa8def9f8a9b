package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/hupe1980/edgeport/bdev"
)

// UntouchableDevice is a block device that fails the test on any command.
// It verifies that rejected requests never reach the driver.
type UntouchableDevice struct {
	t testing.TB
}

// NewUntouchableDevice returns a device bound to t.
func NewUntouchableDevice(t testing.TB) *UntouchableDevice {
	return &UntouchableDevice{t: t}
}

func (d *UntouchableDevice) fail(cmd string) {
	d.t.Helper()
	d.t.Errorf("testutil: unexpected device command %q", cmd)
}

func (d *UntouchableDevice) Init(context.Context) error {
	d.fail("init")
	return nil
}

func (d *UntouchableDevice) Sync(context.Context) error {
	d.fail("sync")
	return nil
}

func (d *UntouchableDevice) SectorCount(context.Context) (uint64, error) {
	d.fail("count")
	return 0, nil
}

func (d *UntouchableDevice) SectorSize(context.Context) (uint32, error) {
	d.fail("size")
	return 0, nil
}

func (d *UntouchableDevice) ReadSectors(context.Context, uint64, uint32, []byte) error {
	d.fail("read")
	return nil
}

func (d *UntouchableDevice) WriteSectors(context.Context, uint64, uint32, []byte) error {
	d.fail("write")
	return nil
}

// Call is one command observed by a RecordingDevice.
type Call struct {
	Cmd   string
	Start uint64
	Count uint32
}

// RecordingDevice forwards commands to an inner device and records them.
// Capabilities the inner device lacks report bdev.ErrNotSupported.
type RecordingDevice struct {
	inner bdev.Device

	mu    sync.Mutex
	calls []Call
}

// NewRecordingDevice wraps inner.
func NewRecordingDevice(inner bdev.Device) *RecordingDevice {
	return &RecordingDevice{inner: inner}
}

func (d *RecordingDevice) record(c Call) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
}

// Calls returns a copy of the recorded commands in order.
func (d *RecordingDevice) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// Count returns how often cmd was called.
func (d *RecordingDevice) Count(cmd string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c.Cmd == cmd {
			n++
		}
	}
	return n
}

// Reset forgets all recorded commands.
func (d *RecordingDevice) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

func (d *RecordingDevice) Init(ctx context.Context) error {
	d.record(Call{Cmd: "init"})
	if in, ok := d.inner.(bdev.Initializer); ok {
		return in.Init(ctx)
	}
	return nil
}

func (d *RecordingDevice) Sync(ctx context.Context) error {
	d.record(Call{Cmd: "sync"})
	if s, ok := d.inner.(bdev.Syncer); ok {
		return s.Sync(ctx)
	}
	return nil
}

func (d *RecordingDevice) SectorCount(ctx context.Context) (uint64, error) {
	d.record(Call{Cmd: "count"})
	if g, ok := d.inner.(bdev.Geometer); ok {
		return g.SectorCount(ctx)
	}
	return 0, bdev.ErrNotSupported
}

func (d *RecordingDevice) SectorSize(ctx context.Context) (uint32, error) {
	d.record(Call{Cmd: "size"})
	if g, ok := d.inner.(bdev.Geometer); ok {
		return g.SectorSize(ctx)
	}
	return 0, bdev.ErrNotSupported
}

func (d *RecordingDevice) ReadSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	d.record(Call{Cmd: "read", Start: start, Count: count})
	return d.inner.ReadSectors(ctx, start, count, buf)
}

func (d *RecordingDevice) WriteSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	d.record(Call{Cmd: "write", Start: start, Count: count})
	if w, ok := d.inner.(bdev.Writer); ok {
		return w.WriteSectors(ctx, start, count, buf)
	}
	return bdev.ErrNotSupported
}
