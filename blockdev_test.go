package edgeport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/hupe1980/edgeport/bdev"
	"github.com/hupe1980/edgeport/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readOnlyDevice exposes nothing but sector reads.
type readOnlyDevice struct{}

func (readOnlyDevice) ReadSectors(context.Context, uint64, uint32, []byte) error { return nil }

// geometryDevice reports a fixed, possibly bogus, geometry.
type geometryDevice struct {
	readOnlyDevice
	size  uint32
	count uint64
}

func (d geometryDevice) SectorCount(context.Context) (uint64, error) { return d.count, nil }
func (d geometryDevice) SectorSize(context.Context) (uint32, error)  { return d.size, nil }

func rootConfig() VolumeConfig {
	return VolumeConfig{PathPrefix: "/"}
}

// openVolume registers dev as volume 0 of a one-volume table and opens it.
func openVolume(t *testing.T, dev bdev.Device, cfg VolumeConfig) (*BlockDevice, *Table) {
	t.Helper()
	table := NewTable(1)
	require.NoError(t, table.Register(0, dev, cfg))
	bd := New(table)
	require.NoError(t, bd.Open(context.Background(), 0, OpenReadWrite))
	return bd, table
}

func TestInvalidVolumeNeverReachesDevice(t *testing.T) {
	ctx := context.Background()
	table := NewTable(2)
	require.NoError(t, table.Register(0, testutil.NewUntouchableDevice(t), rootConfig()))
	bd := New(table)
	buf := make([]byte, 512)

	// Volume 0 is registered but unbound, volume 1 is empty, 2 and 255 are
	// outside the table.
	for _, vol := range []uint8{0, 1, 2, 255} {
		var geo bdev.Geometry
		assert.ErrorIs(t, bd.GetGeometry(ctx, vol, &geo), ErrInvalidArgument, "vol %d", vol)
		assert.ErrorIs(t, bd.Read(ctx, vol, 0, 1, buf), ErrInvalidArgument, "vol %d", vol)
		assert.ErrorIs(t, bd.Write(ctx, vol, 0, 1, buf), ErrInvalidArgument, "vol %d", vol)
		assert.ErrorIs(t, bd.Flush(ctx, vol), ErrInvalidArgument, "vol %d", vol)
	}
	for _, vol := range []uint8{1, 2, 255} {
		assert.ErrorIs(t, bd.Open(ctx, vol, OpenReadWrite), ErrInvalidArgument, "vol %d", vol)
		assert.ErrorIs(t, bd.Close(ctx, vol), ErrInvalidArgument, "vol %d", vol)
	}

	// Close of a registered volume is unbind-only.
	require.NoError(t, bd.Close(ctx, 0))
}

func TestSectorRangeValidation(t *testing.T) {
	ctx := context.Background()
	rec := testutil.NewRecordingDevice(bdev.NewMemoryDevice(512, 100))
	bd, _ := openVolume(t, rec, VolumeConfig{SectorSize: 512, SectorCount: 100, PathPrefix: "/"})

	tests := []struct {
		name  string
		start uint64
		count uint32
		valid bool
	}{
		{"first sector", 0, 1, true},
		{"last sector", 99, 1, true},
		{"whole volume", 0, 100, true},
		{"empty range inside", 50, 0, true},
		{"past end", 98, 3, false},
		{"start at end", 100, 0, false},
		{"start beyond end", 150, 1, false},
		{"wraps", ^uint64(0), 2, false},
		{"huge count", 1, ^uint32(0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec.Reset()
			buf := make([]byte, int(min(tt.count, 100))*512)

			rerr := bd.Read(ctx, 0, tt.start, tt.count, buf)
			werr := bd.Write(ctx, 0, tt.start, tt.count, buf)
			if tt.valid {
				assert.NoError(t, rerr)
				assert.NoError(t, werr)
				assert.Equal(t, 1, rec.Count("read"))
				assert.Equal(t, 1, rec.Count("write"))
				return
			}
			assert.ErrorIs(t, rerr, ErrInvalidArgument)
			assert.ErrorIs(t, werr, ErrInvalidArgument)
			assert.Empty(t, rec.Calls())
		})
	}
}

func TestSectorOffset(t *testing.T) {
	ctx := context.Background()
	rec := testutil.NewRecordingDevice(bdev.NewMemoryDevice(512, 64))
	bd, _ := openVolume(t, rec, VolumeConfig{SectorSize: 512, SectorCount: 20, SectorOffset: 10, PathPrefix: "/"})
	rec.Reset()
	buf := make([]byte, 20*512)

	assert.ErrorIs(t, bd.Read(ctx, 0, 9, 1, buf), ErrInvalidArgument)
	assert.ErrorIs(t, bd.Read(ctx, 0, 30, 1, buf), ErrInvalidArgument)
	assert.ErrorIs(t, bd.Read(ctx, 0, 25, 6, buf), ErrInvalidArgument)
	assert.Empty(t, rec.Calls())

	require.NoError(t, bd.Read(ctx, 0, 10, 20, buf))
	require.NoError(t, bd.Read(ctx, 0, 29, 1, buf))
	assert.Equal(t, []testutil.Call{
		{Cmd: "read", Start: 10, Count: 20},
		{Cmd: "read", Start: 29, Count: 1},
	}, rec.Calls())
}

func TestBufferValidation(t *testing.T) {
	ctx := context.Background()
	rec := testutil.NewRecordingDevice(bdev.NewMemoryDevice(512, 16))
	bd, _ := openVolume(t, rec, VolumeConfig{SectorSize: 512, SectorCount: 16, PathPrefix: "/"})
	rec.Reset()

	assert.ErrorIs(t, bd.Read(ctx, 0, 0, 1, nil), ErrInvalidArgument)
	assert.ErrorIs(t, bd.Write(ctx, 0, 0, 1, nil), ErrInvalidArgument)
	assert.ErrorIs(t, bd.Read(ctx, 0, 0, 2, make([]byte, 1000)), ErrInvalidArgument)
	assert.Empty(t, rec.Calls())
}

func TestGetGeometry(t *testing.T) {
	ctx := context.Background()

	t.Run("reports device geometry", func(t *testing.T) {
		rec := testutil.NewRecordingDevice(bdev.NewMemoryDevice(512, 65536))
		bd, table := openVolume(t, rec, rootConfig())

		var geo bdev.Geometry
		require.NoError(t, bd.GetGeometry(ctx, 0, &geo))
		assert.Equal(t, bdev.Geometry{SectorSize: 512, SectorCount: 65536}, geo)
		assert.Equal(t, []string{"init", "count", "size"}, commands(rec.Calls()))

		cfg, ok := table.Config(0)
		require.True(t, ok)
		assert.Equal(t, uint32(512), cfg.SectorSize)
		assert.Equal(t, uint64(65536), cfg.SectorCount)
	})

	t.Run("keeps configured geometry", func(t *testing.T) {
		bd, table := openVolume(t, bdev.NewMemoryDevice(512, 65536),
			VolumeConfig{SectorSize: 512, SectorCount: 1024, PathPrefix: "/"})

		var geo bdev.Geometry
		require.NoError(t, bd.GetGeometry(ctx, 0, &geo))
		cfg, _ := table.Config(0)
		assert.Equal(t, uint64(1024), cfg.SectorCount)
	})

	t.Run("auto extent is empty until queried", func(t *testing.T) {
		bd, _ := openVolume(t, bdev.NewMemoryDevice(512, 16), rootConfig())
		buf := make([]byte, 512)

		assert.ErrorIs(t, bd.Read(ctx, 0, 0, 1, buf), ErrInvalidArgument)
		var geo bdev.Geometry
		require.NoError(t, bd.GetGeometry(ctx, 0, &geo))
		assert.NoError(t, bd.Read(ctx, 0, 0, 1, buf))
	})

	t.Run("nil output", func(t *testing.T) {
		bd, _ := openVolume(t, bdev.NewMemoryDevice(512, 16), rootConfig())
		assert.ErrorIs(t, bd.GetGeometry(ctx, 0, nil), ErrInvalidArgument)
	})

	t.Run("device without geometry", func(t *testing.T) {
		bd, _ := openVolume(t, readOnlyDevice{}, rootConfig())
		var geo bdev.Geometry
		assert.ErrorIs(t, bd.GetGeometry(ctx, 0, &geo), ErrUnsupported)
	})

	t.Run("device reports not supported", func(t *testing.T) {
		faulty := bdev.NewFaultyDevice(bdev.NewMemoryDevice(512, 16),
			bdev.DeviceFault{FailGeometry: true, Err: bdev.ErrNotSupported})
		bd, _ := openVolume(t, faulty, rootConfig())
		var geo bdev.Geometry
		assert.ErrorIs(t, bd.GetGeometry(ctx, 0, &geo), ErrUnsupported)
	})

	t.Run("sector count failure skips size query", func(t *testing.T) {
		faulty := bdev.NewFaultyDevice(bdev.NewMemoryDevice(512, 16), bdev.DeviceFault{FailGeometry: true})
		bd, _ := openVolume(t, faulty, rootConfig())

		var geo bdev.Geometry
		err := bd.GetGeometry(ctx, 0, &geo)
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, bdev.ErrInjected)
		assert.Equal(t, 1, faulty.Calls("count"))
		assert.Equal(t, 0, faulty.Calls("size"))
	})

	t.Run("invalid device geometry", func(t *testing.T) {
		for _, dev := range []geometryDevice{
			{size: 0, count: 16},
			{size: 500, count: 16},
			{size: 512, count: 0},
		} {
			bd, _ := openVolume(t, dev, rootConfig())
			var geo bdev.Geometry
			assert.ErrorIs(t, bd.GetGeometry(ctx, 0, &geo), ErrInvalidArgument, "%+v", dev)
		}
	})
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem := bdev.NewMemoryDevice(512, 65536)
	bd, _ := openVolume(t, mem, VolumeConfig{SectorSize: 512, SectorCount: 65536, PathPrefix: "/"})

	want := testutil.Pattern(4, 512, 0xA5)
	require.NoError(t, bd.Write(ctx, 0, 10, 4, want))
	require.NoError(t, bd.Flush(ctx, 0))

	got := make([]byte, len(want))
	require.NoError(t, bd.Read(ctx, 0, 10, 4, got))
	assert.Equal(t, want, got)
	assert.Equal(t, want, mem.Bytes()[10*512:14*512])
}

func TestCloseThenOpenRebinds(t *testing.T) {
	ctx := context.Background()
	rec := testutil.NewRecordingDevice(bdev.NewMemoryDevice(512, 32))
	bd, table := openVolume(t, rec, VolumeConfig{SectorSize: 512, SectorCount: 32, PathPrefix: "/"})
	buf := testutil.Pattern(2, 512, 7)

	require.NoError(t, bd.Write(ctx, 0, 3, 2, buf))
	require.NoError(t, bd.Close(ctx, 0))
	assert.False(t, table.Bound(0))
	assert.ErrorIs(t, bd.Read(ctx, 0, 3, 2, buf), ErrInvalidArgument)

	require.NoError(t, bd.Open(ctx, 0, OpenReadOnly))
	assert.True(t, table.Bound(0))

	got := make([]byte, len(buf))
	require.NoError(t, bd.Read(ctx, 0, 3, 2, got))
	assert.Equal(t, buf, got)
	assert.Equal(t, 2, rec.Count("init"))
}

func TestDeviceFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("init failure leaves volume unbound", func(t *testing.T) {
		faulty := bdev.NewFaultyDevice(bdev.NewMemoryDevice(512, 16), bdev.DeviceFault{FailInit: true})
		table := NewTable(1)
		require.NoError(t, table.Register(0, faulty, VolumeConfig{SectorSize: 512, SectorCount: 16, PathPrefix: "/"}))
		bd := New(table)

		err := bd.Open(ctx, 0, OpenReadWrite)
		assert.ErrorIs(t, err, ErrIO)
		assert.False(t, table.Bound(0))
		assert.ErrorIs(t, bd.Read(ctx, 0, 0, 1, make([]byte, 512)), ErrInvalidArgument)
		assert.Equal(t, 0, faulty.Calls("read"))
	})

	t.Run("sync failure", func(t *testing.T) {
		faulty := bdev.NewFaultyDevice(bdev.NewMemoryDevice(512, 16), bdev.DeviceFault{FailSync: true})
		bd, _ := openVolume(t, faulty, rootConfig())

		err := bd.Flush(ctx, 0)
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, bdev.ErrInjected)
	})

	t.Run("read and write failures", func(t *testing.T) {
		faulty := bdev.NewFaultyDevice(bdev.NewMemoryDevice(512, 16), bdev.DeviceFault{FailRead: true, FailWrite: true})
		bd, _ := openVolume(t, faulty, VolumeConfig{SectorSize: 512, SectorCount: 16, PathPrefix: "/"})
		buf := make([]byte, 512)

		assert.ErrorIs(t, bd.Read(ctx, 0, 0, 1, buf), ErrIO)
		assert.ErrorIs(t, bd.Write(ctx, 0, 0, 1, buf), ErrIO)
	})

	t.Run("device without write command", func(t *testing.T) {
		bd, _ := openVolume(t, readOnlyDevice{}, VolumeConfig{SectorSize: 512, SectorCount: 16, PathPrefix: "/"})
		buf := make([]byte, 512)

		require.NoError(t, bd.Read(ctx, 0, 0, 1, buf))
		err := bd.Write(ctx, 0, 0, 1, buf)
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, bdev.ErrNotSupported)
		// No cache beneath.
		assert.NoError(t, bd.Flush(ctx, 0))
	})

	t.Run("retries from mount configuration", func(t *testing.T) {
		faulty := bdev.NewFaultyDevice(bdev.NewMemoryDevice(512, 16), bdev.DeviceFault{FailRead: true, FailTimes: 2})
		bd, _ := openVolume(t, faulty, VolumeConfig{SectorSize: 512, SectorCount: 16, BlockIORetries: 2, PathPrefix: "/"})

		require.NoError(t, bd.Read(ctx, 0, 0, 1, make([]byte, 512)))
		assert.Equal(t, 3, faulty.Calls("read"))
	})
}

func TestReadOnlyBlockDevice(t *testing.T) {
	ctx := context.Background()
	table := NewTable(1)
	require.NoError(t, table.Register(0, bdev.NewMemoryDevice(512, 8), rootConfig()))

	var r BlockReader = NewReadOnly(table)
	require.NoError(t, r.Open(ctx, 0, OpenReadOnly))

	var geo bdev.Geometry
	require.NoError(t, r.GetGeometry(ctx, 0, &geo))
	require.NoError(t, r.Read(ctx, 0, 0, 8, make([]byte, 8*512)))
	require.NoError(t, r.Close(ctx, 0))

	_, ok := r.(BlockReadWriter)
	assert.False(t, ok)
}

func TestBlockDeviceObservability(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	metrics := &BasicMetricsCollector{}

	table := NewTable(1)
	require.NoError(t, table.Register(0, bdev.NewMemoryDevice(512, 16),
		VolumeConfig{SectorSize: 512, SectorCount: 16, PathPrefix: "/"}))
	bd := New(table,
		WithLogger(NewLogger(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
		WithMetricsCollector(metrics),
	)

	buf := make([]byte, 2*512)
	require.NoError(t, bd.Open(ctx, 0, OpenReadWrite))
	require.NoError(t, bd.Write(ctx, 0, 0, 2, buf))
	require.NoError(t, bd.Read(ctx, 0, 0, 2, buf))
	require.Error(t, bd.Read(ctx, 0, 15, 2, buf))
	require.NoError(t, bd.Flush(ctx, 0))

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.OpenCount)
	assert.Equal(t, int64(0), stats.OpenErrors)
	assert.Equal(t, int64(2), stats.ReadCount)
	assert.Equal(t, int64(1), stats.ReadErrors)
	assert.Equal(t, int64(2), stats.ReadSectors)
	assert.Equal(t, int64(1), stats.WriteCount)
	assert.Equal(t, int64(2), stats.WriteSectors)
	assert.Equal(t, int64(1), stats.FlushCount)

	out := logs.String()
	assert.Contains(t, out, `"msg":"volume opened"`)
	assert.Contains(t, out, `"msg":"read failed"`)
	assert.Contains(t, out, `"mode":"read-write"`)
	assert.Equal(t, 1, strings.Count(out, `"level":"ERROR"`))
}

func commands(calls []testutil.Call) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Cmd)
	}
	return out
}

func TestVolumeErrorUnwrap(t *testing.T) {
	cause := errors.New("driver says no")
	err := volumeError("read", 3, ErrIO, cause)

	var verr *VolumeError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "read", verr.Op)
	assert.Equal(t, uint8(3), verr.Volume)
	assert.ErrorIs(t, err, ErrIO)
	assert.NotErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.Equal(t, "read volume 3: i/o error: driver says no", err.Error())
}
