package bdev

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteSpan(t *testing.T) {
	geo := Geometry{SectorSize: 512, SectorCount: 100}

	tests := []struct {
		name   string
		start  uint64
		count  uint32
		bufLen int
		off    int64
		n      int
		err    error
	}{
		{name: "first sector", start: 0, count: 1, bufLen: 512, off: 0, n: 512},
		{name: "last sector", start: 99, count: 1, bufLen: 512, off: 99 * 512, n: 512},
		{name: "whole device", start: 0, count: 100, bufLen: 100 * 512, n: 100 * 512},
		{name: "zero count at end", start: 100, count: 0, bufLen: 0, off: 100 * 512},
		{name: "past end", start: 99, count: 2, bufLen: 1024, err: ErrOutOfRange},
		{name: "start beyond", start: 101, count: 0, bufLen: 0, err: ErrOutOfRange},
		{name: "wrap", start: math.MaxUint64, count: 2, bufLen: 1024, err: ErrOutOfRange},
		{name: "short buffer", start: 0, count: 2, bufLen: 1000, err: ErrShortBuffer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			off, n, err := ByteSpan(geo, tt.start, tt.count, tt.bufLen)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.off, off)
			assert.Equal(t, tt.n, n)
		})
	}
}

func TestGeometry_Bytes(t *testing.T) {
	assert.Equal(t, uint64(512*65536), Geometry{SectorSize: 512, SectorCount: 65536}.Bytes())
	assert.Equal(t, uint64(math.MaxUint64), Geometry{SectorSize: 4096, SectorCount: math.MaxUint64}.Bytes())
	assert.Equal(t, "8 x 512B", Geometry{SectorSize: 512, SectorCount: 8}.String())
}

func TestMemoryDevice(t *testing.T) {
	ctx := context.Background()
	dev := NewMemoryDevice(512, 64)

	count, err := dev.SectorCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), count)
	size, err := dev.SectorSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(512), size)

	pattern := bytes.Repeat([]byte{0xA5, 0x5A}, 512) // 2 sectors
	require.NoError(t, dev.WriteSectors(ctx, 10, 2, pattern))

	got := make([]byte, 1024)
	require.NoError(t, dev.ReadSectors(ctx, 10, 2, got))
	assert.Equal(t, pattern, got)

	raw := dev.Bytes()
	assert.Equal(t, pattern, raw[10*512:12*512])
	assert.Equal(t, make([]byte, 512), raw[9*512:10*512])

	assert.ErrorIs(t, dev.ReadSectors(ctx, 63, 2, make([]byte, 1024)), ErrOutOfRange)
	assert.ErrorIs(t, dev.WriteSectors(ctx, 0, 2, make([]byte, 512)), ErrShortBuffer)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, dev.ReadSectors(cctx, 0, 1, got), context.Canceled)
}
