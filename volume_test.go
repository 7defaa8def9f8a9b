package edgeport

import (
	"context"
	"fmt"
	"testing"

	"github.com/hupe1980/edgeport/bdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVolumeConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  VolumeConfig
		ok   bool
	}{
		{"auto geometry", VolumeConfig{PathPrefix: "/"}, true},
		{"512 byte sectors", VolumeConfig{SectorSize: 512, PathPrefix: "/"}, true},
		{"4k sectors", VolumeConfig{SectorSize: 4096, SectorCount: 8, PathPrefix: "/data"}, true},
		{"not a power of two", VolumeConfig{SectorSize: 500, PathPrefix: "/"}, false},
		{"too small", VolumeConfig{SectorSize: 64, PathPrefix: "/"}, false},
		{"no prefix", VolumeConfig{SectorSize: 512}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidArgument)
			}
		})
	}
}

func TestTable(t *testing.T) {
	ctx := context.Background()
	table := NewTable(2)
	assert.Equal(t, 2, table.VolumeCount())

	dev := bdev.NewMemoryDevice(512, 8)
	assert.ErrorIs(t, table.Register(2, dev, rootConfig()), ErrInvalidArgument)
	assert.ErrorIs(t, table.Register(0, nil, rootConfig()), ErrInvalidArgument)
	assert.ErrorIs(t, table.Register(0, dev, VolumeConfig{}), ErrInvalidArgument)

	require.NoError(t, table.Register(0, dev, rootConfig()))
	cfg, ok := table.Config(0)
	require.True(t, ok)
	assert.Equal(t, "/", cfg.PathPrefix)
	_, ok = table.Config(1)
	assert.False(t, ok)

	bd := New(table)
	require.NoError(t, bd.Open(ctx, 0, OpenReadWrite))

	// A bound volume keeps its device.
	assert.ErrorIs(t, table.Register(0, dev, rootConfig()), ErrInvalidArgument)
	assert.ErrorIs(t, table.Unregister(0), ErrInvalidArgument)

	require.NoError(t, bd.Close(ctx, 0))
	require.NoError(t, table.Unregister(0))
	assert.ErrorIs(t, table.Unregister(0), ErrInvalidArgument)
	assert.ErrorIs(t, bd.Open(ctx, 0, OpenReadWrite), ErrInvalidArgument)
}

func TestOpenModeString(t *testing.T) {
	assert.Equal(t, "read-only", OpenReadOnly.String())
	assert.Equal(t, "write-only", OpenWriteOnly.String())
	assert.Equal(t, "read-write", OpenReadWrite.String())
	assert.Equal(t, "mode(9)", OpenMode(9).String())
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want Status
	}{
		{nil, StatusOK},
		{volumeError("read", 0, ErrInvalidArgument, nil), StatusInvalidArgument},
		{volumeError("read", 0, ErrIO, bdev.ErrInjected), StatusIO},
		{volumeError("geometry", 0, ErrUnsupported, nil), StatusUnsupported},
		{fmt.Errorf("init: %w", ErrResourceExhausted), StatusResourceExhausted},
		{bdev.ErrInjected, StatusIO},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), "%v", tt.err)
	}

	assert.Equal(t, int32(-22), int32(StatusInvalidArgument))
	assert.Equal(t, int32(-5), int32(StatusIO))
	assert.Equal(t, int32(-95), int32(StatusUnsupported))
	assert.Equal(t, int32(-12), int32(StatusResourceExhausted))
	assert.Equal(t, "EINVAL", StatusInvalidArgument.String())
	assert.Equal(t, "status(-1)", Status(-1).String())
}
