package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type descriptor struct {
	SectorSize  uint32 `json:"sector_size"`
	SectorCount uint64 `json:"sector_count"`
	Compression string `json:"compression,omitempty"`
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("gob")
	assert.False(t, ok)
}

func TestCodecsInterchangeable(t *testing.T) {
	in := descriptor{SectorSize: 512, SectorCount: 65536, Compression: "zstd"}

	data := MustMarshal(GoJSON{}, in)
	var out descriptor
	require.NoError(t, JSON{}.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	data = MustMarshal(nil, in)
	out = descriptor{}
	require.NoError(t, Default.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestMustMarshalPanics(t *testing.T) {
	assert.Panics(t, func() { MustMarshal(JSON{}, make(chan int)) })
}
