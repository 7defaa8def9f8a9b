package blobdev

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how chunks are compressed in the store.
type Compression uint8

const (
	// CompressionNone stores chunks as is.
	CompressionNone Compression = iota
	// CompressionLZ4 uses LZ4 block compression (fast).
	CompressionLZ4
	// CompressionZSTD uses ZSTD (better ratio, slower).
	CompressionZSTD
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression is the inverse of Compression.String.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("blobdev: unknown compression %q", s)
	}
}

// ErrCorruptChunk is returned when a stored chunk cannot be decoded.
var ErrCorruptChunk = errors.New("blobdev: corrupt chunk")

// Chunk blobs start with [uncompressed uint32][compressed uint32], little
// endian. A compressed size of 0 means the payload is stored raw.
const chunkHeaderSize = 8

var (
	zstdEncoders sync.Pool
	zstdDecoders sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoders.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoders.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// encodeChunk frames data for storage. Compression is kept only if it saves
// at least 10%.
func encodeChunk(data []byte, c Compression) ([]byte, error) {
	var packed []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		packed = buf[:n] // n == 0 means incompressible
	case CompressionZSTD:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("blobdev: zstd encoder: %w", err)
		}
		packed = enc.EncodeAll(data, nil)
		zstdEncoders.Put(enc)
	}

	if len(packed) == 0 || len(packed)*10 > len(data)*9 {
		packed = nil
	}

	if uint64(len(data)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes per chunk", ErrChunkSize, len(data))
	}

	out := make([]byte, chunkHeaderSize, chunkHeaderSize+max(len(packed), len(data)))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(packed)))
	if packed != nil {
		return append(out, packed...), nil
	}
	return append(out, data...), nil
}

// decodeChunk reverses encodeChunk into dst, which must be exactly the
// uncompressed chunk size.
func decodeChunk(dst, blob []byte, c Compression) error {
	if len(blob) < chunkHeaderSize {
		return fmt.Errorf("%w: %d byte blob", ErrCorruptChunk, len(blob))
	}
	raw := binary.LittleEndian.Uint32(blob[0:])
	packed := binary.LittleEndian.Uint32(blob[4:])
	payload := blob[chunkHeaderSize:]

	if int(raw) != len(dst) {
		return fmt.Errorf("%w: size %d, want %d", ErrCorruptChunk, raw, len(dst))
	}

	if packed == 0 {
		if len(payload) < int(raw) {
			return fmt.Errorf("%w: truncated payload", ErrCorruptChunk)
		}
		copy(dst, payload[:raw])
		return nil
	}
	if len(payload) < int(packed) {
		return fmt.Errorf("%w: truncated payload", ErrCorruptChunk)
	}
	payload = payload[:packed]

	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptChunk, err)
		}
		if n != len(dst) {
			return fmt.Errorf("%w: decompressed %d bytes", ErrCorruptChunk, n)
		}
	case CompressionZSTD:
		dec, err := getZstdDecoder()
		if err != nil {
			return fmt.Errorf("blobdev: zstd decoder: %w", err)
		}
		out, err := dec.DecodeAll(payload, dst[:0])
		zstdDecoders.Put(dec)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptChunk, err)
		}
		if len(out) != len(dst) {
			return fmt.Errorf("%w: decompressed %d bytes", ErrCorruptChunk, len(out))
		}
	default:
		return fmt.Errorf("%w: compressed payload but compression is %s", ErrCorruptChunk, c)
	}
	return nil
}
