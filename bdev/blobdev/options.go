package blobdev

import (
	"github.com/hupe1980/edgeport/codec"
	"github.com/hupe1980/edgeport/resource"
)

// DefaultChunkSectors is the number of sectors per chunk blob.
const DefaultChunkSectors = 64

type options struct {
	chunkSectors uint32
	compression  Compression
	codec        codec.Codec
	concurrency  int
	rc           *resource.Controller
}

func defaultOptions() options {
	return options{
		chunkSectors: DefaultChunkSectors,
		codec:        codec.Default,
		concurrency:  8,
	}
}

// Option configures a Device.
type Option func(*options)

// WithChunkSectors sets the chunk size in sectors for Create.
// Open always uses the value recorded in the descriptor.
func WithChunkSectors(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSectors = n
		}
	}
}

// WithCompression sets the chunk compression for Create.
// Open always uses the value recorded in the descriptor.
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithCodec sets the codec used to write the descriptor.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithConcurrency bounds the number of chunks fetched or stored in parallel
// by a single command.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithResourceController charges chunk staging buffers against rc's memory
// limit.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}
