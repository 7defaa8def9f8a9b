package blobdev

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/edgeport/bdev"
	"github.com/hupe1980/edgeport/blobstore"
	"github.com/hupe1980/edgeport/codec"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrExists is returned by Create when a device already lives at the prefix.
	ErrExists = errors.New("blobdev: device already exists")
	// ErrNoDevice is returned by Open when no descriptor is found.
	ErrNoDevice = errors.New("blobdev: no device at prefix")
	// ErrNotInitialized is returned for I/O before Init.
	ErrNotInitialized = errors.New("blobdev: device not initialized")
	// ErrChunkSize is returned when one chunk does not fit the chunk header
	// or the staging memory limit.
	ErrChunkSize = errors.New("blobdev: unsupported chunk size")
)

const (
	descriptorName = "device.json"
	chunkPrefix    = "chunk-"
)

type descriptor struct {
	Codec        string `json:"codec"`
	SectorSize   uint32 `json:"sector_size"`
	SectorCount  uint64 `json:"sector_count"`
	ChunkSectors uint32 `json:"chunk_sectors"`
	Compression  string `json:"compression"`
}

// Device is a block device whose sectors live in a blobstore.Store.
// It implements bdev.Device, bdev.Writer, bdev.Initializer, bdev.Syncer and
// bdev.Geometer and is safe for concurrent use.
type Device struct {
	store       blobstore.Store
	prefix      string
	geo         bdev.Geometry
	chunk       uint32 // sectors per chunk
	compression Compression
	opts        options

	writeMu sync.Mutex // serializes read-modify-write of chunks

	mu        sync.RWMutex
	allocated *roaring64.Bitmap // nil until Init
	failed    error             // first write failure since the last Sync
}

// Create writes a new descriptor at prefix and returns the device.
func Create(ctx context.Context, store blobstore.Store, prefix string, geo bdev.Geometry, opts ...Option) (*Device, error) {
	if geo.SectorSize == 0 || geo.SectorCount == 0 {
		return nil, fmt.Errorf("blobdev: invalid geometry %s", geo)
	}
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if err := checkChunkSize(geo.SectorSize, o.chunkSectors, o); err != nil {
		return nil, err
	}

	name := blobstore.Join(prefix, descriptorName)
	if _, err := store.Get(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, prefix)
	} else if !errors.Is(err, blobstore.ErrNotFound) {
		return nil, err
	}

	desc := descriptor{
		Codec:        o.codec.Name(),
		SectorSize:   geo.SectorSize,
		SectorCount:  geo.SectorCount,
		ChunkSectors: o.chunkSectors,
		Compression:  o.compression.String(),
	}
	data, err := o.codec.Marshal(desc)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, name, data); err != nil {
		return nil, fmt.Errorf("blobdev: write descriptor: %w", err)
	}

	return newDevice(store, prefix, desc, o)
}

// Open loads the descriptor at prefix.
func Open(ctx context.Context, store blobstore.Store, prefix string, opts ...Option) (*Device, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	data, err := store.Get(ctx, blobstore.Join(prefix, descriptorName))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoDevice, prefix)
		}
		return nil, err
	}

	var desc descriptor
	if err := o.codec.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("blobdev: decode descriptor: %w", err)
	}
	if c, ok := codec.ByName(desc.Codec); ok && c.Name() != o.codec.Name() {
		desc = descriptor{}
		if err := c.Unmarshal(data, &desc); err != nil {
			return nil, fmt.Errorf("blobdev: decode descriptor: %w", err)
		}
	}

	return newDevice(store, prefix, desc, o)
}

func newDevice(store blobstore.Store, prefix string, desc descriptor, o options) (*Device, error) {
	comp, err := ParseCompression(desc.Compression)
	if err != nil {
		return nil, err
	}
	if desc.SectorSize == 0 || desc.SectorCount == 0 || desc.ChunkSectors == 0 {
		return nil, fmt.Errorf("blobdev: invalid descriptor at %q", prefix)
	}
	if err := checkChunkSize(desc.SectorSize, desc.ChunkSectors, o); err != nil {
		return nil, err
	}
	return &Device{
		store:       store,
		prefix:      prefix,
		geo:         bdev.Geometry{SectorSize: desc.SectorSize, SectorCount: desc.SectorCount},
		chunk:       desc.ChunkSectors,
		compression: comp,
		opts:        o,
	}, nil
}

// checkChunkSize rejects chunks whose byte size overflows the uint32 chunk
// header or exceeds the memory limit, which no staging buffer could get.
func checkChunkSize(sectorSize, chunkSectors uint32, o options) error {
	n := uint64(sectorSize) * uint64(chunkSectors)
	if n > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes per chunk", ErrChunkSize, n)
	}
	if limit := o.rc.MemoryLimit(); limit > 0 && n > uint64(limit) {
		return fmt.Errorf("%w: %d bytes per chunk, memory limit %d", ErrChunkSize, n, limit)
	}
	return nil
}

func (d *Device) chunkName(idx uint64) string {
	return blobstore.Join(d.prefix, fmt.Sprintf("%s%016x", chunkPrefix, idx))
}

// chunkLen returns the number of sectors in chunk idx; the last chunk may be short.
func (d *Device) chunkLen(idx uint64) uint64 {
	first := idx * uint64(d.chunk)
	return min(uint64(d.chunk), d.geo.SectorCount-first)
}

// Geometry returns the device geometry.
func (d *Device) Geometry() bdev.Geometry { return d.geo }

// Compression returns the chunk compression recorded in the descriptor.
func (d *Device) Compression() Compression { return d.compression }

// Init implements bdev.Initializer. It lists the stored chunks and rebuilds
// the allocation map.
func (d *Device) Init(ctx context.Context) error {
	listPrefix := blobstore.Join(d.prefix, chunkPrefix)
	names, err := d.store.List(ctx, listPrefix)
	if err != nil {
		return fmt.Errorf("blobdev: list chunks: %w", err)
	}

	chunks := (d.geo.SectorCount + uint64(d.chunk) - 1) / uint64(d.chunk)
	allocated := roaring64.New()
	for _, name := range names {
		idx, err := strconv.ParseUint(strings.TrimPrefix(name, listPrefix), 16, 64)
		if err != nil || idx >= chunks {
			continue
		}
		allocated.Add(idx)
	}

	d.mu.Lock()
	d.allocated = allocated
	d.mu.Unlock()
	return nil
}

// Allocated returns the number of chunks stored in the blob store.
func (d *Device) Allocated() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.allocated == nil {
		return 0
	}
	return d.allocated.GetCardinality()
}

func (d *Device) isAllocated(idx uint64) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.allocated == nil {
		return false, ErrNotInitialized
	}
	return d.allocated.Contains(idx), nil
}

// Sync implements bdev.Syncer. Writes are already durable in the store when
// they return; Sync reports and clears the first write failure seen since
// the previous Sync.
func (d *Device) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.failed
	d.failed = nil
	return err
}

// SectorCount implements bdev.Geometer.
func (d *Device) SectorCount(context.Context) (uint64, error) { return d.geo.SectorCount, nil }

// SectorSize implements bdev.Geometer.
func (d *Device) SectorSize(context.Context) (uint32, error) { return d.geo.SectorSize, nil }

// span is the part of one chunk touched by a command.
type span struct {
	chunk  uint64 // chunk index
	first  uint64 // first touched sector, relative to the chunk
	count  uint64 // touched sectors
	bufOff int    // byte offset into the caller's buffer
}

func (d *Device) spans(start uint64, count uint32) []span {
	var out []span
	bufOff := 0
	for left := uint64(count); left > 0; {
		idx := start / uint64(d.chunk)
		first := start % uint64(d.chunk)
		n := min(left, d.chunkLen(idx)-first)
		out = append(out, span{chunk: idx, first: first, count: n, bufOff: bufOff})

		bufOff += int(n) * int(d.geo.SectorSize)
		start += n
		left -= n
	}
	return out
}

// loadChunk returns the decoded contents of chunk idx, or zeros if it was
// never written.
func (d *Device) loadChunk(ctx context.Context, idx uint64, dst []byte) error {
	ok, err := d.isAllocated(idx)
	if err != nil {
		return err
	}
	if !ok {
		clear(dst)
		return nil
	}

	blob, err := d.store.Get(ctx, d.chunkName(idx))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			// Deleted behind our back; the sectors were never durable.
			clear(dst)
			return nil
		}
		return fmt.Errorf("blobdev: get chunk %d: %w", idx, err)
	}
	return decodeChunk(dst, blob, d.compression)
}

func (d *Device) staging(ctx context.Context, n int) ([]byte, func(), error) {
	if err := d.opts.rc.AcquireMemory(ctx, int64(n)); err != nil {
		return nil, nil, err
	}
	return make([]byte, n), func() { d.opts.rc.ReleaseMemory(int64(n)) }, nil
}

// ReadSectors implements bdev.Device. Touched chunks are fetched in parallel.
func (d *Device) ReadSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	if _, _, err := bdev.ByteSpan(d.geo, start, count, len(buf)); err != nil {
		return err
	}
	if _, err := d.isAllocated(0); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.concurrency)

	size := int(d.geo.SectorSize)
	for _, s := range d.spans(start, count) {
		g.Go(func() error {
			out := buf[s.bufOff : s.bufOff+int(s.count)*size]
			if s.first == 0 && s.count == d.chunkLen(s.chunk) {
				return d.loadChunk(gctx, s.chunk, out)
			}

			tmp, release, err := d.staging(gctx, int(d.chunkLen(s.chunk))*size)
			if err != nil {
				return err
			}
			defer release()

			if err := d.loadChunk(gctx, s.chunk, tmp); err != nil {
				return err
			}
			copy(out, tmp[int(s.first)*size:])
			return nil
		})
	}
	return g.Wait()
}

// WriteSectors implements bdev.Writer. Partially covered chunks are read,
// modified and put back; fully covered chunks are put directly.
func (d *Device) WriteSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	if _, _, err := bdev.ByteSpan(d.geo, start, count, len(buf)); err != nil {
		return err
	}
	if _, err := d.isAllocated(0); err != nil {
		return err
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.concurrency)

	size := int(d.geo.SectorSize)
	for _, s := range d.spans(start, count) {
		g.Go(func() error {
			return d.storeSpan(gctx, s, buf[s.bufOff:s.bufOff+int(s.count)*size])
		})
	}

	err := g.Wait()
	if err != nil {
		d.mu.Lock()
		if d.failed == nil {
			d.failed = err
		}
		d.mu.Unlock()
	}
	return err
}

func (d *Device) storeSpan(ctx context.Context, s span, data []byte) error {
	size := int(d.geo.SectorSize)
	chunk := data
	if s.first != 0 || s.count != d.chunkLen(s.chunk) {
		tmp, release, err := d.staging(ctx, int(d.chunkLen(s.chunk))*size)
		if err != nil {
			return err
		}
		defer release()

		if err := d.loadChunk(ctx, s.chunk, tmp); err != nil {
			return err
		}
		copy(tmp[int(s.first)*size:], data)
		chunk = tmp
	}

	blob, err := encodeChunk(chunk, d.compression)
	if err != nil {
		return err
	}
	if err := d.store.Put(ctx, d.chunkName(s.chunk), blob); err != nil {
		return fmt.Errorf("blobdev: put chunk %d: %w", s.chunk, err)
	}

	d.mu.Lock()
	d.allocated.Add(s.chunk)
	d.mu.Unlock()
	return nil
}
