package edgeport

import (
	"context"
	"errors"
	"math/bits"
	"time"

	"github.com/hupe1980/edgeport/bdev"
)

// BlockReader is the block device surface a read-only file-system core needs.
type BlockReader interface {
	Open(ctx context.Context, vol uint8, mode OpenMode) error
	Close(ctx context.Context, vol uint8) error
	GetGeometry(ctx context.Context, vol uint8, info *bdev.Geometry) error
	Read(ctx context.Context, vol uint8, start uint64, count uint32, buf []byte) error
}

// BlockReadWriter adds the write path to BlockReader.
type BlockReadWriter interface {
	BlockReader
	Write(ctx context.Context, vol uint8, start uint64, count uint32, buf []byte) error
	Flush(ctx context.Context, vol uint8) error
}

var (
	_ BlockReader     = (*ReadOnlyBlockDevice)(nil)
	_ BlockReadWriter = (*BlockDevice)(nil)
)

// ReadOnlyBlockDevice dispatches volume-numbered block requests to the
// devices registered in a Table. It has no write path.
type ReadOnlyBlockDevice struct {
	table   *Table
	logger  *Logger
	metrics MetricsCollector
}

// NewReadOnly returns a read-only block device adapter over table.
func NewReadOnly(table *Table, optFns ...Option) *ReadOnlyBlockDevice {
	o := applyOptions(optFns)
	return &ReadOnlyBlockDevice{
		table:   table,
		logger:  o.logger,
		metrics: o.metricsCollector,
	}
}

// Open sends the init command to the device registered for vol and binds it.
// If the device fails to initialize, the volume stays unbound.
func (d *ReadOnlyBlockDevice) Open(ctx context.Context, vol uint8, mode OpenMode) (err error) {
	defer func() {
		d.logger.LogOpen(ctx, vol, mode, err)
		d.metrics.RecordOpen(vol, err)
	}()

	dev, ok := d.table.registered(vol)
	if !ok {
		return volumeError("open", vol, ErrInvalidArgument, nil)
	}
	if in, ok := dev.(bdev.Initializer); ok {
		if ierr := in.Init(ctx); ierr != nil {
			return volumeError("open", vol, ErrIO, ierr)
		}
	}
	d.table.bind(vol, mode)
	return nil
}

// Close unbinds vol. The device is not notified; its registration is kept so
// the volume can be opened again.
func (d *ReadOnlyBlockDevice) Close(ctx context.Context, vol uint8) (err error) {
	defer func() { d.logger.LogClose(ctx, vol, err) }()

	if _, ok := d.table.registered(vol); !ok {
		return volumeError("close", vol, ErrInvalidArgument, nil)
	}
	d.table.unbind(vol)
	return nil
}

// GetGeometry queries the sector count and then the sector size of the
// device bound to vol. Auto fields of the volume configuration are filled
// from the result.
func (d *ReadOnlyBlockDevice) GetGeometry(ctx context.Context, vol uint8, info *bdev.Geometry) error {
	e, ok := d.table.bound(vol)
	if !ok || info == nil {
		return volumeError("geometry", vol, ErrInvalidArgument, nil)
	}
	g, ok := e.bound.(bdev.Geometer)
	if !ok {
		return volumeError("geometry", vol, ErrUnsupported, nil)
	}

	count, err := g.SectorCount(ctx)
	if err != nil {
		return geometryError(vol, err)
	}
	size, err := g.SectorSize(ctx)
	if err != nil {
		return geometryError(vol, err)
	}
	if count == 0 || size == 0 || bits.OnesCount32(size) != 1 {
		return volumeError("geometry", vol, ErrInvalidArgument, nil)
	}

	info.SectorCount = count
	info.SectorSize = size
	d.table.fillGeometry(vol, *info)
	d.logger.DebugContext(ctx, "geometry reported", "volume", vol, "geometry", info.String())
	return nil
}

func geometryError(vol uint8, err error) error {
	if errors.Is(err, bdev.ErrNotSupported) {
		return volumeError("geometry", vol, ErrUnsupported, err)
	}
	return volumeError("geometry", vol, ErrIO, err)
}

// Read reads count sectors starting at the absolute device sector start.
func (d *ReadOnlyBlockDevice) Read(ctx context.Context, vol uint8, start uint64, count uint32, buf []byte) (err error) {
	began := time.Now()
	defer func() {
		d.logger.LogIO(ctx, "read", vol, start, count, err)
		d.metrics.RecordRead(vol, count, time.Since(began), err)
	}()

	e, err := d.checkIO("read", vol, start, count, buf)
	if err != nil {
		return err
	}
	if rerr := e.bound.ReadSectors(ctx, start, count, buf); rerr != nil {
		return volumeError("read", vol, ErrIO, rerr)
	}
	return nil
}

// checkIO validates an I/O request and returns the bound entry.
func (d *ReadOnlyBlockDevice) checkIO(op string, vol uint8, start uint64, count uint32, buf []byte) (entry, error) {
	e, ok := d.table.bound(vol)
	if !ok || !e.cfg.bufferValid(buf, count) || !e.cfg.rangeValid(start, count) {
		return entry{}, volumeError(op, vol, ErrInvalidArgument, nil)
	}
	return e, nil
}

// BlockDevice is a ReadOnlyBlockDevice with a write path.
type BlockDevice struct {
	*ReadOnlyBlockDevice
}

// New returns a read-write block device adapter over table.
func New(table *Table, optFns ...Option) *BlockDevice {
	return &BlockDevice{ReadOnlyBlockDevice: NewReadOnly(table, optFns...)}
}

// Write writes count sectors starting at the absolute device sector start.
// Devices without a write command fail with ErrIO.
func (d *BlockDevice) Write(ctx context.Context, vol uint8, start uint64, count uint32, buf []byte) (err error) {
	began := time.Now()
	defer func() {
		d.logger.LogIO(ctx, "write", vol, start, count, err)
		d.metrics.RecordWrite(vol, count, time.Since(began), err)
	}()

	e, err := d.checkIO("write", vol, start, count, buf)
	if err != nil {
		return err
	}
	w, ok := e.bound.(bdev.Writer)
	if !ok {
		return volumeError("write", vol, ErrIO, bdev.ErrNotSupported)
	}
	if werr := w.WriteSectors(ctx, start, count, buf); werr != nil {
		return volumeError("write", vol, ErrIO, werr)
	}
	return nil
}

// Flush asks the device bound to vol to commit its cache. Devices without a
// cache succeed immediately.
func (d *BlockDevice) Flush(ctx context.Context, vol uint8) (err error) {
	began := time.Now()
	defer func() {
		d.logger.LogFlush(ctx, vol, err)
		d.metrics.RecordFlush(vol, time.Since(began), err)
	}()

	e, ok := d.table.bound(vol)
	if !ok {
		return volumeError("flush", vol, ErrInvalidArgument, nil)
	}
	s, ok := e.bound.(bdev.Syncer)
	if !ok {
		return nil
	}
	if serr := s.Sync(ctx); serr != nil {
		return volumeError("flush", vol, ErrIO, serr)
	}
	return nil
}
