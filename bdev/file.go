package bdev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/edgeport/internal/fs"
)

// FileOptions configures a FileDevice.
type FileOptions struct {
	// FileSystem used to open the image. Defaults to the local filesystem.
	FileSystem fs.FileSystem
	// ReadOnly opens the image without write access.
	ReadOnly bool
	// Create creates the image if it does not exist.
	Create bool
	// SectorCount, when non-zero, resizes the image to exactly this many sectors.
	SectorCount uint64
}

// FileDevice is a block device backed by an image file.
type FileDevice struct {
	path string
	opts FileOptions

	mu  sync.RWMutex
	f   fs.File
	geo Geometry
}

// OpenFile opens an image file as a block device with the given sector size.
// The sector count is derived from the file size unless FileOptions.SectorCount is set.
func OpenFile(path string, sectorSize uint32, optFns ...func(*FileOptions)) (*FileDevice, error) {
	if sectorSize == 0 {
		return nil, errors.New("bdev: sector size must be positive")
	}

	opts := FileOptions{FileSystem: fs.Default}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FileSystem == nil {
		opts.FileSystem = fs.Default
	}

	flag := os.O_RDWR
	if opts.ReadOnly {
		flag = os.O_RDONLY
	}
	if opts.Create && !opts.ReadOnly {
		flag |= os.O_CREATE
	}

	f, err := opts.FileSystem.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("bdev: open image %s: %w", path, err)
	}

	d := &FileDevice{path: path, opts: opts, f: f, geo: Geometry{SectorSize: sectorSize}}

	if opts.SectorCount > 0 {
		if opts.ReadOnly {
			_ = f.Close()
			return nil, errors.New("bdev: cannot resize a read-only image")
		}
		if err := f.Truncate(int64(opts.SectorCount) * int64(sectorSize)); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("bdev: resize image %s: %w", path, err)
		}
	}

	if err := d.refresh(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return d, nil
}

func (d *FileDevice) refresh() error {
	info, err := d.f.Stat()
	if err != nil {
		return fmt.Errorf("bdev: stat image %s: %w", d.path, err)
	}
	d.geo.SectorCount = uint64(info.Size()) / uint64(d.geo.SectorSize)
	return nil
}

// Path returns the image path.
func (d *FileDevice) Path() string { return d.path }

// Init implements Initializer. It re-reads the image size, so an image grown
// by the host between mounts is picked up.
func (d *FileDevice) Init(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refresh()
}

// Sync implements Syncer.
func (d *FileDevice) Sync(context.Context) error {
	if d.opts.ReadOnly {
		return nil
	}
	return d.f.Sync()
}

// SectorCount implements Geometer.
func (d *FileDevice) SectorCount(context.Context) (uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.geo.SectorCount, nil
}

// SectorSize implements Geometer.
func (d *FileDevice) SectorSize(context.Context) (uint32, error) {
	return d.geo.SectorSize, nil
}

// ReadSectors implements Device.
func (d *FileDevice) ReadSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	off, n, err := ByteSpan(d.geo, start, count, len(buf))
	if err != nil {
		return err
	}
	if _, err := d.f.ReadAt(buf[:n], off); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("bdev: read %s: %w", d.path, err)
	}
	return nil
}

// WriteSectors implements Writer.
func (d *FileDevice) WriteSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	if d.opts.ReadOnly {
		return ErrNotSupported
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	off, n, err := ByteSpan(d.geo, start, count, len(buf))
	if err != nil {
		return err
	}
	if _, err := d.f.WriteAt(buf[:n], off); err != nil {
		return fmt.Errorf("bdev: write %s: %w", d.path, err)
	}
	return nil
}

// Close closes the image file. The adapter never calls it; the code that
// created the device owns its lifetime.
func (d *FileDevice) Close() error {
	return d.f.Close()
}
