package edgeport

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/hupe1980/edgeport/bdev"
)

// OpenMode is the access mode a volume is opened with.
type OpenMode uint8

const (
	// OpenReadOnly opens a volume for reading.
	OpenReadOnly OpenMode = iota
	// OpenWriteOnly opens a volume for writing.
	OpenWriteOnly
	// OpenReadWrite opens a volume for reading and writing.
	OpenReadWrite
)

func (m OpenMode) String() string {
	switch m {
	case OpenReadOnly:
		return "read-only"
	case OpenWriteOnly:
		return "write-only"
	case OpenReadWrite:
		return "read-write"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// VolumeConfig is the mount configuration of one volume.
type VolumeConfig struct {
	// SectorSize in bytes. 0 means "ask the device" on GetGeometry.
	SectorSize uint32
	// SectorCount is the size of the volume in sectors. 0 means "ask the
	// device" on GetGeometry.
	SectorCount uint64
	// SectorOffset is the first device sector of the volume.
	SectorOffset uint64
	// AtomicSectorWrite reports that the device writes whole sectors
	// atomically.
	AtomicSectorWrite bool
	// InodeCount is the number of inodes the file-system core formats.
	InodeCount uint32
	// BlockIORetries is how often a failed device command is retried
	// (see bdev.WithRetries).
	BlockIORetries uint8
	// PathPrefix is the mount point of the volume.
	PathPrefix string
}

// Validate checks the configuration for values the core cannot mount.
func (c VolumeConfig) Validate() error {
	if c.SectorSize != 0 && (c.SectorSize < 128 || bits.OnesCount32(c.SectorSize) != 1) {
		return fmt.Errorf("%w: sector size %d is not a power of two >= 128", ErrInvalidArgument, c.SectorSize)
	}
	if c.PathPrefix == "" {
		return fmt.Errorf("%w: empty path prefix", ErrInvalidArgument)
	}
	return nil
}

type entry struct {
	registered bdev.Device // set by Register
	bound      bdev.Device // set by Open, cleared by Close
	cfg        VolumeConfig
	mode       OpenMode
}

// Table is the volume configuration table: a fixed number of volume slots,
// each holding the registered device, its mount configuration and whether
// it is currently bound.
//
// Table is safe for concurrent use; ordering of Open and Close against I/O
// on the same volume remains the caller's responsibility.
type Table struct {
	mu      sync.RWMutex
	entries []entry
}

// NewTable creates a table with volumeCount slots.
func NewTable(volumeCount uint8) *Table {
	return &Table{entries: make([]entry, volumeCount)}
}

// VolumeCount returns the number of slots.
func (t *Table) VolumeCount() int { return len(t.entries) }

// Register associates dev with vol. If cfg.BlockIORetries is set, dev is
// wrapped with bdev.WithRetries. A volume can be re-registered while unbound.
func (t *Table) Register(vol uint8, dev bdev.Device, cfg VolumeConfig) error {
	if dev == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if int(vol) >= len(t.entries) {
		return fmt.Errorf("%w: volume %d out of range", ErrInvalidArgument, vol)
	}
	e := &t.entries[vol]
	if e.bound != nil {
		return fmt.Errorf("%w: volume %d is open", ErrInvalidArgument, vol)
	}
	*e = entry{registered: bdev.WithRetries(dev, int(cfg.BlockIORetries)), cfg: cfg}
	return nil
}

// Unregister removes the device of an unbound volume.
func (t *Table) Unregister(vol uint8) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if int(vol) >= len(t.entries) || t.entries[vol].registered == nil {
		return fmt.Errorf("%w: volume %d not registered", ErrInvalidArgument, vol)
	}
	if t.entries[vol].bound != nil {
		return fmt.Errorf("%w: volume %d is open", ErrInvalidArgument, vol)
	}
	t.entries[vol] = entry{}
	return nil
}

// Config returns the mount configuration of vol, including geometry filled
// in by GetGeometry.
func (t *Table) Config(vol uint8) (VolumeConfig, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(vol) >= len(t.entries) || t.entries[vol].registered == nil {
		return VolumeConfig{}, false
	}
	return t.entries[vol].cfg, true
}

// Bound reports whether vol is open.
func (t *Table) Bound(vol uint8) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int(vol) < len(t.entries) && t.entries[vol].bound != nil
}

// registered returns the device registered for vol.
func (t *Table) registered(vol uint8) (bdev.Device, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(vol) >= len(t.entries) || t.entries[vol].registered == nil {
		return nil, false
	}
	return t.entries[vol].registered, true
}

// bound returns a snapshot of a bound entry.
func (t *Table) bound(vol uint8) (entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(vol) >= len(t.entries) || t.entries[vol].bound == nil {
		return entry{}, false
	}
	return t.entries[vol], true
}

func (t *Table) bind(vol uint8, mode OpenMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := &t.entries[vol]
	e.bound = e.registered
	e.mode = mode
}

func (t *Table) unbind(vol uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[vol].bound = nil
}

// fillGeometry stores device-reported geometry into auto fields.
func (t *Table) fillGeometry(vol uint8, geo bdev.Geometry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cfg := &t.entries[vol].cfg
	if cfg.SectorSize == 0 {
		cfg.SectorSize = geo.SectorSize
	}
	if cfg.SectorCount == 0 {
		cfg.SectorCount = geo.SectorCount
	}
}

// rangeValid reports whether [start, start+count) lies inside the volume
// extent [SectorOffset, SectorOffset+SectorCount) without wrapping.
func (c VolumeConfig) rangeValid(start uint64, count uint32) bool {
	if start < c.SectorOffset {
		return false
	}
	rel := start - c.SectorOffset
	return rel < c.SectorCount && uint64(count) <= c.SectorCount-rel
}

// bufferValid reports whether buf can hold count sectors. With an unknown
// sector size only presence is checked.
func (c VolumeConfig) bufferValid(buf []byte, count uint32) bool {
	if buf == nil {
		return false
	}
	if c.SectorSize == 0 {
		return true
	}
	return uint64(len(buf)) >= uint64(count)*uint64(c.SectorSize)
}
