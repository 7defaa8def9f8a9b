package bdev

import "context"

// wrapped forwards every capability to dev, substituting the neutral
// behavior for capabilities dev lacks.
type wrapped struct {
	dev Device
}

func (w wrapped) init(ctx context.Context) error {
	if in, ok := w.dev.(Initializer); ok {
		return in.Init(ctx)
	}
	return nil
}

func (w wrapped) sync(ctx context.Context) error {
	if s, ok := w.dev.(Syncer); ok {
		return s.Sync(ctx)
	}
	return nil
}

func (w wrapped) sectorCount(ctx context.Context) (uint64, error) {
	if g, ok := w.dev.(Geometer); ok {
		return g.SectorCount(ctx)
	}
	return 0, ErrNotSupported
}

func (w wrapped) sectorSize(ctx context.Context) (uint32, error) {
	if g, ok := w.dev.(Geometer); ok {
		return g.SectorSize(ctx)
	}
	return 0, ErrNotSupported
}

func (w wrapped) read(ctx context.Context, start uint64, count uint32, buf []byte) error {
	return w.dev.ReadSectors(ctx, start, count, buf)
}

func (w wrapped) write(ctx context.Context, start uint64, count uint32, buf []byte) error {
	if wr, ok := w.dev.(Writer); ok {
		return wr.WriteSectors(ctx, start, count, buf)
	}
	return ErrNotSupported
}

// Unwrap returns the wrapped device.
func (w wrapped) Unwrap() Device { return w.dev }
