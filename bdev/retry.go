package bdev

import (
	"context"
	"errors"
)

// RetryDevice retries failed device commands a fixed number of times.
// It implements the block I/O retry count of a volume's mount configuration.
type RetryDevice struct {
	wrapped
	retries int
}

// WithRetries wraps dev so that each failed command is retried up to retries
// times. Range, capability and context errors are not retried.
// With retries <= 0 the device is returned unchanged.
func WithRetries(dev Device, retries int) Device {
	if retries <= 0 {
		return dev
	}
	return &RetryDevice{wrapped: wrapped{dev: dev}, retries: retries}
}

func retryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	switch {
	case errors.Is(err, ErrNotSupported),
		errors.Is(err, ErrOutOfRange),
		errors.Is(err, ErrShortBuffer),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func (d *RetryDevice) do(ctx context.Context, op func() error) error {
	err := op()
	for i := 0; i < d.retries && retryable(ctx, err); i++ {
		err = op()
	}
	return err
}

func (d *RetryDevice) Init(ctx context.Context) error {
	return d.do(ctx, func() error { return d.init(ctx) })
}

func (d *RetryDevice) Sync(ctx context.Context) error {
	return d.do(ctx, func() error { return d.sync(ctx) })
}

func (d *RetryDevice) SectorCount(ctx context.Context) (n uint64, err error) {
	err = d.do(ctx, func() error {
		n, err = d.sectorCount(ctx)
		return err
	})
	return n, err
}

func (d *RetryDevice) SectorSize(ctx context.Context) (n uint32, err error) {
	err = d.do(ctx, func() error {
		n, err = d.sectorSize(ctx)
		return err
	})
	return n, err
}

func (d *RetryDevice) ReadSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	return d.do(ctx, func() error { return d.read(ctx, start, count, buf) })
}

func (d *RetryDevice) WriteSectors(ctx context.Context, start uint64, count uint32, buf []byte) error {
	return d.do(ctx, func() error { return d.write(ctx, start, count, buf) })
}
