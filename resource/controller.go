// Package resource bounds the host resources consumed by sector devices:
// staging memory, in-flight device commands and I/O throughput.
package resource

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrExceedsLimit is returned when a single reservation is larger than the
// configured limit and could never be granted.
var ErrExceedsLimit = errors.New("resource: request exceeds limit")

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	// MemoryLimitBytes is the hard limit for staging buffers (e.g. chunk
	// read-modify-write buffers of object-store devices).
	MemoryLimitBytes int64

	// MaxInflight is the maximum number of concurrent device commands.
	MaxInflight int64

	// IOLimitBytesPerSec is the maximum sector throughput.
	IOLimitBytesPerSec int64
}

// Controller manages resource limits. A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	inflight *semaphore.Weighted // nil if unlimited

	ioLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.MaxInflight > 0 {
		c.inflight = semaphore.NewWeighted(cfg.MaxInflight)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// AcquireMemory reserves bytes of staging memory, blocking until available.
// It fails with ErrExceedsLimit when bytes is larger than MemoryLimitBytes.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil {
		if bytes > c.cfg.MemoryLimitBytes {
			return fmt.Errorf("%w: %d bytes of memory, limit %d", ErrExceedsLimit, bytes, c.cfg.MemoryLimitBytes)
		}
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}
	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory reserves bytes of staging memory without blocking.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved staging memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryLimit returns the staging memory limit in bytes, or 0 if unlimited.
func (c *Controller) MemoryLimit() int64 {
	if c == nil || c.memSem == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// MemoryUsage returns the current staging memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireInflight reserves a device command slot, blocking if all are busy.
func (c *Controller) AcquireInflight(ctx context.Context) error {
	if c == nil || c.inflight == nil {
		return nil
	}
	return c.inflight.Acquire(ctx, 1)
}

// ReleaseInflight releases a device command slot.
func (c *Controller) ReleaseInflight() {
	if c == nil || c.inflight == nil {
		return
	}
	c.inflight.Release(1)
}

// AcquireIO waits until the throughput limit admits bytes.
// Requests larger than the burst are admitted in burst-sized steps.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil || bytes <= 0 {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// TryAcquireIO attempts to admit bytes without blocking.
func (c *Controller) TryAcquireIO(bytes int) bool {
	if c == nil || c.ioLimiter == nil {
		return true
	}
	return c.ioLimiter.AllowN(time.Now(), bytes)
}
