package edgeport

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/edgeport/osal"
)

// Locker serializes access to file-system metadata across tasks.
type Locker interface {
	// Init creates the lock in the released state.
	Init() error
	// Uninit destroys the lock.
	Uninit() error
	// Acquire blocks until the lock is held.
	Acquire()
	// Release releases a held lock.
	Release()
}

var (
	_ Locker = (*MetadataLock)(nil)
	_ Locker = NoopLock{}
)

// MetadataLock is a Locker backed by a host mutex.
type MetadataLock struct {
	host    osal.Host
	name    string
	pause   time.Duration
	logger  *Logger
	metrics MetricsCollector

	mu     sync.Mutex // guards handle across Init/Uninit
	handle osal.Handle
}

// NewMetadataLock returns an uninitialized lock that will create its mutex
// on host.
func NewMetadataLock(host osal.Host, optFns ...Option) *MetadataLock {
	o := applyOptions(optFns)
	return &MetadataLock{
		host:    host,
		name:    o.lockName,
		pause:   o.lockRetryPause,
		logger:  o.logger,
		metrics: o.metricsCollector,
	}
}

// NewLocker returns NoopLock for single-task configurations and a
// MetadataLock on host otherwise.
func NewLocker(tasks int, host osal.Host, optFns ...Option) Locker {
	if tasks <= 1 {
		return NoopLock{}
	}
	return NewMetadataLock(host, optFns...)
}

// Init implements Locker. A host that cannot create the mutex yields
// ErrResourceExhausted.
func (l *MetadataLock) Init() error {
	h, err := l.host.MutexCreate(l.name)
	if err != nil {
		err = &VolumeError{Op: "lock init", Err: ErrResourceExhausted, cause: err}
		l.logger.LogLock(context.Background(), "init", 0, err)
		return err
	}

	l.mu.Lock()
	l.handle = h
	l.mu.Unlock()

	l.logger.LogLock(context.Background(), "init", 0, nil)
	return nil
}

// Uninit implements Locker. It always succeeds.
func (l *MetadataLock) Uninit() error {
	l.mu.Lock()
	h := l.handle
	l.handle = osal.InvalidHandle
	l.mu.Unlock()

	if err := l.host.MutexDestroy(h); err != nil {
		l.logger.DebugContext(context.Background(), "metadata lock destroy", "error", err)
	}
	l.logger.LogLock(context.Background(), "uninit", 0, nil)
	return nil
}

// Acquire implements Locker. Failed host lock calls are retried after a fixed
// pause until one succeeds, so Acquire on an uninitialized lock never returns.
func (l *MetadataLock) Acquire() {
	h := l.current()
	began := time.Now()

	attempts := 1
	for {
		err := l.host.MutexLock(h, osal.Forever)
		if err == nil {
			break
		}
		l.logger.DebugContext(context.Background(), "metadata lock attempt failed",
			"attempt", attempts,
			"error", err,
		)
		attempts++
		time.Sleep(l.pause)
	}

	l.metrics.RecordAcquire(attempts, time.Since(began))
	l.logger.LogLock(context.Background(), "acquired", attempts, nil)
}

// Release implements Locker.
func (l *MetadataLock) Release() {
	if err := l.host.MutexUnlock(l.current()); err != nil {
		l.logger.LogLock(context.Background(), "release", 0, err)
	}
}

// Handle returns the host handle, or osal.InvalidHandle when uninitialized.
func (l *MetadataLock) Handle() osal.Handle { return l.current() }

func (l *MetadataLock) current() osal.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle
}

// NoopLock is the Locker of single-task configurations.
type NoopLock struct{}

func (NoopLock) Init() error   { return nil }
func (NoopLock) Uninit() error { return nil }
func (NoopLock) Acquire()      {}
func (NoopLock) Release()      {}
