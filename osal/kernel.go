package osal

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultMaxObjects is the object table capacity of NewKernel(0).
const DefaultMaxObjects = 64

type kmutex struct {
	name   string
	sem    *semaphore.Weighted
	mu     sync.Mutex
	locked bool
}

// Kernel is an in-process Host with a fixed-capacity object table.
// Waiters are served in FIFO order.
type Kernel struct {
	mu      sync.Mutex
	max     int
	next    Handle
	objects map[Handle]*kmutex
}

// NewKernel returns a kernel that holds at most maxObjects live mutexes.
// maxObjects <= 0 selects DefaultMaxObjects.
func NewKernel(maxObjects int) *Kernel {
	if maxObjects <= 0 {
		maxObjects = DefaultMaxObjects
	}
	return &Kernel{
		max:     maxObjects,
		objects: make(map[Handle]*kmutex, maxObjects),
	}
}

// MutexCreate implements Host.
func (k *Kernel) MutexCreate(name string) (Handle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(k.objects) >= k.max {
		return InvalidHandle, ErrNoResources
	}

	// Handles are never reused, so a destroyed handle stays invalid.
	k.next++
	if k.next == InvalidHandle {
		k.next++
	}
	h := k.next
	k.objects[h] = &kmutex{name: name, sem: semaphore.NewWeighted(1)}
	return h, nil
}

// MutexDestroy implements Host.
func (k *Kernel) MutexDestroy(h Handle) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if _, ok := k.objects[h]; !ok {
		return ErrInvalidHandle
	}
	delete(k.objects, h)
	return nil
}

func (k *Kernel) lookup(h Handle) (*kmutex, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.objects[h]
	if !ok {
		return nil, ErrInvalidHandle
	}
	return m, nil
}

// MutexLock implements Host.
func (k *Kernel) MutexLock(h Handle, timeout time.Duration) error {
	m, err := k.lookup(h)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if timeout != Forever {
		if timeout <= 0 {
			if !m.sem.TryAcquire(1) {
				return ErrTimeout
			}
			m.setLocked(true)
			return nil
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return err
	}
	m.setLocked(true)
	return nil
}

// MutexUnlock implements Host.
func (k *Kernel) MutexUnlock(h Handle) error {
	m, err := k.lookup(h)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.locked {
		return ErrNotLocked
	}
	m.locked = false
	m.sem.Release(1)
	return nil
}

func (m *kmutex) setLocked(v bool) {
	m.mu.Lock()
	m.locked = v
	m.mu.Unlock()
}

// Objects returns the number of live objects.
func (k *Kernel) Objects() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.objects)
}

// Name returns the name a mutex was created with.
func (k *Kernel) Name(h Handle) (string, error) {
	m, err := k.lookup(h)
	if err != nil {
		return "", err
	}
	return m.name, nil
}
