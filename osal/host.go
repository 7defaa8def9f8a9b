package osal

import (
	"errors"
	"time"
)

// Handle identifies a kernel object. The zero value is InvalidHandle.
type Handle uint32

// InvalidHandle never refers to a live object.
const InvalidHandle Handle = 0

// Forever makes MutexLock wait without a timeout.
const Forever time.Duration = -1

var (
	// ErrNoResources is returned when the host cannot allocate another object.
	ErrNoResources = errors.New("osal: no resources")
	// ErrTimeout is returned when MutexLock gives up waiting.
	ErrTimeout = errors.New("osal: timeout")
	// ErrInvalidHandle is returned for unknown or destroyed handles.
	ErrInvalidHandle = errors.New("osal: invalid handle")
	// ErrNotLocked is returned when unlocking a mutex that is not held.
	ErrNotLocked = errors.New("osal: mutex not locked")
)

// Host is the synchronization primitive provided by the host.
type Host interface {
	// MutexCreate creates a named mutex in the released state.
	MutexCreate(name string) (Handle, error)
	// MutexDestroy destroys a mutex. The handle becomes invalid.
	MutexDestroy(h Handle) error
	// MutexLock acquires the mutex, waiting at most timeout (or Forever).
	MutexLock(h Handle, timeout time.Duration) error
	// MutexUnlock releases the mutex.
	MutexUnlock(h Handle) error
}
