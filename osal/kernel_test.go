package osal

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Host = (*Kernel)(nil)

func TestKernel_ObjectTable(t *testing.T) {
	k := NewKernel(2)

	a, err := k.MutexCreate("a")
	require.NoError(t, err)
	b, err := k.MutexCreate("b")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, InvalidHandle, a)

	_, err = k.MutexCreate("c")
	assert.ErrorIs(t, err, ErrNoResources)

	name, err := k.Name(b)
	require.NoError(t, err)
	assert.Equal(t, "b", name)

	require.NoError(t, k.MutexDestroy(a))
	assert.ErrorIs(t, k.MutexDestroy(a), ErrInvalidHandle)
	assert.ErrorIs(t, k.MutexLock(a, Forever), ErrInvalidHandle)
	assert.ErrorIs(t, k.MutexUnlock(InvalidHandle), ErrInvalidHandle)

	c, err := k.MutexCreate("c")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 2, k.Objects())
}

func TestKernel_LockTimeout(t *testing.T) {
	k := NewKernel(0)
	h, err := k.MutexCreate("edgefs_lock")
	require.NoError(t, err)

	require.NoError(t, k.MutexLock(h, Forever))
	assert.ErrorIs(t, k.MutexLock(h, 0), ErrTimeout)
	assert.ErrorIs(t, k.MutexLock(h, 10*time.Millisecond), ErrTimeout)

	require.NoError(t, k.MutexUnlock(h))
	assert.ErrorIs(t, k.MutexUnlock(h), ErrNotLocked)
	require.NoError(t, k.MutexLock(h, 0))
	require.NoError(t, k.MutexUnlock(h))
}

func TestKernel_MutualExclusion(t *testing.T) {
	k := NewKernel(0)
	h, err := k.MutexCreate("edgefs_lock")
	require.NoError(t, err)

	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				if !assert.NoError(t, k.MutexLock(h, Forever)) {
					return
				}
				n := inside.Add(1)
				if n > peak.Load() {
					peak.Store(n)
				}
				inside.Add(-1)
				assert.NoError(t, k.MutexUnlock(h))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load())
}
