package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/edgeport/internal/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "vol/chunk-0000000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "vol/chunk-0000000000000001", []byte("one")))
	require.NoError(t, store.Put(ctx, "vol/chunk-0000000000000000", []byte("zero")))
	require.NoError(t, store.Put(ctx, "vol/device.json", []byte("{}")))
	require.NoError(t, store.Put(ctx, "other/chunk-0000000000000000", []byte("x")))

	data, err := store.Get(ctx, "vol/chunk-0000000000000000")
	require.NoError(t, err)
	assert.Equal(t, []byte("zero"), data)

	// Put replaces.
	require.NoError(t, store.Put(ctx, "vol/chunk-0000000000000000", []byte("ZERO")))
	data, err = store.Get(ctx, "vol/chunk-0000000000000000")
	require.NoError(t, err)
	assert.Equal(t, []byte("ZERO"), data)

	names, err := store.List(ctx, "vol/chunk-")
	require.NoError(t, err)
	assert.Equal(t, []string{"vol/chunk-0000000000000000", "vol/chunk-0000000000000001"}, names)

	names, err = store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, names, 4)

	require.NoError(t, store.Delete(ctx, "vol/chunk-0000000000000001"))
	require.NoError(t, store.Delete(ctx, "vol/chunk-0000000000000001"))
	_, err = store.Get(ctx, "vol/chunk-0000000000000001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	testStore(t, store)
	assert.Equal(t, 3, store.Len())
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	data := []byte("abc")
	require.NoError(t, store.Put(ctx, "k", data))
	data[0] = 'X'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
	got[1] = 'Y'

	got, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	testStore(t, NewLocalStore(dir))

	_, err := os.Stat(filepath.Join(dir, "vol", "device.json"))
	assert.NoError(t, err)
}

func TestLocalStore_FailedPutKeepsOldBlob(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	boom := errors.New("disk full")

	ffs := fs.NewFaultyFS(nil)
	store := NewLocalStoreFS(dir, ffs)
	require.NoError(t, store.Put(ctx, "vol/chunk", []byte("old")))

	ffs.AddRule(".tmp", fs.Fault{FailAfterBytes: 0, Err: boom})
	err := store.Put(ctx, "vol/chunk", []byte("new"))
	assert.ErrorIs(t, err, boom)

	data, err := store.Get(ctx, "vol/chunk")
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), data)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"vol/chunk"}, names)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a/b/c", Join("a/", "", "/b", "c"))
	assert.Equal(t, "", Join("", "/"))
}
