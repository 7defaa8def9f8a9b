package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hupe1980/edgeport/internal/fs"
)

// LocalStore implements Store using the local file system.
// Blob names map to paths below root; "/" separates directories.
type LocalStore struct {
	root string
	fs   fs.FileSystem
}

// NewLocalStore creates a new LocalStore rooted at the given directory.
func NewLocalStore(root string) *LocalStore {
	return NewLocalStoreFS(root, fs.Default)
}

// NewLocalStoreFS is like NewLocalStore but performs all file operations
// through fsys.
func NewLocalStoreFS(root string, fsys fs.FileSystem) *LocalStore {
	return &LocalStore{root: root, fs: fsys}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Get reads the whole blob.
func (s *LocalStore) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := s.fs.OpenFile(s.path(name), os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// Put writes the blob to a temporary file, syncs it and renames it into
// place, so readers never observe a partial blob.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.path(name)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString())
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}

// Delete removes a blob.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := s.fs.Remove(s.path(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List walks the store and returns blob names starting with prefix.
// Temporary files of in-flight Puts are skipped.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := s.fs.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		for _, e := range entries {
			name := e.Name()
			if rel != "" {
				name = rel + "/" + name
			}
			if e.IsDir() {
				// Only descend into directories that can contain matches.
				if strings.HasPrefix(name+"/", prefix) || strings.HasPrefix(prefix, name+"/") || strings.HasPrefix(name, prefix) {
					if err := walk(filepath.Join(dir, e.Name()), name); err != nil {
						return err
					}
				}
				continue
			}
			if strings.HasSuffix(name, ".tmp") {
				continue
			}
			if strings.HasPrefix(name, prefix) {
				names = append(names, name)
			}
		}
		return nil
	}

	if err := walk(s.root, ""); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
