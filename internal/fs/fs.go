package fs

import (
	"io"
	"os"
)

// File is an open device image or blob file.
type File interface {
	io.ReadWriteCloser
	io.ReaderAt
	io.WriterAt
	Sync() error
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
}

// FileSystem is the set of filesystem operations devices and the local blob
// store perform.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(name string) ([]os.DirEntry, error)
}

// LocalFS implements FileSystem on the os package.
type LocalFS struct{}

func (LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (LocalFS) Remove(name string) error                     { return os.Remove(name) }
func (LocalFS) Rename(oldpath, newpath string) error         { return os.Rename(oldpath, newpath) }
func (LocalFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (LocalFS) ReadDir(name string) ([]os.DirEntry, error)   { return os.ReadDir(name) }

// Default is the local filesystem.
var Default FileSystem = LocalFS{}
