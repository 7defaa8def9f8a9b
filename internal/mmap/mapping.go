package mmap

import (
	"io"
	"os"
	"sync/atomic"
)

// Mapping represents a memory-mapped file.
// It owns the underlying byte slice and the file descriptor.
type Mapping struct {
	data   []byte
	size   int
	mode   Mode
	f      *os.File
	closed atomic.Bool
	// unmap is the platform-specific function to unmap the memory.
	unmap func([]byte) error
	// flush is the platform-specific function to write dirty pages back.
	flush func([]byte) error
}

// Open maps the file at path into memory with the given mode.
// An empty file yields an empty mapping.
func Open(path string, mode Mode) (*Mapping, error) {
	flag := os.O_RDONLY
	if mode == ReadWrite {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	size := fi.Size()
	if size < 0 || int64(int(size)) != size {
		_ = f.Close()
		return nil, ErrInvalidSize
	}
	if size == 0 {
		return &Mapping{mode: mode, f: f}, nil
	}

	data, unmapFunc, flushFunc, err := osMap(f, int(size), mode == ReadWrite)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &Mapping{
		data:  data,
		size:  int(size),
		mode:  mode,
		f:     f,
		unmap: unmapFunc,
		flush: flushFunc,
	}, nil
}

// Close unmaps the memory and closes the file. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	var err error
	if m.unmap != nil && m.data != nil {
		err = m.unmap(m.data)
	}
	if m.f != nil {
		if cerr := m.f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Bytes returns the underlying byte slice.
// Warning: The slice is valid only until Close() is called.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (n int, err error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. Writes never grow the mapping.
func (m *Mapping) WriteAt(p []byte, off int64) (n int, err error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if m.mode != ReadWrite {
		return 0, ErrReadOnly
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off+int64(len(p)) > int64(len(m.data)) {
		return 0, ErrOutOfBounds
	}
	return copy(m.data[off:], p), nil
}

// Sync writes dirty pages back to the file and flushes the file to stable storage.
func (m *Mapping) Sync() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.mode != ReadWrite {
		return nil
	}
	if m.flush != nil && m.data != nil {
		if err := m.flush(m.data); err != nil {
			return err
		}
	}
	return m.f.Sync()
}
