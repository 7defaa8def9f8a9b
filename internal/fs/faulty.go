package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the error returned by injected faults that carry no Err.
var ErrInjected = errors.New("injected fault error")

// Fault defines specific failure behavior for files whose name matches a rule.
type Fault struct {
	FailAfterBytes int64 // Fail writes once this many bytes were written to the file. -1 disables.
	FailOnRead     bool
	FailOnSync     bool
	FailOnClose    bool
	Err            error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS is a FileSystem wrapper that injects errors into opened files.
type FaultyFS struct {
	FS      FileSystem
	Default Fault

	mu      sync.Mutex
	rules   map[string]Fault
	written int64
}

// NewFaultyFS creates a new FaultyFS wrapping the provided FS (or Default if nil).
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{
		FS:      fs,
		rules:   make(map[string]Fault),
		Default: Fault{FailAfterBytes: -1},
	}
}

// AddRule adds a fault injection rule for files whose name contains pattern.
// Rules apply to files opened after the call.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// Written returns the total bytes written through this FaultyFS.
func (f *FaultyFS) Written() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	fault := f.Default
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			fault = rule
		}
	}
	f.mu.Unlock()

	return &faultyFile{File: file, fs: f, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error {
	return f.FS.Remove(name)
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	return f.FS.Rename(oldpath, newpath)
}

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}

func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) {
	return f.FS.ReadDir(name)
}

type faultyFile struct {
	File
	fs      *FaultyFS
	fault   Fault
	written int64
}

func (ff *faultyFile) admit(n int) error {
	if ff.fault.FailAfterBytes >= 0 && ff.written+int64(n) > ff.fault.FailAfterBytes {
		return ff.fault.err()
	}
	return nil
}

func (ff *faultyFile) account(n int) {
	if n <= 0 {
		return
	}
	ff.written += int64(n)
	ff.fs.mu.Lock()
	ff.fs.written += int64(n)
	ff.fs.mu.Unlock()
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if err := ff.admit(len(p)); err != nil {
		return 0, err
	}
	n, err := ff.File.Write(p)
	ff.account(n)
	return n, err
}

func (ff *faultyFile) WriteAt(p []byte, off int64) (int, error) {
	if err := ff.admit(len(p)); err != nil {
		return 0, err
	}
	n, err := ff.File.WriteAt(p, off)
	ff.account(n)
	return n, err
}

func (ff *faultyFile) Read(p []byte) (int, error) {
	if ff.fault.FailOnRead {
		return 0, ff.fault.err()
	}
	return ff.File.Read(p)
}

func (ff *faultyFile) ReadAt(p []byte, off int64) (int, error) {
	if ff.fault.FailOnRead {
		return 0, ff.fault.err()
	}
	return ff.File.ReadAt(p, off)
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.err()
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	if ff.fault.FailOnClose {
		_ = ff.File.Close()
		return ff.fault.err()
	}
	return ff.File.Close()
}
