// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: an open file with positional read/write and sync
//   - [FileSystem]: filesystem operations used by devices and the local blob store
//
// # Implementations
//
//   - [LocalFS]: production implementation using the os package
//   - [FaultyFS]: test utility that injects read, write, sync and close errors
//
// File-backed block devices and the local blob store take a [FileSystem] so
// that tests can swap in [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("vol0.img", fs.Fault{FailOnSync: true, FailAfterBytes: -1})
//	dev, _ := bdev.OpenFile("vol0.img", 512, func(o *bdev.FileOptions) { o.FileSystem = ffs })
//
// Operations take no context.Context: local file I/O is not interruptible at
// the syscall level.
package fs
