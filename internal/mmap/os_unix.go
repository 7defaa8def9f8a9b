//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func osMap(f *os.File, size int, writable bool) ([]byte, func([]byte) error, func([]byte) error, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, nil, err
	}

	flush := func(b []byte) error {
		return unix.Msync(b, unix.MS_SYNC)
	}
	return data, unix.Munmap, flush, nil
}

func osAdvise(data []byte, pattern AccessPattern) error {
	if len(data) == 0 {
		return nil
	}

	var advice int
	switch pattern {
	case AccessSequential:
		advice = unix.MADV_SEQUENTIAL
	case AccessRandom:
		advice = unix.MADV_RANDOM
	case AccessWillNeed:
		advice = unix.MADV_WILLNEED
	case AccessDontNeed:
		advice = unix.MADV_DONTNEED
	default:
		advice = unix.MADV_NORMAL
	}

	// madvise requires page-aligned addresses; regions may not be aligned and
	// the hint is advisory.
	err := unix.Madvise(data, advice)
	if err == unix.EINVAL {
		return nil
	}
	return err
}
