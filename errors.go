package edgeport

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for a bad volume number, an unbound
	// volume, a missing buffer or output, or an illegal sector range.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIO is returned when the device reports a failure.
	ErrIO = errors.New("i/o error")

	// ErrUnsupported is returned when the device cannot report its geometry.
	ErrUnsupported = errors.New("operation not supported")

	// ErrResourceExhausted is returned when the metadata lock cannot be created.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// VolumeError records a failed adapter operation on a volume.
//
// errors.Is matches the sentinel in Err. The device or host error that caused
// the failure (if any) can be accessed via errors.Unwrap.
type VolumeError struct {
	Op     string
	Volume uint8
	Err    error
	cause  error
}

func (e *VolumeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s volume %d: %v: %v", e.Op, e.Volume, e.Err, e.cause)
	}
	return fmt.Sprintf("%s volume %d: %v", e.Op, e.Volume, e.Err)
}

func (e *VolumeError) Unwrap() error { return e.cause }

// Is reports whether target is the sentinel carried by e.
func (e *VolumeError) Is(target error) bool { return e.Err == target }

func volumeError(op string, vol uint8, sentinel, cause error) error {
	return &VolumeError{Op: op, Volume: vol, Err: sentinel, cause: cause}
}

// Status is a negated errno-style result code, for bindings that expose the
// adapter to a C file-system core.
type Status int32

// Status codes returned by StatusOf.
const (
	StatusOK                Status = 0
	StatusInvalidArgument   Status = -22
	StatusIO                Status = -5
	StatusUnsupported       Status = -95
	StatusResourceExhausted Status = -12
)

// StatusOf maps an adapter error to its Status. Errors outside the adapter
// taxonomy map to StatusIO.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrInvalidArgument):
		return StatusInvalidArgument
	case errors.Is(err, ErrUnsupported):
		return StatusUnsupported
	case errors.Is(err, ErrResourceExhausted):
		return StatusResourceExhausted
	default:
		return StatusIO
	}
}

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInvalidArgument:
		return "EINVAL"
	case StatusIO:
		return "EIO"
	case StatusUnsupported:
		return "ENOTSUPP"
	case StatusResourceExhausted:
		return "ENOMEM"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}
