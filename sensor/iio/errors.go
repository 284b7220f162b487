package iio

import (
	"github.com/pkg/errors"
)

// Error kinds returned by this package. Returned errors wrap one of these and carry the path or
// resource that failed; match them with errors.Is.
var (
	// ErrNotFound is returned when a device or trigger name does not match any topology entry.
	ErrNotFound = errors.New("not found")
	// ErrIO wraps filesystem open/read/write/close failures.
	ErrIO = errors.New("i/o failure")
	// ErrParse is returned for malformed attribute text.
	ErrParse = errors.New("parse error")
	// ErrOutOfRange is returned when a numeric attribute does not fit its type.
	ErrOutOfRange = errors.New("value out of range")
	// ErrVerificationMismatch is returned when a written attribute reads back differently.
	ErrVerificationMismatch = errors.New("verification mismatch")
	// ErrUnsupportedWidth is returned when a channel's storage is not 2, 4 or 8 bytes.
	ErrUnsupportedWidth = errors.New("unsupported byte width")
	// ErrAllocation is returned when a scan buffer cannot be sized.
	ErrAllocation = errors.New("allocation failure")
	// ErrTriggerBusy is returned when binding a trigger that is still assigned.
	ErrTriggerBusy = errors.New("trigger already assigned")
	// ErrInvalidState is returned when a lifecycle step is requested out of order.
	ErrInvalidState = errors.New("invalid lifecycle state")
)

// ioError wraps an OS-level cause so that both errors.Is(err, ErrIO) and errors.Is(err, cause)
// hold, e.g. errors.Is(err, fs.ErrNotExist).
type ioError struct {
	op    string
	path  string
	cause error
}

func newIOError(op, path string, cause error) error {
	return &ioError{op: op, path: path, cause: cause}
}

func (e *ioError) Error() string {
	return e.op + " " + e.path + ": " + e.cause.Error()
}

func (e *ioError) Is(target error) bool {
	return target == ErrIO
}

func (e *ioError) Unwrap() error {
	return e.cause
}
