package mount

import (
	"errors"
	"fmt"
)

var (
	// ErrMountpointNotExist indicates the mount path does not exist
	ErrMountpointNotExist = errors.New("mountpoint does not exist")

	// ErrMountpointNotDir indicates the mount path is not a directory
	ErrMountpointNotDir = errors.New("mountpoint is not a directory")

	// ErrMountpointInUse indicates something is already mounted at the path
	ErrMountpointInUse = errors.New("mountpoint in use")

	// ErrUnknownOption indicates a mount option the transport does not know
	ErrUnknownOption = errors.New("unknown mount option")

	// ErrMountFailed indicates the kernel mount or the init handshake failed
	ErrMountFailed = errors.New("mount failed")

	// ErrUnmountFailed indicates the kernel refused to release the mount
	ErrUnmountFailed = errors.New("unmount failed")
)

// Operation names used in Error.
const (
	OpValidate = "validate"
	OpMount    = "mount"
	OpInit     = "init"
	OpUnmount  = "unmount"
)

// Error wraps a mount lifecycle failure with the step and path it
// concerns.
type Error struct {
	Op   string // Step that failed (e.g., "validate", "unmount")
	Path string // Mount path
	Err  error  // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, path string, err error) *Error {
	e := &Error{Op: op, Path: path, Err: err}
	mountLogger.Debug("%v", e)
	return e
}

// IsValidation reports whether err was detected before anything was
// mounted. Validation failures are never retried.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrMountpointNotExist),
		errors.Is(err, ErrMountpointNotDir),
		errors.Is(err, ErrMountpointInUse),
		errors.Is(err, ErrUnknownOption):
		return true
	}
	return false
}
