package kernel

import (
	"syscall"

	"fusebind/errno"
	"fusebind/internal/logging"

	"bazil.org/fuse"
)

var (
	errLogger = logging.GetLogger().WithPrefix("error")

	// errInterrupted answers a request whose context ended before its
	// handler completed.
	errInterrupted = fuse.Errno(syscall.EINTR)

	// errNotNode answers rename and link requests that name a node this
	// adapter did not create.
	errNotNode = fuse.Errno(syscall.EINVAL)
)

// toFuseError converts a handler failure code into the error bazil
// replies with.
func toFuseError(op string, path Path, code errno.Code) error {
	if code >= 0 {
		return nil
	}
	if isTemporary(code) {
		errLogger.Debug("%s on %s failed: %v", op, path, code)
	} else {
		errLogger.Trace("%s on %s failed: %v", op, path, code)
	}
	return fuse.Errno(code.Errno())
}

// isTemporary returns true if the failure is likely transient and the
// kernel may retry.
func isTemporary(code errno.Code) bool {
	switch code {
	case errno.EAGAIN, errno.EBUSY, errno.ETIMEDOUT, errno.EINTR:
		return true
	}
	return false
}
