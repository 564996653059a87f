// Package errno maps symbolic POSIX error names to the negative integer
// codes exchanged between filesystem handlers and the kernel bridge.
//
// A Code is the negated Linux errno value, so a handler that wants the
// caller to see ENOENT completes with errno.ENOENT (-2). Code implements
// error, which lets handlers pass a code anywhere an error is expected.
package errno

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Code is a negative POSIX error number. Zero means success.
type Code int

const (
	// OK is the success status.
	OK Code = 0

	// Unknown is returned by Lookup for names that are not in the table.
	Unknown Code = -1

	// Generic is the code the bridge reports for failures that carry no
	// usable errno: unrecognised errors, handler panics and contract
	// violations.
	Generic = EIO
)

// Lookup returns the code for a symbolic name such as "ENOENT". Matching
// is case-insensitive. Unknown or empty names return Unknown, never zero.
func Lookup(name string) Code {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return Unknown
	}
	if c, ok := aliases[name]; ok {
		return c
	}
	if c, ok := byName[name]; ok {
		return c
	}
	return Unknown
}

// Parse accepts either a numeric code, which is passed through unchanged,
// or a symbolic name, which is resolved with Lookup.
func Parse(s string) Code {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return Code(n)
	}
	return Lookup(s)
}

// Name returns the symbolic name of c, or "" if c is not in the table.
func (c Code) Name() string {
	return names[c]
}

// String returns the symbolic name, falling back to the number.
func (c Code) String() string {
	if c == OK {
		return "OK"
	}
	if n := c.Name(); n != "" {
		return n
	}
	if c < 0 {
		if n := unix.ErrnoName(c.Errno()); n != "" {
			return n
		}
	}
	return strconv.Itoa(int(c))
}

// Error implements the error interface.
func (c Code) Error() string {
	if c >= 0 {
		return fmt.Sprintf("status %d", int(c))
	}
	if n := c.Name(); n != "" {
		return fmt.Sprintf("%s: %s", n, c.Errno().Error())
	}
	return fmt.Sprintf("errno %d", int(c))
}

// Errno returns the positive syscall.Errno for a negative code.
func (c Code) Errno() syscall.Errno {
	if c >= 0 {
		return 0
	}
	return syscall.Errno(-c)
}

// FromErrno converts a positive syscall.Errno into a Code.
func FromErrno(e syscall.Errno) Code {
	return Code(-int(e))
}

// FromError translates an error returned or reported by a handler.
//
// Codes and syscall errors keep their number. Well-known standard library
// errors map to their POSIX equivalent. An error whose message is, or
// starts with, a symbolic name resolves to that name. Anything else is
// reported as Generic.
func FromError(err error) Code {
	if err == nil {
		return OK
	}

	var c Code
	if errors.As(err, &c) {
		return c
	}
	var se syscall.Errno
	if errors.As(err, &se) {
		return FromErrno(se)
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ENOENT
	case errors.Is(err, fs.ErrExist):
		return EEXIST
	case errors.Is(err, fs.ErrPermission):
		return EACCES
	case errors.Is(err, fs.ErrInvalid):
		return EINVAL
	case errors.Is(err, fs.ErrClosed):
		return EBADF
	case errors.Is(err, context.Canceled):
		return EINTR
	case errors.Is(err, context.DeadlineExceeded):
		return ETIMEDOUT
	}

	return fromMessage(err.Error())
}

func fromMessage(msg string) Code {
	msg = strings.TrimSpace(msg)
	if i := strings.IndexAny(msg, ": "); i > 0 {
		msg = msg[:i]
	}
	if !strings.HasPrefix(msg, "E") {
		return Generic
	}
	if c := Lookup(msg); c != Unknown || msg == "EPERM" {
		return c
	}
	return Generic
}

var byName = func() map[string]Code {
	m := make(map[string]Code, len(names))
	for c, n := range names {
		m[n] = c
	}
	return m
}()
