// Package fusebind mounts userspace filesystems through FUSE.
//
// A filesystem is a set of handler functions, one per operation, collected
// in an Operations value. Each handler receives the request arguments and a
// Reply it must complete exactly once, either with a result or with an
// errno:
//
//	ops := fusebind.Operations{
//		Getattr: func(ctx context.Context, path string, r *fusebind.Reply[*fusebind.Attr]) {
//			if path != "/" {
//				r.Fail(errno.ENOENT)
//				return
//			}
//			r.OK(&fusebind.Attr{Mode: unix.S_IFDIR | 0o755, ...})
//		},
//	}
//	s, err := fusebind.Mount(ctx, "/mnt/demo", ops, fusebind.Options{})
//
// Handlers that are not supplied get the same defaults libfuse applies.
package fusebind

import (
	"context"

	"fusebind/dispatch"
	"fusebind/errno"
	"fusebind/mount"
)

type (
	Operations   = dispatch.Operations
	Caller       = dispatch.Caller
	Attr         = dispatch.Attr
	StatfsRecord = dispatch.StatfsRecord
	FD           = dispatch.FD
	Reply[T any] = dispatch.Reply[T]
	Done         = dispatch.Done
	Options      = mount.Options
	Session      = mount.Session
)

// Mount validates path and opts, mounts ops there and waits for the
// init handshake. See mount.Mount.
func Mount(ctx context.Context, path string, ops Operations, opts Options) (*Session, error) {
	return mount.Mount(ctx, path, ops, opts)
}

// Unmount unmounts path, whether or not it was mounted by this process.
func Unmount(path string) error {
	return mount.Unmount(path)
}

// Errno returns the negative errno for a symbolic name such as "ENOENT".
// Unknown names return -1.
func Errno(name string) int {
	return int(errno.Lookup(name))
}

// Context returns the identity of the process behind the request that
// ctx was handed to.
func Context(ctx context.Context) Caller {
	return dispatch.CallerFrom(ctx)
}
