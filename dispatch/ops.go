package dispatch

import (
	"context"
	"time"
)

// Operations is the set of handlers a filesystem supplies. Every field is
// optional. Each handler receives a context carrying the caller identity
// (see CallerFrom), its arguments and a single-use reply. A handler may
// complete the reply before returning or later from another goroutine,
// but only the first completion counts.
//
// Paths are absolute within the mount, "/" being the root.
type Operations struct {
	Init    func(ctx context.Context, r *Done)
	Error   func(ctx context.Context, err error, r *Done)
	Destroy func(ctx context.Context, r *Done)

	Access   func(ctx context.Context, path string, mode uint32, r *Done)
	Statfs   func(ctx context.Context, path string, r *Reply[*StatfsRecord])
	Getattr  func(ctx context.Context, path string, r *Reply[*Attr])
	Fgetattr func(ctx context.Context, path string, fd FD, r *Reply[*Attr])

	Flush    func(ctx context.Context, path string, fd FD, r *Done)
	Fsync    func(ctx context.Context, path string, fd FD, datasync bool, r *Done)
	Fsyncdir func(ctx context.Context, path string, fd FD, datasync bool, r *Done)

	Readdir  func(ctx context.Context, path string, r *Reply[[]string])
	Readlink func(ctx context.Context, path string, r *Reply[string])

	Truncate  func(ctx context.Context, path string, size int64, r *Done)
	Ftruncate func(ctx context.Context, path string, fd FD, size int64, r *Done)
	Chown     func(ctx context.Context, path string, uid, gid uint32, r *Done)
	Chmod     func(ctx context.Context, path string, mode uint32, r *Done)
	Utimens   func(ctx context.Context, path string, atime, mtime time.Time, r *Done)

	Setxattr    func(ctx context.Context, path, name string, value []byte, position, flags uint32, r *Done)
	Getxattr    func(ctx context.Context, path, name string, position uint32, r *Reply[[]byte])
	Listxattr   func(ctx context.Context, path string, r *Reply[[]string])
	Removexattr func(ctx context.Context, path, name string, r *Done)

	Open       func(ctx context.Context, path string, flags uint32, r *Reply[FD])
	Opendir    func(ctx context.Context, path string, flags uint32, r *Reply[FD])
	Create     func(ctx context.Context, path string, mode uint32, r *Reply[FD])
	Release    func(ctx context.Context, path string, fd FD, r *Done)
	Releasedir func(ctx context.Context, path string, fd FD, r *Done)

	// Read fills buf with data from pos and completes with the number of
	// bytes written into it. Write completes with the number of bytes of
	// buf it consumed. Neither may retain buf after completing.
	Read  func(ctx context.Context, path string, fd FD, buf []byte, pos int64, r *Reply[int])
	Write func(ctx context.Context, path string, fd FD, buf []byte, pos int64, r *Reply[int])

	Mknod   func(ctx context.Context, path string, mode, dev uint32, r *Done)
	Mkdir   func(ctx context.Context, path string, mode uint32, r *Done)
	Unlink  func(ctx context.Context, path string, r *Done)
	Rmdir   func(ctx context.Context, path string, r *Done)
	Rename  func(ctx context.Context, src, dest string, r *Done)
	Link    func(ctx context.Context, src, dest string, r *Done)
	Symlink func(ctx context.Context, target, path string, r *Done)
}

// supplied lists the operations whose handler is set in ops.
func (ops *Operations) supplied() [numOps]bool {
	return [numOps]bool{
		OpInit:        ops.Init != nil,
		OpError:       ops.Error != nil,
		OpAccess:      ops.Access != nil,
		OpStatfs:      ops.Statfs != nil,
		OpGetattr:     ops.Getattr != nil,
		OpFgetattr:    ops.Fgetattr != nil,
		OpFlush:       ops.Flush != nil,
		OpFsync:       ops.Fsync != nil,
		OpFsyncdir:    ops.Fsyncdir != nil,
		OpReaddir:     ops.Readdir != nil,
		OpTruncate:    ops.Truncate != nil,
		OpFtruncate:   ops.Ftruncate != nil,
		OpReadlink:    ops.Readlink != nil,
		OpChown:       ops.Chown != nil,
		OpChmod:       ops.Chmod != nil,
		OpMknod:       ops.Mknod != nil,
		OpSetxattr:    ops.Setxattr != nil,
		OpGetxattr:    ops.Getxattr != nil,
		OpListxattr:   ops.Listxattr != nil,
		OpRemovexattr: ops.Removexattr != nil,
		OpOpen:        ops.Open != nil,
		OpOpendir:     ops.Opendir != nil,
		OpRead:        ops.Read != nil,
		OpWrite:       ops.Write != nil,
		OpRelease:     ops.Release != nil,
		OpReleasedir:  ops.Releasedir != nil,
		OpCreate:      ops.Create != nil,
		OpUtimens:     ops.Utimens != nil,
		OpUnlink:      ops.Unlink != nil,
		OpRename:      ops.Rename != nil,
		OpLink:        ops.Link != nil,
		OpSymlink:     ops.Symlink != nil,
		OpMkdir:       ops.Mkdir != nil,
		OpRmdir:       ops.Rmdir != nil,
		OpDestroy:     ops.Destroy != nil,
	}
}
