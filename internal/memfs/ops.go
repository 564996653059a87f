package memfs

import (
	"context"
	"time"

	"fusebind/dispatch"
)

// complete replies with v or with err translated to its errno.
func complete[T any](r *dispatch.Reply[T], v T, err error) {
	if err != nil {
		r.Fail(err)
		return
	}
	r.OK(v)
}

// Operations returns the handler set serving f.
func (f *FS) Operations() dispatch.Operations {
	return dispatch.Operations{
		Init: func(_ context.Context, r *dispatch.Done) {
			bytes, inodes := f.Usage()
			memLogger.Info("Filesystem ready (%d bytes in %d inodes)", bytes, inodes)
			r.OK(struct{}{})
		},
		Error: func(_ context.Context, err error, r *dispatch.Done) {
			memLogger.Error("Transport error: %v", err)
			r.OK(struct{}{})
		},
		Destroy: func(_ context.Context, r *dispatch.Done) {
			memLogger.Info("Filesystem destroyed")
			r.OK(struct{}{})
		},

		Access: func(ctx context.Context, p string, mode uint32, r *dispatch.Done) {
			r.Fail(f.Access(ctx, p, mode))
		},
		Statfs: func(_ context.Context, _ string, r *dispatch.Reply[*dispatch.StatfsRecord]) {
			r.OK(f.Statfs())
		},
		Getattr: func(_ context.Context, p string, r *dispatch.Reply[*dispatch.Attr]) {
			a, err := f.Getattr(p)
			complete(r, a, err)
		},
		Fgetattr: func(_ context.Context, p string, fd dispatch.FD, r *dispatch.Reply[*dispatch.Attr]) {
			a, err := f.Fgetattr(p, fd)
			complete(r, a, err)
		},
		Flush: func(_ context.Context, p string, fd dispatch.FD, r *dispatch.Done) {
			r.Fail(f.Flush(p, fd))
		},
		Fsync: func(_ context.Context, p string, fd dispatch.FD, datasync bool, r *dispatch.Done) {
			r.Fail(f.Fsync(p, fd, datasync))
		},
		Fsyncdir: func(_ context.Context, p string, fd dispatch.FD, datasync bool, r *dispatch.Done) {
			r.Fail(f.Fsync(p, fd, datasync))
		},
		Readdir: func(_ context.Context, p string, r *dispatch.Reply[[]string]) {
			names, err := f.Readdir(p)
			complete(r, names, err)
		},
		Readlink: func(_ context.Context, p string, r *dispatch.Reply[string]) {
			target, err := f.Readlink(p)
			complete(r, target, err)
		},
		Truncate: func(_ context.Context, p string, size int64, r *dispatch.Done) {
			r.Fail(f.Truncate(p, size))
		},
		Ftruncate: func(_ context.Context, p string, fd dispatch.FD, size int64, r *dispatch.Done) {
			r.Fail(f.Ftruncate(p, fd, size))
		},
		Chown: func(_ context.Context, p string, uid, gid uint32, r *dispatch.Done) {
			r.Fail(f.Chown(p, uid, gid))
		},
		Chmod: func(_ context.Context, p string, mode uint32, r *dispatch.Done) {
			r.Fail(f.Chmod(p, mode))
		},
		Utimens: func(_ context.Context, p string, atime, mtime time.Time, r *dispatch.Done) {
			r.Fail(f.Utimens(p, atime, mtime))
		},

		Setxattr: func(_ context.Context, p, name string, value []byte, _ uint32, flags uint32, r *dispatch.Done) {
			r.Fail(f.Setxattr(p, name, value, flags))
		},
		Getxattr: func(_ context.Context, p, name string, _ uint32, r *dispatch.Reply[[]byte]) {
			v, err := f.Getxattr(p, name)
			complete(r, v, err)
		},
		Listxattr: func(_ context.Context, p string, r *dispatch.Reply[[]string]) {
			names, err := f.Listxattr(p)
			complete(r, names, err)
		},
		Removexattr: func(_ context.Context, p, name string, r *dispatch.Done) {
			r.Fail(f.Removexattr(p, name))
		},

		Open: func(_ context.Context, p string, flags uint32, r *dispatch.Reply[dispatch.FD]) {
			fd, err := f.Open(p, flags)
			complete(r, fd, err)
		},
		Opendir: func(_ context.Context, p string, flags uint32, r *dispatch.Reply[dispatch.FD]) {
			fd, err := f.Opendir(p, flags)
			complete(r, fd, err)
		},
		Create: func(ctx context.Context, p string, mode uint32, r *dispatch.Reply[dispatch.FD]) {
			fd, err := f.Create(ctx, p, mode)
			complete(r, fd, err)
		},
		Release: func(_ context.Context, p string, fd dispatch.FD, r *dispatch.Done) {
			r.Fail(f.Release(p, fd))
		},
		Releasedir: func(_ context.Context, p string, fd dispatch.FD, r *dispatch.Done) {
			r.Fail(f.Releasedir(p, fd))
		},
		Read: func(_ context.Context, p string, fd dispatch.FD, buf []byte, pos int64, r *dispatch.Reply[int]) {
			n, err := f.Read(p, fd, buf, pos)
			complete(r, n, err)
		},
		Write: func(_ context.Context, p string, fd dispatch.FD, buf []byte, pos int64, r *dispatch.Reply[int]) {
			n, err := f.Write(p, fd, buf, pos)
			complete(r, n, err)
		},

		Mknod: func(ctx context.Context, p string, mode, dev uint32, r *dispatch.Done) {
			r.Fail(f.Mknod(ctx, p, mode, dev))
		},
		Mkdir: func(ctx context.Context, p string, mode uint32, r *dispatch.Done) {
			r.Fail(f.Mkdir(ctx, p, mode))
		},
		Unlink: func(_ context.Context, p string, r *dispatch.Done) {
			r.Fail(f.Unlink(p))
		},
		Rmdir: func(_ context.Context, p string, r *dispatch.Done) {
			r.Fail(f.Rmdir(p))
		},
		Rename: func(_ context.Context, src, dest string, r *dispatch.Done) {
			r.Fail(f.Rename(src, dest))
		},
		Link: func(_ context.Context, src, dest string, r *dispatch.Done) {
			r.Fail(f.Link(src, dest))
		},
		Symlink: func(ctx context.Context, target, p string, r *dispatch.Done) {
			r.Fail(f.Symlink(ctx, target, p))
		},
	}
}
