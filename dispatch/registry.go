package dispatch

import (
	"context"
	"time"

	"fusebind/errno"

	"golang.org/x/sys/unix"
)

// Registry is the immutable handler set of one mount. Operations the
// caller left nil are filled with fallbacks at construction time.
type Registry struct {
	ops      Operations
	supplied [numOps]bool
}

// NewRegistry copies ops and installs fallbacks for missing handlers.
func NewRegistry(ops Operations) *Registry {
	r := &Registry{
		ops:      ops,
		supplied: ops.supplied(),
	}
	r.installFallbacks()
	return r
}

// Supplied reports whether the caller provided a handler for op.
func (r *Registry) Supplied(op Op) bool {
	return op.Valid() && r.supplied[op]
}

func unsupported(r interface{ Status(int) }) {
	r.Status(int(errno.ENOSYS))
}

func (r *Registry) installFallbacks() {
	o := &r.ops

	if o.Init == nil {
		o.Init = func(_ context.Context, r *Done) { unsupported(r) }
	}
	if o.Error == nil {
		o.Error = func(_ context.Context, _ error, r *Done) { unsupported(r) }
	}
	if o.Destroy == nil {
		o.Destroy = func(_ context.Context, r *Done) { unsupported(r) }
	}
	if o.Access == nil {
		o.Access = func(_ context.Context, _ string, _ uint32, r *Done) { unsupported(r) }
	}
	if o.Statfs == nil {
		o.Statfs = func(_ context.Context, _ string, r *Reply[*StatfsRecord]) { unsupported(r) }
	}
	if o.Getattr == nil {
		o.Getattr = rootGetattr
	}
	if o.Fgetattr == nil {
		o.Fgetattr = func(_ context.Context, _ string, _ FD, r *Reply[*Attr]) { unsupported(r) }
	}
	if o.Flush == nil {
		o.Flush = func(_ context.Context, _ string, _ FD, r *Done) { unsupported(r) }
	}
	if o.Fsync == nil {
		o.Fsync = func(_ context.Context, _ string, _ FD, _ bool, r *Done) { unsupported(r) }
	}
	if o.Fsyncdir == nil {
		o.Fsyncdir = func(_ context.Context, _ string, _ FD, _ bool, r *Done) { unsupported(r) }
	}
	if o.Readdir == nil {
		o.Readdir = func(_ context.Context, _ string, r *Reply[[]string]) { unsupported(r) }
	}
	if o.Readlink == nil {
		o.Readlink = func(_ context.Context, _ string, r *Reply[string]) { unsupported(r) }
	}
	if o.Truncate == nil {
		o.Truncate = func(_ context.Context, _ string, _ int64, r *Done) { unsupported(r) }
	}
	if o.Ftruncate == nil {
		o.Ftruncate = func(_ context.Context, _ string, _ FD, _ int64, r *Done) { unsupported(r) }
	}
	if o.Chown == nil {
		o.Chown = func(_ context.Context, _ string, _, _ uint32, r *Done) { unsupported(r) }
	}
	if o.Chmod == nil {
		o.Chmod = func(_ context.Context, _ string, _ uint32, r *Done) { unsupported(r) }
	}
	if o.Utimens == nil {
		o.Utimens = func(_ context.Context, _ string, _, _ time.Time, r *Done) { unsupported(r) }
	}
	if o.Setxattr == nil {
		o.Setxattr = func(_ context.Context, _, _ string, _ []byte, _, _ uint32, r *Done) { unsupported(r) }
	}
	if o.Getxattr == nil {
		o.Getxattr = func(_ context.Context, _, _ string, _ uint32, r *Reply[[]byte]) { unsupported(r) }
	}
	if o.Listxattr == nil {
		o.Listxattr = func(_ context.Context, _ string, r *Reply[[]string]) { unsupported(r) }
	}
	if o.Removexattr == nil {
		o.Removexattr = func(_ context.Context, _, _ string, r *Done) { unsupported(r) }
	}
	if o.Open == nil {
		o.Open = func(_ context.Context, _ string, _ uint32, r *Reply[FD]) { unsupported(r) }
	}
	if o.Opendir == nil {
		o.Opendir = func(_ context.Context, _ string, _ uint32, r *Reply[FD]) { unsupported(r) }
	}
	if o.Create == nil {
		o.Create = func(_ context.Context, _ string, _ uint32, r *Reply[FD]) { unsupported(r) }
	}
	if o.Release == nil {
		o.Release = func(_ context.Context, _ string, _ FD, r *Done) { unsupported(r) }
	}
	if o.Releasedir == nil {
		o.Releasedir = func(_ context.Context, _ string, _ FD, r *Done) { unsupported(r) }
	}
	if o.Read == nil {
		o.Read = func(_ context.Context, _ string, _ FD, _ []byte, _ int64, r *Reply[int]) { unsupported(r) }
	}
	if o.Write == nil {
		o.Write = func(_ context.Context, _ string, _ FD, _ []byte, _ int64, r *Reply[int]) { unsupported(r) }
	}
	if o.Mknod == nil {
		o.Mknod = func(_ context.Context, _ string, _, _ uint32, r *Done) { unsupported(r) }
	}
	if o.Mkdir == nil {
		o.Mkdir = func(_ context.Context, _ string, _ uint32, r *Done) { unsupported(r) }
	}
	if o.Unlink == nil {
		o.Unlink = func(_ context.Context, _ string, r *Done) { unsupported(r) }
	}
	if o.Rmdir == nil {
		o.Rmdir = func(_ context.Context, _ string, r *Done) { unsupported(r) }
	}
	if o.Rename == nil {
		o.Rename = func(_ context.Context, _, _ string, r *Done) { unsupported(r) }
	}
	if o.Link == nil {
		o.Link = func(_ context.Context, _, _ string, r *Done) { unsupported(r) }
	}
	if o.Symlink == nil {
		o.Symlink = func(_ context.Context, _, _ string, r *Done) { unsupported(r) }
	}
}

// rootGetattr describes the mount root so that the kernel can stat and
// unmount a filesystem without a getattr handler. Other paths are EPERM.
func rootGetattr(_ context.Context, path string, r *Reply[*Attr]) {
	if path != "/" {
		r.Status(int(errno.EPERM))
		return
	}
	epoch := time.Unix(0, 0)
	r.OK(&Attr{
		Mtime: epoch,
		Atime: epoch,
		Ctime: epoch,
		Nlink: 1,
		Size:  4096,
		Mode:  unix.S_IFDIR | 0o755,
	})
}
