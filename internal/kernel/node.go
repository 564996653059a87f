package kernel

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"fusebind/dispatch"
	"fusebind/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	nodeLogger = logging.GetLogger().WithPrefix("node")
)

// node is a file, directory or special file identified by its path.
type node struct {
	fs *FS

	mu   sync.Mutex
	path Path
	// fds lists descriptors opened on this node, most recent last. They
	// stand in for the kernel's handle when an attribute call names one.
	fds []dispatch.FD

	// primed holds the attributes fetched by Lookup. The server asks for
	// them through Attr right after Lookup returns, and only that call
	// consumes them.
	primed atomic.Pointer[dispatch.Attr]
}

// Path returns the node's current path.
func (n *node) Path() Path {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *node) addFD(fd dispatch.FD) {
	n.mu.Lock()
	n.fds = append(n.fds, fd)
	n.mu.Unlock()
}

func (n *node) dropFD(fd dispatch.FD) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.fds) - 1; i >= 0; i-- {
		if n.fds[i] == fd {
			n.fds = append(n.fds[:i], n.fds[i+1:]...)
			return
		}
	}
}

// openFD returns the most recently opened descriptor, if any.
func (n *node) openFD() (dispatch.FD, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.fds) == 0 {
		return 0, false
	}
	return n.fds[len(n.fds)-1], true
}

// getattr fetches the node's attributes, through fgetattr when useFD is
// set and a descriptor is open.
func (n *node) getattr(ctx context.Context, useFD bool) (*dispatch.Attr, error) {
	p := n.Path()
	req := &dispatch.Request{Op: dispatch.OpGetattr, Path: p.String()}
	if fd, ok := n.openFD(); useFD && ok && n.fs.reg.Supplied(dispatch.OpFgetattr) {
		req.Op = dispatch.OpFgetattr
		req.FD = fd
	}

	resp, err := n.fs.call(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Attr, nil
}

// Attr implements the fusefs.Node interface.
func (n *node) Attr(ctx context.Context, a *fuse.Attr) error {
	if attr := n.primed.Swap(nil); attr != nil {
		fillAttr(attr, a, n.fs.opts.AttrTTL)
		return nil
	}

	attr, err := n.getattr(ctx, false)
	if err != nil {
		return err
	}
	fillAttr(attr, a, n.fs.opts.AttrTTL)
	return nil
}

// Getattr implements the fusefs.NodeGetattrer interface.
func (n *node) Getattr(ctx context.Context, req *fuse.GetattrRequest, resp *fuse.GetattrResponse) error {
	nodeLogger.Trace("Getting attributes for %q (flags=%v)", n.Path(), req.Flags)

	attr, err := n.getattr(ctx, req.Flags&fuse.GetattrFh != 0)
	if err != nil {
		return err
	}
	fillAttr(attr, &resp.Attr, n.fs.opts.AttrTTL)
	return nil
}

// Lookup implements the fusefs.NodeRequestLookuper interface. A child
// exists when getattr on its path succeeds.
func (n *node) Lookup(ctx context.Context, req *fuse.LookupRequest, resp *fuse.LookupResponse) (fusefs.Node, error) {
	child := n.Path().Join(req.Name)
	nodeLogger.Debug("Looking up %q", child)

	r, err := n.fs.call(ctx, &dispatch.Request{Op: dispatch.OpGetattr, Path: child.String()})
	if err != nil {
		return nil, err
	}

	c := n.fs.node(child)
	c.primed.Store(r.Attr)
	resp.EntryValid = n.fs.opts.EntryTTL
	fillAttr(r.Attr, &resp.Attr, n.fs.opts.AttrTTL)
	return c, nil
}

// Forget implements the fusefs.NodeForgetter interface.
func (n *node) Forget() {
	nodeLogger.Trace("Forgetting %q", n.Path())
	n.fs.forget(n)
}

// Setattr implements the fusefs.NodeSetattrer interface. Each attribute
// group maps to its own handler: truncate, chmod, chown and utimens.
func (n *node) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	p := n.Path()
	nodeLogger.Debug("Setting attributes on %q (valid=%v)", p, req.Valid)

	if req.Valid.Size() {
		r := &dispatch.Request{Op: dispatch.OpTruncate, Path: p.String(), Size: safeUint64ToInt64(req.Size)}
		if fd, ok := n.openFD(); ok && req.Valid.Handle() && n.fs.reg.Supplied(dispatch.OpFtruncate) {
			r.Op = dispatch.OpFtruncate
			r.FD = fd
		}
		if _, err := n.fs.call(ctx, r); err != nil {
			return err
		}
	}

	if req.Valid.Mode() {
		r := &dispatch.Request{Op: dispatch.OpChmod, Path: p.String(), Mode: rawMode(req.Mode)}
		if _, err := n.fs.call(ctx, r); err != nil {
			return err
		}
	}

	if req.Valid.Uid() || req.Valid.Gid() {
		r := &dispatch.Request{Op: dispatch.OpChown, Path: p.String(), Uid: unchangedID, Gid: unchangedID}
		if req.Valid.Uid() {
			r.Uid = req.Uid
		}
		if req.Valid.Gid() {
			r.Gid = req.Gid
		}
		if _, err := n.fs.call(ctx, r); err != nil {
			return err
		}
	}

	if req.Valid.Atime() || req.Valid.Mtime() || req.Valid.AtimeNow() || req.Valid.MtimeNow() {
		if err := n.utimens(ctx, req); err != nil {
			return err
		}
	}

	attr, err := n.getattr(ctx, req.Valid.Handle())
	if err != nil {
		return err
	}
	fillAttr(attr, &resp.Attr, n.fs.opts.AttrTTL)
	return nil
}

// utimens sets both timestamps, keeping the current value of one that
// the request leaves alone.
func (n *node) utimens(ctx context.Context, req *fuse.SetattrRequest) error {
	now := time.Now()
	atime, mtime := req.Atime, req.Mtime
	if req.Valid.AtimeNow() {
		atime = now
	}
	if req.Valid.MtimeNow() {
		mtime = now
	}

	setA := req.Valid.Atime() || req.Valid.AtimeNow()
	setM := req.Valid.Mtime() || req.Valid.MtimeNow()
	if !setA || !setM {
		cur, err := n.getattr(ctx, false)
		if err != nil {
			return err
		}
		if !setA {
			atime = cur.Atime
		}
		if !setM {
			mtime = cur.Mtime
		}
	}

	_, err := n.fs.call(ctx, &dispatch.Request{
		Op:    dispatch.OpUtimens,
		Path:  n.Path().String(),
		Atime: atime,
		Mtime: mtime,
	})
	return err
}

// Open implements the fusefs.NodeOpener interface. Without an open
// handler every open succeeds with descriptor 0.
func (n *node) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	p := n.Path()
	op := dispatch.OpOpen
	if req.Dir {
		op = dispatch.OpOpendir
	}
	nodeLogger.Debug("Opening %q with flags %v (%s)", p, req.Flags, op)

	var fd dispatch.FD
	if n.fs.reg.Supplied(op) {
		r, err := n.fs.call(ctx, &dispatch.Request{Op: op, Path: p.String(), Flags: uint32(req.Flags)})
		if err != nil {
			return nil, err
		}
		fd = r.FD
	}

	if !req.Dir && n.fs.opts.DirectIO {
		resp.Flags |= fuse.OpenDirectIO
	}
	return n.newHandle(fd, req.Dir), nil
}

// Create implements the fusefs.NodeCreater interface. If create is not
// supplied the ENOSYS reply makes the kernel fall back to mknod and open.
func (n *node) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	child := n.Path().Join(req.Name)
	nodeLogger.Info("Creating %q (mode=%v)", child, req.Mode)

	r, err := n.fs.call(ctx, &dispatch.Request{
		Op:    dispatch.OpCreate,
		Path:  child.String(),
		Mode:  rawMode(req.Mode &^ os.ModeType),
		Flags: uint32(req.Flags),
	})
	if err != nil {
		return nil, nil, err
	}

	c := n.fs.node(child)
	if n.fs.opts.DirectIO {
		resp.Flags |= fuse.OpenDirectIO
	}
	return c, c.newHandle(r.FD, false), nil
}

// Mkdir implements the fusefs.NodeMkdirer interface.
func (n *node) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	child := n.Path().Join(req.Name)
	nodeLogger.Info("Creating directory %q", child)

	if _, err := n.fs.call(ctx, &dispatch.Request{
		Op:   dispatch.OpMkdir,
		Path: child.String(),
		Mode: permBits(req.Mode),
	}); err != nil {
		return nil, err
	}
	return n.fs.node(child), nil
}

// Mknod implements the fusefs.NodeMknoder interface.
func (n *node) Mknod(ctx context.Context, req *fuse.MknodRequest) (fusefs.Node, error) {
	child := n.Path().Join(req.Name)
	nodeLogger.Info("Creating node %q (mode=%v, rdev=%d)", child, req.Mode, req.Rdev)

	if _, err := n.fs.call(ctx, &dispatch.Request{
		Op:   dispatch.OpMknod,
		Path: child.String(),
		Mode: rawMode(req.Mode),
		Rdev: req.Rdev,
	}); err != nil {
		return nil, err
	}
	return n.fs.node(child), nil
}

// Remove implements the fusefs.NodeRemover interface.
func (n *node) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	child := n.Path().Join(req.Name)
	op := dispatch.OpUnlink
	if req.Dir {
		op = dispatch.OpRmdir
	}
	nodeLogger.Info("Removing %q (%s)", child, op)

	if _, err := n.fs.call(ctx, &dispatch.Request{Op: op, Path: child.String()}); err != nil {
		return err
	}
	return nil
}

// Rename implements the fusefs.NodeRenamer interface.
func (n *node) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fusefs.Node) error {
	target, ok := newDir.(*node)
	if !ok {
		nodeLogger.Error("Rename target is not a directory node")
		return errNotNode
	}
	from := n.Path().Join(req.OldName)
	to := target.Path().Join(req.NewName)
	nodeLogger.Info("Renaming %q to %q", from, to)

	if _, err := n.fs.call(ctx, &dispatch.Request{
		Op:   dispatch.OpRename,
		Path: from.String(),
		Dest: to.String(),
	}); err != nil {
		return err
	}
	n.fs.moved(from, to)
	return nil
}

// Symlink implements the fusefs.NodeSymlinker interface.
func (n *node) Symlink(ctx context.Context, req *fuse.SymlinkRequest) (fusefs.Node, error) {
	link := n.Path().Join(req.NewName)
	nodeLogger.Info("Creating symlink %q -> %q", link, req.Target)

	if _, err := n.fs.call(ctx, &dispatch.Request{
		Op:   dispatch.OpSymlink,
		Path: link.String(),
		Dest: req.Target,
	}); err != nil {
		return nil, err
	}
	return n.fs.node(link), nil
}

// Link implements the fusefs.NodeLinker interface.
func (n *node) Link(ctx context.Context, req *fuse.LinkRequest, old fusefs.Node) (fusefs.Node, error) {
	src, ok := old.(*node)
	if !ok {
		return nil, errNotNode
	}
	dest := n.Path().Join(req.NewName)
	nodeLogger.Info("Linking %q to %q", dest, src.Path())

	if _, err := n.fs.call(ctx, &dispatch.Request{
		Op:   dispatch.OpLink,
		Path: src.Path().String(),
		Dest: dest.String(),
	}); err != nil {
		return nil, err
	}
	return n.fs.node(dest), nil
}

// Readlink implements the fusefs.NodeReadlinker interface.
func (n *node) Readlink(ctx context.Context, _ *fuse.ReadlinkRequest) (string, error) {
	r, err := n.fs.call(ctx, &dispatch.Request{Op: dispatch.OpReadlink, Path: n.Path().String()})
	if err != nil {
		return "", err
	}
	return r.Link, nil
}

// Access implements the fusefs.NodeAccesser interface.
func (n *node) Access(ctx context.Context, req *fuse.AccessRequest) error {
	_, err := n.fs.call(ctx, &dispatch.Request{
		Op:   dispatch.OpAccess,
		Path: n.Path().String(),
		Mode: req.Mask,
	})
	return err
}

// Fsync implements the fusefs.NodeFsyncer interface.
func (n *node) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	op := dispatch.OpFsync
	if req.Dir {
		op = dispatch.OpFsyncdir
	}
	fd, _ := n.openFD()

	_, err := n.fs.call(ctx, &dispatch.Request{
		Op:       op,
		Path:     n.Path().String(),
		FD:       fd,
		Datasync: req.Flags&1 != 0,
	})
	return err
}

// Getxattr implements the fusefs.NodeGetxattrer interface.
func (n *node) Getxattr(ctx context.Context, req *fuse.GetxattrRequest, resp *fuse.GetxattrResponse) error {
	nodeLogger.Debug("Getting xattr %q for %q (size=%d)", req.Name, n.Path(), req.Size)

	r, err := n.fs.call(ctx, &dispatch.Request{
		Op:       dispatch.OpGetxattr,
		Path:     n.Path().String(),
		Name:     req.Name,
		Size:     int64(req.Size),
		Position: req.Position,
	})
	if err != nil {
		return err
	}
	resp.Xattr = r.Data
	return nil
}

// Listxattr implements the fusefs.NodeListxattrer interface. The reply
// data is already NUL-separated.
func (n *node) Listxattr(ctx context.Context, req *fuse.ListxattrRequest, resp *fuse.ListxattrResponse) error {
	nodeLogger.Debug("Listing xattrs for %q (size=%d)", n.Path(), req.Size)

	r, err := n.fs.call(ctx, &dispatch.Request{
		Op:   dispatch.OpListxattr,
		Path: n.Path().String(),
		Size: int64(req.Size),
	})
	if err != nil {
		return err
	}
	resp.Xattr = r.Data
	return nil
}

// Setxattr implements the fusefs.NodeSetxattrer interface.
func (n *node) Setxattr(ctx context.Context, req *fuse.SetxattrRequest) error {
	nodeLogger.Debug("Setting xattr %q for %q (%d bytes)", req.Name, n.Path(), len(req.Xattr))

	// Copy so that the handler never references the request buffer.
	value := make([]byte, len(req.Xattr))
	copy(value, req.Xattr)

	_, err := n.fs.call(ctx, &dispatch.Request{
		Op:       dispatch.OpSetxattr,
		Path:     n.Path().String(),
		Name:     req.Name,
		Value:    value,
		Position: req.Position,
		Flags:    req.Flags,
	})
	return err
}

// Removexattr implements the fusefs.NodeRemovexattrer interface.
func (n *node) Removexattr(ctx context.Context, req *fuse.RemovexattrRequest) error {
	_, err := n.fs.call(ctx, &dispatch.Request{
		Op:   dispatch.OpRemovexattr,
		Path: n.Path().String(),
		Name: req.Name,
	})
	return err
}
