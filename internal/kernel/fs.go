// Package kernel adapts the bazil.org/fuse node/handle server to the
// path-based handler set of package dispatch.
//
// Every kernel request becomes a dispatch.Request carrying the caller
// identity from the FUSE header. Nodes are identified by path; a table of
// live nodes keeps node identity stable across lookups and renames.
package kernel

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"fusebind/dispatch"
	"fusebind/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	fsLogger   = logging.GetLogger().WithPrefix("kernel")
	pathLogger = logging.GetLogger().WithPrefix("path")
)

// Options tunes the adapter.
type Options struct {
	// DirectIO bypasses the kernel page cache for opened files.
	DirectIO bool
	// AttrTTL and EntryTTL are the kernel cache lifetimes. Zero means one
	// second.
	AttrTTL  time.Duration
	EntryTTL time.Duration
}

// FS serves one mount. It implements fusefs.FS.
type FS struct {
	d    *dispatch.Dispatcher
	reg  *dispatch.Registry
	opts Options

	mu    sync.Mutex
	nodes map[Path]*node

	destroyed atomic.Bool
}

// New creates the adapter for d.
func New(d *dispatch.Dispatcher, opts Options) *FS {
	if opts.AttrTTL == 0 {
		opts.AttrTTL = defaultAttrTTL
	}
	if opts.EntryTTL == 0 {
		opts.EntryTTL = defaultEntryTTL
	}
	f := &FS{
		d:     d,
		reg:   d.Registry(),
		opts:  opts,
		nodes: make(map[Path]*node),
	}
	fsLogger.Debug("Created kernel adapter (direct_io=%v)", opts.DirectIO)
	return f
}

// Config returns the server configuration that binds each request's
// caller identity into its context. debug, when not nil, receives the
// protocol trace.
func (f *FS) Config(debug func(msg interface{})) *fusefs.Config {
	return &fusefs.Config{
		Debug: debug,
		WithContext: func(ctx context.Context, req fuse.Request) context.Context {
			h := req.Hdr()
			return dispatch.WithCaller(ctx, dispatch.Caller{
				Pid: h.Pid,
				Uid: h.Uid,
				Gid: h.Gid,
			})
		},
	}
}

// Root implements the fusefs.FS interface, returning the root node.
func (f *FS) Root() (fusefs.Node, error) {
	fsLogger.Trace("Getting root node")
	return f.node("/"), nil
}

// Statfs implements fusefs.FSStatfser. Without a statfs handler the
// filesystem reports an empty volume.
func (f *FS) Statfs(ctx context.Context, _ *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	if !f.reg.Supplied(dispatch.OpStatfs) {
		resp.Bsize = 512
		resp.Namelen = 255
		return nil
	}

	r, err := f.call(ctx, &dispatch.Request{Op: dispatch.OpStatfs, Path: "/"})
	if err != nil {
		return err
	}
	fillStatfs(r.Statfs, resp)
	return nil
}

// Destroy implements fusefs.FSDestroyer. The kernel sends it when the
// filesystem is unmounted cleanly.
func (f *FS) Destroy() {
	if !f.destroyed.CompareAndSwap(false, true) {
		return
	}
	fsLogger.Debug("Kernel sent destroy")
	if _, err := f.call(context.Background(), &dispatch.Request{Op: dispatch.OpDestroy, Path: "/"}); err != nil {
		fsLogger.Debug("Destroy handler failed: %v", err)
	}
}

// MarkDestroyed records that destroy was delivered outside the kernel
// and reports whether this call was the first to do so.
func (f *FS) MarkDestroyed() bool {
	return f.destroyed.CompareAndSwap(false, true)
}

// node returns the live node for p, creating it if needed.
func (f *FS) node(p Path) *node {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n, ok := f.nodes[p]; ok {
		return n
	}
	n := &node{fs: f, path: p}
	f.nodes[p] = n
	return n
}

// forget drops n from the table if it is still the node for its path.
func (f *FS) forget(n *node) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := n.Path()
	if f.nodes[p] == n {
		delete(f.nodes, p)
	}
}

// moved re-keys every node at or below from so that it lives below to.
// A node already at the destination is replaced.
func (f *FS) moved(from, to Path) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var affected []*node
	for p, n := range f.nodes {
		if p.Within(from) {
			affected = append(affected, n)
			delete(f.nodes, p)
		}
	}
	for _, n := range affected {
		n.mu.Lock()
		n.path = n.path.Rebase(from, to)
		n.mu.Unlock()
		f.nodes[n.path] = n
	}
	fsLogger.Trace("Re-keyed %d nodes from %q to %q", len(affected), from, to)
}

// call dispatches req and waits for its reply. A negative status becomes
// the returned error.
func (f *FS) call(ctx context.Context, req *dispatch.Request) (dispatch.Response, error) {
	req.Caller = dispatch.CallerFrom(ctx)

	select {
	case resp := <-f.d.Dispatch(ctx, req):
		if err := toFuseError(req.Op.String(), Path(req.Path), resp.Code()); err != nil {
			return resp, err
		}
		return resp, nil
	case <-ctx.Done():
		fsLogger.Debug("%s on %q interrupted", req.Op, req.Path)
		return dispatch.Response{}, errInterrupted
	}
}
