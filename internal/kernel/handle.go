package kernel

import (
	"context"

	"fusebind/dispatch"
	"fusebind/internal/logging"

	"bazil.org/fuse"
)

var (
	handleLogger = logging.GetLogger().WithPrefix("handle")
)

// handle is an open file or directory. It carries the descriptor minted
// by the open handler.
type handle struct {
	node *node
	fd   dispatch.FD
	dir  bool
}

func (n *node) newHandle(fd dispatch.FD, dir bool) *handle {
	n.addFD(fd)
	return &handle{node: n, fd: fd, dir: dir}
}

// Read implements the fusefs.HandleReader interface.
func (h *handle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	p := h.node.Path()
	handleLogger.Trace("Reading %d bytes from %q at offset %d", req.Size, p, req.Offset)

	r, err := h.node.fs.call(ctx, &dispatch.Request{
		Op:     dispatch.OpRead,
		Path:   p.String(),
		FD:     h.fd,
		Size:   int64(req.Size),
		Offset: req.Offset,
	})
	if err != nil {
		return err
	}
	resp.Data = r.Data
	handleLogger.Trace("Read %d bytes", len(resp.Data))
	return nil
}

// Write implements the fusefs.HandleWriter interface.
func (h *handle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	p := h.node.Path()
	handleLogger.Trace("Writing %d bytes to %q at offset %d", len(req.Data), p, req.Offset)

	// req.Data belongs to the server's message pool and is reused once
	// this call returns, which may be before a late handler reads it.
	buf := make([]byte, len(req.Data))
	copy(buf, req.Data)

	r, err := h.node.fs.call(ctx, &dispatch.Request{
		Op:     dispatch.OpWrite,
		Path:   p.String(),
		FD:     h.fd,
		Buf:    buf,
		Offset: req.Offset,
	})
	if err != nil {
		return err
	}
	resp.Size = r.Status
	return nil
}

// Flush implements the fusefs.HandleFlusher interface.
func (h *handle) Flush(ctx context.Context, _ *fuse.FlushRequest) error {
	_, err := h.node.fs.call(ctx, &dispatch.Request{
		Op:   dispatch.OpFlush,
		Path: h.node.Path().String(),
		FD:   h.fd,
	})
	return err
}

// ReadDirAll implements the fusefs.HandleReadDirAller interface. "." and
// ".." are added unless the handler lists them.
func (h *handle) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	p := h.node.Path()
	handleLogger.Debug("Reading directory contents: %q", p)

	r, err := h.node.fs.call(ctx, &dispatch.Request{
		Op:   dispatch.OpReaddir,
		Path: p.String(),
		FD:   h.fd,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]fuse.Dirent, 0, len(r.Names)+2)
	var dot, dotdot bool
	for _, name := range r.Names {
		dot = dot || name == "."
		dotdot = dotdot || name == ".."
	}
	if !dot {
		entries = append(entries, fuse.Dirent{Name: ".", Type: fuse.DT_Dir})
	}
	if !dotdot {
		entries = append(entries, fuse.Dirent{Name: "..", Type: fuse.DT_Dir})
	}
	for _, name := range r.Names {
		entries = append(entries, fuse.Dirent{Name: name, Type: fuse.DT_Unknown})
	}

	handleLogger.Debug("Directory %q contains %d entries", p, len(entries))
	return entries, nil
}

// Release implements the fusefs.HandleReleaser interface. Without a
// release handler the descriptor is simply dropped.
func (h *handle) Release(ctx context.Context, _ *fuse.ReleaseRequest) error {
	h.node.dropFD(h.fd)

	op := dispatch.OpRelease
	if h.dir {
		op = dispatch.OpReleasedir
	}
	if !h.node.fs.reg.Supplied(op) {
		return nil
	}

	handleLogger.Debug("Releasing %q (fd=%d)", h.node.Path(), h.fd)
	_, err := h.node.fs.call(ctx, &dispatch.Request{
		Op:   op,
		Path: h.node.Path().String(),
		FD:   h.fd,
	})
	return err
}
