// Package dispatch routes decoded filesystem requests to user handlers and
// turns their completions into replies.
//
// Each request is handed to its handler together with a single-use Reply.
// The dispatcher guarantees that at most one reply is produced per
// request, whatever the handler does: extra completions are dropped,
// panics and malformed results become EIO, and unsupplied operations
// answer ENOSYS.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"fusebind/errno"
	"fusebind/internal/logging"
)

var (
	dispatchLogger = logging.GetLogger().WithPrefix("dispatch")
)

// Dispatcher invokes handlers from a Registry. It is safe for concurrent
// use and holds no per-request locks.
type Dispatcher struct {
	reg     *Registry
	metrics Metrics
	logger  *logging.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics sets the metrics sink. A nil Metrics disables collection.
func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithLogger replaces the package logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a dispatcher over reg.
func New(reg *Registry, opts ...Option) *Dispatcher {
	if reg == nil {
		reg = NewRegistry(Operations{})
	}
	d := &Dispatcher{
		reg:    reg,
		logger: dispatchLogger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the handler set the dispatcher routes to.
func (d *Dispatcher) Registry() *Registry {
	return d.reg
}

// Dispatch hands req to its handler and returns a channel that receives
// exactly one Response once the handler completes. If the handler never
// completes, nothing is ever sent.
//
// Dispatch returns as soon as the handler function returns; it does not
// wait for an asynchronous completion.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) <-chan Response {
	c := &call{
		d:     d,
		req:   req,
		start: time.Now(),
		out:   make(chan Response, 1),
	}

	if d.metrics != nil {
		d.metrics.RecordRequestStart(req.Op.String())
	}
	d.logger.Trace("%s %q fd=%d pid=%d", req.Op, req.Path, req.FD, req.Caller.Pid)

	d.invoke(WithCaller(ctx, req.Caller), c)
	return c.out
}

// Call dispatches req and waits for its reply or for ctx to end.
func (d *Dispatcher) Call(ctx context.Context, req *Request) (Response, error) {
	select {
	case resp := <-d.Dispatch(ctx, req):
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (d *Dispatcher) invoke(ctx context.Context, c *call) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("%s %q: handler panic: %v\n%s", c.req.Op, c.req.Path, p, debug.Stack())
			if c.abort() && d.metrics != nil {
				d.metrics.RecordViolation(c.req.Op.String(), ViolationPanic)
			}
		}
	}()

	c.state.Store(stateInvoked)
	d.route(ctx, c)
}

func (d *Dispatcher) route(ctx context.Context, c *call) {
	o := &d.reg.ops
	req := c.req

	switch req.Op {
	case OpInit:
		o.Init(ctx, newReply(c, noPayload))
	case OpError:
		o.Error(ctx, req.Err, newReply(c, noPayload))
	case OpDestroy:
		o.Destroy(ctx, newReply(c, noPayload))
	case OpAccess:
		o.Access(ctx, req.Path, req.Mode, newReply(c, noPayload))
	case OpStatfs:
		o.Statfs(ctx, req.Path, newReply(c, statfsPayload))
	case OpGetattr:
		o.Getattr(ctx, req.Path, newReply(c, attrPayload))
	case OpFgetattr:
		o.Fgetattr(ctx, req.Path, req.FD, newReply(c, attrPayload))
	case OpFlush:
		o.Flush(ctx, req.Path, req.FD, newReply(c, noPayload))
	case OpFsync:
		o.Fsync(ctx, req.Path, req.FD, req.Datasync, newReply(c, noPayload))
	case OpFsyncdir:
		o.Fsyncdir(ctx, req.Path, req.FD, req.Datasync, newReply(c, noPayload))
	case OpReaddir:
		o.Readdir(ctx, req.Path, newReply(c, namesPayload))
	case OpReadlink:
		o.Readlink(ctx, req.Path, newReply(c, linkPayload))
	case OpTruncate:
		o.Truncate(ctx, req.Path, req.Size, newReply(c, noPayload))
	case OpFtruncate:
		o.Ftruncate(ctx, req.Path, req.FD, req.Size, newReply(c, noPayload))
	case OpChown:
		o.Chown(ctx, req.Path, req.Uid, req.Gid, newReply(c, noPayload))
	case OpChmod:
		o.Chmod(ctx, req.Path, req.Mode, newReply(c, noPayload))
	case OpUtimens:
		o.Utimens(ctx, req.Path, req.Atime, req.Mtime, newReply(c, noPayload))
	case OpSetxattr:
		o.Setxattr(ctx, req.Path, req.Name, req.Value, req.Position, req.Flags, newReply(c, noPayload))
	case OpGetxattr:
		o.Getxattr(ctx, req.Path, req.Name, req.Position, newReply(c, dataPayload))
	case OpListxattr:
		o.Listxattr(ctx, req.Path, newReply(c, namesPayload))
	case OpRemovexattr:
		o.Removexattr(ctx, req.Path, req.Name, newReply(c, noPayload))
	case OpOpen:
		o.Open(ctx, req.Path, req.Flags, newReply(c, fdPayload))
	case OpOpendir:
		o.Opendir(ctx, req.Path, req.Flags, newReply(c, fdPayload))
	case OpCreate:
		o.Create(ctx, req.Path, req.Mode, newReply(c, fdPayload))
	case OpRelease:
		o.Release(ctx, req.Path, req.FD, newReply(c, noPayload))
	case OpReleasedir:
		o.Releasedir(ctx, req.Path, req.FD, newReply(c, noPayload))
	case OpRead:
		o.Read(ctx, req.Path, req.FD, readRegion(req), req.Offset, newReply(c, countPayload))
	case OpWrite:
		o.Write(ctx, req.Path, req.FD, req.Buf, req.Offset, newReply(c, countPayload))
	case OpMknod:
		o.Mknod(ctx, req.Path, req.Mode, req.Rdev, newReply(c, noPayload))
	case OpMkdir:
		o.Mkdir(ctx, req.Path, req.Mode, newReply(c, noPayload))
	case OpUnlink:
		o.Unlink(ctx, req.Path, newReply(c, noPayload))
	case OpRmdir:
		o.Rmdir(ctx, req.Path, newReply(c, noPayload))
	case OpRename:
		o.Rename(ctx, req.Path, req.Dest, newReply(c, noPayload))
	case OpLink:
		o.Link(ctx, req.Path, req.Dest, newReply(c, noPayload))
	case OpSymlink:
		o.Symlink(ctx, req.Dest, req.Path, newReply(c, noPayload))
	default:
		newReply(c, noPayload).Status(int(errno.ENOSYS))
	}
}

// translate turns a first completion into the response sent to the
// transport.
func (d *Dispatcher) translate(req *Request, resp Response, payload bool) Response {
	if resp.Status < 0 {
		return Response{Status: resp.Status}
	}
	if req.Op.IsCount() {
		return d.countResult(req, resp.Status)
	}
	if !req.Op.HasPayload() {
		return Response{Status: resp.Status}
	}
	if !payload {
		d.violation(req, ViolationMissingPayload, "completed with status %d and no result", resp.Status)
		return Response{Status: int(errno.Generic)}
	}

	switch req.Op {
	case OpGetattr, OpFgetattr:
		if err := resp.Attr.Validate(); err != nil {
			d.violation(req, ViolationInvalidPayload, "%v", err)
			return Response{Status: int(errno.Generic)}
		}
	case OpStatfs:
		if resp.Statfs == nil {
			d.violation(req, ViolationInvalidPayload, "nil statfs record")
			return Response{Status: int(errno.Generic)}
		}
	case OpGetxattr:
		return xattrResult(req, resp.Data)
	case OpListxattr:
		return xattrResult(req, encodeNames(resp.Names))
	}
	return resp
}

// finish records the outcome of a replied request.
func (d *Dispatcher) finish(c *call, resp Response) {
	op := c.req.Op.String()
	code := resp.Code()
	if code != errno.OK {
		d.logger.Debug("%s %q -> %s", op, c.req.Path, code)
	}

	if d.metrics == nil {
		return
	}
	d.metrics.RecordRequestEnd(op)
	d.metrics.RecordRequest(op, time.Since(c.start), code.String())
	if c.req.Op.IsCount() && resp.Status > 0 {
		d.metrics.RecordBytes(op, uint64(resp.Status))
	}
}

func (d *Dispatcher) violation(req *Request, kind, format string, args ...interface{}) {
	d.logger.Warn("%s %q: %s: %s", req.Op, req.Path, kind, fmt.Sprintf(format, args...))
	if d.metrics != nil {
		d.metrics.RecordViolation(req.Op.String(), kind)
	}
}
