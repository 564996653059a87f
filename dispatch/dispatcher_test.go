package dispatch

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"sync"
	"testing"
	"time"

	"fusebind/errno"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

type recordingMetrics struct {
	mu         sync.Mutex
	inflight   map[string]int
	results    map[string]int
	bytes      map[string]uint64
	violations map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		inflight:   map[string]int{},
		results:    map[string]int{},
		bytes:      map[string]uint64{},
		violations: map[string]int{},
	}
}

func (m *recordingMetrics) RecordRequestStart(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight[op]++
}

func (m *recordingMetrics) RecordRequestEnd(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight[op]--
}

func (m *recordingMetrics) RecordRequest(op string, _ time.Duration, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[op+":"+result]++
}

func (m *recordingMetrics) RecordBytes(op string, n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes[op] += n
}

func (m *recordingMetrics) RecordViolation(op, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations[op+":"+kind]++
}

func (m *recordingMetrics) violation(op Op, kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.violations[op.String()+":"+kind]
}

// recv waits briefly for one response.
func recv(t *testing.T, ch <-chan Response) Response {
	t.Helper()
	select {
	case resp := <-ch:
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
		return Response{}
	}
}

func assertNoReply(t *testing.T, ch <-chan Response) {
	t.Helper()
	select {
	case resp := <-ch:
		t.Fatalf("unexpected reply %+v", resp)
	case <-time.After(20 * time.Millisecond):
	}
}

func validAttr() *Attr {
	now := time.Now()
	return &Attr{
		Mtime: now,
		Atime: now,
		Ctime: now,
		Nlink: 1,
		Size:  11,
		Mode:  unix.S_IFREG | 0o644,
	}
}

func TestUnsuppliedOperationsAnswerENOSYS(t *testing.T) {
	d := New(NewRegistry(Operations{}))
	ctx := context.Background()

	for _, op := range AllOps() {
		if op == OpGetattr {
			continue
		}
		t.Run(op.String(), func(t *testing.T) {
			resp := recv(t, d.Dispatch(ctx, &Request{Op: op, Path: "/file", Size: 16}))
			assert.Equal(t, int(errno.ENOSYS), resp.Status)
			assert.False(t, d.Registry().Supplied(op))
		})
	}
}

func TestUnknownOperation(t *testing.T) {
	d := New(nil)
	resp := recv(t, d.Dispatch(context.Background(), &Request{Op: Op(999), Path: "/"}))
	assert.Equal(t, int(errno.ENOSYS), resp.Status)
}

func TestDefaultGetattr(t *testing.T) {
	d := New(NewRegistry(Operations{}))
	ctx := context.Background()

	t.Run("root", func(t *testing.T) {
		resp := recv(t, d.Dispatch(ctx, &Request{Op: OpGetattr, Path: "/"}))
		require.Equal(t, 0, resp.Status)
		require.NotNil(t, resp.Attr)
		assert.Equal(t, uint32(unix.S_IFDIR|0o755), resp.Attr.Mode)
		assert.Equal(t, uint64(4096), resp.Attr.Size)
		assert.Equal(t, time.Unix(0, 0), resp.Attr.Mtime)
		assert.NoError(t, resp.Attr.Validate())
	})

	t.Run("other path", func(t *testing.T) {
		resp := recv(t, d.Dispatch(ctx, &Request{Op: OpGetattr, Path: "/nope"}))
		assert.Equal(t, int(errno.EPERM), resp.Status)
		assert.Nil(t, resp.Attr)
	})
}

func TestSupplied(t *testing.T) {
	reg := NewRegistry(Operations{
		Read: func(_ context.Context, _ string, _ FD, _ []byte, _ int64, r *Reply[int]) { r.OK(0) },
	})
	assert.True(t, reg.Supplied(OpRead))
	assert.False(t, reg.Supplied(OpWrite))
	assert.False(t, reg.Supplied(OpGetattr))
	assert.False(t, reg.Supplied(Op(-1)))
}

func TestExtraCompletionsAreIgnored(t *testing.T) {
	m := newRecordingMetrics()
	d := New(NewRegistry(Operations{
		Unlink: func(_ context.Context, _ string, r *Done) {
			r.Status(0)
			r.Fail(errno.ENOENT)
			r.Status(int(errno.EIO))
		},
	}), WithMetrics(m))

	ch := d.Dispatch(context.Background(), &Request{Op: OpUnlink, Path: "/a"})
	resp := recv(t, ch)
	assert.Equal(t, 0, resp.Status)
	assertNoReply(t, ch)
	assert.Equal(t, 2, m.violation(OpUnlink, ViolationDoubleCompletion))
	assert.Equal(t, 1, m.results["unlink:OK"])
	assert.Equal(t, 0, m.inflight["unlink"])
}

func TestHandlerThatNeverCompletes(t *testing.T) {
	m := newRecordingMetrics()
	var held *Done
	d := New(NewRegistry(Operations{
		Flush: func(_ context.Context, _ string, _ FD, r *Done) { held = r },
	}), WithMetrics(m))

	ch := d.Dispatch(context.Background(), &Request{Op: OpFlush, Path: "/a"})
	assertNoReply(t, ch)
	assert.Equal(t, 1, m.inflight["flush"])

	// A late completion is still the first one.
	held.Status(0)
	assert.Equal(t, 0, recv(t, ch).Status)
	assert.Equal(t, 0, m.inflight["flush"])
}

func TestAsynchronousCompletion(t *testing.T) {
	d := New(NewRegistry(Operations{
		Readlink: func(_ context.Context, _ string, r *Reply[string]) {
			go func() {
				time.Sleep(5 * time.Millisecond)
				r.OK("/target")
			}()
		},
	}))

	resp, err := d.Call(context.Background(), &Request{Op: OpReadlink, Path: "/link"})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Status)
	assert.Equal(t, "/target", resp.Link)
}

func TestCallHonoursContext(t *testing.T) {
	d := New(NewRegistry(Operations{
		Access: func(context.Context, string, uint32, *Done) {},
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := d.Call(ctx, &Request{Op: OpAccess, Path: "/"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPanicBecomesGenericFailure(t *testing.T) {
	m := newRecordingMetrics()
	d := New(NewRegistry(Operations{
		Mkdir: func(context.Context, string, uint32, *Done) {
			panic("boom")
		},
		Rmdir: func(_ context.Context, _ string, r *Done) {
			r.Status(0)
			panic("after reply")
		},
	}), WithMetrics(m))

	t.Run("before completion", func(t *testing.T) {
		ch := d.Dispatch(context.Background(), &Request{Op: OpMkdir, Path: "/d"})
		assert.Equal(t, int(errno.EIO), recv(t, ch).Status)
		assertNoReply(t, ch)
		assert.Equal(t, 1, m.violation(OpMkdir, ViolationPanic))
	})

	t.Run("after completion", func(t *testing.T) {
		ch := d.Dispatch(context.Background(), &Request{Op: OpRmdir, Path: "/d"})
		assert.Equal(t, 0, recv(t, ch).Status)
		assertNoReply(t, ch)
		assert.Equal(t, 0, m.violation(OpRmdir, ViolationPanic))
	})
}

func TestPayloadContract(t *testing.T) {
	tests := []struct {
		name string
		ops  Operations
		op   Op
		kind string
	}{
		{
			name: "getattr status only",
			ops:  Operations{Getattr: func(_ context.Context, _ string, r *Reply[*Attr]) { r.Status(0) }},
			op:   OpGetattr,
			kind: ViolationMissingPayload,
		},
		{
			name: "getattr nil attr",
			ops:  Operations{Getattr: func(_ context.Context, _ string, r *Reply[*Attr]) { r.OK(nil) }},
			op:   OpGetattr,
			kind: ViolationInvalidPayload,
		},
		{
			name: "fgetattr without mtime",
			ops: Operations{Fgetattr: func(_ context.Context, _ string, _ FD, r *Reply[*Attr]) {
				a := validAttr()
				a.Mtime = time.Time{}
				r.OK(a)
			}},
			op:   OpFgetattr,
			kind: ViolationInvalidPayload,
		},
		{
			name: "statfs nil",
			ops:  Operations{Statfs: func(_ context.Context, _ string, r *Reply[*StatfsRecord]) { r.OK(nil) }},
			op:   OpStatfs,
			kind: ViolationInvalidPayload,
		},
		{
			name: "open status only",
			ops:  Operations{Open: func(_ context.Context, _ string, _ uint32, r *Reply[FD]) { r.Status(0) }},
			op:   OpOpen,
			kind: ViolationMissingPayload,
		},
		{
			name: "readdir status only",
			ops:  Operations{Readdir: func(_ context.Context, _ string, r *Reply[[]string]) { r.Fail(nil) }},
			op:   OpReaddir,
			kind: ViolationMissingPayload,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newRecordingMetrics()
			d := New(NewRegistry(tt.ops), WithMetrics(m))
			resp := recv(t, d.Dispatch(context.Background(), &Request{Op: tt.op, Path: "/f"}))
			assert.Equal(t, int(errno.Generic), resp.Status)
			assert.Equal(t, 1, m.violation(tt.op, tt.kind))
		})
	}
}

func TestPayloadOperations(t *testing.T) {
	attr := validAttr()
	d := New(NewRegistry(Operations{
		Getattr: func(_ context.Context, _ string, r *Reply[*Attr]) { r.OK(attr) },
		Open:    func(_ context.Context, _ string, _ uint32, r *Reply[FD]) { r.OK(42) },
		Statfs: func(_ context.Context, _ string, r *Reply[*StatfsRecord]) {
			r.OK(&StatfsRecord{Bsize: 4096, Blocks: 10, Namemax: 255})
		},
		Readdir: func(_ context.Context, _ string, r *Reply[[]string]) { r.OK([]string{"test"}) },
	}))
	ctx := context.Background()

	resp := recv(t, d.Dispatch(ctx, &Request{Op: OpGetattr, Path: "/test"}))
	require.NotNil(t, resp.Attr)
	assert.Equal(t, uint64(11), resp.Attr.Size)
	assert.NotSame(t, attr, resp.Attr)

	resp = recv(t, d.Dispatch(ctx, &Request{Op: OpOpen, Path: "/test"}))
	assert.Equal(t, FD(42), resp.FD)

	resp = recv(t, d.Dispatch(ctx, &Request{Op: OpStatfs, Path: "/"}))
	require.NotNil(t, resp.Statfs)
	assert.Equal(t, uint32(255), resp.Statfs.Namemax)

	resp = recv(t, d.Dispatch(ctx, &Request{Op: OpReaddir, Path: "/"}))
	assert.Equal(t, []string{"test"}, resp.Names)
}

func TestFailTranslation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"code", errno.ENOTEMPTY, int(errno.ENOTEMPTY)},
		{"symbolic message", errors.New("EEXIST"), int(errno.EEXIST)},
		{"stdlib", fmt.Errorf("stat: %w", iofs.ErrNotExist), int(errno.ENOENT)},
		{"opaque", errors.New("something broke"), int(errno.Generic)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(NewRegistry(Operations{
				Chmod: func(_ context.Context, _ string, _ uint32, r *Done) { r.Fail(tt.err) },
			}))
			resp := recv(t, d.Dispatch(context.Background(), &Request{Op: OpChmod, Path: "/f"}))
			assert.Equal(t, tt.want, resp.Status)
		})
	}
}

func TestNegativeStatusIsPassedThrough(t *testing.T) {
	d := New(NewRegistry(Operations{
		Getattr: func(_ context.Context, _ string, r *Reply[*Attr]) { r.Status(-2) },
		Read:    func(_ context.Context, _ string, _ FD, _ []byte, _ int64, r *Reply[int]) { r.OK(-13) },
	}))
	ctx := context.Background()

	resp := recv(t, d.Dispatch(ctx, &Request{Op: OpGetattr, Path: "/x"}))
	assert.Equal(t, int(errno.ENOENT), resp.Status)
	assert.Equal(t, errno.ENOENT, resp.Code())
	assert.ErrorIs(t, resp.Err(), errno.ENOENT)

	resp = recv(t, d.Dispatch(ctx, &Request{Op: OpRead, Path: "/x", Size: 4}))
	assert.Equal(t, int(errno.EACCES), resp.Status)
	assert.Nil(t, resp.Data)
}

func TestConcurrentDispatchBindsOwnCaller(t *testing.T) {
	d := New(NewRegistry(Operations{
		Access: func(ctx context.Context, path string, _ uint32, r *Done) {
			c := CallerFrom(ctx)
			go func() {
				time.Sleep(time.Millisecond)
				if path != fmt.Sprintf("/%d", c.Pid) || c.Uid != c.Pid+1 {
					r.Fail(errno.EACCES)
					return
				}
				r.Status(0)
			}()
		},
	}))

	g, ctx := errgroup.WithContext(context.Background())
	for i := 1; i <= 200; i++ {
		pid := uint32(i)
		g.Go(func() error {
			resp, err := d.Call(ctx, &Request{
				Op:     OpAccess,
				Path:   fmt.Sprintf("/%d", pid),
				Caller: Caller{Pid: pid, Uid: pid + 1, Gid: 7},
			})
			if err != nil {
				return err
			}
			if resp.Status != 0 {
				return fmt.Errorf("pid %d: status %d", pid, resp.Status)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestCallerFromEmptyContext(t *testing.T) {
	assert.Equal(t, Caller{}, CallerFrom(context.Background()))
	ctx := WithCaller(context.Background(), Caller{Pid: 1, Uid: 2, Gid: 3})
	assert.Equal(t, Caller{Pid: 1, Uid: 2, Gid: 3}, CallerFrom(ctx))
}

func TestOpNames(t *testing.T) {
	for _, op := range AllOps() {
		got, ok := ParseOp(op.String())
		require.True(t, ok, op.String())
		assert.Equal(t, op, got)
	}
	got, ok := ParseOp("GETATTR")
	assert.True(t, ok)
	assert.Equal(t, OpGetattr, got)

	_, ok = ParseOp("frobnicate")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Op(-3).String())
}
