package kernel

import (
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"fusebind/dispatch"
	"fusebind/errno"

	"bazil.org/fuse"
	"golang.org/x/sys/unix"
)

const helloContent = "hello world"

func fileAttr(mode uint32, size uint64) *dispatch.Attr {
	now := time.Now()
	return &dispatch.Attr{
		Mtime: now,
		Atime: now,
		Ctime: now,
		Nlink: 1,
		Size:  size,
		Mode:  mode,
		Uid:   uint32(os.Getuid()),
		Gid:   uint32(os.Getgid()),
	}
}

// helloOps is the read-only filesystem with a single file /test.
func helloOps() dispatch.Operations {
	return dispatch.Operations{
		Readdir: func(_ context.Context, path string, r *dispatch.Reply[[]string]) {
			if path != "/" {
				r.Fail(errno.ENOENT)
				return
			}
			r.OK([]string{"test"})
		},
		Getattr: func(_ context.Context, path string, r *dispatch.Reply[*dispatch.Attr]) {
			switch path {
			case "/":
				r.OK(fileAttr(unix.S_IFDIR|0o755, 4096))
			case "/test":
				r.OK(fileAttr(unix.S_IFREG|0o644, uint64(len(helloContent))))
			default:
				r.Fail(errno.ENOENT)
			}
		},
		Open: func(_ context.Context, _ string, _ uint32, r *dispatch.Reply[dispatch.FD]) {
			r.OK(42)
		},
		Read: func(_ context.Context, _ string, fd dispatch.FD, buf []byte, pos int64, r *dispatch.Reply[int]) {
			if fd != 42 {
				r.Fail(errno.EBADF)
				return
			}
			if pos >= int64(len(helloContent)) {
				r.OK(0)
				return
			}
			r.OK(copy(buf, helloContent[pos:]))
		},
	}
}

func setupTestFS(t *testing.T, ops dispatch.Operations) *FS {
	t.Helper()
	return New(dispatch.New(dispatch.NewRegistry(ops)), Options{})
}

func rootNode(t *testing.T, f *FS) *node {
	t.Helper()
	root, err := f.Root()
	if err != nil {
		t.Fatalf("Failed to get root: %v", err)
	}
	return root.(*node)
}

func lookup(t *testing.T, dir *node, name string) *node {
	t.Helper()
	n, err := dir.Lookup(context.Background(), &fuse.LookupRequest{Name: name}, &fuse.LookupResponse{})
	if err != nil {
		t.Fatalf("Failed to lookup %q: %v", name, err)
	}
	return n.(*node)
}

func TestHelloWorld(t *testing.T) {
	f := setupTestFS(t, helloOps())
	ctx := context.Background()
	root := rootNode(t, f)

	t.Run("RootAttributes", func(t *testing.T) {
		attr := &fuse.Attr{}
		if err := root.Attr(ctx, attr); err != nil {
			t.Fatalf("Failed to get root attributes: %v", err)
		}
		if !attr.Mode.IsDir() {
			t.Errorf("Root should be a directory, got mode %v", attr.Mode)
		}
		if attr.Valid != time.Second {
			t.Errorf("Expected attribute TTL 1s, got %v", attr.Valid)
		}
	})

	t.Run("ReadDir", func(t *testing.T) {
		h, err := root.Open(ctx, &fuse.OpenRequest{Dir: true}, &fuse.OpenResponse{})
		if err != nil {
			t.Fatalf("Failed to open root: %v", err)
		}
		entries, err := h.(*handle).ReadDirAll(ctx)
		if err != nil {
			t.Fatalf("Failed to read root: %v", err)
		}
		names := map[string]bool{}
		for _, e := range entries {
			names[e.Name] = true
		}
		for _, want := range []string{".", "..", "test"} {
			if !names[want] {
				t.Errorf("Expected %q in listing, got %v", want, entries)
			}
		}
	})

	t.Run("FileAttributes", func(t *testing.T) {
		n := lookup(t, root, "test")
		resp := &fuse.GetattrResponse{}
		if err := n.Getattr(ctx, &fuse.GetattrRequest{}, resp); err != nil {
			t.Fatalf("Failed to getattr: %v", err)
		}
		if resp.Attr.Size != 11 {
			t.Errorf("Expected size 11, got %d", resp.Attr.Size)
		}
		if resp.Attr.Mode != 0o644 {
			t.Errorf("Expected mode 0644, got %v", resp.Attr.Mode)
		}
	})

	t.Run("FileReading", func(t *testing.T) {
		n := lookup(t, root, "test")
		h, err := n.Open(ctx, &fuse.OpenRequest{Flags: fuse.OpenReadOnly}, &fuse.OpenResponse{})
		if err != nil {
			t.Fatalf("Failed to open file: %v", err)
		}
		fh := h.(*handle)

		tests := []struct {
			offset int64
			size   int
			want   string
		}{
			{0, 4096, "hello world"},
			{0, 5, "hello"},
			{6, 5, "world"},
			{11, 5, ""},
			{100, 5, ""},
		}
		for _, tt := range tests {
			resp := &fuse.ReadResponse{}
			if err := fh.Read(ctx, &fuse.ReadRequest{Offset: tt.offset, Size: tt.size}, resp); err != nil {
				t.Fatalf("Failed to read at %d: %v", tt.offset, err)
			}
			if string(resp.Data) != tt.want {
				t.Errorf("Read(%d, %d): expected %q, got %q", tt.offset, tt.size, tt.want, resp.Data)
			}
		}

		if err := fh.Release(ctx, &fuse.ReleaseRequest{}); err != nil {
			t.Errorf("Failed to release file: %v", err)
		}
		if _, ok := n.openFD(); ok {
			t.Error("Descriptor should be dropped after release")
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := root.Lookup(ctx, &fuse.LookupRequest{Name: "nope"}, &fuse.LookupResponse{})
		if !errors.Is(err, fuse.Errno(syscall.ENOENT)) {
			t.Errorf("Expected ENOENT, got %v", err)
		}
	})

	t.Run("SameNodeForSamePath", func(t *testing.T) {
		if lookup(t, root, "test") != lookup(t, root, "test") {
			t.Error("Lookups of the same path should return the same node")
		}
	})
}

// recordingFS keeps files in memory and records the calls it receives.
type recordingFS struct {
	mu    sync.Mutex
	files map[string][]byte
	modes map[string]uint32
	calls []string
}

func newRecordingFS() *recordingFS {
	return &recordingFS{
		files: map[string][]byte{},
		modes: map[string]uint32{},
	}
}

func (r *recordingFS) record(call string) {
	r.calls = append(r.calls, call)
}

func (r *recordingFS) ops() dispatch.Operations {
	return dispatch.Operations{
		Getattr: func(_ context.Context, path string, rep *dispatch.Reply[*dispatch.Attr]) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if path == "/" {
				rep.OK(fileAttr(unix.S_IFDIR|0o755, 4096))
				return
			}
			data, ok := r.files[path]
			if !ok {
				rep.Fail(errno.ENOENT)
				return
			}
			rep.OK(fileAttr(r.modes[path], uint64(len(data))))
		},
		Create: func(_ context.Context, path string, mode uint32, rep *dispatch.Reply[dispatch.FD]) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.record("create " + path)
			r.files[path] = nil
			r.modes[path] = mode
			rep.OK(7)
		},
		Write: func(_ context.Context, path string, _ dispatch.FD, buf []byte, pos int64, rep *dispatch.Reply[int]) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.record("write " + path)
			data := r.files[path]
			if end := int(pos) + len(buf); end > len(data) {
				data = append(data, make([]byte, end-len(data))...)
			}
			copy(data[pos:], buf)
			r.files[path] = data
			rep.OK(len(buf))
		},
		Truncate: func(_ context.Context, path string, size int64, rep *dispatch.Done) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.record("truncate " + path)
			data := r.files[path]
			if int(size) <= len(data) {
				data = data[:size]
			} else {
				data = append(data, make([]byte, int(size)-len(data))...)
			}
			r.files[path] = data
			rep.Status(0)
		},
		Chmod: func(_ context.Context, path string, mode uint32, rep *dispatch.Done) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.record("chmod " + path)
			r.modes[path] = mode
			rep.Status(0)
		},
		Chown: func(_ context.Context, path string, _, gid uint32, rep *dispatch.Done) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if gid == unchangedID {
				r.record("chown-uid " + path)
			} else {
				r.record("chown " + path)
			}
			rep.Status(0)
		},
		Utimens: func(_ context.Context, path string, atime, mtime time.Time, rep *dispatch.Done) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if atime.IsZero() || mtime.IsZero() {
				rep.Fail(errno.EINVAL)
				return
			}
			r.record("utimens " + path)
			rep.Status(0)
		},
		Rename: func(_ context.Context, src, dest string, rep *dispatch.Done) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.record("rename " + src + " " + dest)
			r.files[dest] = r.files[src]
			r.modes[dest] = r.modes[src]
			delete(r.files, src)
			delete(r.modes, src)
			rep.Status(0)
		},
	}
}

func TestCreateAndWrite(t *testing.T) {
	rec := newRecordingFS()
	f := setupTestFS(t, rec.ops())
	ctx := context.Background()
	root := rootNode(t, f)

	n, h, err := root.Create(ctx, &fuse.CreateRequest{Name: "hello", Mode: 0o644}, &fuse.CreateResponse{})
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if rec.modes["/hello"] != unix.S_IFREG|0o644 {
		t.Errorf("Expected regular file mode, got %o", rec.modes["/hello"])
	}

	fh := h.(*handle)
	if fh.fd != 7 {
		t.Errorf("Expected descriptor 7, got %d", fh.fd)
	}

	resp := &fuse.WriteResponse{}
	if err := fh.Write(ctx, &fuse.WriteRequest{Data: []byte(helloContent)}, resp); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if resp.Size != 11 {
		t.Errorf("Expected 11 bytes written, got %d", resp.Size)
	}

	attr := &fuse.GetattrResponse{}
	if err := n.(*node).Getattr(ctx, &fuse.GetattrRequest{}, attr); err != nil {
		t.Fatalf("Failed to getattr: %v", err)
	}
	if attr.Attr.Size != 11 {
		t.Errorf("Expected size 11, got %d", attr.Attr.Size)
	}
	if string(rec.files["/hello"]) != helloContent {
		t.Errorf("Expected recorded %q, got %q", helloContent, rec.files["/hello"])
	}
}

func TestSetattrSplitsIntoHandlers(t *testing.T) {
	rec := newRecordingFS()
	rec.files["/f"] = []byte("0123456789")
	rec.modes["/f"] = unix.S_IFREG | 0o600
	f := setupTestFS(t, rec.ops())
	ctx := context.Background()
	n := lookup(t, rootNode(t, f), "f")

	req := &fuse.SetattrRequest{
		Valid: fuse.SetattrSize | fuse.SetattrMode | fuse.SetattrUid | fuse.SetattrMtime,
		Size:  4,
		Mode:  0o640,
		Uid:   1000,
		Mtime: time.Unix(1000, 0),
	}
	resp := &fuse.SetattrResponse{}
	if err := n.Setattr(ctx, req, resp); err != nil {
		t.Fatalf("Failed to setattr: %v", err)
	}

	want := []string{"truncate /f", "chmod /f", "chown-uid /f", "utimens /f"}
	if len(rec.calls) != len(want) {
		t.Fatalf("Expected calls %v, got %v", want, rec.calls)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Errorf("Call %d: expected %q, got %q", i, want[i], rec.calls[i])
		}
	}
	if resp.Attr.Size != 4 {
		t.Errorf("Expected size 4 after truncate, got %d", resp.Attr.Size)
	}
	if resp.Attr.Mode != 0o640 {
		t.Errorf("Expected mode 0640, got %v", resp.Attr.Mode)
	}
}

func TestRenameKeepsNodeIdentity(t *testing.T) {
	rec := newRecordingFS()
	rec.files["/a"] = []byte("x")
	rec.modes["/a"] = unix.S_IFREG | 0o644
	f := setupTestFS(t, rec.ops())
	ctx := context.Background()
	root := rootNode(t, f)

	a := lookup(t, root, "a")
	if err := root.Rename(ctx, &fuse.RenameRequest{OldName: "a", NewName: "b"}, root); err != nil {
		t.Fatalf("Failed to rename: %v", err)
	}
	if a.Path() != "/b" {
		t.Errorf("Expected node path /b, got %q", a.Path())
	}
	if lookup(t, root, "b") != a {
		t.Error("Lookup after rename should return the renamed node")
	}
}

func TestDefaultsWithoutHandlers(t *testing.T) {
	f := setupTestFS(t, dispatch.Operations{})
	ctx := context.Background()
	root := rootNode(t, f)

	t.Run("Statfs", func(t *testing.T) {
		resp := &fuse.StatfsResponse{}
		if err := f.Statfs(ctx, &fuse.StatfsRequest{}, resp); err != nil {
			t.Fatalf("Failed to statfs: %v", err)
		}
		if resp.Bsize != 512 || resp.Namelen != 255 {
			t.Errorf("Unexpected statfs defaults: %+v", resp)
		}
	})

	t.Run("OpenAndRelease", func(t *testing.T) {
		h, err := root.Open(ctx, &fuse.OpenRequest{Dir: true}, &fuse.OpenResponse{})
		if err != nil {
			t.Fatalf("Open should succeed without a handler: %v", err)
		}
		if h.(*handle).fd != 0 {
			t.Errorf("Expected descriptor 0, got %d", h.(*handle).fd)
		}
		if err := h.(*handle).Release(ctx, &fuse.ReleaseRequest{Dir: true}); err != nil {
			t.Errorf("Release should succeed without a handler: %v", err)
		}
	})

	t.Run("RootAttributes", func(t *testing.T) {
		attr := &fuse.Attr{}
		if err := root.Attr(ctx, attr); err != nil {
			t.Fatalf("Default getattr should describe the root: %v", err)
		}
		if !attr.Mode.IsDir() || attr.Size != 4096 {
			t.Errorf("Unexpected root attributes: %+v", attr)
		}
	})

	t.Run("Unsupported", func(t *testing.T) {
		_, err := root.Mkdir(ctx, &fuse.MkdirRequest{Name: "d", Mode: os.ModeDir | 0o755})
		if !errors.Is(err, fuse.Errno(syscall.ENOSYS)) {
			t.Errorf("Expected ENOSYS, got %v", err)
		}
	})
}

func TestInterruptedRequest(t *testing.T) {
	f := setupTestFS(t, dispatch.Operations{
		Readlink: func(context.Context, string, *dispatch.Reply[string]) {},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := rootNode(t, f).Readlink(ctx, &fuse.ReadlinkRequest{})
	if !errors.Is(err, errInterrupted) {
		t.Errorf("Expected EINTR, got %v", err)
	}
}

func TestCallerFromContext(t *testing.T) {
	var got dispatch.Caller
	f := setupTestFS(t, dispatch.Operations{
		Access: func(ctx context.Context, _ string, _ uint32, r *dispatch.Done) {
			got = dispatch.CallerFrom(ctx)
			r.Status(0)
		},
	})

	cfg := f.Config(nil)
	req := &fuse.AccessRequest{Header: fuse.Header{Pid: 11, Uid: 12, Gid: 13}}
	ctx := cfg.WithContext(context.Background(), req)
	if err := rootNode(t, f).Access(ctx, req); err != nil {
		t.Fatalf("Access failed: %v", err)
	}
	if got != (dispatch.Caller{Pid: 11, Uid: 12, Gid: 13}) {
		t.Errorf("Unexpected caller %+v", got)
	}
}

func TestModeConversion(t *testing.T) {
	tests := []struct {
		raw  uint32
		mode os.FileMode
	}{
		{unix.S_IFREG | 0o644, 0o644},
		{unix.S_IFDIR | 0o755, os.ModeDir | 0o755},
		{unix.S_IFLNK | 0o777, os.ModeSymlink | 0o777},
		{unix.S_IFIFO | 0o600, os.ModeNamedPipe | 0o600},
		{unix.S_IFCHR | 0o600, os.ModeDevice | os.ModeCharDevice | 0o600},
		{unix.S_IFBLK | 0o600, os.ModeDevice | 0o600},
		{unix.S_IFREG | unix.S_ISUID | 0o755, os.ModeSetuid | 0o755},
	}
	for _, tt := range tests {
		if got := fileMode(tt.raw); got != tt.mode {
			t.Errorf("fileMode(%o): expected %v, got %v", tt.raw, tt.mode, got)
		}
		if got := rawMode(tt.mode); got != tt.raw {
			t.Errorf("rawMode(%v): expected %o, got %o", tt.mode, tt.raw, got)
		}
	}
}

func TestDestroyOnce(t *testing.T) {
	var calls int
	f := setupTestFS(t, dispatch.Operations{
		Destroy: func(_ context.Context, r *dispatch.Done) {
			calls++
			r.Status(0)
		},
	})
	f.Destroy()
	f.Destroy()
	if calls != 1 {
		t.Errorf("Expected one destroy, got %d", calls)
	}
	if f.MarkDestroyed() {
		t.Error("MarkDestroyed should report destroy already delivered")
	}
}

func TestLookupAttrsAreNotReused(t *testing.T) {
	var (
		mu    sync.Mutex
		size  uint64
		calls int
	)
	f := setupTestFS(t, dispatch.Operations{
		Getattr: func(_ context.Context, path string, r *dispatch.Reply[*dispatch.Attr]) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if path == "/" {
				r.OK(fileAttr(unix.S_IFDIR|0o755, 4096))
				return
			}
			r.OK(fileAttr(unix.S_IFREG|0o644, size))
		},
	})
	ctx := context.Background()
	root := rootNode(t, f)

	// The server follows every Lookup with Attr on the returned node.
	c := lookup(t, root, "f")
	attr := &fuse.Attr{}
	if err := c.Attr(ctx, attr); err != nil {
		t.Fatalf("Failed to get attr: %v", err)
	}
	if attr.Size != 0 {
		t.Errorf("Expected size 0, got %d", attr.Size)
	}
	if calls != 1 {
		t.Errorf("Expected one getattr call for lookup and attr, got %d", calls)
	}

	mu.Lock()
	size = 11
	mu.Unlock()

	resp := &fuse.GetattrResponse{}
	if err := c.Getattr(ctx, &fuse.GetattrRequest{}, resp); err != nil {
		t.Fatalf("Failed to getattr: %v", err)
	}
	if resp.Attr.Size != 11 {
		t.Errorf("Expected size 11 after growth, got %d", resp.Attr.Size)
	}

	attr = &fuse.Attr{}
	if err := c.Attr(ctx, attr); err != nil {
		t.Fatalf("Failed to get attr: %v", err)
	}
	if attr.Size != 11 {
		t.Errorf("Expected size 11 from attr, got %d", attr.Size)
	}
}

func TestWriteBufferOutlivesRequest(t *testing.T) {
	var kept []byte
	f := setupTestFS(t, dispatch.Operations{
		Getattr: func(_ context.Context, path string, r *dispatch.Reply[*dispatch.Attr]) {
			if path == "/" {
				r.OK(fileAttr(unix.S_IFDIR|0o755, 4096))
				return
			}
			r.OK(fileAttr(unix.S_IFREG|0o644, 0))
		},
		Open: func(_ context.Context, _ string, _ uint32, r *dispatch.Reply[dispatch.FD]) {
			r.OK(3)
		},
		Write: func(_ context.Context, _ string, _ dispatch.FD, buf []byte, _ int64, r *dispatch.Reply[int]) {
			kept = buf
			r.OK(len(buf))
		},
	})
	ctx := context.Background()
	n := lookup(t, rootNode(t, f), "f")

	h, err := n.Open(ctx, &fuse.OpenRequest{Flags: fuse.OpenWriteOnly}, &fuse.OpenResponse{})
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}

	data := []byte(helloContent)
	if err := h.(*handle).Write(ctx, &fuse.WriteRequest{Data: data}, &fuse.WriteResponse{}); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	// The server reuses its buffer for the next message.
	copy(data, "XXXXXXXXXXX")

	if string(kept) != helloContent {
		t.Errorf("Expected handler to keep %q, got %q", helloContent, kept)
	}
}
