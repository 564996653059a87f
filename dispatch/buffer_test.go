package dispatch

import (
	"context"
	"testing"

	"fusebind/errno"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloWorld = "hello world"

func helloRead(_ context.Context, _ string, _ FD, buf []byte, pos int64, r *Reply[int]) {
	if pos >= int64(len(helloWorld)) {
		r.OK(0)
		return
	}
	r.OK(copy(buf, helloWorld[pos:]))
}

func TestReadRegion(t *testing.T) {
	var seen []byte
	d := New(NewRegistry(Operations{
		Read: func(ctx context.Context, path string, fd FD, buf []byte, pos int64, r *Reply[int]) {
			seen = buf
			helloRead(ctx, path, fd, buf, pos, r)
		},
	}))
	ctx := context.Background()

	tests := []struct {
		name   string
		size   int64
		offset int64
		want   string
	}{
		{"whole file", 4096, 0, "hello world"},
		{"prefix", 5, 0, "hello"},
		{"suffix", 5, 6, "world"},
		{"at end", 10, 11, ""},
		{"beyond end", 10, 500, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := recv(t, d.Dispatch(ctx, &Request{Op: OpRead, Path: "/test", Size: tt.size, Offset: tt.offset}))
			require.Equal(t, len(tt.want), resp.Status)
			assert.Equal(t, tt.want, string(resp.Data))
			assert.Len(t, seen, int(tt.size))
			if len(resp.Data) > 0 {
				// The reply must not alias the handler's region.
				seen[0] = 'X'
				assert.Equal(t, tt.want[0], resp.Data[0])
			}
		})
	}
}

func TestReadCountBeyondRegion(t *testing.T) {
	m := newRecordingMetrics()
	d := New(NewRegistry(Operations{
		Read: func(_ context.Context, _ string, _ FD, buf []byte, _ int64, r *Reply[int]) {
			r.Status(len(buf) + 1)
		},
	}), WithMetrics(m))

	resp := recv(t, d.Dispatch(context.Background(), &Request{Op: OpRead, Path: "/f", Size: 8}))
	assert.Equal(t, int(errno.Generic), resp.Status)
	assert.Equal(t, 1, m.violation(OpRead, ViolationCountOutOfRange))
}

func TestWriteSeesDeliveredBytes(t *testing.T) {
	m := newRecordingMetrics()
	var got []byte
	d := New(NewRegistry(Operations{
		Write: func(_ context.Context, _ string, _ FD, buf []byte, _ int64, r *Reply[int]) {
			got = append([]byte{}, buf...)
			r.OK(len(buf))
		},
	}), WithMetrics(m))

	resp := recv(t, d.Dispatch(context.Background(), &Request{Op: OpWrite, Path: "/f", Buf: []byte(helloWorld)}))
	assert.Equal(t, 11, resp.Status)
	assert.Equal(t, helloWorld, string(got))
	assert.Nil(t, resp.Data)
	assert.Equal(t, uint64(11), m.bytes["write"])
}

func TestWriteCountBeyondRegion(t *testing.T) {
	d := New(NewRegistry(Operations{
		Write: func(_ context.Context, _ string, _ FD, buf []byte, _ int64, r *Reply[int]) {
			r.OK(len(buf) * 2)
		},
	}))

	resp := recv(t, d.Dispatch(context.Background(), &Request{Op: OpWrite, Path: "/f", Buf: []byte("abc")}))
	assert.Equal(t, int(errno.Generic), resp.Status)
}

func TestListxattrSizeNegotiation(t *testing.T) {
	d := New(NewRegistry(Operations{
		Listxattr: func(_ context.Context, _ string, r *Reply[[]string]) {
			r.OK([]string{"user.a", "user.bb"})
		},
	}))
	ctx := context.Background()
	want := "user.a\x00user.bb\x00"

	probe := recv(t, d.Dispatch(ctx, &Request{Op: OpListxattr, Path: "/f", Size: 0}))
	require.Equal(t, len(want), probe.Status)

	exact := recv(t, d.Dispatch(ctx, &Request{Op: OpListxattr, Path: "/f", Size: int64(probe.Status)}))
	assert.Equal(t, len(want), exact.Status)
	assert.Equal(t, want, string(exact.Data))

	small := recv(t, d.Dispatch(ctx, &Request{Op: OpListxattr, Path: "/f", Size: 3}))
	assert.Equal(t, int(errno.ERANGE), small.Status)
	assert.Nil(t, small.Data)
}

func TestListxattrEmpty(t *testing.T) {
	d := New(NewRegistry(Operations{
		Listxattr: func(_ context.Context, _ string, r *Reply[[]string]) { r.OK(nil) },
	}))

	resp := recv(t, d.Dispatch(context.Background(), &Request{Op: OpListxattr, Path: "/f", Size: 64}))
	assert.Equal(t, 0, resp.Status)
	assert.Empty(t, resp.Data)
}

func TestGetxattrSizeNegotiation(t *testing.T) {
	value := []byte("some value")
	d := New(NewRegistry(Operations{
		Getxattr: func(_ context.Context, _, name string, _ uint32, r *Reply[[]byte]) {
			if name != "user.k" {
				r.Fail(errno.ENODATA)
				return
			}
			r.OK(value)
		},
	}))
	ctx := context.Background()

	probe := recv(t, d.Dispatch(ctx, &Request{Op: OpGetxattr, Path: "/f", Name: "user.k"}))
	assert.Equal(t, len(value), probe.Status)

	full := recv(t, d.Dispatch(ctx, &Request{Op: OpGetxattr, Path: "/f", Name: "user.k", Size: 64}))
	assert.Equal(t, "some value", string(full.Data))
	value[0] = 'S'
	assert.Equal(t, "some value", string(full.Data))

	small := recv(t, d.Dispatch(ctx, &Request{Op: OpGetxattr, Path: "/f", Name: "user.k", Size: 2}))
	assert.Equal(t, int(errno.ERANGE), small.Status)

	missing := recv(t, d.Dispatch(ctx, &Request{Op: OpGetxattr, Path: "/f", Name: "user.x", Size: 64}))
	assert.Equal(t, int(errno.ENODATA), missing.Status)
}

func TestEncodeNames(t *testing.T) {
	assert.Equal(t, []byte{}, encodeNames(nil))
	assert.Equal(t, []byte("a\x00bc\x00"), encodeNames([]string{"a", "bc"}))
}
