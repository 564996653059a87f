package dispatch

import (
	"fmt"
	"time"

	"fusebind/errno"
)

// FD is an opaque descriptor minted by Open, Opendir or Create and passed
// back unchanged to later calls on the same file. The bridge never
// interprets it.
type FD uint32

// Attr describes a file. Mtime, Atime, Ctime, Nlink, Size, Mode, Uid and
// Gid are required; the remaining fields are optional and left to the
// kernel when zero.
//
// Mode holds POSIX type and permission bits (S_IFDIR|0755 and so on).
type Attr struct {
	Mtime time.Time
	Atime time.Time
	Ctime time.Time
	Nlink uint32
	Size  uint64
	Mode  uint32
	Uid   uint32
	Gid   uint32

	Ino     uint64
	Rdev    uint32
	Blksize uint32
	Blocks  uint64
}

// Validate reports the first required field that is missing. Nlink,
// Size, Uid and Gid may legitimately be zero and are not checked.
func (a *Attr) Validate() error {
	switch {
	case a == nil:
		return fmt.Errorf("attr: missing record")
	case a.Mode == 0:
		return fmt.Errorf("attr: missing mode")
	case a.Mtime.IsZero():
		return fmt.Errorf("attr: missing mtime")
	case a.Atime.IsZero():
		return fmt.Errorf("attr: missing atime")
	case a.Ctime.IsZero():
		return fmt.Errorf("attr: missing ctime")
	}
	return nil
}

// StatfsRecord describes filesystem capacity.
type StatfsRecord struct {
	Bsize   uint32
	Frsize  uint32
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Favail  uint64
	Fsid    uint64
	Flag    uint64
	Namemax uint32
}

// Request is one decoded kernel call. Only the fields used by Op are
// meaningful.
type Request struct {
	Op Op

	// Path is the target of the operation. For rename and link it is the
	// existing path; for symlink it is the link being created.
	Path string
	// Dest is the new path of rename and link, and the link target of
	// symlink.
	Dest string

	FD    FD
	Flags uint32
	Mode  uint32
	Uid   uint32
	Gid   uint32
	Rdev  uint32

	// Size is the truncate length for truncate/ftruncate, the region
	// length for read, and the caller's buffer size for getxattr and
	// listxattr (0 asks for the required size).
	Size   int64
	Offset int64
	// Buf holds the delivered bytes for write. For read it may be left
	// nil, in which case a region of Size bytes is allocated.
	Buf []byte

	Name     string
	Value    []byte
	Position uint32
	Datasync bool

	Atime time.Time
	Mtime time.Time

	// Err is the transport failure passed to the error hook.
	Err error

	Caller Caller
}

// Response is the translated completion of a Request.
//
// Status is zero or positive on success (the byte count for read and
// write, the value length for xattr calls) and a negative errno.Code on
// failure. Payload fields are only set on success.
type Response struct {
	Status int

	Attr   *Attr
	Statfs *StatfsRecord
	Names  []string
	Link   string
	FD     FD
	Data   []byte
}

// Code returns the failure code, or errno.OK on success.
func (r Response) Code() errno.Code {
	if r.Status < 0 {
		return errno.Code(r.Status)
	}
	return errno.OK
}

// Err returns the failure as an error, or nil on success.
func (r Response) Err() error {
	if r.Status < 0 {
		return errno.Code(r.Status)
	}
	return nil
}
