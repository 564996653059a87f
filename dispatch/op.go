package dispatch

import "strings"

// Op identifies one filesystem operation.
type Op int

// Operations known to the bridge. The order is stable; names match the
// handler field names in lower case.
const (
	OpInit Op = iota
	OpError
	OpAccess
	OpStatfs
	OpGetattr
	OpFgetattr
	OpFlush
	OpFsync
	OpFsyncdir
	OpReaddir
	OpTruncate
	OpFtruncate
	OpReadlink
	OpChown
	OpChmod
	OpMknod
	OpSetxattr
	OpGetxattr
	OpListxattr
	OpRemovexattr
	OpOpen
	OpOpendir
	OpRead
	OpWrite
	OpRelease
	OpReleasedir
	OpCreate
	OpUtimens
	OpUnlink
	OpRename
	OpLink
	OpSymlink
	OpMkdir
	OpRmdir
	OpDestroy

	numOps
)

var opNames = [numOps]string{
	OpInit:        "init",
	OpError:       "error",
	OpAccess:      "access",
	OpStatfs:      "statfs",
	OpGetattr:     "getattr",
	OpFgetattr:    "fgetattr",
	OpFlush:       "flush",
	OpFsync:       "fsync",
	OpFsyncdir:    "fsyncdir",
	OpReaddir:     "readdir",
	OpTruncate:    "truncate",
	OpFtruncate:   "ftruncate",
	OpReadlink:    "readlink",
	OpChown:       "chown",
	OpChmod:       "chmod",
	OpMknod:       "mknod",
	OpSetxattr:    "setxattr",
	OpGetxattr:    "getxattr",
	OpListxattr:   "listxattr",
	OpRemovexattr: "removexattr",
	OpOpen:        "open",
	OpOpendir:     "opendir",
	OpRead:        "read",
	OpWrite:       "write",
	OpRelease:     "release",
	OpReleasedir:  "releasedir",
	OpCreate:      "create",
	OpUtimens:     "utimens",
	OpUnlink:      "unlink",
	OpRename:      "rename",
	OpLink:        "link",
	OpSymlink:     "symlink",
	OpMkdir:       "mkdir",
	OpRmdir:       "rmdir",
	OpDestroy:     "destroy",
}

// AllOps returns every known operation in declaration order.
func AllOps() []Op {
	ops := make([]Op, numOps)
	for i := range ops {
		ops[i] = Op(i)
	}
	return ops
}

// String returns the lower-case operation name.
func (o Op) String() string {
	if o.Valid() {
		return opNames[o]
	}
	return "unknown"
}

// Valid reports whether o is a known operation.
func (o Op) Valid() bool {
	return o >= 0 && o < numOps
}

// ParseOp resolves an operation name. Matching is case-insensitive.
func ParseOp(name string) (Op, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	return -1, false
}

// HasPayload reports whether a successful completion of o must carry a
// result value.
func (o Op) HasPayload() bool {
	switch o {
	case OpGetattr, OpFgetattr, OpReaddir, OpStatfs, OpReadlink,
		OpListxattr, OpGetxattr, OpOpen, OpOpendir, OpCreate:
		return true
	}
	return false
}

// IsCount reports whether the status of a successful completion of o is
// a byte count.
func (o Op) IsCount() bool {
	return o == OpRead || o == OpWrite
}
