package memfs

import (
	"maps"
	"slices"
	"time"

	"fusebind/dispatch"

	"golang.org/x/sys/unix"
)

const blockSize = 4096

// inode is a file, directory, symlink or special node. Hard links share
// one inode.
type inode struct {
	id     uint64
	mode   uint32
	uid    uint32
	gid    uint32
	rdev   uint32
	nlink  uint32
	data   []byte
	target string
	xattrs map[string][]byte

	atime, mtime, ctime time.Time
}

func (n *inode) isDir() bool     { return n.mode&unix.S_IFMT == unix.S_IFDIR }
func (n *inode) isSymlink() bool { return n.mode&unix.S_IFMT == unix.S_IFLNK }
func (n *inode) isRegular() bool { return n.mode&unix.S_IFMT == unix.S_IFREG }

func (n *inode) size() int64 {
	switch {
	case n.isDir():
		return blockSize
	case n.isSymlink():
		return int64(len(n.target))
	}
	return int64(len(n.data))
}

// touch sets the modification and change times.
func (n *inode) touch(now time.Time) {
	n.mtime = now
	n.ctime = now
}

// attr returns the stat record. subdirs is the number of child
// directories, which determines a directory's link count.
func (n *inode) attr(subdirs int) *dispatch.Attr {
	nlink := n.nlink
	if n.isDir() {
		nlink = 2 + uint32(subdirs)
	}
	size := n.size()
	return &dispatch.Attr{
		Mtime:   n.mtime,
		Atime:   n.atime,
		Ctime:   n.ctime,
		Nlink:   nlink,
		Size:    uint64(size),
		Mode:    n.mode,
		Uid:     n.uid,
		Gid:     n.gid,
		Ino:     n.id,
		Rdev:    n.rdev,
		Blksize: blockSize,
		Blocks:  uint64(size+511) / 512,
	}
}

// resize grows or shrinks the file contents. New bytes are zero.
func (n *inode) resize(size int64) {
	old := int64(len(n.data))
	switch {
	case size < old:
		n.data = n.data[:size:size]
	case size > old:
		n.data = append(n.data, make([]byte, size-old)...)
	}
}

func (n *inode) cloneXattrs() map[string][]byte {
	if len(n.xattrs) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(n.xattrs))
	for k, v := range n.xattrs {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

func (n *inode) xattrNames() []string {
	return slices.Sorted(maps.Keys(n.xattrs))
}
