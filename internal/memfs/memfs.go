// Package memfs is an in-memory filesystem served through fusebind. It
// implements every handler and can persist itself as a state.Snapshot.
package memfs

import (
	"context"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"fusebind/dispatch"
	"fusebind/errno"
	"fusebind/internal/logging"

	"golang.org/x/sys/unix"
)

var (
	memLogger = logging.GetLogger().WithPrefix("memfs")
)

const (
	defaultCapacity = 1 << 30 // 1GiB
	defaultMaxFiles = 1 << 20
	maxNameLen      = 255
)

// Options configures a filesystem.
type Options struct {
	// Capacity is the total number of data bytes. Zero means 1GiB.
	Capacity uint64
	// MaxFiles limits the number of inodes. Zero means 1Mi.
	MaxFiles uint64

	// Uid and Gid own the root directory. With ForceOwner set they also
	// own every new node; otherwise new nodes belong to the caller.
	Uid        uint32
	Gid        uint32
	ForceOwner bool
}

// FS is an in-memory filesystem. It is safe for concurrent use.
type FS struct {
	opts Options

	mu      sync.RWMutex
	entries map[string]*inode // Map of paths to inodes
	nextID  uint64
	used    uint64
	inodes  uint64

	fds    map[dispatch.FD]*openFile
	nextFD dispatch.FD
}

// openFile is a descriptor minted by open, opendir or create. It keeps
// its inode alive after unlink.
type openFile struct {
	path   string
	node   *inode
	flags  uint32
	dir    bool
	append bool
}

// New creates an empty filesystem containing only the root directory.
func New(opts Options) *FS {
	if opts.Capacity == 0 {
		opts.Capacity = defaultCapacity
	}
	if opts.MaxFiles == 0 {
		opts.MaxFiles = defaultMaxFiles
	}

	f := &FS{opts: opts}
	f.reset()
	memLogger.Debug("Created filesystem (capacity %d bytes, %d inodes)", opts.Capacity, opts.MaxFiles)
	return f
}

// DefaultOptions returns options owned by the current process user.
func DefaultOptions() Options {
	return Options{
		Uid: safeIntToUint32(os.Getuid()),
		Gid: safeIntToUint32(os.Getgid()),
	}
}

// reset drops all content. Callers hold mu or own f exclusively.
func (f *FS) reset() {
	now := time.Now()
	f.entries = make(map[string]*inode)
	f.fds = make(map[dispatch.FD]*openFile)
	f.nextID = 1
	f.nextFD = 1
	f.used = 0
	f.inodes = 0

	root := f.newInode(unix.S_IFDIR|0o755, f.opts.Uid, f.opts.Gid, now)
	f.entries["/"] = root
}

// newInode allocates an inode. Callers hold mu.
func (f *FS) newInode(mode, uid, gid uint32, now time.Time) *inode {
	n := &inode{
		id:    f.nextID,
		mode:  mode,
		uid:   uid,
		gid:   gid,
		nlink: 1,
		atime: now,
		mtime: now,
		ctime: now,
	}
	f.nextID++
	f.inodes++
	return n
}

// owner returns the ids that own a node created by the caller in ctx.
func (f *FS) owner(ctx context.Context) (uint32, uint32) {
	if f.opts.ForceOwner {
		return f.opts.Uid, f.opts.Gid
	}
	c := dispatch.CallerFrom(ctx)
	return c.Uid, c.Gid
}

func clean(p string) string {
	return path.Clean("/" + p)
}

// lookup returns the inode at p. Callers hold mu.
func (f *FS) lookup(p string) (*inode, error) {
	n, ok := f.entries[p]
	if !ok {
		return nil, errno.ENOENT
	}
	return n, nil
}

// lookupDir returns the directory inode at p. Callers hold mu.
func (f *FS) lookupDir(p string) (*inode, error) {
	n, err := f.lookup(p)
	if err != nil {
		return nil, err
	}
	if !n.isDir() {
		return nil, errno.ENOTDIR
	}
	return n, nil
}

// prepareCreate checks that p can be created and returns its parent.
// Callers hold mu.
func (f *FS) prepareCreate(p string) (*inode, error) {
	if p == "/" {
		return nil, errno.EEXIST
	}
	if len(path.Base(p)) > maxNameLen {
		return nil, errno.ENAMETOOLONG
	}
	parent, err := f.lookupDir(path.Dir(p))
	if err != nil {
		return nil, err
	}
	if _, ok := f.entries[p]; ok {
		return nil, errno.EEXIST
	}
	if f.inodes >= f.opts.MaxFiles {
		return nil, errno.ENOSPC
	}
	return parent, nil
}

// isChild reports whether p is directly inside dir.
func isChild(p, dir string) bool {
	if p == "/" {
		return false
	}
	return path.Dir(p) == dir
}

// within reports whether p is dir or below it.
func within(p, dir string) bool {
	return p == dir || dir == "/" || strings.HasPrefix(p, dir+"/")
}

// children returns the names directly inside dir. Callers hold mu.
func (f *FS) children(dir string) []string {
	var names []string
	for p := range f.entries {
		if isChild(p, dir) {
			names = append(names, path.Base(p))
		}
	}
	return names
}

// subdirs counts the directories directly inside dir. Callers hold mu.
func (f *FS) subdirs(dir string) int {
	count := 0
	for p, n := range f.entries {
		if n.isDir() && isChild(p, dir) {
			count++
		}
	}
	return count
}

// attrOf returns the stat record for the inode at p. Callers hold mu.
func (f *FS) attrOf(p string, n *inode) *dispatch.Attr {
	subdirs := 0
	if n.isDir() {
		subdirs = f.subdirs(p)
	}
	return n.attr(subdirs)
}

// unlinked drops one link from n and frees its data with the last one.
// Callers hold mu.
func (f *FS) unlinked(n *inode, now time.Time) {
	n.ctime = now
	if n.nlink > 0 {
		n.nlink--
	}
	if n.nlink == 0 {
		f.used -= uint64(len(n.data))
		f.inodes--
	}
}

// grow resizes n within the capacity. Unlinked inodes are no longer
// accounted. Callers hold mu.
func (f *FS) grow(n *inode, size int64) error {
	if n.nlink == 0 {
		n.resize(size)
		return nil
	}
	delta := size - int64(len(n.data))
	if delta > 0 && f.used+uint64(delta) > f.opts.Capacity {
		return errno.ENOSPC
	}
	n.resize(size)
	f.used = uint64(int64(f.used) + delta)
	return nil
}

func safeIntToUint32(v int) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}
