package memfs

import (
	"context"
	"time"

	"fusebind/dispatch"
	"fusebind/errno"

	"golang.org/x/sys/unix"
)

// unchangedID leaves an owner or group as it is in Chown.
const unchangedID = ^uint32(0)

// Getattr returns the attributes of the node at p.
func (f *FS) Getattr(p string) (*dispatch.Attr, error) {
	p = clean(p)
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, err := f.lookup(p)
	if err != nil {
		return nil, err
	}
	return f.attrOf(p, n), nil
}

// Access checks mask (R_OK, W_OK, X_OK or F_OK) against the node's
// permission bits for the caller in ctx.
func (f *FS) Access(ctx context.Context, p string, mask uint32) error {
	p = clean(p)
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, err := f.lookup(p)
	if err != nil {
		return err
	}

	mask &= unix.R_OK | unix.W_OK | unix.X_OK
	c := dispatch.CallerFrom(ctx)
	if mask == 0 || c.Uid == 0 {
		return nil
	}

	perm := n.mode & 0o7
	switch {
	case c.Uid == n.uid:
		perm = n.mode >> 6 & 0o7
	case c.Gid == n.gid:
		perm = n.mode >> 3 & 0o7
	}
	if perm&mask != mask {
		return errno.EACCES
	}
	return nil
}

// Chmod replaces the permission bits of the node at p.
func (f *FS) Chmod(p string, mode uint32) error {
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.lookup(p)
	if err != nil {
		return err
	}
	n.mode = n.mode&unix.S_IFMT | mode&0o7777
	n.ctime = time.Now()
	return nil
}

// Chown sets the owner and group of the node at p. An id of ^uint32(0)
// is left unchanged.
func (f *FS) Chown(p string, uid, gid uint32) error {
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.lookup(p)
	if err != nil {
		return err
	}
	if uid != unchangedID {
		n.uid = uid
	}
	if gid != unchangedID {
		n.gid = gid
	}
	n.ctime = time.Now()
	return nil
}

// Utimens sets the access and modification times of the node at p.
func (f *FS) Utimens(p string, atime, mtime time.Time) error {
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.lookup(p)
	if err != nil {
		return err
	}
	n.atime = atime
	n.mtime = mtime
	n.ctime = time.Now()
	return nil
}

// Setxattr stores an extended attribute. XATTR_CREATE fails if it
// exists and XATTR_REPLACE fails if it does not.
func (f *FS) Setxattr(p, name string, value []byte, flags uint32) error {
	p = clean(p)
	if name == "" {
		return errno.EINVAL
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.lookup(p)
	if err != nil {
		return err
	}
	_, exists := n.xattrs[name]
	switch {
	case flags&unix.XATTR_CREATE != 0 && exists:
		return errno.EEXIST
	case flags&unix.XATTR_REPLACE != 0 && !exists:
		return errno.ENODATA
	}

	if n.xattrs == nil {
		n.xattrs = make(map[string][]byte)
	}
	n.xattrs[name] = append([]byte(nil), value...)
	n.ctime = time.Now()
	return nil
}

// Getxattr returns a copy of an extended attribute.
func (f *FS) Getxattr(p, name string) ([]byte, error) {
	p = clean(p)
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, err := f.lookup(p)
	if err != nil {
		return nil, err
	}
	v, ok := n.xattrs[name]
	if !ok {
		return nil, errno.ENODATA
	}
	return append([]byte{}, v...), nil
}

// Listxattr returns the extended attribute names, sorted.
func (f *FS) Listxattr(p string) ([]string, error) {
	p = clean(p)
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, err := f.lookup(p)
	if err != nil {
		return nil, err
	}
	return n.xattrNames(), nil
}

// Removexattr deletes an extended attribute.
func (f *FS) Removexattr(p, name string) error {
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.lookup(p)
	if err != nil {
		return err
	}
	if _, ok := n.xattrs[name]; !ok {
		return errno.ENODATA
	}
	delete(n.xattrs, name)
	n.ctime = time.Now()
	return nil
}

// Statfs reports capacity and usage.
func (f *FS) Statfs() *dispatch.StatfsRecord {
	f.mu.RLock()
	defer f.mu.RUnlock()

	blocks := f.opts.Capacity / blockSize
	usedBlocks := (f.used + blockSize - 1) / blockSize
	free := uint64(0)
	if usedBlocks < blocks {
		free = blocks - usedBlocks
	}
	files := f.opts.MaxFiles
	ffree := uint64(0)
	if f.inodes < files {
		ffree = files - f.inodes
	}

	return &dispatch.StatfsRecord{
		Bsize:   blockSize,
		Frsize:  blockSize,
		Blocks:  blocks,
		Bfree:   free,
		Bavail:  free,
		Files:   files,
		Ffree:   ffree,
		Favail:  ffree,
		Namemax: maxNameLen,
	}
}

// Usage returns the stored data bytes and the number of inodes.
func (f *FS) Usage() (bytes, inodes uint64) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.used, f.inodes
}
