package memfs

import (
	"context"
	"path"
	"slices"
	"time"

	"fusebind/errno"

	"golang.org/x/sys/unix"
)

// Readdir lists the names in the directory at p, sorted.
func (f *FS) Readdir(p string) ([]string, error) {
	p = clean(p)
	f.mu.RLock()
	defer f.mu.RUnlock()

	if _, err := f.lookupDir(p); err != nil {
		return nil, err
	}
	names := f.children(p)
	slices.Sort(names)
	return names, nil
}

// Mkdir creates a directory.
func (f *FS) Mkdir(ctx context.Context, p string, mode uint32) error {
	return f.make(ctx, p, unix.S_IFDIR|mode&0o7777, 0, "")
}

// Mknod creates a node of the type given in mode's type bits. Without
// type bits it is a regular file.
func (f *FS) Mknod(ctx context.Context, p string, mode, dev uint32) error {
	if mode&unix.S_IFMT == 0 {
		mode |= unix.S_IFREG
	}
	if mode&unix.S_IFMT == unix.S_IFDIR || mode&unix.S_IFMT == unix.S_IFLNK {
		return errno.EINVAL
	}
	return f.make(ctx, p, mode, dev, "")
}

// Symlink creates a symbolic link at p pointing to target.
func (f *FS) Symlink(ctx context.Context, target, p string) error {
	if target == "" {
		return errno.ENOENT
	}
	return f.make(ctx, p, unix.S_IFLNK|0o777, 0, target)
}

func (f *FS) make(ctx context.Context, p string, mode, dev uint32, target string) error {
	p = clean(p)
	uid, gid := f.owner(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	parent, err := f.prepareCreate(p)
	if err != nil {
		return err
	}

	now := time.Now()
	n := f.newInode(mode, uid, gid, now)
	n.rdev = dev
	n.target = target
	f.entries[p] = n
	parent.touch(now)

	memLogger.Debug("Created %s (mode %#o)", p, mode)
	return nil
}

// Readlink returns the target of the symbolic link at p.
func (f *FS) Readlink(p string) (string, error) {
	p = clean(p)
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, err := f.lookup(p)
	if err != nil {
		return "", err
	}
	if !n.isSymlink() {
		return "", errno.EINVAL
	}
	return n.target, nil
}

// Link creates dest as another name for the non-directory at src.
func (f *FS) Link(src, dest string) error {
	src, dest = clean(src), clean(dest)
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.lookup(src)
	if err != nil {
		return err
	}
	if n.isDir() {
		return errno.EPERM
	}
	if len(path.Base(dest)) > maxNameLen {
		return errno.ENAMETOOLONG
	}
	parent, err := f.lookupDir(path.Dir(dest))
	if err != nil {
		return err
	}
	if _, ok := f.entries[dest]; ok {
		return errno.EEXIST
	}

	now := time.Now()
	n.nlink++
	n.ctime = now
	f.entries[dest] = n
	parent.touch(now)

	memLogger.Debug("Linked %s to %s (%d links)", dest, src, n.nlink)
	return nil
}

// Unlink removes a non-directory entry.
func (f *FS) Unlink(p string) error {
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.lookup(p)
	if err != nil {
		return err
	}
	if n.isDir() {
		return errno.EISDIR
	}

	now := time.Now()
	delete(f.entries, p)
	f.unlinked(n, now)
	f.entries[path.Dir(p)].touch(now)

	memLogger.Debug("Unlinked %s", p)
	return nil
}

// Rmdir removes an empty directory.
func (f *FS) Rmdir(p string) error {
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()

	if p == "/" {
		return errno.EBUSY
	}
	n, err := f.lookupDir(p)
	if err != nil {
		return err
	}
	if len(f.children(p)) > 0 {
		return errno.ENOTEMPTY
	}

	now := time.Now()
	delete(f.entries, p)
	f.unlinked(n, now)
	f.entries[path.Dir(p)].touch(now)

	memLogger.Debug("Removed directory %s", p)
	return nil
}

// Rename moves src to dest, replacing a compatible dest. Directories move
// with everything below them.
func (f *FS) Rename(src, dest string) error {
	src, dest = clean(src), clean(dest)
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.lookup(src)
	if err != nil {
		return err
	}
	if src == "/" || dest == "/" {
		return errno.EBUSY
	}
	if src == dest {
		return nil
	}
	if n.isDir() && within(dest, src) {
		return errno.EINVAL
	}
	if len(path.Base(dest)) > maxNameLen {
		return errno.ENAMETOOLONG
	}
	destParent, err := f.lookupDir(path.Dir(dest))
	if err != nil {
		return err
	}

	now := time.Now()
	if existing, ok := f.entries[dest]; ok {
		if existing == n {
			// Two links to one inode: rename does nothing.
			return nil
		}
		switch {
		case n.isDir() && !existing.isDir():
			return errno.ENOTDIR
		case !n.isDir() && existing.isDir():
			return errno.EISDIR
		case existing.isDir() && len(f.children(dest)) > 0:
			return errno.ENOTEMPTY
		}
		delete(f.entries, dest)
		f.unlinked(existing, now)
	}

	moved := make(map[string]*inode)
	for p, node := range f.entries {
		if within(p, src) {
			moved[dest+p[len(src):]] = node
			delete(f.entries, p)
		}
	}
	for p, node := range moved {
		f.entries[p] = node
	}
	for _, of := range f.fds {
		if within(of.path, src) {
			of.path = dest + of.path[len(src):]
		}
	}

	n.ctime = now
	f.entries[path.Dir(src)].touch(now)
	destParent.touch(now)

	memLogger.Debug("Renamed %s to %s (%d entries)", src, dest, len(moved))
	return nil
}
