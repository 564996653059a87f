package memfs

import (
	"context"
	"time"

	"fusebind/dispatch"
	"fusebind/errno"

	"golang.org/x/sys/unix"
)

// file returns the open descriptor fd. Callers hold mu.
func (f *FS) file(fd dispatch.FD) (*openFile, error) {
	of, ok := f.fds[fd]
	if !ok {
		return nil, errno.EBADF
	}
	return of, nil
}

// mint registers a descriptor for n. Callers hold mu.
func (f *FS) mint(p string, n *inode, flags uint32, dir bool) dispatch.FD {
	fd := f.nextFD
	f.nextFD++
	f.fds[fd] = &openFile{
		path:   p,
		node:   n,
		flags:  flags,
		dir:    dir,
		append: flags&unix.O_APPEND != 0,
	}
	return fd
}

// Open opens the file at p. O_TRUNC empties it.
func (f *FS) Open(p string, flags uint32) (dispatch.FD, error) {
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.lookup(p)
	if err != nil {
		return 0, err
	}
	if n.isDir() && flags&unix.O_ACCMODE != unix.O_RDONLY {
		return 0, errno.EISDIR
	}
	if flags&unix.O_TRUNC != 0 && n.isRegular() && flags&unix.O_ACCMODE != unix.O_RDONLY {
		if err := f.grow(n, 0); err != nil {
			return 0, err
		}
		n.touch(time.Now())
	}

	fd := f.mint(p, n, flags, false)
	memLogger.Trace("Opened %s as fd %d (flags %#x)", p, fd, flags)
	return fd, nil
}

// Opendir opens the directory at p.
func (f *FS) Opendir(p string, flags uint32) (dispatch.FD, error) {
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.lookupDir(p)
	if err != nil {
		return 0, err
	}
	return f.mint(p, n, flags, true), nil
}

// Create makes a regular file at p and opens it for writing.
func (f *FS) Create(ctx context.Context, p string, mode uint32) (dispatch.FD, error) {
	p = clean(p)
	uid, gid := f.owner(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	parent, err := f.prepareCreate(p)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	n := f.newInode(unix.S_IFREG|mode&0o7777, uid, gid, now)
	f.entries[p] = n
	parent.touch(now)

	fd := f.mint(p, n, unix.O_RDWR, false)
	memLogger.Debug("Created %s (mode %#o) as fd %d", p, n.mode, fd)
	return fd, nil
}

// Release closes a file descriptor.
func (f *FS) Release(p string, fd dispatch.FD) error {
	return f.release(fd, false)
}

// Releasedir closes a directory descriptor.
func (f *FS) Releasedir(p string, fd dispatch.FD) error {
	return f.release(fd, true)
}

func (f *FS) release(fd dispatch.FD, dir bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	of, err := f.file(fd)
	if err != nil {
		return err
	}
	if of.dir != dir {
		return errno.EBADF
	}
	delete(f.fds, fd)
	memLogger.Trace("Released fd %d (%s)", fd, of.path)
	return nil
}

// Read copies file data at pos into buf and returns the byte count. Reads
// at or beyond the end return 0.
func (f *FS) Read(p string, fd dispatch.FD, buf []byte, pos int64) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	of, err := f.file(fd)
	if err != nil {
		return 0, err
	}
	if of.dir || of.node.isDir() {
		return 0, errno.EISDIR
	}
	if pos < 0 {
		return 0, errno.EINVAL
	}
	data := of.node.data
	if pos >= int64(len(data)) {
		return 0, nil
	}
	return copy(buf, data[pos:]), nil
}

// Write stores buf at pos, growing the file as needed, and returns the
// byte count. Descriptors opened with O_APPEND always write at the end.
func (f *FS) Write(p string, fd dispatch.FD, buf []byte, pos int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	of, err := f.file(fd)
	if err != nil {
		return 0, err
	}
	if of.dir || of.node.isDir() {
		return 0, errno.EISDIR
	}
	if of.flags&unix.O_ACCMODE == unix.O_RDONLY {
		return 0, errno.EBADF
	}

	n := of.node
	if of.append {
		pos = int64(len(n.data))
	}
	if pos < 0 {
		return 0, errno.EINVAL
	}
	if end := pos + int64(len(buf)); end > int64(len(n.data)) {
		if err := f.grow(n, end); err != nil {
			return 0, err
		}
	}
	copy(n.data[pos:], buf)
	n.touch(time.Now())
	return len(buf), nil
}

// Flush checks that fd is open. Data is never buffered.
func (f *FS) Flush(p string, fd dispatch.FD) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, err := f.file(fd)
	return err
}

// Fsync succeeds for any existing path.
func (f *FS) Fsync(p string, fd dispatch.FD, datasync bool) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, err := f.lookup(clean(p))
	return err
}

// Truncate sets the size of the file at p.
func (f *FS) Truncate(p string, size int64) error {
	p = clean(p)
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.lookup(p)
	if err != nil {
		return err
	}
	return f.truncate(n, size)
}

// Ftruncate sets the size of the file open as fd.
func (f *FS) Ftruncate(p string, fd dispatch.FD, size int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	of, err := f.file(fd)
	if err != nil {
		return err
	}
	return f.truncate(of.node, size)
}

func (f *FS) truncate(n *inode, size int64) error {
	switch {
	case n.isDir():
		return errno.EISDIR
	case !n.isRegular():
		return errno.EINVAL
	case size < 0:
		return errno.EINVAL
	}
	if err := f.grow(n, size); err != nil {
		return err
	}
	n.touch(time.Now())
	return nil
}

// Fgetattr returns the attributes of the node open as fd, which may have
// been unlinked since.
func (f *FS) Fgetattr(p string, fd dispatch.FD) (*dispatch.Attr, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	of, err := f.file(fd)
	if err != nil {
		return nil, err
	}
	return f.attrOf(of.path, of.node), nil
}
