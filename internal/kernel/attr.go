package kernel

import (
	"os"
	"time"

	"fusebind/dispatch"

	"bazil.org/fuse"
	"golang.org/x/sys/unix"
)

// fileMode converts POSIX mode bits into an os.FileMode.
func fileMode(raw uint32) os.FileMode {
	m := os.FileMode(raw & 0o777)
	if raw&unix.S_ISUID != 0 {
		m |= os.ModeSetuid
	}
	if raw&unix.S_ISGID != 0 {
		m |= os.ModeSetgid
	}
	if raw&unix.S_ISVTX != 0 {
		m |= os.ModeSticky
	}

	switch raw & unix.S_IFMT {
	case unix.S_IFDIR:
		m |= os.ModeDir
	case unix.S_IFLNK:
		m |= os.ModeSymlink
	case unix.S_IFIFO:
		m |= os.ModeNamedPipe
	case unix.S_IFSOCK:
		m |= os.ModeSocket
	case unix.S_IFCHR:
		m |= os.ModeDevice | os.ModeCharDevice
	case unix.S_IFBLK:
		m |= os.ModeDevice
	}
	return m
}

// rawMode converts an os.FileMode into POSIX mode bits. A mode without a
// type is a regular file.
func rawMode(m os.FileMode) uint32 {
	raw := permBits(m)

	switch {
	case m&os.ModeDir != 0:
		raw |= unix.S_IFDIR
	case m&os.ModeSymlink != 0:
		raw |= unix.S_IFLNK
	case m&os.ModeNamedPipe != 0:
		raw |= unix.S_IFIFO
	case m&os.ModeSocket != 0:
		raw |= unix.S_IFSOCK
	case m&os.ModeCharDevice != 0:
		raw |= unix.S_IFCHR
	case m&os.ModeDevice != 0:
		raw |= unix.S_IFBLK
	default:
		raw |= unix.S_IFREG
	}
	return raw
}

// permBits keeps only the permission, setuid, setgid and sticky bits.
func permBits(m os.FileMode) uint32 {
	raw := uint32(m.Perm())
	if m&os.ModeSetuid != 0 {
		raw |= unix.S_ISUID
	}
	if m&os.ModeSetgid != 0 {
		raw |= unix.S_ISGID
	}
	if m&os.ModeSticky != 0 {
		raw |= unix.S_ISVTX
	}
	return raw
}

// fillAttr copies a handler attribute record into the kernel's form.
func fillAttr(a *dispatch.Attr, out *fuse.Attr, ttl time.Duration) {
	out.Valid = ttl
	out.Inode = a.Ino
	out.Size = a.Size
	out.Mode = fileMode(a.Mode)
	out.Nlink = a.Nlink
	out.Uid = a.Uid
	out.Gid = a.Gid
	out.Rdev = a.Rdev
	out.Atime = a.Atime
	out.Mtime = a.Mtime
	out.Ctime = a.Ctime

	out.BlockSize = a.Blksize
	if out.BlockSize == 0 {
		out.BlockSize = 4096
	}
	out.Blocks = a.Blocks
	if out.Blocks == 0 {
		out.Blocks = (a.Size + 511) / 512
	}
}

// fillStatfs copies a handler statfs record into the kernel's form.
func fillStatfs(s *dispatch.StatfsRecord, out *fuse.StatfsResponse) {
	out.Blocks = s.Blocks
	out.Bfree = s.Bfree
	out.Bavail = s.Bavail
	out.Files = s.Files
	out.Ffree = s.Ffree
	out.Bsize = s.Bsize
	out.Frsize = s.Frsize
	out.Namelen = s.Namemax
}
