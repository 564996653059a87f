package memfs

import (
	"cmp"
	"fmt"
	"path"
	"slices"
	"time"

	"fusebind/dispatch"
	"fusebind/internal/state"

	"golang.org/x/sys/unix"
)

// Snapshot captures the tree. Open descriptors are not part of it.
func (f *FS) Snapshot() *state.Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := state.Empty()
	seen := make(map[*inode]bool, len(f.entries))
	for p, n := range f.entries {
		snap.Entries[p] = n.id
		if seen[n] {
			continue
		}
		seen[n] = true
		snap.Nodes = append(snap.Nodes, state.NodeRecord{
			ID:     n.id,
			Mode:   n.mode,
			Uid:    n.uid,
			Gid:    n.gid,
			Rdev:   n.rdev,
			Data:   append([]byte(nil), n.data...),
			Target: n.target,
			Xattrs: n.cloneXattrs(),
			Atime:  n.atime,
			Mtime:  n.mtime,
			Ctime:  n.ctime,
		})
	}
	slices.SortFunc(snap.Nodes, func(a, b state.NodeRecord) int {
		return cmp.Compare(a.ID, b.ID)
	})

	memLogger.Debug("Snapshot of %d entries, %d inodes", len(snap.Entries), len(snap.Nodes))
	return snap
}

// Restore replaces the tree with snap and closes every descriptor. An
// inconsistent snapshot leaves f unchanged.
func (f *FS) Restore(snap *state.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}

	byID := make(map[uint64]*inode, len(snap.Nodes))
	var maxID uint64
	for _, rec := range snap.Nodes {
		if _, dup := byID[rec.ID]; dup {
			return fmt.Errorf("duplicate inode %d", rec.ID)
		}
		if rec.Mode&unix.S_IFMT == 0 {
			return fmt.Errorf("inode %d has no file type", rec.ID)
		}
		n := &inode{
			id:     rec.ID,
			mode:   rec.Mode,
			uid:    rec.Uid,
			gid:    rec.Gid,
			rdev:   rec.Rdev,
			data:   append([]byte(nil), rec.Data...),
			target: rec.Target,
			xattrs: rec.Xattrs,
			atime:  orNow(rec.Atime),
			mtime:  orNow(rec.Mtime),
			ctime:  orNow(rec.Ctime),
		}
		byID[rec.ID] = n
		maxID = max(maxID, rec.ID)
	}

	entries := make(map[string]*inode, len(snap.Entries))
	for p, id := range snap.Entries {
		n, ok := byID[id]
		if !ok {
			return fmt.Errorf("entry %s refers to missing inode %d", p, id)
		}
		p = clean(p)
		entries[p] = n
		n.nlink++
	}
	for p := range entries {
		if p == "/" {
			continue
		}
		if parent, ok := entries[path.Dir(p)]; !ok || !parent.isDir() {
			return fmt.Errorf("entry %s has no parent directory", p)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(entries) == 0 {
		f.reset()
		memLogger.Info("Restored empty filesystem")
		return nil
	}
	if root, ok := entries["/"]; !ok || !root.isDir() {
		return fmt.Errorf("snapshot has no root directory")
	}

	// Inodes no entry refers to are dropped.
	var used, inodes uint64
	for _, n := range byID {
		if n.nlink > 0 {
			used += uint64(len(n.data))
			inodes++
		}
	}

	f.entries = entries
	f.fds = make(map[dispatch.FD]*openFile)
	f.nextID = maxID + 1
	f.nextFD = 1
	f.used = used
	f.inodes = inodes

	memLogger.Info("Restored %d entries, %d inodes", len(entries), len(byID))
	return nil
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
