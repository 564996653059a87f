// Package state persists filesystem snapshots between mounts.
package state

import "time"

// CurrentVersion is the snapshot format written by this package.
const CurrentVersion = 1

// Snapshot is the persisted form of an in-memory filesystem.
type Snapshot struct {
	// Nodes holds every inode once. Hard links share an ID.
	Nodes []NodeRecord `json:"nodes"`

	// Map of paths to node IDs
	Entries map[string]uint64 `json:"entries"`

	// Version for future compatibility
	Version int `json:"version"`
}

// NodeRecord is one inode.
type NodeRecord struct {
	ID     uint64            `json:"id"`
	Mode   uint32            `json:"mode"`
	Uid    uint32            `json:"uid"`
	Gid    uint32            `json:"gid"`
	Rdev   uint32            `json:"rdev,omitempty"`
	Data   []byte            `json:"data,omitempty"`
	Target string            `json:"target,omitempty"`
	Xattrs map[string][]byte `json:"xattrs,omitempty"`
	Atime  time.Time         `json:"atime"`
	Mtime  time.Time         `json:"mtime"`
	Ctime  time.Time         `json:"ctime"`
}

// Empty returns a snapshot with no entries.
func Empty() *Snapshot {
	return &Snapshot{
		Entries: make(map[string]uint64),
		Version: CurrentVersion,
	}
}
