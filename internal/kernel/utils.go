package kernel

import "time"

// Kernel cache lifetimes for attributes and directory entries.
const (
	defaultAttrTTL  = time.Second
	defaultEntryTTL = time.Second
)

// unchangedID is passed to chown for an owner or group left as is.
const unchangedID = ^uint32(0)

func safeUint64ToInt64(n uint64) int64 {
	if n > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(n)
}
