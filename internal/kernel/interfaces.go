// internal/kernel/interfaces.go

package kernel

import (
	fusefs "bazil.org/fuse/fs"
)

// Node is the set of node operations the adapter forwards to handlers.
// A path-based node may be a file or a directory, so it implements both.
type Node interface {
	fusefs.Node
	fusefs.NodeGetattrer
	fusefs.NodeSetattrer
	fusefs.NodeForgetter
	fusefs.NodeAccesser
	fusefs.NodeFsyncer

	fusefs.NodeRequestLookuper
	fusefs.NodeMkdirer
	fusefs.NodeMknoder
	fusefs.NodeCreater
	fusefs.NodeRemover
	fusefs.NodeRenamer
	fusefs.NodeSymlinker
	fusefs.NodeLinker
	fusefs.NodeReadlinker
	fusefs.NodeOpener

	fusefs.NodeGetxattrer
	fusefs.NodeListxattrer
	fusefs.NodeSetxattrer
	fusefs.NodeRemovexattrer
}

// Handle represents an open file or directory.
type Handle interface {
	fusefs.Handle
	fusefs.HandleReader
	fusefs.HandleWriter
	fusefs.HandleFlusher
	fusefs.HandleReadDirAller
	fusefs.HandleReleaser
}

var (
	_ Node   = (*node)(nil)
	_ Handle = (*handle)(nil)

	_ fusefs.FS          = (*FS)(nil)
	_ fusefs.FSStatfser  = (*FS)(nil)
	_ fusefs.FSDestroyer = (*FS)(nil)
)
