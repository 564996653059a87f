package kernel

import (
	"path"
	"strings"
)

// Path is an absolute, cleaned path inside the mount. The mount root is
// "/".
type Path string

// NewPath cleans p and makes it absolute.
func NewPath(p string) Path {
	cleaned := path.Clean("/" + p)
	pathLogger.Trace("Creating new path: %q -> %q", p, cleaned)
	return Path(cleaned)
}

// String returns the string representation of the path
func (p Path) String() string {
	return string(p)
}

// Join returns the path of the child called name. The result is cleaned
// and never leaves the mount.
func (p Path) Join(name string) Path {
	return NewPath(string(p) + "/" + name)
}

// IsRoot returns true if this is the mount root
func (p Path) IsRoot() bool {
	return p == "/"
}

// Within reports whether p is dir or lies below it.
func (p Path) Within(dir Path) bool {
	if dir.IsRoot() || p == dir {
		return true
	}
	return strings.HasPrefix(string(p), string(dir)+"/")
}

// Rebase moves p from under from to under to. Paths outside from are
// returned unchanged.
func (p Path) Rebase(from, to Path) Path {
	if !p.Within(from) {
		return p
	}
	if p == from {
		return to
	}
	rest := strings.TrimPrefix(string(p), string(from))
	if from.IsRoot() {
		rest = string(p)
	}
	if to.IsRoot() {
		return Path(rest)
	}
	return Path(string(to) + rest)
}
