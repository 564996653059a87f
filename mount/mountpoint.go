package mount

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// sessions tracks the mounts made by this process, keyed by absolute path.
var sessions = struct {
	sync.Mutex
	byPath map[string]*Session
}{byPath: make(map[string]*Session)}

func lookupSession(path string) *Session {
	sessions.Lock()
	defer sessions.Unlock()
	return sessions.byPath[path]
}

// register claims path for s. It fails if another live session holds it.
func register(s *Session) error {
	sessions.Lock()
	defer sessions.Unlock()

	if _, ok := sessions.byPath[s.path]; ok {
		return ErrMountpointInUse
	}
	sessions.byPath[s.path] = s
	return nil
}

func deregister(s *Session) {
	sessions.Lock()
	defer sessions.Unlock()

	if sessions.byPath[s.path] == s {
		delete(sessions.byPath, s.path)
	}
}

// absPath resolves path against the working directory.
func absPath(path string) (string, error) {
	if path == "" {
		return "", ErrMountpointNotExist
	}
	return filepath.Abs(path)
}

// validate checks that path is an existing directory with nothing mounted
// on it.
func validate(path string) error {
	if s := lookupSession(path); s != nil {
		select {
		case <-s.done:
			// The request loop has ended; release what is left.
			if err := s.Unmount(); err != nil {
				return err
			}
		default:
			return ErrMountpointInUse
		}
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return ErrMountpointNotExist
	case errors.Is(err, unix.ENOTCONN):
		// A filesystem whose server died is still mounted here.
		return fmt.Errorf("%w: stale mount", ErrMountpointInUse)
	case err != nil:
		return err
	case !info.IsDir():
		return ErrMountpointNotDir
	}

	mounted, err := isMountpoint(path)
	if err != nil {
		return err
	}
	if mounted {
		return ErrMountpointInUse
	}
	return nil
}

// isMountpoint reports whether path is the root of a mounted filesystem,
// by comparing its device with its parent's.
func isMountpoint(path string) (bool, error) {
	parent := filepath.Dir(path)
	if parent == path {
		return true, nil
	}

	var st, pst unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false, err
	}
	if err := unix.Stat(parent, &pst); err != nil {
		return false, err
	}
	return st.Dev != pst.Dev, nil
}
