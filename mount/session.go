package mount

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"fusebind/dispatch"
	"fusebind/internal/kernel"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/google/uuid"
)

// Session is one live mount.
type Session struct {
	id   uuid.UUID
	path string

	d    *dispatch.Dispatcher
	fs   *kernel.FS
	conn *fuse.Conn
	opts []string

	done     chan struct{}
	serveErr error

	once     sync.Once
	resolved chan error
	failed   atomic.Bool

	unmountMu sync.Mutex
	mounted   atomic.Bool
}

func newSession(path string, d *dispatch.Dispatcher, fs *kernel.FS, conn *fuse.Conn, opts []string) *Session {
	s := &Session{
		id:       uuid.New(),
		path:     path,
		d:        d,
		fs:       fs,
		conn:     conn,
		opts:     opts,
		done:     make(chan struct{}),
		resolved: make(chan error, 1),
	}
	s.mounted.Store(true)
	return s
}

// ID returns a unique identifier for the session.
func (s *Session) ID() string { return s.id.String() }

// Path returns the absolute mount path.
func (s *Session) Path() string { return s.path }

// Options returns the transport options the mount was made with.
func (s *Session) Options() []string { return append([]string(nil), s.opts...) }

// Mounted reports whether the session is still mounted.
func (s *Session) Mounted() bool { return s.mounted.Load() }

// Done is closed once the kernel connection stops being served.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the error that stopped serving, if any. It is only
// meaningful after Done is closed.
func (s *Session) Err() error {
	<-s.done
	return s.serveErr
}

// resolve settles the mount result. Only the first call has an effect;
// it reports whether it was that call.
func (s *Session) resolve(err error) bool {
	first := false
	s.once.Do(func() {
		first = true
		s.failed.Store(err != nil)
		s.resolved <- err
	})
	return first
}

// serve runs the kernel request loop until the connection closes. A
// mount that ends without Unmount, for example through fusermount -u, is
// torn down here so that its path can be mounted again.
func (s *Session) serve(debug bool) {
	s.run(debug)
	close(s.done)
	s.serveStopped()
}

func (s *Session) run(debug bool) {
	var trace func(msg interface{})
	if debug {
		trace = func(msg interface{}) {
			mountLogger.Debug("%v", msg)
		}
	}

	srv := fusefs.New(s.conn, s.fs.Config(trace))
	err := srv.Serve(s.fs)
	s.serveErr = err

	if s.resolve(fmt.Errorf("%w: connection closed before init: %v", ErrMountFailed, err)) {
		return
	}
	if err != nil {
		mountLogger.Warn("Serving %s stopped: %v", s.path, err)
		fireError(s.d, err)
	}
	mountLogger.Debug("Stopped serving %s", s.path)
}

// serveStopped releases a session whose request loop has ended. Mounts
// that failed to initialise are released by Mount itself.
func (s *Session) serveStopped() {
	if s.failed.Load() {
		return
	}

	s.unmountMu.Lock()
	defer s.unmountMu.Unlock()
	if !s.mounted.Load() {
		return
	}
	mountLogger.Info("Mount at %s went away, releasing session %s", s.path, s.ID())
	s.teardown()
}

// handshake dispatches init and resolves the mount with its result.
func (s *Session) handshake(ctx context.Context) {
	if !s.d.Registry().Supplied(dispatch.OpInit) {
		s.resolve(nil)
		return
	}

	resp, err := s.d.Call(ctx, &dispatch.Request{Op: dispatch.OpInit, Path: "/"})
	switch {
	case err != nil:
		s.resolve(fmt.Errorf("%w: init: %w", ErrMountFailed, err))
	case resp.Status < 0:
		s.resolve(fmt.Errorf("%w: init: %w", ErrMountFailed, resp.Code()))
	default:
		s.resolve(nil)
	}
}

// Unmount releases the mount, waits for the request loop to stop and
// delivers destroy. Unmounting an already unmounted session is a no-op.
func (s *Session) Unmount() error {
	s.unmountMu.Lock()
	defer s.unmountMu.Unlock()

	if !s.mounted.Load() {
		return nil
	}

	// The kernel mount is already gone; only the session is left.
	select {
	case <-s.done:
		s.teardown()
		mountLogger.Info("Released %s", s.path)
		return nil
	default:
	}

	mountLogger.Debug("Unmounting %s", s.path)
	if err := fuse.Unmount(s.path); err != nil {
		return newError(OpUnmount, s.path, fmt.Errorf("%w: %v", ErrUnmountFailed, err))
	}
	s.teardown()
	mountLogger.Info("Unmounted %s", s.path)
	return nil
}

// teardown finishes a session whose kernel mount is already gone.
// Destroy is delivered unless the kernel already sent it.
func (s *Session) teardown() {
	<-s.done
	if s.fs.MarkDestroyed() {
		if _, err := s.d.Call(context.Background(), &dispatch.Request{Op: dispatch.OpDestroy, Path: "/"}); err != nil {
			mountLogger.Debug("Destroy handler failed: %v", err)
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			mountLogger.Debug("Closing connection for %s: %v", s.path, err)
		}
	}
	s.mounted.Store(false)
	deregister(s)
}

// fireError hands err to the error handler without waiting for it.
func fireError(d *dispatch.Dispatcher, err error) {
	if !d.Registry().Supplied(dispatch.OpError) {
		return
	}
	d.Dispatch(context.Background(), &dispatch.Request{Op: dispatch.OpError, Path: "/", Err: err})
}
