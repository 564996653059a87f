// Package mount attaches a handler set to a directory through the kernel
// FUSE transport and manages the lifetime of the resulting session.
package mount

import (
	"context"
	"errors"
	"fmt"

	"fusebind/dispatch"
	"fusebind/internal/kernel"
	"fusebind/internal/logging"

	"bazil.org/fuse"
)

var mountLogger = logging.GetLogger().WithPrefix("mount")

// Mount serves ops at path. It returns once the kernel mount exists and
// the init handler, if any, has succeeded. Validation failures are
// reported before anything is mounted. A failed kernel mount is also
// passed to the error handler.
func Mount(ctx context.Context, path string, ops dispatch.Operations, opts Options) (*Session, error) {
	abs, err := absPath(path)
	if err != nil {
		return nil, newError(OpValidate, path, err)
	}

	cfg, err := opts.build()
	if err != nil {
		return nil, newError(OpValidate, abs, err)
	}

	d := dispatch.New(dispatch.NewRegistry(ops), dispatch.WithMetrics(opts.Metrics))

	if opts.Force {
		if err := Unmount(abs); err != nil {
			mountLogger.Debug("Force unmount of %s: %v", abs, err)
		}
	}

	if err := validate(abs); err != nil {
		return nil, newError(OpValidate, abs, err)
	}

	mountLogger.Debug("Mounting %s with options %v", abs, cfg.names)
	conn, err := fuse.Mount(abs, cfg.fuseOpts...)
	if err != nil {
		fireError(d, err)
		return nil, newError(OpMount, abs, fmt.Errorf("%w: %v", ErrMountFailed, err))
	}

	kfs := kernel.New(d, kernel.Options{DirectIO: cfg.directIO})
	s := newSession(abs, d, kfs, conn, cfg.names)
	if err := register(s); err != nil {
		_ = fuse.Unmount(abs)
		_ = conn.Close()
		return nil, newError(OpValidate, abs, err)
	}

	go s.serve(cfg.debug)
	go s.handshake(ctx)

	stop := context.AfterFunc(ctx, func() {
		s.resolve(fmt.Errorf("%w: %w", ErrMountFailed, ctx.Err()))
	})
	defer stop()

	if err := <-s.resolved; err != nil {
		// A filesystem that never initialised is not destroyed.
		kfs.MarkDestroyed()
		if uerr := fuse.Unmount(abs); uerr != nil {
			mountLogger.Debug("Unmount after failed init of %s: %v", abs, uerr)
			// Closing the device stops the request loop even if the
			// kernel mount lingers.
			_ = conn.Close()
		}
		s.teardown()
		op := OpInit
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			op = OpMount
		}
		return nil, newError(op, abs, err)
	}

	mountLogger.Info("Mounted %s (session %s)", abs, s.ID())
	return s, nil
}

// Unmount releases whatever is mounted at path. Mounts made by this
// process are torn down completely, including delivery of destroy.
func Unmount(path string) error {
	abs, err := absPath(path)
	if err != nil {
		return newError(OpUnmount, path, err)
	}

	if s := lookupSession(abs); s != nil {
		return s.Unmount()
	}

	if err := fuse.Unmount(abs); err != nil {
		return newError(OpUnmount, abs, fmt.Errorf("%w: %v", ErrUnmountFailed, err))
	}
	mountLogger.Info("Unmounted %s", abs)
	return nil
}
