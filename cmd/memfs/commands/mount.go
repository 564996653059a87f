package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"fusebind"
	"fusebind/dispatch"
	"fusebind/internal/memfs"
	"fusebind/internal/state"
	promfs "fusebind/metrics/prometheus"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var mountCmd = &cobra.Command{
	Use:   "mount <dir>",
	Short: "Mount an in-memory filesystem",
	Long: `Mount an in-memory filesystem at <dir> and serve it until interrupted.

With --state the tree is restored from the given file before mounting and
written back after unmounting. The previous five versions of the file are
kept next to it in .memfs-backups.

Examples:
  # Mount a scratch filesystem
  memfs mount /mnt/scratch

  # Persist contents and expose Prometheus metrics
  memfs mount /mnt/data --state /var/lib/memfs/data.json --metrics-addr :9090

  # Pass transport options
  memfs mount /mnt/shared -o allow_other -o default_permissions`,
	Args: cobra.ExactArgs(1),
	RunE: runMount,
}

func init() {
	addMountFlags(mountCmd.Flags())
}

func addMountFlags(flags *pflag.FlagSet) {
	flags.Bool("force", false, "unmount whatever is mounted at <dir> first")
	flags.StringSliceP("options", "o", nil, "mount options (allow_other, ro, debug, direct_io, max_readahead=N, ...)")
	flags.String("state", "", "file to restore the tree from and save it to")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	flags.Bool("display-folder", false, "show the mount as a named volume where supported")
	flags.Bool("debug", false, "log the kernel protocol trace")
	flags.Uint64("capacity", 0, "data capacity in bytes (default 1GiB)")
	flags.Uint64("max-files", 0, "maximum number of inodes (default 1048576)")
}

func runMount(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyLogLevel(cfg.LogLevel); err != nil {
		return err
	}

	cliLogger.Info("Starting memfs...")
	cliLogger.Debug("Mount point: %s", args[0])
	cliLogger.Debug("State file: %s", cfg.State)

	mfs := memfs.New(fsOptions(cfg))

	var manager *state.Manager
	if cfg.State != "" {
		manager, err = state.NewManager(cfg.State)
		if err != nil {
			return fmt.Errorf("failed to initialize state manager: %w", err)
		}
		snap, err := manager.Load()
		if err != nil {
			return fmt.Errorf("failed to load state: %w", err)
		}
		if err := mfs.Restore(snap); err != nil {
			return fmt.Errorf("failed to restore state: %w", err)
		}
		cliLogger.Info("Restored %d entries from %s", len(snap.Entries), manager.Path())
	}

	var (
		metrics   dispatch.Metrics
		metricSrv *promfs.Server
	)
	if cfg.MetricsAddr != "" {
		reg := promfs.NewRegistry()
		metrics = promfs.NewDispatchMetrics(reg)
		metricSrv = promfs.NewServer(cfg.MetricsAddr, reg)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := fusebind.Mount(ctx, args[0], mfs.Operations(), fusebind.Options{
		Force:         cfg.Force,
		Options:       cfg.Options,
		DisplayFolder: cfg.DisplayFolder,
		Debug:         cfg.Debug,
		Subtype:       "memfs",
		Metrics:       metrics,
	})
	if err != nil {
		return err
	}
	cliLogger.Info("Filesystem mounted on %s (session %s)", s.Path(), s.ID())

	serveErr := serve(ctx, s, metricSrv)

	if manager != nil {
		if err := manager.Save(mfs.Snapshot()); err != nil {
			cliLogger.Error("Failed to save state: %v", err)
			return errors.Join(serveErr, err)
		}
		used, inodes := mfs.Usage()
		cliLogger.Info("Saved %d inodes (%d bytes) to %s", inodes, used, manager.Path())
	}

	if serveErr != nil {
		return serveErr
	}
	cliLogger.Info("Clean shutdown complete")
	return nil
}

// serve runs the metrics server, if any, until ctx is cancelled or the
// session ends, then unmounts.
func serve(ctx context.Context, s *fusebind.Session, metricSrv *promfs.Server) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if metricSrv != nil {
		g.Go(func() error {
			return metricSrv.Start(gctx)
		})
	}
	g.Go(func() error {
		defer cancel()
		select {
		case <-gctx.Done():
			cliLogger.Info("Unmounting %s", s.Path())
			return s.Unmount()
		case <-s.Done():
			cliLogger.Info("Filesystem at %s was unmounted externally", s.Path())
			return s.Err()
		}
	})
	return g.Wait()
}
