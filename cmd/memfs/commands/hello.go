package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fusebind"
	"fusebind/errno"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

const (
	helloName    = "test"
	helloContent = "hello world\n"
)

var helloCmd = &cobra.Command{
	Use:   "hello <dir>",
	Short: "Mount a read-only filesystem holding a single file",
	Long: `Mount a minimal read-only filesystem at <dir>. Its root holds one file,
"test", containing "hello world". Every call is logged at INFO.

Stop it with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runHello,
}

func init() {
	helloCmd.Flags().Bool("force", false, "unmount whatever is mounted at <dir> first")
}

func runHello(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyLogLevel(cfg.LogLevel); err != nil {
		return err
	}

	s, err := fusebind.Mount(cmd.Context(), args[0], helloOperations(), fusebind.Options{
		Force:   cfg.Force,
		Options: []string{"ro"},
		Subtype: "hello",
	})
	if err != nil {
		return err
	}
	cliLogger.Info("Filesystem mounted on %s", s.Path())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		cliLogger.Info("Received signal %v", sig)
	case <-s.Done():
		cliLogger.Info("Filesystem at %s was unmounted externally", s.Path())
		return s.Err()
	}

	if err := s.Unmount(); err != nil {
		cliLogger.Error("Filesystem at %s not unmounted: %v", s.Path(), err)
		return err
	}
	cliLogger.Info("Filesystem at %s unmounted", s.Path())
	return nil
}

func helloOperations() fusebind.Operations {
	uid, gid := uint32(os.Getuid()), uint32(os.Getgid())

	return fusebind.Operations{
		Readdir: func(_ context.Context, path string, r *fusebind.Reply[[]string]) {
			cliLogger.Info("readdir(%s)", path)
			if path == "/" {
				r.OK([]string{helloName})
				return
			}
			r.OK(nil)
		},
		Getattr: func(_ context.Context, path string, r *fusebind.Reply[*fusebind.Attr]) {
			cliLogger.Info("getattr(%s)", path)
			now := time.Now()
			switch path {
			case "/":
				r.OK(&fusebind.Attr{
					Mtime: now, Atime: now, Ctime: now,
					Nlink: 1,
					Size:  100,
					Mode:  unix.S_IFDIR | 0o755,
					Uid:   uid,
					Gid:   gid,
				})
			case "/" + helloName:
				r.OK(&fusebind.Attr{
					Mtime: now, Atime: now, Ctime: now,
					Nlink: 1,
					Size:  uint64(len(helloContent)),
					Mode:  unix.S_IFREG | 0o644,
					Uid:   uid,
					Gid:   gid,
				})
			default:
				r.Fail(errno.ENOENT)
			}
		},
		Open: func(_ context.Context, path string, flags uint32, r *fusebind.Reply[fusebind.FD]) {
			cliLogger.Info("open(%s, %d)", path, flags)
			r.OK(42)
		},
		Read: func(_ context.Context, path string, fd fusebind.FD, buf []byte, pos int64, r *fusebind.Reply[int]) {
			cliLogger.Info("read(%s, %d, %d, %d)", path, fd, len(buf), pos)
			if pos >= int64(len(helloContent)) {
				r.OK(0)
				return
			}
			r.OK(copy(buf, helloContent[pos:]))
		},
	}
}
