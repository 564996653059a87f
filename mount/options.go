package mount

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"fusebind/dispatch"

	"bazil.org/fuse"
)

const defaultFSName = "fusebind"

// Options controls a mount.
type Options struct {
	// Force unmounts whatever is mounted at the path first. Failure to
	// unmount is ignored.
	Force bool

	// Options are transport flags such as "allow_other", "ro",
	// "max_readahead=131072" or "debug". Entries may also be
	// comma-separated.
	Options []string

	// DisplayFolder asks for the mount to be shown as a named volume. It
	// only has an effect on platforms whose transport supports it.
	DisplayFolder bool

	// Debug logs the kernel protocol trace.
	Debug bool

	// FSName and Subtype appear in the mount table. FSName defaults to
	// "fusebind".
	FSName  string
	Subtype string

	// Metrics receives dispatch metrics. Nil disables collection.
	Metrics dispatch.Metrics
}

// mountConfig is the resolved form of Options.
type mountConfig struct {
	fuseOpts []fuse.MountOption
	names    []string
	debug    bool
	directIO bool
}

// build translates Options into transport mount options.
func (o Options) build() (*mountConfig, error) {
	cfg := &mountConfig{debug: o.Debug || debugFromEnv()}

	fsname := o.FSName
	if fsname == "" {
		fsname = defaultFSName
	}
	subtype := o.Subtype

	for _, entry := range o.Options {
		for _, opt := range strings.Split(entry, ",") {
			opt = strings.TrimSpace(opt)
			if opt == "" {
				continue
			}
			key, value, hasValue := strings.Cut(opt, "=")

			switch key {
			case "fsname":
				fsname = value
				continue
			case "subtype":
				subtype = value
				continue
			case "debug":
				cfg.debug = true
			case "direct_io":
				cfg.directIO = true
			case "allow_other":
				cfg.fuseOpts = append(cfg.fuseOpts, fuse.AllowOther())
			case "default_permissions":
				cfg.fuseOpts = append(cfg.fuseOpts, fuse.DefaultPermissions())
			case "ro":
				cfg.fuseOpts = append(cfg.fuseOpts, fuse.ReadOnly())
			case "async_read":
				cfg.fuseOpts = append(cfg.fuseOpts, fuse.AsyncRead())
			case "nonempty":
				cfg.fuseOpts = append(cfg.fuseOpts, fuse.AllowNonEmptyMount())
			case "writeback_cache":
				cfg.fuseOpts = append(cfg.fuseOpts, fuse.WritebackCache())
			case "dev":
				cfg.fuseOpts = append(cfg.fuseOpts, fuse.AllowDev())
			case "suid":
				cfg.fuseOpts = append(cfg.fuseOpts, fuse.AllowSUID())
			case "max_readahead":
				n, err := strconv.ParseUint(value, 10, 32)
				if !hasValue || err != nil {
					return nil, fmt.Errorf("%w: %q needs a byte count", ErrUnknownOption, opt)
				}
				cfg.fuseOpts = append(cfg.fuseOpts, fuse.MaxReadahead(uint32(n)))
			default:
				return nil, fmt.Errorf("%w: %q", ErrUnknownOption, opt)
			}
			cfg.names = append(cfg.names, opt)
		}
	}

	cfg.fuseOpts = append(cfg.fuseOpts, fuse.FSName(fsname))
	cfg.names = append(cfg.names, "fsname="+fsname)
	if subtype != "" {
		cfg.fuseOpts = append(cfg.fuseOpts, fuse.Subtype(subtype))
		cfg.names = append(cfg.names, "subtype="+subtype)
	}

	if o.DisplayFolder {
		mountLogger.Debug("display folder is not supported on %s, ignoring", runtime.GOOS)
	}
	return cfg, nil
}

// debugFromEnv reports whether DEBUG selects this library, either by
// name or with a wildcard.
func debugFromEnv() bool {
	v := os.Getenv("DEBUG")
	return strings.Contains(v, "*") || strings.Contains(v, defaultFSName)
}
