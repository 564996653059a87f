package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"fusebind/internal/logging"
	"fusebind/internal/memfs"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "MEMFS"

var cliLogger = logging.GetLogger().WithPrefix("memfs")

// Config holds the resolved settings of a command. Keys match the flag
// names; precedence is flag, then MEMFS_ environment, then config file.
type Config struct {
	LogLevel      string   `mapstructure:"log-level"`
	State         string   `mapstructure:"state"`
	MetricsAddr   string   `mapstructure:"metrics-addr"`
	Force         bool     `mapstructure:"force"`
	Options       []string `mapstructure:"options"`
	DisplayFolder bool     `mapstructure:"display-folder"`
	Debug         bool     `mapstructure:"debug"`
	Capacity      uint64   `mapstructure:"capacity"`
	MaxFiles      uint64   `mapstructure:"max-files"`
}

// loadConfig resolves the configuration for cmd from its flags, the
// environment and the optional --config file.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	return loadConfigFrom(cmd.Flags(), cfgFile)
}

func loadConfigFrom(flags *pflag.FlagSet, path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return &cfg, nil
}

// applyLogLevel sets the global log level. An empty level keeps the one
// taken from LOG_LEVEL.
func applyLogLevel(level string) error {
	if level == "" {
		return nil
	}
	l, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}
	logging.GetLogger().SetLevel(l)
	return nil
}

// fsOptions builds the memfs options for cfg. PUID and PGID, when set,
// force the owner of every node.
func fsOptions(cfg *Config) memfs.Options {
	opts := memfs.DefaultOptions()
	opts.Capacity = cfg.Capacity
	opts.MaxFiles = cfg.MaxFiles

	if puidStr := os.Getenv("PUID"); puidStr != "" {
		if puid, err := strconv.ParseUint(puidStr, 10, 32); err == nil {
			opts.Uid = uint32(puid)
			opts.ForceOwner = true
			cliLogger.Debug("Using PUID from environment: %d", opts.Uid)
		}
	}
	if pgidStr := os.Getenv("PGID"); pgidStr != "" {
		if pgid, err := strconv.ParseUint(pgidStr, 10, 32); err == nil {
			opts.Gid = uint32(pgid)
			opts.ForceOwner = true
			cliLogger.Debug("Using PGID from environment: %d", opts.Gid)
		}
	}
	return opts
}
