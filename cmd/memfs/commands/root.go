// Package commands implements the memfs command line.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags.
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "memfs",
	Short: "memfs - an in-memory FUSE filesystem",
	Long: `memfs mounts an in-memory filesystem through FUSE. Its contents can be
persisted to a state file on unmount and restored on the next mount.

Every flag can also be set in a config file (--config) or through
environment variables prefixed with MEMFS_, for example
MEMFS_METRICS_ADDR=:9090 or MEMFS_LOG_LEVEL=debug.

Use "memfs [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: error, warn, info, debug or trace (default from LOG_LEVEL, else info)")

	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(unmountCmd)
	rootCmd.AddCommand(helloCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}
