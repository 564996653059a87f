package commands

import (
	"fusebind"

	"github.com/spf13/cobra"
)

var unmountCmd = &cobra.Command{
	Use:     "unmount <dir>",
	Aliases: []string{"umount"},
	Short:   "Unmount a FUSE filesystem",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := applyLogLevel(cfg.LogLevel); err != nil {
			return err
		}
		if err := fusebind.Unmount(args[0]); err != nil {
			return err
		}
		cliLogger.Info("Filesystem at %s unmounted", args[0])
		return nil
	},
}
