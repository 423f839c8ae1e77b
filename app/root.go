// Package app implements the command line of the permission engine.
package app

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/voxguild/permengine/internal/config"
	"github.com/voxguild/permengine/internal/logger"
)

var (
	configPath string // directory holding main.toml

	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "permengine",
		Short: "permengine resolves and guards guild permissions",
		Long: `permengine stores guild roles and channel overwrites and answers which
permissions a member holds in a channel. Every change is checked against the
permissions of the member requesting it.`,
		Args:          cobra.OnlyValidArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

func init() { //nolint: gochecknoinits
	zerolog.ErrorHandler = logger.ErrorHandler

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./etc", "directory of main.toml")
}

// loadConfig reads the config file and sets up logging.
func loadConfig(_ *cobra.Command, _ []string) error {
	var err error

	if cfg, err = config.ReadConfig(configPath); err != nil {
		return err
	}

	return logger.Init(cfg.Log)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
