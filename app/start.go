package app

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/voxguild/permengine/internal/daemon"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode")

	rootCmd.AddCommand(startCmd)
}

var (
	devMode bool

	startCmd = &cobra.Command{
		Use:     "start",
		Short:   "Start the permission web service",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if devMode {
				cfg.DevMode = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := daemon.New(ctx, &cfg)
			if err != nil {
				return err
			}

			defer d.Close()

			log.Info().Bool("dev", cfg.DevMode).Msg("permengine starting")

			return d.Run(ctx)
		},
	}
)
