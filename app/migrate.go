package app

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/voxguild/permengine/internal/db"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	Short:   "Create or update the database tables",
	PreRunE: loadConfig,
	RunE: func(_ *cobra.Command, _ []string) error {
		conn, err := db.Open(cfg.DB, cfg.Log.SQL)
		if err != nil {
			return err
		}

		defer func() {
			if err := db.Close(conn); err != nil {
				log.Error().Err(err).Msg("closing database")
			}
		}()

		if err = db.Migrate(conn); err != nil {
			return err
		}

		log.Info().Str("engine", cfg.DB.Engine).Msg("database migrated")

		return nil
	},
}
