package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/voxguild/permengine/internal/config"
	authmiddleware "github.com/voxguild/permengine/internal/web/middleware/auth"
)

func init() { //nolint: gochecknoinits
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")

	rootCmd.AddCommand(tokenCmd)
}

var (
	tokenTTL time.Duration

	tokenCmd = &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign an API token for a user (development helper)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("user id: %w", err)
			}

			c, err := config.ReadConfig(configPath)
			if err != nil {
				return err
			}

			tok, err := authmiddleware.Sign(c.Auth, userID, tokenTTL)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)

			return err
		},
	}
)
