package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voxguild/permengine/internal/config"
)

func init() { //nolint: gochecknoinits
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print JSON instead of TOML")

	rootCmd.AddCommand(checkCmd)
}

var (
	checkJSON bool

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print it with secrets masked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.ReadConfig(configPath)
			if err != nil {
				return err
			}

			dump := config.DumpConfig
			if checkJSON {
				dump = config.DumpConfigJSON
			}

			out, err := dump(config.Redact(c))
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)

			return err
		},
	}
)
