package app

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voxguild/permengine/internal/permission"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(flagsCmd)
}

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "List the permission flags",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0) //nolint:mnd

		fmt.Fprintln(w, "VALUE\tNAME\tLABEL\tDANGEROUS")

		for _, f := range permission.Flags() {
			fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", uint64(f.Value), f.Name, f.Label, f.Dangerous)
		}

		return w.Flush()
	},
}
