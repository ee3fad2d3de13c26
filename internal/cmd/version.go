package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "addonup version %s (commit %s, built %s)\n", addonupVersion, commit, date)
			return nil
		},
	}
}
