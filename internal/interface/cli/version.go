package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sotakimura/conductor/internal/buildinfo"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "conductor %s (commit %s, built %s)\n",
				buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		},
	}
}
