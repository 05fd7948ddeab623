package agent

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/system-monitor-pro/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", version.Product, version.Version, version.Commit)
	},
}
