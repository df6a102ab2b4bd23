package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/zoomgraph/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "zoomgraph %s (commit %s, built %s)\n",
			version.Version, version.Commit, version.Date)
	},
}
