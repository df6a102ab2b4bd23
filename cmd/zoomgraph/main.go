package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/zoomgraph/internal/config"
)

var (
	envFlag      string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "zoomgraph",
	Short: "Multi-level clustering, layout and progressive serving of large knowledge graphs",
	Long: `zoomgraph turns a sparsely connected graph of embedded records into a two-level
hierarchy of topics and domains with a stable 2D layout per level, publishes it as a
versioned snapshot and serves it progressively over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", config.GetEnv(),
		"environment; selects config/<env>.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"log level override: debug, info, warn, error")

	rootCmd.AddCommand(buildCmd, serveCmd, runsCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
