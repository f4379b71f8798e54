// Package main implements the fcctl CLI for operating a factcheckd daemon.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
)

var (
	// serverURL is the base URL of the factcheckd HTTP daemon
	serverURL string
	// configPath is used by commands that run the pipeline locally
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fcctl",
	Short: "CLI for the factcheckd fact-checking daemon",
	Long: `fcctl is a command-line interface for the factcheckd daemon.
It checks claims, reports daemon health, populates the reference
collection and bridges MCP clients to the daemon.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "factcheckd server URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to JSON or YAML config (default "+config.DefaultConfigPath+")")
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(mcpCmd)
}
