package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/factcheckd/pkg/mcp/stdio"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check factcheckd server health",
	Long: `Check the health status of the factcheckd HTTP server.

Examples:
  # Check health
  fcctl health

  # Check health on a different server
  fcctl health --server http://localhost:9000`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	h, err := stdio.NewDaemonClient(serverURL).Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", serverURL, err)
	}

	out := cmd.OutOrStdout()
	style := goodStyle
	if h.Status != "ok" {
		style = badStyle
	}
	fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Server Status:"), style.Render(h.Status))
	fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Server URL:   "), serverURL)
	if h.Version != "" {
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Version:      "), h.Version)
	}
	fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Models:       "), strings.Join(h.Models, ", "))
	if h.VectorStore != "" {
		vs := goodStyle
		if h.VectorStore != "ok" {
			vs = badStyle
		}
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("Vector Store: "), vs.Render(h.VectorStore))
	}
	return nil
}
