package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/factcheckd/pkg/mcp/stdio"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP over stdio, delegating to the daemon",
	Long: `Run an MCP server on stdin/stdout exposing the check_claim and status
tools. Tool calls are forwarded to the daemon given by --server.

Example MCP client entry:
  {"command": "fcctl", "args": ["mcp", "--server", "http://localhost:8080"]}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		server, err := stdio.NewServer(serverURL, version)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "fcctl mcp started (delegating to daemon at %s)\n", serverURL)
		return server.Run(ctx)
	},
}
