package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/pkg/mcp/stdio"
)

// runStdioServer serves MCP over stdio. Tool calls go to the HTTP daemon
// configured in cfg; stdout carries the protocol, so logs go to stderr.
func runStdioServer(ctx context.Context, cfg *config.Config) error {
	lcfg, err := logging.FromSettings(cfg.Logging, "factcheckd-mcp")
	if err != nil {
		return err
	}
	logger, err := logging.NewStderrLogger(lcfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	daemonURL := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	logger.Info(ctx, "starting MCP stdio server", zap.String("daemon_url", daemonURL))

	server, err := stdio.NewServer(daemonURL, version)
	if err != nil {
		return fmt.Errorf("failed to create stdio server: %w", err)
	}
	fmt.Fprintf(os.Stderr, "factcheckd stdio mode started (delegating to daemon at %s)\n", daemonURL)

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("stdio server error: %w", err)
	}
	return nil
}
