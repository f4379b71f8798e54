// Factcheckd is the biomedical claim fact-checking daemon.
//
// It loads the configuration, connects to Gemini and the vector store,
// populates the reference collection from the corpus CSV when needed and
// serves the HTTP API.
//
// Usage:
//
//	# Start the daemon with config/input_parameters.json
//	factcheckd
//
//	# Use another config file and override the port
//	FACTCHECK_SERVER__HTTP_PORT=9000 factcheckd -config prod.yaml
//
//	# Serve MCP over stdio, delegating to a running daemon
//	factcheckd -mcp
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/http"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/retriever"
	"github.com/fyrsmithlabs/factcheckd/internal/services"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath = flag.String("config", "", "path to JSON or YAML config (default "+config.DefaultConfigPath+")")
	mcpMode    = flag.Bool("mcp", false, "serve MCP over stdio, delegating to the HTTP daemon")
	skipIngest = flag.Bool("skip-ingest", false, "do not populate the collection on startup")
)

func main() {
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  factcheckd [flags]   Start the daemon\n")
			fmt.Fprintf(os.Stderr, "  factcheckd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	if *mcpMode {
		err = runStdioServer(ctx, cfg)
	} else {
		err = run(ctx, cfg)
	}
	if err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printVersion() {
	fmt.Printf("factcheckd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	logger, flush, err := services.Observability(ctx, cfg, "", version)
	if err != nil {
		return err
	}
	defer flush()

	logger.Info(ctx, "starting factcheckd",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("vector_store", cfg.VectorStore.Provider),
		zap.Strings("models", cfg.ModelIDs()),
	)

	reg, err := services.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn(context.Background(), "vector store close failed", zap.Error(err))
		}
	}()

	if !*skipIngest {
		if err := ingest(ctx, cfg, reg, logger); err != nil {
			return err
		}
	}

	srv, err := http.NewServer(reg.Chat(), logger, &http.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		Version:     version,
		VectorStore: reg.VectorStore(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info(context.Background(), "server shutdown complete")
	return nil
}

// ingest populates the collection from retriever_config.data_path.
func ingest(ctx context.Context, cfg *config.Config, reg services.Registry, logger *logging.Logger) error {
	path := cfg.RetrieverConfig.DataPath
	if path == "" {
		logger.Info(ctx, "no corpus configured, skipping ingest")
		return nil
	}
	rows, err := retriever.LoadCSVFile(path)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	stats, err := reg.Ingester().Generate(ctx, rows)
	if err != nil {
		return fmt.Errorf("populating collection: %w", err)
	}
	logger.Info(ctx, "corpus ready",
		zap.String("path", path),
		zap.Bool("skipped", stats.Skipped),
		zap.Int("rows", stats.Rows),
		zap.Int("upserted", stats.Upserted),
		zap.Int("failed", stats.Failed),
	)
	return nil
}
