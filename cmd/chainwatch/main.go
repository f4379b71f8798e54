// Package main implements chainwatch, which answers fact-check requests
// submitted to the verifier contract.
package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/factcheckd/internal/chain"
	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/ledger"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/services"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chainwatch",
	Short: "Answer on-chain fact-check requests",
	Long: `chainwatch polls the verifier contract for RequestSubmitted events, runs
each configured model on the claim and submits the verdict with
submitVerification. Submissions that keep failing are kept as dead letters.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to JSON or YAML config (default "+config.DefaultConfigPath+")")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(deadLettersCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start watching the contract",
	Long: `Start watching the contract until interrupted.

Examples:
  # Watch with config/input_parameters.json
  chainwatch run

  # Point at another node
  FACTCHECK_CHAIN__RPC_URL=https://coston2-api.flare.network/ext/C/rpc chainwatch run`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func loadConfigOnly() (*config.Config, error) {
	return config.Load(configPath)
}

func loadChainConfig() (*config.Config, error) {
	cfg, err := loadConfigOnly()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateChain(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openLedger(cfg *config.Config, logger *logging.Logger) (*ledger.Ledger, error) {
	return ledger.Open(ledger.Config{
		Path:       cfg.Chain.Ledger.Path,
		MaxEntries: cfg.Chain.Ledger.MaxEntries,
		TTL:        cfg.Chain.Ledger.TTL,
	}, logger)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadChainConfig()
	if err != nil {
		return err
	}

	logger, flush, err := services.Observability(ctx, cfg, "chainwatch", version)
	if err != nil {
		return err
	}
	defer flush()

	reg, err := services.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer reg.Close()

	led, err := openLedger(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer led.Close()

	client, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return err
	}
	defer client.Close()

	contract, err := chain.LoadContract(cfg.Chain.ContractAddress, cfg.Chain.ABIPath)
	if err != nil {
		return err
	}
	accounts, err := chain.AccountsFromConfig(cfg.Chain.Accounts, reg.Chat())
	if err != nil {
		return err
	}

	w, err := chain.NewWatcher(client, contract, led, accounts, chain.OptionsFromConfig(cfg.Chain), logger)
	if err != nil {
		return err
	}

	metrics := newMetricsServer(w, led)
	go func() {
		logger.Info(ctx, "serving metrics", zap.String("addr", cfg.Chain.MetricsAddr))
		if err := metrics.Start(cfg.Chain.MetricsAddr); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			logger.Error(ctx, "metrics server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx)
	}()

	return w.Run(ctx)
}

// statusResponse is served on /status next to the metrics.
type statusResponse struct {
	State       string `json:"state"`
	SeenEntries int    `json:"seen_entries"`
}

func newMetricsServer(w *chain.Watcher, led *ledger.Ledger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/status", func(c echo.Context) error {
		return c.JSON(nethttp.StatusOK, statusResponse{
			State:       w.State().String(),
			SeenEntries: led.SeenCount(),
		})
	})
	return e
}
