package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/factcheckd/internal/config"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
	"github.com/fyrsmithlabs/factcheckd/internal/telemetry"
)

// Observability starts telemetry and the logger for a binary. The
// returned function flushes both.
func Observability(ctx context.Context, cfg *config.Config, service, version string) (*logging.Logger, func(), error) {
	obs := cfg.Observability
	if service != "" {
		obs.ServiceName = service
	}
	tel, err := telemetry.New(ctx, telemetry.FromSettings(obs, version))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	lcfg, err := logging.FromSettings(cfg.Logging, obs.ServiceName)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, nil, err
	}
	logger, err := logging.NewLogger(lcfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if degraded, derr := tel.Degraded(); degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Error(derr))
	}

	return logger, func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn(context.Background(), "telemetry shutdown failed", zap.Error(err))
		}
		_ = logger.Sync()
	}, nil
}
