// Package http serves the fact-check API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/factcheckd/internal/chat"
	"github.com/fyrsmithlabs/factcheckd/internal/logging"
)

// Server provides HTTP endpoints for factcheckd.
type Server struct {
	echo     *echo.Echo
	registry *chat.Registry
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
	// BodyLimit caps request bodies, in echo's size notation.
	BodyLimit string
	// VectorStore is checked by GET /health when set.
	VectorStore HealthChecker
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewServer creates a new HTTP server.
func NewServer(registry *chat.Registry, logger *logging.Logger, cfg *Config) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8080,
		}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "64K"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()

	s := &Server{
		echo:     e,
		registry: registry,
		logger:   logger.Named("http"),
		config:   cfg,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(s.requestContext)

	s.registerRoutes()

	return s, nil
}

// requestContext attaches the request id and logger to the request
// context and logs each request.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		rid := c.Response().Header().Get(echo.HeaderXRequestID)

		ctx := logging.WithRequestID(req.Context(), rid)
		ctx = logging.WithLogger(ctx, s.logger)
		c.SetRequest(req.WithContext(ctx))

		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Info(ctx, "http request",
			zap.String("method", req.Method),
			zap.String("uri", req.RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/", s.handleCheck)
	s.echo.POST("/api/routes/chat/:index/", s.handleModelCheck)
	s.echo.POST("/api/routes/chat/:index", s.handleModelCheck)
}

// handleHealth reports liveness, the served models and vector store
// reachability. An unreachable store degrades the status but still
// answers 200, since the process itself is alive.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{
		Status:  "ok",
		Version: s.config.Version,
		Models:  s.registry.Models(),
	}
	if s.config.VectorStore != nil {
		ctx := c.Request().Context()
		if err := s.config.VectorStore.Health(ctx); err != nil {
			s.logger.Warn(ctx, "vector store health check failed", zap.Error(err))
			resp.Status = "degraded"
			resp.VectorStore = "unavailable"
		} else {
			resp.VectorStore = "ok"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// handleCheck fact-checks with the default model.
func (s *Server) handleCheck(c echo.Context) error {
	return s.check(c, s.registry.Default())
}

// handleModelCheck fact-checks with the model at :index.
func (s *Server) handleModelCheck(c echo.Context) error {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "model index must be an integer")
	}
	svc, err := s.registry.At(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return s.check(c, svc)
}

func (s *Server) check(c echo.Context, svc *chat.Service) error {
	ctx := c.Request().Context()

	var req CheckRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(ctx, "invalid check request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}

	s.logger.Debug(ctx, "received chat message", zap.Int("length", len(req.Message)))

	res, err := svc.Check(ctx, req.Message)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, res)
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrMessageTooLong):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(ctx, "chat processing failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
