// Package http provides the HTTP API for focusd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/focusd/internal/batch"
	"github.com/fyrsmithlabs/focusd/internal/bridge"
	"github.com/fyrsmithlabs/focusd/internal/logging"
)

// Orchestrator is the batch surface the handlers call.
type Orchestrator interface {
	Execute(ctx context.Context, req *batch.Request) (*batch.Result, error)
	Plan(ctx context.Context, req *batch.Request) (*batch.Plan, error)
	Status(ctx context.Context) (bridge.Status, error)
}

// Server provides HTTP endpoints for focusd.
type Server struct {
	echo   *echo.Echo
	orch   Orchestrator
	logger *logging.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// BodyLimit caps request bodies, in echo's size notation (default "1M").
	BodyLimit string

	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer

	// Metrics records per-request metrics when set.
	Metrics *HTTPMetrics
}

// NewServer creates a new HTTP server.
func NewServer(orch Orchestrator, logger *logging.Logger, cfg *Config) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("orchestrator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9191,
		}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "1M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	if cfg.Metrics != nil {
		e.Use(cfg.Metrics.MetricsMiddleware())
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			if id := c.Response().Header().Get(echo.HeaderXRequestID); logging.ValidID(id) {
				c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
			}

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)

			return nil
		}
	})

	s := &Server{
		echo:   e,
		orch:   orch,
		logger: logger,
		config: cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check
	s.echo.GET("/health", s.handleHealth)

	if s.config.Gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	v1.POST("/batches", s.handleExecute)
	v1.POST("/batches/plan", s.handlePlan)
	v1.GET("/bridge/status", s.handleBridgeStatus)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// PlanResponse is the response body for POST /api/v1/batches/plan.
type PlanResponse struct {
	Plan  *batch.Plan  `json:"plan,omitempty"`
	Error *batch.Error `json:"error,omitempty"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) bindRequest(c echo.Context) (*batch.Request, error) {
	var req batch.Request
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid batch request", zap.Error(err))
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return &req, nil
}

// handleExecute runs a batch. Rejected requests answer 422 and scheduling
// faults 500; every other batch answers 200 with its status in the body.
func (s *Server) handleExecute(c echo.Context) error {
	req, err := s.bindRequest(c)
	if err != nil {
		return err
	}

	res, err := s.orch.Execute(c.Request().Context(), req)
	if res == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "batch execution failed").SetInternal(err)
	}

	code := http.StatusOK
	if err != nil {
		code = http.StatusUnprocessableEntity
		if batch.IsSchedulingInvariant(err) {
			code = http.StatusInternalServerError
		}
	}
	return c.JSON(code, res)
}

// handlePlan validates and orders a batch without executing it.
func (s *Server) handlePlan(c echo.Context) error {
	req, err := s.bindRequest(c)
	if err != nil {
		return err
	}

	plan, err := s.orch.Plan(c.Request().Context(), req)
	if err != nil {
		var be *batch.Error
		if errors.As(err, &be) {
			return c.JSON(http.StatusUnprocessableEntity, PlanResponse{Error: be})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "batch plan failed").SetInternal(err)
	}
	return c.JSON(http.StatusOK, PlanResponse{Plan: plan})
}

// handleBridgeStatus reports bridge availability; an unavailable bridge
// answers 503 with the same body.
func (s *Server) handleBridgeStatus(c echo.Context) error {
	st, err := s.orch.Status(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	code := http.StatusOK
	if !st.Available {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, st)
}

// Start starts the HTTP server. It returns nil after Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}
