package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/fyrsmithlabs/focusd/internal/batch"
	"github.com/fyrsmithlabs/focusd/internal/bridge"
	"github.com/fyrsmithlabs/focusd/internal/logging"
)

// errBatchFailed marks a tool call whose batch ran but ended in failed status.
var errBatchFailed = errors.New("batch failed")

// Orchestrator is the batch surface the tools call.
type Orchestrator interface {
	Execute(ctx context.Context, req *batch.Request) (*batch.Result, error)
	Plan(ctx context.Context, req *batch.Request) (*batch.Plan, error)
	Status(ctx context.Context) (bridge.Status, error)
}

// Server is an MCP server backed by a batch orchestrator.
type Server struct {
	mcp     *mcp.Server
	orch    Orchestrator
	metrics *Metrics
	logger  *logging.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "focusd")
	Name string

	// Version is the server version (default: "0.1.0")
	Version string

	// Logger for structured logging
	Logger *logging.Logger

	// Metrics records tool invocations. Optional.
	Metrics *Metrics
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "focusd",
		Version: "0.1.0",
		Logger:  logging.NewNop(),
	}
}

// NewServer creates a new MCP server over orch.
func NewServer(cfg *Config, orch Orchestrator) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if orch == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(noop.NewMeterProvider().Meter(instrumentationName), logger)
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:     mcpServer,
		orch:    orch,
		metrics: metrics,
		logger:  logger.Named("mcp"),
	}
	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying SDK server, for callers that pick their
// own transport.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info(ctx, "starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
