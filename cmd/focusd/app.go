package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/focusd/internal/batch"
	"github.com/fyrsmithlabs/focusd/internal/bridge"
	"github.com/fyrsmithlabs/focusd/internal/config"
	"github.com/fyrsmithlabs/focusd/internal/events"
	"github.com/fyrsmithlabs/focusd/internal/logging"
	"github.com/fyrsmithlabs/focusd/internal/telemetry"
)

// Instrumentation scopes, one per instrumented package.
const (
	batchScope = "github.com/fyrsmithlabs/focusd/internal/batch"
	mcpScope   = "github.com/fyrsmithlabs/focusd/internal/mcp"
	httpScope  = "github.com/fyrsmithlabs/focusd/internal/http"
)

const bridgeMemory = "memory"

// app holds the wired dependencies shared by every command.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
	bridge bridge.Bridge
	nc     *nats.Conn
	orch   *batch.Orchestrator
}

// newApp loads configuration and wires logging, telemetry, the bridge, the
// optional event publisher and the orchestrator.
func newApp(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.bridgeKind != "" {
		cfg.Bridge.Kind = flags.bridgeKind
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	telCfg := telemetry.NewDefaultConfig()
	telCfg.ServiceVersion = version
	if err := cfg.Section("telemetry", telCfg); err != nil {
		return nil, err
	}
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg := logging.NewDefaultConfig()
	if err := cfg.Section("logging", logCfg); err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, tel: tel}
	a.bridge = a.newBridge()

	opts := []batch.Option{
		batch.WithTracer(tel.Tracer(batchScope)),
		batch.WithMetrics(batch.NewMetrics(tel.Meter(batchScope), logger)),
	}
	if cfg.Events.Enabled {
		nc, err := events.Connect(cfg.Events, "focusd")
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.nc = nc
		opts = append(opts, batch.WithObserver(events.NewPublisher(nc, cfg.Events.SubjectPrefix, logger)))
		logger.Info(ctx, "publishing batch events",
			zap.String("url", cfg.Events.URL),
			zap.String("subject_prefix", cfg.Events.SubjectPrefix))
	}

	a.orch = batch.New(a.bridge, batch.Config{
		MaxOperations:  cfg.Batch.MaxOperations,
		RequestTimeout: cfg.Batch.RequestTimeout,
	}, logger, opts...)

	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Strings("reasons", h.Reasons))
	}
	logger.Debug(ctx, "focusd initialized",
		zap.String("bridge", cfg.Bridge.Kind),
		zap.Bool("serialized", cfg.Bridge.Serialize),
		zap.Int("max_operations", cfg.Batch.MaxOperations))

	return a, nil
}

func (a *app) newBridge() bridge.Bridge {
	var b bridge.Bridge
	switch a.cfg.Bridge.Kind {
	case bridgeMemory:
		b = bridge.NewMemory()
	default:
		b = bridge.NewOSAScript(bridge.OSAScriptConfig{
			Path:        a.cfg.Bridge.OSAScriptPath,
			Application: a.cfg.Bridge.Application,
			CallTimeout: a.cfg.Bridge.CallTimeout,
		}, nil, a.logger)
	}
	if a.cfg.Bridge.Serialize {
		b = bridge.NewSerialized(b, a.cfg.Bridge.MinInterval, a.logger)
	}
	return b
}

// Close drains NATS, flushes telemetry and syncs the logger.
func (a *app) Close(ctx context.Context) {
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			a.logger.Warn(ctx, "drain NATS connection", zap.Error(err))
		}
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown", zap.Error(err))
	}
	_ = a.logger.Sync()
}
