package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	focushttp "github.com/fyrsmithlabs/focusd/internal/http"
	"github.com/fyrsmithlabs/focusd/internal/mcp"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var noStdio bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the batch tools over MCP stdio and HTTP",
		Long: `Serve the batch_mutate, batch_plan and bridge_status tools over the MCP
stdio transport. With server.http_enabled the same orchestrator is also
served as a JSON API with /health and /metrics.

Examples:
  # MCP on stdio
  focusd serve

  # HTTP only, for local testing
  FOCUSD_SERVER_HTTP_ENABLED=true focusd serve --no-stdio --bridge memory`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags, !noStdio)
		},
	}
	cmd.Flags().BoolVar(&noStdio, "no-stdio", false, "do not serve MCP on stdio")
	return cmd
}

// runServe blocks until a signal arrives, the stdio client disconnects or a
// server fails.
func runServe(ctx context.Context, flags *rootFlags, stdio bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, flags)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	g, gctx := errgroup.WithContext(ctx)
	gctx, cancel := context.WithCancel(gctx)
	defer cancel()

	if stdio {
		mcpServer, err := mcp.NewServer(&mcp.Config{
			Name:    a.cfg.MCP.Name,
			Version: a.cfg.MCP.Version,
			Logger:  a.logger,
			Metrics: mcp.NewMetrics(a.tel.Meter(mcpScope), a.logger),
		}, a.orch)
		if err != nil {
			return err
		}
		g.Go(func() error {
			defer cancel()
			return mcpServer.Run(gctx)
		})
	}

	if a.cfg.Server.HTTPEnabled {
		httpServer, err := focushttp.NewServer(a.orch, a.logger, &focushttp.Config{
			Host:     a.cfg.Server.Host,
			Port:     a.cfg.Server.Port,
			Gatherer: a.tel.Gatherer(),
			Metrics:  focushttp.NewHTTPMetrics(a.tel.Meter(httpScope), a.logger),
		})
		if err != nil {
			return err
		}
		g.Go(httpServer.Start)
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer scancel()
			return httpServer.Shutdown(sctx)
		})
	}

	if !stdio && !a.cfg.Server.HTTPEnabled {
		a.logger.Warn(ctx, "nothing to serve: stdio disabled and server.http_enabled is false")
		return nil
	}

	a.logger.Info(ctx, "focusd serving",
		zap.Bool("stdio", stdio),
		zap.Bool("http", a.cfg.Server.HTTPEnabled),
		zap.String("bridge", a.cfg.Bridge.Kind),
		zap.String("version", version))

	err = g.Wait()
	a.logger.Info(context.Background(), "focusd stopped")
	return err
}
