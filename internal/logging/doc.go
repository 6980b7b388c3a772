// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// The package wraps Zap with:
//   - A Trace level (-2, below Debug) for raw bridge traffic
//   - Stream output (stderr by default) plus an optional OpenTelemetry core
//   - Context field injection (trace_id, batch.id, request.id, mcp.tool)
//   - Secret and task-content redaction
//   - Sampling below error level
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, otelProvider)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithBatchID(ctx, batchID)
//	logger.Info(ctx, "batch finished", zap.Int("errors", n))
//
// Output:
//
//	{
//	  "ts": "2026-03-02T10:15:30Z",
//	  "level": "info",
//	  "msg": "batch finished",
//	  "service": "focusd",
//	  "batch.id": "9b1c...",
//	  "errors": 0
//	}
//
// # Stdout
//
// The MCP stdio transport writes JSON-RPC frames to stdout, so the default
// stream is stderr. Set logging.output.stream to "stdout" only when serving
// over HTTP.
//
// # Redaction
//
// Field keys listed in redaction.fields are replaced with [REDACTED] and string
// values matching redaction.patterns with [REDACTED:pattern]. Operation payloads
// should be logged with PayloadKeys, which records key names only.
//
// # Testing
//
//	logger := logging.NewTestLogger()
//	svc := NewService(logger.Logger)
//	svc.Do(ctx)
//	logger.AssertLogged(t, zapcore.InfoLevel, "batch finished")
package logging
