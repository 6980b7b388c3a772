package batch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/focusd/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/focusd/internal/batch"

// Metrics holds batch instruments. A nil *Metrics records nothing.
type Metrics struct {
	batches     metric.Int64Counter
	operations  metric.Int64Counter
	rejections  metric.Int64Counter
	batchTime   metric.Float64Histogram
	bridgeCalls metric.Float64Histogram
}

// NewMetrics creates batch instruments on meter. Instruments that fail to
// register are logged and left unset.
func NewMetrics(meter metric.Meter, logger *logging.Logger) *Metrics {
	m := &Metrics{}
	ctx := context.Background()
	var err error

	m.batches, err = meter.Int64Counter(
		"focusd.batch.executions_total",
		metric.WithDescription("Total number of executed batches by status"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create batches counter", zap.Error(err))
	}

	m.operations, err = meter.Int64Counter(
		"focusd.batch.operations_total",
		metric.WithDescription("Total number of batch operations by kind, target and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create operations counter", zap.Error(err))
	}

	m.rejections, err = meter.Int64Counter(
		"focusd.batch.rejections_total",
		metric.WithDescription("Total number of batches rejected before execution"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create rejections counter", zap.Error(err))
	}

	m.batchTime, err = meter.Float64Histogram(
		"focusd.batch.duration_seconds",
		metric.WithDescription("Wall time of executed batches"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create batch duration histogram", zap.Error(err))
	}

	m.bridgeCalls, err = meter.Float64Histogram(
		"focusd.bridge.call_duration_seconds",
		metric.WithDescription("Latency of individual bridge calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create bridge latency histogram", zap.Error(err))
	}

	return m
}

func (m *Metrics) recordOperation(ctx context.Context, o Outcome) {
	if m == nil || m.operations == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("kind", string(o.Kind)),
		attribute.String("target", string(o.TargetType)),
		attribute.String("status", string(o.Status)),
	}
	switch {
	case o.Error != nil:
		attrs = append(attrs, attribute.String("reason", o.Error.Code))
	case o.SkipReason != "":
		attrs = append(attrs, attribute.String("reason", string(o.SkipReason)))
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) recordBridgeCall(ctx context.Context, op Operation, d time.Duration) {
	if m == nil || m.bridgeCalls == nil {
		return
	}
	m.bridgeCalls.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("kind", string(op.Kind)),
		attribute.String("target", string(op.TargetType)),
	))
}

func (m *Metrics) recordBatch(ctx context.Context, res *Result, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("status", string(res.Status)),
		attribute.Bool("atomic", res.Atomic),
	)
	if m.batches != nil {
		m.batches.Add(ctx, 1, attrs)
	}
	if m.batchTime != nil {
		m.batchTime.Record(ctx, d.Seconds(), attrs)
	}
}

func (m *Metrics) recordRejection(ctx context.Context, code ErrorCode) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("code", string(code))))
}
