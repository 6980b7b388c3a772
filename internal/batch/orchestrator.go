package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/focusd/internal/bridge"
	"github.com/fyrsmithlabs/focusd/internal/logging"
)

// Config bounds a single request.
type Config struct {
	// MaxOperations rejects larger batches. Zero means unlimited.
	MaxOperations int

	// RequestTimeout cancels a running batch. Zero means no limit beyond the
	// caller's context.
	RequestTimeout time.Duration
}

// Observer receives batch lifecycle notifications. Calls happen on the
// executing goroutine, in order.
type Observer interface {
	BatchStarted(ctx context.Context, batchID string, req *Request, plan *Plan)
	OperationFinished(ctx context.Context, batchID string, outcome Outcome)
	BatchFinished(ctx context.Context, result *Result)
	BatchRejected(ctx context.Context, batchID string, err *Error)
}

type nopObserver struct{}

func (nopObserver) BatchStarted(context.Context, string, *Request, *Plan) {}
func (nopObserver) OperationFinished(context.Context, string, Outcome)    {}
func (nopObserver) BatchFinished(context.Context, *Result)                {}
func (nopObserver) BatchRejected(context.Context, string, *Error)         {}

// Orchestrator validates, schedules and executes batches against a bridge.
// It is safe for concurrent use; each call owns its own ledger.
type Orchestrator struct {
	bridge   bridge.Bridge
	cfg      Config
	logger   *logging.Logger
	observer Observer
	tracer   trace.Tracer
	metrics  *Metrics
	newID    func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers lifecycle callbacks.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithTracer sets the tracer used for batch and operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithMetrics enables metric recording.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithIDGenerator overrides batch id generation.
func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) { o.newID = f }
}

// New creates an orchestrator over b.
func New(b bridge.Bridge, cfg Config, logger *logging.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		bridge:   b,
		cfg:      cfg,
		logger:   logger.Named("batch"),
		observer: nopObserver{},
		tracer:   otel.Tracer(instrumentationName),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// prepare validates req and returns its graph and execution order. Every
// error is a *Error and means no bridge call may be made.
func (o *Orchestrator) prepare(req *Request) (*Graph, []int, error) {
	if err := validateRequest(req, o.cfg.MaxOperations); err != nil {
		return nil, nil, err
	}
	g, err := BuildGraph(req.Operations)
	if err != nil {
		return nil, nil, err
	}
	if err := g.DetectCycles(); err != nil {
		return nil, nil, err
	}
	order, err := g.Schedule()
	if err != nil {
		return nil, nil, err
	}
	return g, order, nil
}

// Plan validates req and returns the order Execute would use, without
// touching the bridge. Operation indices in req are assigned as a side effect.
func (o *Orchestrator) Plan(ctx context.Context, req *Request) (*Plan, error) {
	_, span := o.tracer.Start(ctx, "batch.plan")
	defer span.End()

	g, order, err := o.prepare(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("batch.operations", g.Len()))
	return g.plan(order), nil
}

// Execute runs req and always returns a result. The error is non-nil when
// the request was rejected before execution or a scheduling invariant
// violation aborted it; it is a *Error in both cases and is also set on
// Result.Error. Per-operation failures are reported only in the result.
func (o *Orchestrator) Execute(ctx context.Context, req *Request) (*Result, error) {
	batchID := o.newID()
	ctx = logging.WithBatchID(ctx, batchID)
	ctx, span := o.tracer.Start(ctx, "batch.execute", trace.WithAttributes(
		attribute.String("batch.id", batchID),
	))
	defer span.End()
	start := time.Now()

	g, order, err := o.prepare(req)
	if err != nil {
		be, _ := AsError(err)
		o.logger.Warn(ctx, "batch rejected",
			zap.String("code", string(be.Code)),
			zap.String("message", be.Message),
			zap.Ints("operations", be.Operations))
		span.SetStatus(codes.Error, string(be.Code))
		o.metrics.recordRejection(ctx, be.Code)
		o.observer.BatchRejected(ctx, batchID, be)
		return rejected(batchID, req, be), be
	}

	span.SetAttributes(
		attribute.Int("batch.operations", g.Len()),
		attribute.Bool("batch.stop_on_error", req.StopOnError),
		attribute.Bool("batch.atomic", req.AtomicOperation),
	)
	o.logger.Info(ctx, "batch started",
		zap.Int("operations", g.Len()),
		zap.Bool("stop_on_error", req.StopOnError),
		zap.Bool("atomic", req.AtomicOperation))
	o.observer.BatchStarted(ctx, batchID, req, g.plan(order))

	runCtx := ctx
	if o.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.RequestTimeout)
		defer cancel()
	}

	eng := &engine{
		bridge:   o.bridge,
		graph:    g,
		req:      req,
		batchID:  batchID,
		logger:   o.logger,
		tracer:   o.tracer,
		metrics:  o.metrics,
		observer: o.observer,
		realIDs:  make(map[string]string),
		outcomes: make([]Outcome, 0, g.Len()),
		status:   make(map[int]OutcomeStatus, g.Len()),
	}
	fatal := eng.run(runCtx, order)

	res := aggregate(batchID, req, eng.outcomes, eng.realIDs, fatal)
	elapsed := time.Since(start)
	o.metrics.recordBatch(ctx, res, elapsed)
	o.observer.BatchFinished(ctx, res)

	span.SetAttributes(
		attribute.String("batch.status", string(res.Status)),
		attribute.Int("batch.errors", res.Summary.Errors),
		attribute.Int("batch.skipped", res.Summary.Skipped),
	)
	o.logger.Info(ctx, "batch finished",
		zap.String("status", string(res.Status)),
		zap.Int("succeeded", res.Summary.Succeeded()),
		zap.Int("errors", res.Summary.Errors),
		zap.Int("skipped", res.Summary.Skipped),
		zap.Duration("elapsed", elapsed))

	if fatal != nil {
		span.SetStatus(codes.Error, string(fatal.Code))
		return res, fatal
	}
	if res.IsError() {
		span.SetStatus(codes.Error, string(res.Status))
	}
	return res, nil
}

// Status reports on the underlying bridge.
func (o *Orchestrator) Status(ctx context.Context) (bridge.Status, error) {
	return o.bridge.Status(ctx)
}
