package batch

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/focusd/internal/bridge"
	"github.com/fyrsmithlabs/focusd/internal/logging"
)

// engine runs one scheduled batch. It owns the ledger for that run and is
// discarded afterwards.
type engine struct {
	bridge   bridge.Bridge
	graph    *Graph
	req      *Request
	batchID  string
	logger   *logging.Logger
	tracer   trace.Tracer
	metrics  *Metrics
	observer Observer

	// realIDs maps declared temp ids to application ids. Entries are only
	// added, never replaced.
	realIDs map[string]string

	// outcomes in execution order.
	outcomes []Outcome

	// status of every operation that already has an outcome.
	status map[int]OutcomeStatus
}

func (e *engine) record(ctx context.Context, o Outcome) {
	e.outcomes = append(e.outcomes, o)
	e.status[o.Index] = o.Status
	e.metrics.recordOperation(ctx, o)
	e.observer.OperationFinished(ctx, e.batchID, o)
}

// run executes order sequentially. It returns a non-nil *Error only for a
// scheduling invariant violation, after recording every remaining operation
// as aborted.
func (e *engine) run(ctx context.Context, order []int) *Error {
	halted := false

	for pos, i := range order {
		op := e.graph.ops[i]

		if halted {
			e.record(ctx, skipped(op, SkipNotAttempted))
			continue
		}
		if ctx.Err() != nil {
			e.record(ctx, skipped(op, SkipCancelled))
			continue
		}

		var failedDeps []int
		for _, d := range e.graph.deps[i] {
			st, ran := e.status[d]
			if !ran {
				fatal := newError(ErrCodeSchedulingInvariant, []int{i, d},
					"operation %d was scheduled before operation %d, which it depends on", i, d)
				e.logger.Error(ctx, "scheduling invariant violated",
					zap.Int("operation", i),
					zap.Int("dependency", d),
					zap.Ints("order", order))
				for _, rest := range order[pos:] {
					e.record(ctx, skipped(e.graph.ops[rest], SkipAborted))
				}
				return fatal
			}
			if st != OutcomeSucceeded {
				failedDeps = append(failedDeps, d)
			}
		}
		if len(failedDeps) > 0 {
			o := skipped(op, SkipDependencyFailed)
			o.DependsOn = failedDeps
			e.logger.Debug(ctx, "operation skipped, dependency did not succeed",
				zap.Int("operation", i),
				zap.Ints("depends_on", failedDeps))
			e.record(ctx, o)
			continue
		}

		o := e.execute(ctx, op)
		e.record(ctx, o)
		if o.Status == OutcomeFailed && e.req.StopOnError {
			halted = true
		}
	}
	return nil
}

// execute performs one bridge call with references substituted.
func (e *engine) execute(ctx context.Context, op Operation) Outcome {
	ids := make(map[string]string, len(op.References))
	for _, ref := range op.References {
		ids[ref] = e.realIDs[ref]
	}
	cmd := bridge.Command{
		Kind:    string(op.Kind),
		Target:  string(op.TargetType),
		Payload: substitute(op.Payload, ids),
	}

	ctx, span := e.tracer.Start(ctx, "batch.operation", trace.WithAttributes(
		attribute.Int("batch.operation.index", op.Index),
		attribute.String("batch.operation.kind", string(op.Kind)),
		attribute.String("batch.operation.target", string(op.TargetType)),
	))
	defer span.End()

	e.logger.Trace(ctx, "calling bridge",
		zap.Int("operation", op.Index),
		zap.String("kind", cmd.Kind),
		zap.String("target", cmd.Target),
		logging.PayloadKeys("payload_keys", cmd.Payload))

	start := time.Now()
	resp, err := e.bridge.Execute(ctx, cmd)
	elapsed := time.Since(start)
	e.metrics.recordBridgeCall(ctx, op, elapsed)

	if err == nil && op.Kind == KindCreate && resp.RealID == "" {
		err = bridge.NewError(bridge.CodeInvalidResponse,
			"bridge reported success for a create without an id", "Check the automation script output")
	}

	if err != nil {
		berr := bridge.AsError(err)
		if ctx.Err() != nil && berr.Code != bridge.CodeCancelled {
			berr = bridge.NewError(bridge.CodeCancelled, berr.Message, "")
		}
		span.SetStatus(codes.Error, string(berr.Code))
		span.RecordError(berr)
		e.logger.Warn(ctx, "operation failed",
			zap.Int("operation", op.Index),
			zap.String("code", string(berr.Code)),
			zap.String("message", berr.Message),
			zap.Duration("elapsed", elapsed))
		return failed(op, &OperationError{
			Code:       string(berr.Code),
			Message:    berr.Message,
			Suggestion: berr.Suggestion,
		}, elapsed)
	}

	if op.TempID != "" {
		if _, exists := e.realIDs[op.TempID]; !exists {
			e.realIDs[op.TempID] = resp.RealID
		}
	}
	span.SetAttributes(attribute.String("batch.operation.real_id", resp.RealID))
	e.logger.Debug(ctx, "operation succeeded",
		zap.Int("operation", op.Index),
		zap.String("real_id", resp.RealID),
		zap.Duration("elapsed", elapsed))
	return succeeded(op, resp.RealID, resp.Fields, elapsed)
}
