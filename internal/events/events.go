// Package events publishes batch lifecycle events to NATS.
//
// Events are published to subjects:
//   - {prefix}.{batch_id}.started
//   - {prefix}.{batch_id}.operation
//   - {prefix}.{batch_id}.completed
//   - {prefix}.{batch_id}.rejected
//
// Publishing is best effort. A failed publish is logged and never affects the
// batch that produced it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/focusd/internal/batch"
	"github.com/fyrsmithlabs/focusd/internal/config"
	"github.com/fyrsmithlabs/focusd/internal/logging"
)

// Type names a lifecycle event.
type Type string

const (
	TypeStarted   Type = "started"
	TypeOperation Type = "operation"
	TypeCompleted Type = "completed"
	TypeRejected  Type = "rejected"
)

// Event is the JSON body of every published message.
type Event struct {
	Type    Type      `json:"type"`
	BatchID string    `json:"batch_id"`
	Time    time.Time `json:"time"`
	TraceID string    `json:"trace_id,omitempty"`

	// started
	Operations int   `json:"operations,omitempty"`
	Order      []int `json:"order,omitempty"`

	// operation
	Outcome *batch.Outcome `json:"outcome,omitempty"`

	// completed
	Status  batch.Status   `json:"status,omitempty"`
	Success *bool          `json:"success,omitempty"`
	Summary *batch.Summary `json:"summary,omitempty"`

	// completed after a fatal error, or rejected
	Error *batch.Error `json:"error,omitempty"`
}

// Subject returns the subject an event of type t for batchID is published on.
func Subject(prefix, batchID string, t Type) string {
	return fmt.Sprintf("%s.%s.%s", prefix, batchID, t)
}

// Connect dials NATS with reconnect settings suitable for a long-running
// service.
func Connect(cfg config.EventsConfig, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1 * time.Second),
	}
	if tok := cfg.Token.Value(); tok != "" {
		opts = append(opts, nats.Token(tok))
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// Publisher implements batch.Observer on a NATS connection.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *logging.Logger
	now    func() time.Time
}

var _ batch.Observer = (*Publisher)(nil)

// NewPublisher creates a publisher writing under prefix.
func NewPublisher(nc *nats.Conn, prefix string, logger *logging.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{
		nc:     nc,
		prefix: prefix,
		logger: logger.Named("events"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) event(ctx context.Context, t Type, batchID string) Event {
	ev := Event{Type: t, BatchID: batchID, Time: p.now()}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		ev.TraceID = sc.TraceID().String()
	}
	return ev
}

func (p *Publisher) publish(ctx context.Context, ev Event) {
	subject := Subject(p.prefix, ev.BatchID, ev.Type)
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn(ctx, "marshal event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn(ctx, "publish event", zap.String("subject", subject), zap.Error(err))
		return
	}
	p.logger.Trace(ctx, "event published", zap.String("subject", subject))
}

// BatchStarted publishes the validated execution order.
func (p *Publisher) BatchStarted(ctx context.Context, batchID string, req *batch.Request, plan *batch.Plan) {
	ev := p.event(ctx, TypeStarted, batchID)
	ev.Operations = len(req.Operations)
	if plan != nil {
		ev.Order = plan.Order
	}
	p.publish(ctx, ev)
}

// OperationFinished publishes one outcome. Application fields are left out;
// they are task content and can be large.
func (p *Publisher) OperationFinished(ctx context.Context, batchID string, outcome batch.Outcome) {
	ev := p.event(ctx, TypeOperation, batchID)
	outcome.Fields = nil
	ev.Outcome = &outcome
	p.publish(ctx, ev)
}

// BatchFinished publishes the verdict and summary.
func (p *Publisher) BatchFinished(ctx context.Context, res *batch.Result) {
	ev := p.event(ctx, TypeCompleted, res.BatchID)
	ev.Status = res.Status
	success := res.Success
	ev.Success = &success
	summary := res.Summary
	ev.Summary = &summary
	ev.Error = res.Error
	p.publish(ctx, ev)
}

// BatchRejected publishes a pre-execution rejection.
func (p *Publisher) BatchRejected(ctx context.Context, batchID string, err *batch.Error) {
	ev := p.event(ctx, TypeRejected, batchID)
	ev.Error = err
	p.publish(ctx, ev)
}

// Subscribe delivers every event under prefix to fn until the returned
// subscription is drained or unsubscribed. Messages that are not events are
// skipped.
func Subscribe(nc *nats.Conn, prefix string, fn func(subject string, ev Event)) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(prefix+".>", func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		fn(msg.Subject, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s.>: %w", prefix, err)
	}
	return sub, nil
}
