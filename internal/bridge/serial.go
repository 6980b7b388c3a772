package bridge

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/focusd/internal/logging"
)

// Serialized gives concurrent callers a single lane to the wrapped bridge and
// spaces calls at least minInterval apart.
type Serialized struct {
	inner   Bridge
	lane    chan struct{}
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewSerialized wraps inner. A zero minInterval disables pacing.
func NewSerialized(inner Bridge, minInterval time.Duration, logger *logging.Logger) *Serialized {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Serialized{
		inner:   inner,
		lane:    make(chan struct{}, 1),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("bridge.serial"),
	}
}

// Execute waits for the lane and the pacer, then calls the wrapped bridge.
func (s *Serialized) Execute(ctx context.Context, cmd Command) (Response, error) {
	if err := s.acquire(ctx); err != nil {
		return Response{}, err
	}
	defer s.release()

	if err := s.limiter.Wait(ctx); err != nil {
		return Response{}, s.waitError(ctx, err)
	}
	return s.inner.Execute(ctx, cmd)
}

// Status probes the wrapped bridge through the same lane.
func (s *Serialized) Status(ctx context.Context) (Status, error) {
	if err := s.acquire(ctx); err != nil {
		return Status{}, err
	}
	defer s.release()
	return s.inner.Status(ctx)
}

func (s *Serialized) acquire(ctx context.Context) error {
	select {
	case s.lane <- struct{}{}:
		return nil
	default:
	}

	start := time.Now()
	s.logger.Debug(ctx, "waiting for bridge lane")
	select {
	case s.lane <- struct{}{}:
		s.logger.Debug(ctx, "acquired bridge lane", zap.Duration("waited", time.Since(start)))
		return nil
	case <-ctx.Done():
		return NewError(CodeCancelled, "request cancelled while waiting for the bridge", "")
	}
}

func (s *Serialized) release() {
	<-s.lane
}

// waitError maps limiter failures. Wait fails early when the pacing delay
// would overrun the context deadline.
func (s *Serialized) waitError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return NewError(CodeCancelled, "request cancelled while pacing bridge calls", "")
	}
	return NewError(CodeCancelled, "request deadline leaves no room for the next bridge call: "+err.Error(), "")
}
