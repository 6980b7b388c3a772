package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// concurrencyProbe records the highest number of overlapping Execute calls.
type concurrencyProbe struct {
	active atomic.Int32
	peak   atomic.Int32
	starts []time.Time
	mu     sync.Mutex
}

func (p *concurrencyProbe) Execute(ctx context.Context, cmd Command) (Response, error) {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	p.mu.Lock()
	p.starts = append(p.starts, time.Now())
	p.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	return Response{RealID: "x"}, nil
}

func (p *concurrencyProbe) Status(ctx context.Context) (Status, error) {
	return Status{Kind: "probe", Available: true}, nil
}

func TestSerialized_OneCallAtATime(t *testing.T) {
	probe := &concurrencyProbe{}
	s := NewSerialized(probe, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Execute(context.Background(), Command{Kind: "create"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), probe.peak.Load())
}

func TestSerialized_Pacing(t *testing.T) {
	probe := &concurrencyProbe{}
	s := NewSerialized(probe, 30*time.Millisecond, nil)

	for i := 0; i < 3; i++ {
		_, err := s.Execute(context.Background(), Command{Kind: "update"})
		require.NoError(t, err)
	}

	require.Len(t, probe.starts, 3)
	for i := 1; i < len(probe.starts); i++ {
		gap := probe.starts[i].Sub(probe.starts[i-1])
		assert.GreaterOrEqual(t, gap, 25*time.Millisecond, "calls %d and %d too close", i-1, i)
	}
}

func TestSerialized_CancelledWhileWaiting(t *testing.T) {
	s := NewSerialized(&concurrencyProbe{}, 0, nil)
	s.lane <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Execute(ctx, Command{Kind: "create"})
	assert.True(t, IsCode(err, CodeCancelled), "got %v", err)

	_, err = s.Status(ctx)
	assert.True(t, IsCode(err, CodeCancelled))
}

func TestSerialized_DeadlineShorterThanPacing(t *testing.T) {
	s := NewSerialized(&concurrencyProbe{}, time.Hour, nil)
	_, err := s.Execute(context.Background(), Command{Kind: "create"})
	require.NoError(t, err, "first call uses the burst token")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.Execute(ctx, Command{Kind: "create"})
	assert.True(t, IsCode(err, CodeCancelled), "got %v", err)
}

func TestSerialized_Status(t *testing.T) {
	st, err := NewSerialized(&concurrencyProbe{}, 0, nil).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "probe", st.Kind)
}
