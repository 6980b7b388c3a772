package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/focusd/internal/batch"
	"github.com/fyrsmithlabs/focusd/internal/bridge"
	"github.com/fyrsmithlabs/focusd/internal/config"
	"github.com/fyrsmithlabs/focusd/internal/logging"
)

// startTestNATSServer starts an embedded NATS server for testing.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func connect(t *testing.T, server *natsserver.Server) *nats.Conn {
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func nextEvent(t *testing.T, sub *nats.Subscription) (string, Event) {
	t.Helper()
	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	return msg.Subject, ev
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "focusd.batches.b1.started", Subject("focusd.batches", "b1", TypeStarted))
}

func TestPublisher_BatchLifecycle(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connect(t, server)

	sub, err := nc.SubscribeSync("focusd.batches.>")
	require.NoError(t, err)

	pub := NewPublisher(nc, "focusd.batches", nil)
	orch := batch.New(bridge.NewMemory(), batch.Config{}, nil,
		batch.WithObserver(pub),
		batch.WithIDGenerator(func() string { return "b1" }))

	res, err := orch.Execute(context.Background(), &batch.Request{Operations: []batch.Operation{
		{Kind: batch.KindCreate, TargetType: batch.TargetProject, TempID: "P", Payload: map[string]any{"name": "Garden"}},
		{Kind: batch.KindCreate, TargetType: batch.TargetTask, References: []string{"P"}, Payload: map[string]any{"name": "Dig", "project_id": "P"}},
	}})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NoError(t, nc.Flush())

	subject, ev := nextEvent(t, sub)
	assert.Equal(t, "focusd.batches.b1.started", subject)
	assert.Equal(t, TypeStarted, ev.Type)
	assert.Equal(t, 2, ev.Operations)
	assert.Equal(t, []int{0, 1}, ev.Order)
	assert.False(t, ev.Time.IsZero())

	for i := 0; i < 2; i++ {
		subject, ev = nextEvent(t, sub)
		assert.Equal(t, "focusd.batches.b1.operation", subject)
		require.NotNil(t, ev.Outcome)
		assert.Equal(t, i, ev.Outcome.Index)
		assert.Equal(t, batch.OutcomeSucceeded, ev.Outcome.Status)
		assert.Nil(t, ev.Outcome.Fields, "entity fields stay out of events")
	}

	subject, ev = nextEvent(t, sub)
	assert.Equal(t, "focusd.batches.b1.completed", subject)
	assert.Equal(t, batch.StatusSuccess, ev.Status)
	require.NotNil(t, ev.Success)
	assert.True(t, *ev.Success)
	assert.Equal(t, 2, ev.Summary.Created)
	assert.Nil(t, ev.Error)
}

func TestPublisher_Rejected(t *testing.T) {
	server := startTestNATSServer(t)
	nc := connect(t, server)

	var got []Event
	done := make(chan struct{})
	sub, err := Subscribe(nc, "focusd.batches", func(_ string, ev Event) {
		got = append(got, ev)
		close(done)
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, nc.Flush())

	pub := NewPublisher(nc, "focusd.batches", nil)
	orch := batch.New(bridge.NewMemory(), batch.Config{}, nil,
		batch.WithObserver(pub),
		batch.WithIDGenerator(func() string { return "b2" }))

	_, err = orch.Execute(context.Background(), &batch.Request{Operations: []batch.Operation{
		{Kind: batch.KindCreate, TargetType: batch.TargetTask, TempID: "a", References: []string{"a"}},
	}})
	require.Error(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rejected event not received")
	}
	require.Len(t, got, 1)
	assert.Equal(t, TypeRejected, got[0].Type)
	assert.Equal(t, "b2", got[0].BatchID)
	require.NotNil(t, got[0].Error)
	assert.Equal(t, batch.ErrCodeCircularDependency, got[0].Error.Code)
	assert.Equal(t, []string{"a", "a"}, got[0].Error.Cycle)
}

func TestPublisher_ClosedConnectionIsLoggedNotFatal(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	nc.Close()

	logger := logging.NewTestLogger()
	pub := NewPublisher(nc, "focusd.batches", logger.Logger)

	assert.NotPanics(t, func() {
		pub.BatchRejected(context.Background(), "b3", &batch.Error{Code: batch.ErrCodeInvalidRequest, Message: "bad"})
	})
	logger.AssertLogged(t, zapcore.WarnLevel, "publish event")
}

func TestConnect(t *testing.T) {
	server := startTestNATSServer(t)

	nc, err := Connect(config.EventsConfig{Enabled: true, URL: server.ClientURL(), SubjectPrefix: "x"}, "focusd-test")
	require.NoError(t, err)
	defer nc.Close()
	assert.True(t, nc.IsConnected())
}
