package main

import (
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/focusd/internal/config"
	"github.com/fyrsmithlabs/focusd/internal/events"
)

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

func TestRunCmd_PublishesEvents(t *testing.T) {
	isolate(t)
	server := startTestNATSServer(t)
	t.Setenv("FOCUSD_EVENTS_ENABLED", "true")
	t.Setenv("FOCUSD_EVENTS_URL", server.ClientURL())

	cfg := config.Default().Events
	cfg.URL = server.ClientURL()
	ch, stop, err := subscribeEvents(cfg, "focusd-test")
	require.NoError(t, err)
	defer stop()

	path := writeBatch(t, "garden.yaml", gardenBatch)
	_, _, err = execute(t, "run", "--bridge", "memory", path)
	require.NoError(t, err)

	var got []events.Type
	var batchIDs []string
	require.Eventually(t, func() bool {
		for {
			select {
			case ev := <-ch:
				got = append(got, ev.Type)
				batchIDs = append(batchIDs, ev.BatchID)
			default:
				return len(got) >= 4
			}
		}
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, []events.Type{
		events.TypeStarted,
		events.TypeOperation,
		events.TypeOperation,
		events.TypeCompleted,
	}, got)
	for _, id := range batchIDs {
		assert.Equal(t, batchIDs[0], id)
	}
}

func TestSubscribeEvents_StopClosesChannel(t *testing.T) {
	server := startTestNATSServer(t)

	cfg := config.Default().Events
	cfg.URL = server.ClientURL()
	ch, stop, err := subscribeEvents(cfg, "focusd-test")
	require.NoError(t, err)

	stop()
	_, open := <-ch
	assert.False(t, open)
}
