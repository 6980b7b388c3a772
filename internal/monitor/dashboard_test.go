package monitor

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/focusd/internal/batch"
	"github.com/fyrsmithlabs/focusd/internal/events"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestModel() Model {
	m := NewModel(make(chan events.Event), time.Second)
	m.now = func() time.Time { return t0.Add(time.Minute) }
	m.started = t0
	return m
}

func send(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func started(id string, n int) eventMsg {
	return eventMsg{Type: events.TypeStarted, BatchID: id, Time: t0, Operations: n}
}

func operation(id string, status batch.OutcomeStatus) eventMsg {
	o := &batch.Outcome{Kind: batch.KindCreate, TargetType: batch.TargetTask, Status: status}
	if status == batch.OutcomeFailed {
		o.Error = &batch.OperationError{Code: "target_not_found"}
	}
	return eventMsg{Type: events.TypeOperation, BatchID: id, Time: t0, Outcome: o}
}

func completed(id string, s batch.Status) eventMsg {
	return eventMsg{Type: events.TypeCompleted, BatchID: id, Time: t0.Add(2 * time.Second), Status: s}
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil, 5*time.Second)
	assert.Equal(t, 5*time.Second, model.interval)
	assert.False(t, model.quitting)
	assert.Empty(t, model.batches)
}

func TestModel_Init(t *testing.T) {
	model := NewModel(make(chan events.Event), time.Second)
	assert.NotNil(t, model.Init())
}

func TestModel_Update_QuitKey(t *testing.T) {
	model := newTestModel()

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	m := updated.(Model)
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestModel_BatchLifecycle(t *testing.T) {
	m := send(t, newTestModel(),
		started("batch-1", 3),
		operation("batch-1", batch.OutcomeSucceeded),
		operation("batch-1", batch.OutcomeFailed),
		operation("batch-1", batch.OutcomeSkipped),
		completed("batch-1", batch.StatusPartial),
	)

	bv := m.batches["batch-1"]
	require.NotNil(t, bv)
	assert.Equal(t, 3, bv.total)
	assert.Equal(t, 3, bv.done)
	assert.Equal(t, 1, bv.failed)
	assert.Equal(t, 1, bv.skipped)
	assert.True(t, bv.finished)
	assert.Equal(t, batch.StatusPartial, bv.status)

	assert.Equal(t, Totals{Partial: 1, Operations: 3}, m.Totals())

	view := m.View()
	assert.Contains(t, view, "batch-1")
	assert.Contains(t, view, "3/3")
	assert.Contains(t, view, "1 failed, 1 skipped")
	assert.Contains(t, view, "completed partial")
	assert.Contains(t, view, "target_not_found")
}

func TestModel_Rejected(t *testing.T) {
	m := send(t, newTestModel(), eventMsg{
		Type: events.TypeRejected, BatchID: "batch-2", Time: t0,
		Error: &batch.Error{Code: batch.ErrCodeCircularDependency},
	})

	assert.Equal(t, 1, m.Totals().Rejected)
	assert.Contains(t, m.View(), "rejected CIRCULAR_DEPENDENCY")
}

func TestModel_TickSamplesThroughput(t *testing.T) {
	m := send(t, newTestModel(),
		started("b", 2),
		operation("b", batch.OutcomeSucceeded),
		operation("b", batch.OutcomeSucceeded),
		tickMsg(t0),
		tickMsg(t0),
	)

	assert.Equal(t, []float64{2, 0}, m.opsHistory)
	assert.Equal(t, 0, m.opsThisTick)
}

func TestModel_EvictsFinishedFirst(t *testing.T) {
	m := newTestModel()
	m = send(t, m, started("running", 1))
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		m = send(t, m, started(id, 1), completed(id, batch.StatusSuccess))
	}
	require.Len(t, m.order, maxBatches)

	m = send(t, m, started("f", 1))

	assert.Len(t, m.order, maxBatches)
	assert.Contains(t, m.batches, "running")
	assert.NotContains(t, m.batches, "a")
}

func TestModel_ClearFinished(t *testing.T) {
	m := send(t, newTestModel(),
		started("done", 1), completed("done", batch.StatusSuccess),
		started("busy", 2),
		tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}},
	)

	assert.Equal(t, []string{"busy"}, m.order)
	assert.NotContains(t, m.batches, "done")
}

func TestModel_Closed(t *testing.T) {
	m := send(t, newTestModel(), closedMsg{})
	assert.True(t, m.closed)
	assert.Contains(t, m.View(), "disconnected")
}

func TestWaitForEvent(t *testing.T) {
	ch := make(chan events.Event, 1)
	ch <- events.Event{Type: events.TypeStarted, BatchID: "x"}

	msg := waitForEvent(ch)()
	ev, ok := msg.(eventMsg)
	require.True(t, ok)
	assert.Equal(t, "x", ev.BatchID)

	close(ch)
	_, ok = waitForEvent(ch)().(closedMsg)
	assert.True(t, ok)
}

func TestAppendToHistory(t *testing.T) {
	var h []float64
	for i := 0; i < historySize+5; i++ {
		h = appendToHistory(h, float64(i))
	}
	assert.Len(t, h, historySize)
	assert.Equal(t, float64(5), h[0])
}

func TestGetStatusBadge(t *testing.T) {
	assert.Contains(t, getStatusBadge(batch.StatusSuccess), "✓")
	assert.Contains(t, getStatusBadge(batch.StatusPartial), "⚠")
	assert.Contains(t, getStatusBadge(batch.StatusFailed), "✗")
	assert.Contains(t, getStatusBadge(""), "…")
}
