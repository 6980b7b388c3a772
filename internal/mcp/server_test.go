package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fyrsmithlabs/focusd/internal/batch"
	"github.com/fyrsmithlabs/focusd/internal/bridge"
	"github.com/fyrsmithlabs/focusd/internal/logging"
	"github.com/fyrsmithlabs/focusd/internal/telemetry"
)

type testEnv struct {
	session *mcp.ClientSession
	mem     *bridge.Memory
	tel     *telemetry.TestTelemetry
	logger  *logging.TestLogger
}

func newTestEnv(t *testing.T, memOpts ...bridge.MemoryOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	mem := bridge.NewMemory(memOpts...)
	logger := logging.NewTestLogger()
	tel := telemetry.NewTestTelemetry()
	orch := batch.New(mem, batch.Config{MaxOperations: 10}, logger.Logger)

	srv, err := NewServer(&Config{
		Name:    "focusd-test",
		Version: "test",
		Logger:  logger.Logger,
		Metrics: NewMetrics(tel.Meter(instrumentationName), logger.Logger),
	}, orch)
	require.NoError(t, err)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	return &testEnv{session: cs, mem: mem, tel: tel, logger: logger}
}

func (e *testEnv) call(t *testing.T, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := e.session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func decode[T any](t *testing.T, structured any) T {
	t.Helper()
	raw, err := json.Marshal(structured)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestNewServer_RequiresOrchestrator(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestTools_Listed(t *testing.T) {
	env := newTestEnv(t)

	var names []string
	for tool, err := range env.session.Tools(context.Background(), nil) {
		require.NoError(t, err)
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{toolBatchMutate, toolBatchPlan, toolBridgeStatus}, names)
}

func TestBatchMutate_Success(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, toolBatchMutate, map[string]any{
		"operations": []any{
			map[string]any{"kind": "create", "target_type": "project", "temp_id": "P1", "payload": map[string]any{"name": "Garden"}},
			map[string]any{"kind": "create", "target_type": "task", "references": []any{"P1"}, "payload": map[string]any{"name": "Dig", "project_id": "P1"}},
		},
	})
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), "success")

	out := decode[batch.Result](t, res.StructuredContent)
	assert.True(t, out.Success)
	assert.Equal(t, map[string]string{"P1": "project-1"}, out.TempIDMapping)
	assert.Equal(t, 2, out.Summary.Created)

	calls := env.mem.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "project-1", calls[1].Payload["project_id"])

	assert.Equal(t, int64(1), env.tel.CounterValue(t, "focusd.mcp.tool.invocations_total", attribute.String("tool", toolBatchMutate)))
	env.logger.AssertField(t, "batch finished", "mcp.tool", toolBatchMutate)
}

func TestBatchMutate_PartialIsNotAnError(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, toolBatchMutate, map[string]any{
		"operations": []any{
			map[string]any{"kind": "create", "target_type": "tag", "payload": map[string]any{"name": "home"}},
			map[string]any{"kind": "delete", "target_type": "task", "payload": map[string]any{"id": "task-77"}},
		},
	})
	assert.False(t, res.IsError)
	out := decode[batch.Result](t, res.StructuredContent)
	assert.Equal(t, batch.StatusPartial, out.Status)
	assert.Equal(t, 1, out.Summary.Errors)
}

func TestBatchMutate_AtomicFailureIsFlagged(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, toolBatchMutate, map[string]any{
		"atomic_operation": true,
		"operations": []any{
			map[string]any{"kind": "create", "target_type": "tag", "payload": map[string]any{"name": "home"}},
			map[string]any{"kind": "delete", "target_type": "task", "payload": map[string]any{"id": "task-77"}},
		},
	})
	assert.True(t, res.IsError)
	out := decode[batch.Result](t, res.StructuredContent)
	assert.Equal(t, batch.StatusFailed, out.Status)
	assert.Equal(t, 1, out.Summary.Created, "the tag stays created")

	assert.Equal(t, int64(1), env.tel.CounterValue(t, "focusd.mcp.tool.errors_total", attribute.String("reason", "batch_failed")))
}

func TestBatchMutate_CycleRejected(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, toolBatchMutate, map[string]any{
		"operations": []any{
			map[string]any{"kind": "create", "target_type": "task", "temp_id": "a", "references": []any{"b"}, "payload": map[string]any{"name": "a"}},
			map[string]any{"kind": "create", "target_type": "task", "temp_id": "b", "references": []any{"a"}, "payload": map[string]any{"name": "b"}},
		},
	})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "CIRCULAR_DEPENDENCY")
	assert.Empty(t, env.mem.Calls())

	out := decode[batch.Result](t, res.StructuredContent)
	require.NotNil(t, out.Error)
	assert.Equal(t, batch.ErrCodeCircularDependency, out.Error.Code)
	assert.Equal(t, []string{"a", "b", "a"}, out.Error.Cycle)

	assert.Equal(t, int64(1), env.tel.CounterValue(t, "focusd.mcp.tool.errors_total", attribute.String("reason", "reference_error")))
}

func TestBatchPlan(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, toolBatchPlan, map[string]any{
		"operations": []any{
			map[string]any{"kind": "create", "target_type": "task", "references": []any{"P"}, "payload": map[string]any{"name": "t", "project_id": "P"}},
			map[string]any{"kind": "create", "target_type": "project", "temp_id": "P", "payload": map[string]any{"name": "p"}},
		},
	})
	assert.False(t, res.IsError)
	assert.Empty(t, env.mem.Calls())

	out := decode[planOutput](t, res.StructuredContent)
	require.NotNil(t, out.Plan)
	assert.Equal(t, []int{1, 0}, out.Plan.Order)
	assert.Nil(t, out.Error)
}

func TestBatchPlan_Unresolved(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, toolBatchPlan, map[string]any{
		"operations": []any{
			map[string]any{"kind": "create", "target_type": "task", "references": []any{"nope"}, "payload": map[string]any{"name": "t"}},
		},
	})
	assert.True(t, res.IsError)
	out := decode[planOutput](t, res.StructuredContent)
	require.NotNil(t, out.Error)
	assert.Equal(t, batch.ErrCodeUnresolvedReference, out.Error.Code)
}

func TestBridgeStatus(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, toolBridgeStatus, map[string]any{})
	assert.False(t, res.IsError)
	out := decode[bridge.Status](t, res.StructuredContent)
	assert.Equal(t, "memory", out.Kind)
	assert.True(t, out.Available)
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"nil error", nil, ""},
		{"invalid request", &batch.Error{Code: batch.ErrCodeInvalidRequest}, "validation_error"},
		{"cycle", &batch.Error{Code: batch.ErrCodeCircularDependency}, "reference_error"},
		{"scheduling", &batch.Error{Code: batch.ErrCodeSchedulingInvariant}, "internal_error"},
		{"bridge unavailable", bridge.NewError(bridge.CodeUnavailable, "down", ""), "bridge_unavailable"},
		{"bridge timeout", bridge.NewError(bridge.CodeTimeout, "slow", ""), "timeout"},
		{"batch failed", errBatchFailed, "batch_failed"},
		{"generic error", errors.New("something went wrong"), "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, categorizeError(tt.err))
		})
	}
}
