package batch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTask(tempID string, refs ...string) Operation {
	return Operation{
		Kind:       KindCreate,
		TargetType: TargetTask,
		TempID:     tempID,
		References: refs,
		Payload:    map[string]any{"name": "task " + tempID},
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *Request
		max     int
		wantOps []int
		wantMsg string
	}{
		{
			name:    "nil request",
			req:     nil,
			wantMsg: "request is required",
		},
		{
			name:    "no operations",
			req:     &Request{},
			wantMsg: "operations",
		},
		{
			name:    "empty operations",
			req:     &Request{Operations: []Operation{}},
			wantMsg: "at least 1",
		},
		{
			name: "unknown kind",
			req: &Request{Operations: []Operation{
				createTask("a"),
				{Kind: "archive", TargetType: TargetTask},
			}},
			wantOps: []int{1},
			wantMsg: "operations[1].kind must be one of",
		},
		{
			name: "unknown target type",
			req: &Request{Operations: []Operation{
				{Kind: KindCreate, TargetType: "context"},
			}},
			wantOps: []int{0},
			wantMsg: "operations[0].target_type",
		},
		{
			name: "missing kind and target on different operations",
			req: &Request{Operations: []Operation{
				{TargetType: TargetTask},
				createTask("ok"),
				{Kind: KindDelete},
			}},
			wantOps: []int{0, 2},
			wantMsg: "operations[0].kind is required",
		},
		{
			name: "temp id on a non-create",
			req: &Request{Operations: []Operation{
				{Kind: KindUpdate, TargetType: TargetTask, TempID: "u"},
			}},
			wantOps: []int{0},
			wantMsg: "only allowed on create",
		},
		{
			name: "empty reference",
			req: &Request{Operations: []Operation{
				createTask("a"),
				createTask("b", ""),
			}},
			wantOps: []int{1},
			wantMsg: "operations[1].references[0] is required",
		},
		{
			name: "temp id too long",
			req: &Request{Operations: []Operation{
				createTask(strings.Repeat("x", 129)),
			}},
			wantOps: []int{0},
			wantMsg: "exceeds 128",
		},
		{
			name: "over the operation limit",
			req: &Request{Operations: []Operation{
				createTask("a"), createTask("b"), createTask("c"),
			}},
			max:     2,
			wantMsg: "limit is 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRequest(tt.req, tt.max)
			require.Error(t, err)
			assert.True(t, IsInvalidRequest(err))
			assert.True(t, IsRejection(err))

			be, _ := AsError(err)
			assert.Equal(t, tt.wantOps, be.Operations)
			assert.Contains(t, be.Message, tt.wantMsg)
		})
	}
}

func TestValidateRequest_AssignsIndices(t *testing.T) {
	req := &Request{Operations: []Operation{
		createTask("a"),
		{Kind: KindUpdate, TargetType: TargetProject, Payload: map[string]any{"id": "project-9"}},
		{Kind: KindComplete, TargetType: TargetTask, References: []string{"a"}, Payload: map[string]any{"id": "a"}},
	}}

	require.NoError(t, validateRequest(req, 10))
	for i, op := range req.Operations {
		assert.Equal(t, i, op.Index)
	}
}

func TestValidateRequest_IgnoresCallerIndex(t *testing.T) {
	req := &Request{Operations: []Operation{
		{Index: 7, Kind: KindCreate, TargetType: TargetTag, Payload: map[string]any{"name": "home"}},
	}}
	require.NoError(t, validateRequest(req, 0))
	assert.Equal(t, 0, req.Operations[0].Index)
}

func TestRequest_WantsMapping(t *testing.T) {
	no := false
	yes := true

	assert.True(t, (&Request{}).WantsMapping())
	assert.True(t, (&Request{ReturnMapping: &yes}).WantsMapping())
	assert.False(t, (&Request{ReturnMapping: &no}).WantsMapping())
}
