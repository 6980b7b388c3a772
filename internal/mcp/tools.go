package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/focusd/internal/batch"
	"github.com/fyrsmithlabs/focusd/internal/bridge"
	"github.com/fyrsmithlabs/focusd/internal/logging"
)

const (
	toolBatchMutate  = "batch_mutate"
	toolBatchPlan    = "batch_plan"
	toolBridgeStatus = "bridge_status"
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.registerBatchTools()
	s.registerBridgeTools()
}

type operationInput struct {
	Kind       string         `json:"kind" jsonschema:"Mutation kind: create, update, complete or delete"`
	TargetType string         `json:"target_type" jsonschema:"Entity type: project, task, tag or folder"`
	TempID     string         `json:"temp_id,omitempty" jsonschema:"Placeholder id for an entity this create makes; later operations may reference it"`
	References []string       `json:"references,omitempty" jsonschema:"Temp ids this operation uses; each must be declared by a create in the same batch"`
	Payload    map[string]any `json:"payload,omitempty" jsonschema:"Entity fields. A temp id in id, project_id, parent_id, folder_id or tag_ids is replaced by the real id before the call"`
}

type batchInput struct {
	Operations      []operationInput `json:"operations" jsonschema:"Operations in request order"`
	StopOnError     bool             `json:"stop_on_error,omitempty" jsonschema:"Stop at the first failed operation; the rest are reported as not attempted"`
	AtomicOperation bool             `json:"atomic_operation,omitempty" jsonschema:"Report the whole batch as failed if any operation fails. Completed operations are not undone"`
	ReturnMapping   *bool            `json:"return_mapping,omitempty" jsonschema:"Include temp_id_mapping in the result (default true)"`
}

func (in batchInput) request() *batch.Request {
	req := &batch.Request{
		Operations:      make([]batch.Operation, len(in.Operations)),
		StopOnError:     in.StopOnError,
		AtomicOperation: in.AtomicOperation,
		ReturnMapping:   in.ReturnMapping,
	}
	for i, op := range in.Operations {
		req.Operations[i] = batch.Operation{
			Kind:       batch.Kind(op.Kind),
			TargetType: batch.TargetType(op.TargetType),
			TempID:     op.TempID,
			References: op.References,
			Payload:    op.Payload,
		}
	}
	return req
}

type planOutput struct {
	Plan  *batch.Plan  `json:"plan,omitempty"`
	Error *batch.Error `json:"error,omitempty"`
}

// instrument wraps a tool body with metrics and the tool name on the context.
func (s *Server) instrument(ctx context.Context, tool string) (context.Context, func(error)) {
	start := time.Now()
	ctx = logging.WithTool(ctx, tool)
	s.metrics.IncrementActive(ctx, tool)
	return ctx, func(toolErr error) {
		s.metrics.DecrementActive(ctx, tool)
		s.metrics.RecordInvocation(ctx, tool, time.Since(start), toolErr)
	}
}

func (s *Server) registerBatchTools() {
	// batch_mutate
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: toolBatchMutate,
		Description: "Apply a batch of OmniFocus mutations in dependency order. Create operations may declare a temp_id; " +
			"later operations list it in references and put it in a reference field (id, project_id, parent_id, folder_id, tag_ids), where it is replaced with the real id once the create succeeds. " +
			"Operations run one at a time. Nothing is rolled back on failure.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args batchInput) (*mcp.CallToolResult, batch.Result, error) {
		ctx, done := s.instrument(ctx, toolBatchMutate)
		var toolErr error
		defer func() { done(toolErr) }()

		res, err := s.orch.Execute(ctx, args.request())
		if res == nil {
			toolErr = fmt.Errorf("batch execute: %w", err)
			return nil, batch.Result{}, toolErr
		}
		switch {
		case err != nil:
			toolErr = err
			s.logger.Warn(ctx, "batch_mutate returned a batch error", zap.Error(err))
		case res.IsError():
			toolErr = errBatchFailed
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: resultText(res)}},
			IsError: res.IsError(),
		}, *res, nil
	})

	// batch_plan
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolBatchPlan,
		Description: "Validate a batch and return the order batch_mutate would run it in, without changing anything.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args batchInput) (*mcp.CallToolResult, planOutput, error) {
		ctx, done := s.instrument(ctx, toolBatchPlan)
		var toolErr error
		defer func() { done(toolErr) }()

		plan, err := s.orch.Plan(ctx, args.request())
		if err != nil {
			toolErr = err
			be, ok := batch.AsError(err)
			if !ok {
				return nil, planOutput{}, fmt.Errorf("batch plan: %w", err)
			}
			out := planOutput{Error: be}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: be.Error()}},
				IsError: true,
			}, out, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: planText(plan)}},
		}, planOutput{Plan: plan}, nil
	})
}

type statusInput struct{}

func (s *Server) registerBridgeTools() {
	// bridge_status
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolBridgeStatus,
		Description: "Check whether the OmniFocus automation bridge is reachable.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args statusInput) (*mcp.CallToolResult, bridge.Status, error) {
		ctx, done := s.instrument(ctx, toolBridgeStatus)
		var toolErr error
		defer func() { done(toolErr) }()

		st, err := s.orch.Status(ctx)
		if err != nil {
			toolErr = err
			return nil, bridge.Status{}, fmt.Errorf("bridge status: %w", err)
		}

		text := fmt.Sprintf("Bridge %s available", st.Kind)
		if !st.Available {
			text = fmt.Sprintf("Bridge %s unavailable: %s", st.Kind, st.Detail)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
			IsError: !st.Available,
		}, st, nil
	})
}

// resultText is a one-line verdict followed by the full result as JSON, for
// clients that only read text content.
func resultText(res *batch.Result) string {
	head := fmt.Sprintf("Batch %s: %s (created %d, updated %d, completed %d, deleted %d, errors %d, skipped %d)",
		res.BatchID, res.Status,
		res.Summary.Created, res.Summary.Updated, res.Summary.Completed, res.Summary.Deleted,
		res.Summary.Errors, res.Summary.Skipped)
	if res.Error != nil {
		head += ": " + res.Error.Error()
	}
	body, err := json.Marshal(res)
	if err != nil {
		return head
	}
	return head + "\n" + string(body)
}

func planText(plan *batch.Plan) string {
	body, err := json.Marshal(plan)
	if err != nil {
		return fmt.Sprintf("Plan: %d operations", len(plan.Order))
	}
	return fmt.Sprintf("Plan: %d operations\n%s", len(plan.Order), body)
}
