// Package mcp exposes the batch orchestrator as MCP tools.
//
// This implementation uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and calls the orchestrator directly.
//
// Tools:
//   - batch_mutate: validate, order and apply a batch of OmniFocus mutations.
//   - batch_plan: validate and order a batch without applying it.
//   - bridge_status: report whether the automation bridge is reachable.
//
// A batch that ran always comes back as a structured result. The call is
// flagged as an error when the batch status is failed, which includes any
// failure in an atomic batch and every rejected request.
package mcp
