package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FailFunc lets tests inject a failure for a command. Returning nil lets the
// command proceed.
type FailFunc func(cmd Command) *Error

// Memory is an in-process bridge. Ids are "<target>-<n>" with n incrementing
// across all targets, starting at 1.
type Memory struct {
	mu       sync.Mutex
	next     int
	entities map[string]map[string]any
	targets  map[string]string
	calls    []Command
	fail     FailFunc
	latency  time.Duration
}

// MemoryOption configures a Memory bridge.
type MemoryOption func(*Memory)

// WithFailFunc injects failures.
func WithFailFunc(f FailFunc) MemoryOption {
	return func(m *Memory) { m.fail = f }
}

// WithLatency delays every call, honoring context cancellation.
func WithLatency(d time.Duration) MemoryOption {
	return func(m *Memory) { m.latency = d }
}

// NewMemory creates an empty in-memory bridge.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entities: make(map[string]map[string]any),
		targets:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Execute applies cmd to the in-memory store.
func (m *Memory) Execute(ctx context.Context, cmd Command) (Response, error) {
	if m.latency > 0 {
		t := time.NewTimer(m.latency)
		select {
		case <-ctx.Done():
			t.Stop()
			return Response{}, AsError(ctx.Err())
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return Response{}, AsError(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Command{Kind: cmd.Kind, Target: cmd.Target, Payload: clonePayload(cmd.Payload)})

	if m.fail != nil {
		if berr := m.fail(cmd); berr != nil {
			return Response{}, berr
		}
	}

	switch cmd.Kind {
	case "create":
		return m.create(cmd)
	case "update":
		return m.update(cmd)
	case "complete":
		return m.complete(cmd)
	case "delete":
		return m.delete(cmd)
	}
	return Response{}, NewError(CodeValidationFailed, fmt.Sprintf("unsupported kind %q", cmd.Kind), "")
}

func (m *Memory) create(cmd Command) (Response, error) {
	name, _ := cmd.Payload["name"].(string)
	if name == "" {
		return Response{}, NewError(CodeValidationFailed, fmt.Sprintf("%s name is required", cmd.Target), "Provide a non-empty name")
	}
	if err := m.checkReferences(cmd.Payload); err != nil {
		return Response{}, err
	}

	m.next++
	id := fmt.Sprintf("%s-%d", cmd.Target, m.next)
	entity := clonePayload(cmd.Payload)
	entity["id"] = id
	m.entities[id] = entity
	m.targets[id] = cmd.Target

	return Response{RealID: id, Fields: clonePayload(entity)}, nil
}

func (m *Memory) update(cmd Command) (Response, error) {
	id, entity, err := m.lookup(cmd)
	if err != nil {
		return Response{}, err
	}
	if err := m.checkReferences(cmd.Payload); err != nil {
		return Response{}, err
	}
	for k, v := range cmd.Payload {
		if k != "id" {
			entity[k] = v
		}
	}
	return Response{RealID: id, Fields: clonePayload(entity)}, nil
}

func (m *Memory) complete(cmd Command) (Response, error) {
	if cmd.Target != "task" && cmd.Target != "project" {
		return Response{}, NewError(CodeValidationFailed, fmt.Sprintf("cannot complete a %s", cmd.Target), "Only tasks and projects can be completed")
	}
	id, entity, err := m.lookup(cmd)
	if err != nil {
		return Response{}, err
	}
	entity["completed"] = true
	return Response{RealID: id, Fields: clonePayload(entity)}, nil
}

func (m *Memory) delete(cmd Command) (Response, error) {
	id, _, err := m.lookup(cmd)
	if err != nil {
		return Response{}, err
	}
	delete(m.entities, id)
	delete(m.targets, id)
	return Response{RealID: id}, nil
}

func (m *Memory) lookup(cmd Command) (string, map[string]any, error) {
	id, _ := cmd.Payload["id"].(string)
	if id == "" {
		return "", nil, NewError(CodeValidationFailed, fmt.Sprintf("%s requires an id", cmd.Kind), "Pass the entity id in payload.id")
	}
	entity, ok := m.entities[id]
	if !ok || m.targets[id] != cmd.Target {
		return "", nil, NewError(CodeTargetNotFound, fmt.Sprintf("%s %q not found", cmd.Target, id), "Look the entity up again; it may have been deleted")
	}
	return id, entity, nil
}

// checkReferences requires every container and tag id in payload to name an
// existing entity. The entity's own id is checked by lookup.
func (m *Memory) checkReferences(payload map[string]any) error {
	for _, field := range ReferenceFields {
		if field == "id" {
			continue
		}
		ref, ok := payload[field].(string)
		if !ok || ref == "" {
			continue
		}
		if _, exists := m.entities[ref]; !exists {
			return NewError(CodeTargetNotFound, fmt.Sprintf("%s %q not found", field, ref), "")
		}
	}
	for _, field := range ReferenceListFields {
		for _, ref := range stringList(payload[field]) {
			if m.targets[ref] != "tag" {
				return NewError(CodeTargetNotFound, fmt.Sprintf("tag %q not found", ref), "")
			}
		}
	}
	return nil
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Status reports entity counts by target.
func (m *Memory) Status(ctx context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int)
	for _, target := range m.targets {
		counts[target]++
	}
	return Status{
		Kind:      "memory",
		Available: true,
		Entities:  counts,
		Calls:     int64(len(m.calls)),
	}, nil
}

// Calls returns a copy of every command received, in order.
func (m *Memory) Calls() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command(nil), m.calls...)
}

// Get returns a copy of a stored entity.
func (m *Memory) Get(id string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[id]
	if !ok {
		return nil, false
	}
	return clonePayload(e), true
}

// Seed stores an existing entity, for tests that update or delete.
func (m *Memory) Seed(target, id string, fields map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := clonePayload(fields)
	e["id"] = id
	m.entities[id] = e
	m.targets[id] = target
}

func clonePayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
