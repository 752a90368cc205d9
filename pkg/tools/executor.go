package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/resumeforge/pipeline/pkg/agent"
)

// DispatchingExecutor adapts a Registry to the agent.ToolExecutor
// interface the Agent Loop calls against. One instance is built per agent
// execution, bound to the fixed subset of tools that agent's stage config
// names, and the per-call Context that subset shares.
//
// Dispatch normalizes the name, resolves it against the bound subset,
// parses args, calls the executor, and masks nothing here (masking happens
// once at the transcript-persistence boundary in pkg/masking). Errors come
// back as IsError content rather than Go errors so the Agent Loop keeps
// running the conversation instead of aborting it.
type DispatchingExecutor struct {
	registry    *Registry
	bound       []*Descriptor
	toolContext *Context
}

// NewDispatchingExecutor binds a fixed ordered tool set from registry for
// one agent execution.
func NewDispatchingExecutor(registry *Registry, toolNames []string, tc *Context) (*DispatchingExecutor, error) {
	bound, err := registry.Bind(toolNames)
	if err != nil {
		return nil, err
	}
	return &DispatchingExecutor{registry: registry, bound: bound, toolContext: tc}, nil
}

// Execute runs a single tool call. It never returns a Go error for a
// validation or execution failure — those come back as
// *agent.ToolResult{IsError: true} so the model sees its own mistake and
// can recover. A Go error return is reserved for cancellation, which the
// Agent Loop must treat as aborting the round rather than continuing the
// conversation.
func (e *DispatchingExecutor) Execute(ctx context.Context, call agent.ToolCall) (*agent.ToolResult, error) {
	descriptor, ok := e.registry.Get(call.Name)
	if !ok {
		return &agent.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: fmt.Sprintf("unknown tool %q; available tools: %v", call.Name, e.boundNames()),
			IsError: true,
		}, nil
	}

	var input map[string]any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &input); err != nil {
			return &agent.ToolResult{
				CallID:  call.ID,
				Name:    call.Name,
				Content: fmt.Sprintf("invalid JSON arguments: %v", err),
				IsError: true,
			}, nil
		}
	}

	output, err := descriptor.Executor(ctx, e.toolContext, input)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok && toolErr.Kind == ErrorKindCancelled {
			return nil, toolErr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &agent.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: err.Error(),
			IsError: true,
		}, nil
	}

	encoded, err := json.Marshal(output)
	if err != nil {
		return &agent.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: fmt.Sprintf("tool produced unmarshalable output: %v", err),
			IsError: true,
		}, nil
	}

	return &agent.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: string(encoded),
		IsError: false,
	}, nil
}

// ListTools returns the bound subset as model-facing definitions.
func (e *DispatchingExecutor) ListTools(_ context.Context) ([]agent.ToolDefinition, error) {
	defs := make([]agent.ToolDefinition, 0, len(e.bound))
	for _, d := range e.bound {
		schema, err := json.Marshal(d.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tools: marshal schema for %q: %w", d.Name, err)
		}
		defs = append(defs, agent.ToolDefinition{
			Name:             d.Name,
			Description:      d.Description,
			ParametersSchema: string(schema),
		})
	}
	return defs, nil
}

// Close releases no resources; tool bodies here are in-process.
func (e *DispatchingExecutor) Close() error { return nil }

func (e *DispatchingExecutor) boundNames() []string {
	names := make([]string, len(e.bound))
	for i, d := range e.bound {
		names[i] = d.Name
	}
	return names
}

// ParallelSafe reports whether name can run concurrently with other tool
// calls in the same model turn. Unknown names are treated as unsafe.
func (e *DispatchingExecutor) ParallelSafe(name string) bool {
	d, ok := e.registry.Get(name)
	return ok && d.ParallelSafe
}

var _ agent.ToolExecutor = (*DispatchingExecutor)(nil)
