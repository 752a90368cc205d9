package tools

import (
	"context"

	"github.com/resumeforge/pipeline/pkg/models"
)

// GateWaiter suspends the calling tool until a human response arrives for
// a named gate, or the context is cancelled. It is implemented by
// pkg/gate.Coordinator; tools package only depends on the narrow interface
// so it never imports pkg/gate (which in turn depends on pkg/bus and
// pkg/pipeline, both downstream of tools in the dependency graph).
type GateWaiter interface {
	WaitForUser(ctx context.Context, sessionID, gateName string, payload map[string]any) (map[string]any, error)
}

// Emitter publishes a stream event for a session. Implemented by
// pkg/events.Manager.
type Emitter interface {
	Emit(sessionID string, eventType string, payload map[string]any)
}

// StateReader gives a tool read access to the session's Pipeline State
// without handing it a mutable reference to the coordinator's copy.
type StateReader interface {
	Snapshot(sessionID string) (*models.PipelineSnapshot, error)
}

// Context is threaded through every tool Executor call. It is built fresh
// per agent execution by the Agent Loop, scoped to one session and one
// agent role.
type Context struct {
	SessionID   string
	AgentRole   string
	ExecutionID string

	State  StateReader
	Gate   GateWaiter
	Events Emitter

	// Scratchpad is private, mutable key/value storage for the current
	// agent execution only: notes a tool leaves for a later tool call in
	// the same round-trip loop, never persisted past the execution and
	// never visible to other agents.
	Scratchpad map[string]any
}

// Emit is a convenience wrapper that no-ops when no Emitter is wired,
// which keeps unit tests that construct a bare Context from needing a
// fake Emitter just to exercise a tool body.
func (c *Context) Emit(eventType string, payload map[string]any) {
	if c == nil || c.Events == nil {
		return
	}
	c.Events.Emit(c.SessionID, eventType, payload)
}

// Note writes a scratchpad entry, initializing the map on first use.
func (c *Context) Note(key string, value any) {
	if c.Scratchpad == nil {
		c.Scratchpad = make(map[string]any)
	}
	c.Scratchpad[key] = value
}
