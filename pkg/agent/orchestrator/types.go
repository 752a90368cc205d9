// Package orchestrator provides the sub-agent runtime for the section_writer
// orchestrator role. It manages sub-agent goroutine lifecycle, result
// collection, and tool routing for the one stage in the pipeline that fans
// out in parallel: one sub-agent per resume section.
package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/resumeforge/pipeline/pkg/agent"
	"github.com/resumeforge/pipeline/pkg/masking"
	"github.com/resumeforge/pipeline/pkg/services"
	"github.com/resumeforge/pipeline/pkg/tools"
)

// Sentinel errors for orchestration operations.
var (
	ErrMaxConcurrentAgents = errors.New("max concurrent agents exceeded")
	ErrExecutionNotFound   = errors.New("execution not found")
)

// SubAgentDeps bundles dependencies needed by SubAgentRunner to dispatch
// section-writer sub-agents. Services are used instead of raw *ent.Client to
// follow existing data access patterns.
type SubAgentDeps struct {
	Config       *agent.ResolvedAgentConfig // resolved section_writer sub-agent config
	AgentFactory *agent.AgentFactory
	ToolRegistry *tools.Registry

	LLMClient      agent.LLMClient
	EventPublisher agent.EventPublisher
	PromptBuilder  agent.PromptBuilder

	StageService       *services.StageService
	TimelineService    *services.TimelineService
	MessageService     *services.MessageService
	InteractionService *services.InteractionService

	// Masker sanitises sub-agent tool output before storage, same as the
	// top-level agent loop. Optional; nil means unmasked.
	Masker *masking.MaskingService

	// Gate and Events back the per-sub-agent tools.Context. Gate is normally
	// unused: section-writer sub-agents are not gate-bearing, but a tool a
	// sub-agent calls may still want to emit transparency events.
	Gate   tools.GateWaiter
	Events tools.Emitter
	State  tools.StateReader

	// IntakeData is the orchestrator's session-level intake packet, passed
	// through verbatim to every sub-agent so it can ground claims in the
	// original resume and job description text.
	IntakeData string
}

// OrchestratorGuardrails holds resolved orchestrator limits
// (defaults.orchestrator merged with the section_writer agent's own
// orchestrator config).
type OrchestratorGuardrails struct {
	MaxConcurrentAgents int
	AgentTimeout        time.Duration
	MaxBudget           time.Duration
}

// SubAgentResult is the outcome of a completed sub-agent execution.
// Delivered to the orchestrator via the results channel.
type SubAgentResult struct {
	ExecutionID string
	AgentName   string // the section name, e.g. "summary"
	Task        string
	Status      agent.ExecutionStatus
	Result      string // FinalAnalysis text on success
	Error       string // Error message on failure
}

// SubAgentStatus is a snapshot of a dispatched sub-agent's state.
// Returned by SubAgentRunner.List.
type SubAgentStatus struct {
	ExecutionID string
	AgentName   string
	Task        string
	Status      agent.ExecutionStatus
}

// subAgentExecution tracks the state of a single dispatched sub-agent.
type subAgentExecution struct {
	executionID string
	agentName   string
	task        string
	status      agent.ExecutionStatus
	cancel      func()
	done        chan struct{}
}

// Orchestration tool names. Plain names (no namespace separator) — naturally
// distinct from the dotted/namespaced tool names the rest of the registry
// uses.
const (
	ToolDispatchAgent = "dispatch_agent"
	ToolCancelAgent   = "cancel_agent"
	ToolListAgents    = "list_agents"
)

// orchestrationTools defines the tool set exposed to the section_writer LLM.
var orchestrationTools = []agent.ToolDefinition{
	{
		Name:        ToolDispatchAgent,
		Description: "Dispatch a sub-agent to draft one resume section. Returns immediately. Results are automatically delivered when the sub-agent finishes — do not poll.",
		ParametersSchema: `{
			"type": "object",
			"properties": {
				"name": {"type": "string", "description": "Section name from the blueprint, e.g. 'summary', 'experience'"},
				"task": {"type": "string", "description": "Natural language drafting instructions for this section"}
			},
			"required": ["name", "task"]
		}`,
	},
	{
		Name:        ToolCancelAgent,
		Description: "Cancel a running sub-agent.",
		ParametersSchema: `{
			"type": "object",
			"properties": {
				"execution_id": {"type": "string", "description": "Execution ID from dispatch_agent"}
			},
			"required": ["execution_id"]
		}`,
	},
	{
		Name:        ToolListAgents,
		Description: "List all dispatched sub-agents and their current status. Use for status overview before deciding to cancel or dispatch more.",
		ParametersSchema: `{
			"type": "object",
			"properties": {}
		}`,
	},
}

// orchestrationToolNames is used for quick lookup when routing tool calls.
var orchestrationToolNames = map[string]bool{
	ToolDispatchAgent: true,
	ToolCancelAgent:   true,
	ToolListAgents:    true,
}

// FormatSubAgentResult formats a sub-agent result as a conversation message
// for injection into the orchestrator's conversation.
func FormatSubAgentResult(result *SubAgentResult) agent.ConversationMessage {
	var content string
	if result.Status == agent.ExecutionStatusCompleted {
		content = fmt.Sprintf(
			"[Sub-agent completed] %s (exec %s):\n%s",
			result.AgentName, result.ExecutionID, result.Result,
		)
	} else {
		content = fmt.Sprintf(
			"[Sub-agent %s] %s (exec %s): %s",
			result.Status, result.AgentName, result.ExecutionID, result.Error,
		)
	}
	return agent.ConversationMessage{Role: agent.RoleUser, Content: content}
}
