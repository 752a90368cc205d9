package models

import "github.com/resumeforge/pipeline/ent"

// CreateStageRequest contains fields for creating a new stage row.
type CreateStageRequest struct {
	SessionID          string  `json:"session_id"`
	StageName          string  `json:"stage_name"`
	StageIndex         int     `json:"stage_index"`
	ExpectedAgentCount int     `json:"expected_agent_count"`
	ParallelType       *string `json:"parallel_type,omitempty"` // "multi_agent"
	SuccessPolicy      *string `json:"success_policy,omitempty"` // "all" or "any"
	IsRevisionCycle    bool    `json:"is_revision_cycle,omitempty"`
}

// CreateAgentExecutionRequest contains fields for creating a new agent execution.
type CreateAgentExecutionRequest struct {
	StageID      string `json:"stage_id"`
	SessionID    string `json:"session_id"`
	AgentRole    string `json:"agent_role"`
	AgentIndex   int    `json:"agent_index"`
	ModelProfile string `json:"model_profile"`
}

// UpdateAgentStatusRequest contains fields for updating agent execution status.
type UpdateAgentStatusRequest struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	RoundsUsed   *int   `json:"rounds_used,omitempty"`
}

// StageResponse wraps a Stage with optional loaded edges.
type StageResponse struct {
	*ent.Stage
}

// AgentExecutionResponse wraps an AgentExecution with optional loaded edges.
type AgentExecutionResponse struct {
	*ent.AgentExecution
}
