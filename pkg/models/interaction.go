package models

// CreateLLMInteractionRequest contains fields for recording one model round.
type CreateLLMInteractionRequest struct {
	SessionID        string         `json:"session_id"`
	StageID          string         `json:"stage_id"`
	ExecutionID      string         `json:"execution_id"`
	InteractionType  string         `json:"interaction_type"` // "iteration", "final_analysis", "forced_conclusion", "quality_scoring", "summarization"
	ModelName        string         `json:"model_name"`
	LastMessageID    *string        `json:"last_message_id,omitempty"`
	LLMRequest       map[string]any `json:"llm_request"`
	LLMResponse      map[string]any `json:"llm_response"`
	ThinkingContent  *string        `json:"thinking_content,omitempty"`
	ResponseMetadata map[string]any `json:"response_metadata,omitempty"`
	InputTokens      *int           `json:"input_tokens,omitempty"`
	OutputTokens     *int           `json:"output_tokens,omitempty"`
	TotalTokens      *int           `json:"total_tokens,omitempty"`
	DurationMs       *int           `json:"duration_ms,omitempty"`
	ErrorMessage     *string        `json:"error_message,omitempty"`
}

// CreateToolInteractionRequest contains fields for recording one Tool
// Registry dispatch.
type CreateToolInteractionRequest struct {
	SessionID       string         `json:"session_id"`
	StageID         string         `json:"stage_id"`
	ExecutionID     string         `json:"execution_id"`
	InteractionType string         `json:"interaction_type"` // "tool_call", "tool_list"
	ToolName        *string        `json:"tool_name,omitempty"`
	ParallelSafe    *bool          `json:"parallel_safe,omitempty"`
	ToolInput       map[string]any `json:"tool_input,omitempty"`
	ToolResult      map[string]any `json:"tool_result,omitempty"`
	AvailableTools  []any          `json:"available_tools,omitempty"`
	DurationMs      *int           `json:"duration_ms,omitempty"`
	ErrorMessage    *string        `json:"error_message,omitempty"`
}

// Trace list: GET /api/sessions/:id/trace, an observability-only route used
// by the admin surface. Kept here since the Agent Loop and Tool Registry
// both depend on the interaction types it renders.

// TraceListResponse is the top-level response for a session's debug trace.
type TraceListResponse struct {
	Stages              []TraceStageGroup        `json:"stages"`
	SessionInteractions []LLMInteractionListItem `json:"session_interactions"`
}

// TraceStageGroup contains executions for one pipeline stage.
type TraceStageGroup struct {
	StageID    string                `json:"stage_id"`
	StageName  string                `json:"stage_name"`
	Executions []TraceExecutionGroup `json:"executions"`
}

// TraceExecutionGroup contains interactions for one agent execution.
type TraceExecutionGroup struct {
	ExecutionID     string                    `json:"execution_id"`
	AgentRole       string                    `json:"agent_role"`
	LLMInteractions []LLMInteractionListItem  `json:"llm_interactions"`
	ToolInteractions []ToolInteractionListItem `json:"tool_interactions"`
}

// LLMInteractionListItem contains metadata for collapsed list view.
type LLMInteractionListItem struct {
	ID              string  `json:"id"`
	InteractionType string  `json:"interaction_type"`
	ModelName       string  `json:"model_name"`
	InputTokens     *int    `json:"input_tokens,omitempty"`
	OutputTokens    *int    `json:"output_tokens,omitempty"`
	TotalTokens     *int    `json:"total_tokens,omitempty"`
	DurationMs      *int    `json:"duration_ms,omitempty"`
	ErrorMessage    *string `json:"error_message,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// ToolInteractionListItem contains metadata for collapsed list view.
type ToolInteractionListItem struct {
	ID              string  `json:"id"`
	InteractionType string  `json:"interaction_type"`
	ToolName        *string `json:"tool_name,omitempty"`
	DurationMs      *int    `json:"duration_ms,omitempty"`
	ErrorMessage    *string `json:"error_message,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// LLMInteractionDetailResponse is returned by the LLM trace detail route.
type LLMInteractionDetailResponse struct {
	ID               string                `json:"id"`
	InteractionType  string                `json:"interaction_type"`
	ModelName        string                `json:"model_name"`
	ThinkingContent  *string               `json:"thinking_content,omitempty"`
	InputTokens      *int                  `json:"input_tokens,omitempty"`
	OutputTokens     *int                  `json:"output_tokens,omitempty"`
	TotalTokens      *int                  `json:"total_tokens,omitempty"`
	DurationMs       *int                  `json:"duration_ms,omitempty"`
	ErrorMessage     *string               `json:"error_message,omitempty"`
	LLMRequest       map[string]any        `json:"llm_request"`
	LLMResponse      map[string]any        `json:"llm_response"`
	ResponseMetadata map[string]any        `json:"response_metadata,omitempty"`
	CreatedAt        string                `json:"created_at"`
	Conversation     []ConversationMessage `json:"conversation"`
}

// ConversationMessage is a single message in the reconstructed conversation.
type ConversationMessage struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	ToolCalls  []MessageToolCall `json:"tool_calls,omitempty"`
	ToolCallID *string           `json:"tool_call_id,omitempty"`
	ToolName   *string           `json:"tool_name,omitempty"`
}

// MessageToolCall mirrors ent/schema.Message's tool_calls JSON shape for
// API responses.
type MessageToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolInteractionDetailResponse is returned by the tool trace detail route.
type ToolInteractionDetailResponse struct {
	ID              string         `json:"id"`
	InteractionType string         `json:"interaction_type"`
	ToolName        *string        `json:"tool_name,omitempty"`
	ToolInput       map[string]any `json:"tool_input,omitempty"`
	ToolResult      map[string]any `json:"tool_result,omitempty"`
	AvailableTools  []any          `json:"available_tools,omitempty"`
	DurationMs      *int           `json:"duration_ms,omitempty"`
	ErrorMessage    *string        `json:"error_message,omitempty"`
	CreatedAt       string         `json:"created_at"`
}
