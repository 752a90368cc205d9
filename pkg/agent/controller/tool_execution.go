package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/resumeforge/pipeline/pkg/agent"
	"github.com/resumeforge/pipeline/pkg/authoring"
	"github.com/resumeforge/pipeline/pkg/events"
	"github.com/resumeforge/pipeline/pkg/models"
)

// toolCallResult holds the outcome of executeToolCall for the caller to
// integrate into its conversation format (IteratingController tool message).
type toolCallResult struct {
	// Content is the tool result content to feed back to the LLM.
	// May be summarized if summarization was triggered.
	Content string
	// IsError is true if the tool execution itself failed.
	IsError bool
	// Err is the original error from tool execution (non-nil only when
	// ToolExecutor.Execute returned an error). Callers that need to inspect
	// the error type (e.g. context.DeadlineExceeded) should use this field
	// instead of parsing Content.
	Err error
	// Usage is non-nil when summarization produced token usage to accumulate.
	Usage *agent.TokenUsage
}

// executeToolCall runs a single tool call through the full lifecycle:
//  1. Create streaming llm_tool_call event (client spinner)
//  2. Execute the tool via ToolExecutor
//  3. Complete the tool call event with storage-truncated result
//  4. Optionally summarize large non-error results
//
// Returns the result content (possibly summarized) and whether the call failed.
// Callers are responsible for appending the result to their conversation and
// recording state changes (RecordFailure, message storage, etc.).
func executeToolCall(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	call agent.ToolCall,
	messages []agent.ConversationMessage,
	eventSeq *int,
) toolCallResult {
	toolName := call.Name

	publishExecutionProgress(ctx, execCtx, events.ProgressPhaseGatheringInfo,
		fmt.Sprintf("Calling %s", toolName))

	toolCallEvent, createErr := createToolCallEvent(ctx, execCtx, toolName, call.Arguments, eventSeq)
	if createErr != nil {
		slog.Warn("Failed to create tool call event", "error", createErr, "tool", call.Name)
	}

	startTime := time.Now()
	result, toolErr := execCtx.ToolExecutor.Execute(ctx, call)
	if toolErr != nil {
		errContent := fmt.Sprintf("Error executing tool: %s", toolErr.Error())
		completeToolCallEvent(ctx, execCtx, toolCallEvent, errContent, true)
		recordToolInteraction(ctx, execCtx, toolName, call.Arguments, nil, startTime, toolErr)
		return toolCallResult{Content: errContent, IsError: true, Err: toolErr}
	}

	if execCtx.Services != nil && execCtx.Services.Masker != nil {
		result.Content = execCtx.Services.Masker.MaskToolOutput(result.Content)
	}

	recordToolInteraction(ctx, execCtx, toolName, call.Arguments, result, startTime, nil)

	storageTruncated := authoring.TruncateForStorage(result.Content)
	completeToolCallEvent(ctx, execCtx, toolCallEvent, storageTruncated, result.IsError)

	content := result.Content
	var usage *agent.TokenUsage
	if !result.IsError {
		convContext := buildConversationContext(messages)
		sumResult, sumErr := maybeSummarize(ctx, execCtx, toolName, result.Content, convContext, eventSeq)
		if sumErr == nil && sumResult.WasSummarized {
			content = sumResult.Content
			usage = sumResult.Usage
		}
	}

	return toolCallResult{Content: content, IsError: result.IsError, Usage: usage}
}

// recordToolListInteractions records one tool_list interaction capturing the
// tools that were available to the agent at execution start. Best-effort:
// logs on failure but never aborts the pipeline.
func recordToolListInteractions(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	tools []agent.ToolDefinition,
) {
	if len(tools) == 0 {
		return
	}

	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	availableTools := map[string]any{"tools": names}

	interaction, err := execCtx.Services.Interaction.CreateToolInteraction(ctx, models.CreateToolInteractionRequest{
		SessionID:       execCtx.SessionID,
		StageID:         execCtx.StageID,
		ExecutionID:     execCtx.ExecutionID,
		InteractionType: "tool_list",
		AvailableTools:  []any{availableTools},
	})
	if err != nil {
		slog.Error("Failed to record tool_list interaction",
			"session_id", execCtx.SessionID, "error", err)
		return
	}
	publishInteractionCreated(ctx, execCtx, interaction.ID, events.InteractionTypeTool)
}

// recordToolInteraction creates a ToolInteraction record in the database.
// Logs on failure but does not abort — mirrors recordLLMInteraction pattern.
func recordToolInteraction(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	toolName string,
	arguments string,
	result *agent.ToolResult,
	startTime time.Time,
	toolErr error,
) {
	durationMs := int(time.Since(startTime).Milliseconds())

	var toolArgs map[string]any
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &toolArgs); err != nil {
			toolArgs = map[string]any{"raw": arguments}
		}
	}

	var toolResult map[string]any
	if result != nil {
		toolResult = map[string]any{
			"content":  authoring.TruncateForStorage(result.Content),
			"is_error": result.IsError,
		}
	}

	var errMsg *string
	if toolErr != nil {
		s := toolErr.Error()
		errMsg = &s
	}

	req := models.CreateToolInteractionRequest{
		SessionID:       execCtx.SessionID,
		StageID:         execCtx.StageID,
		ExecutionID:     execCtx.ExecutionID,
		InteractionType: "tool_call",
		ToolName:        &toolName,
		ToolInput:       toolArgs,
		ToolResult:      toolResult,
		DurationMs:      &durationMs,
		ErrorMessage:    errMsg,
	}

	interaction, err := execCtx.Services.Interaction.CreateToolInteraction(ctx, req)
	if err != nil {
		slog.Error("Failed to record tool interaction",
			"session_id", execCtx.SessionID, "tool", toolName, "error", err)
		return
	}

	publishInteractionCreated(ctx, execCtx, interaction.ID, events.InteractionTypeTool)
}
