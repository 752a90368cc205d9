package controller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resumeforge/pipeline/pkg/agent"
	"github.com/resumeforge/pipeline/pkg/authoring"
	"github.com/resumeforge/pipeline/pkg/events"
	"github.com/resumeforge/pipeline/pkg/models"
)

// SummarizationResult carries the outcome of maybeSummarize back to the
// caller in executeToolCall.
type SummarizationResult struct {
	WasSummarized bool
	Content       string
	Usage         *agent.TokenUsage
}

// maybeSummarize compresses a large tool result with a dedicated
// summarization LLM call when it exceeds authoring.DefaultStorageMaxTokens.
// Every tool namespace shares the same threshold and output budget — unlike
// a registry of per-remote-server summarization settings, the in-process
// Tool Registry has no remote servers to configure independently.
//
// Best-effort: any failure along the way falls back to returning the raw
// (storage-truncated) content rather than failing the tool call.
func maybeSummarize(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	toolName string,
	rawContent string,
	conversationContext string,
	eventSeq *int,
) (*SummarizationResult, error) {
	estimated := authoring.EstimateTokens(rawContent)
	if estimated <= authoring.DefaultStorageMaxTokens {
		return &SummarizationResult{WasSummarized: false, Content: rawContent}, nil
	}

	publishExecutionProgress(ctx, execCtx, events.ProgressPhaseDistilling,
		fmt.Sprintf("Condensing %s output", toolName))

	truncated := authoring.TruncateForSummarization(rawContent)

	systemPrompt := execCtx.PromptBuilder.BuildSummarizationSystemPrompt(
		toolName, toolName, authoring.DefaultStorageMaxTokens)
	userPrompt := execCtx.PromptBuilder.BuildSummarizationUserPrompt(
		conversationContext, toolName, toolName, truncated)

	summary, usage, err := callSummarizationLLM(ctx, execCtx, systemPrompt, userPrompt, toolName)
	if err != nil {
		slog.Warn("Summarization failed, falling back to truncated output",
			"session_id", execCtx.SessionID, "tool", toolName, "error", err)
		return &SummarizationResult{WasSummarized: false, Content: authoring.TruncateForStorage(rawContent)}, nil
	}

	return &SummarizationResult{WasSummarized: true, Content: summary, Usage: usage}, nil
}

// callSummarizationLLM issues the non-streaming summarization call and
// records it as an ordinary LLM interaction (interaction_type
// "summarization"), exactly as the main iteration loop records its calls.
func callSummarizationLLM(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	systemPrompt, userPrompt, toolName string,
) (string, *agent.TokenUsage, error) {
	messages := []agent.ConversationMessage{
		{Role: agent.RoleSystem, Content: systemPrompt},
		{Role: agent.RoleUser, Content: userPrompt},
	}

	input := &agent.GenerateInput{
		SessionID:   execCtx.SessionID,
		ExecutionID: execCtx.ExecutionID,
		Messages:    messages,
		Config:      execCtx.Config.LLMProvider,
		Tools:       nil,
	}

	stream, err := execCtx.LLMClient.Generate(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("summarization generate: %w", err)
	}

	resp, err := collectStream(stream)
	if err != nil {
		return "", nil, fmt.Errorf("summarization stream: %w", err)
	}

	recordSummarizationInteraction(ctx, execCtx, toolName, systemPrompt, userPrompt, resp)

	return resp.Text, resp.Usage, nil
}

// recordSummarizationInteraction persists the summarization call as an
// LLMInteraction so it's visible in the session trace alongside the
// iterations it compressed output for.
func recordSummarizationInteraction(
	ctx context.Context,
	execCtx *agent.ExecutionContext,
	toolName, systemPrompt, userPrompt string,
	resp *LLMResponse,
) {
	req := models.CreateLLMInteractionRequest{
		SessionID:       execCtx.SessionID,
		StageID:         execCtx.StageID,
		ExecutionID:     execCtx.ExecutionID,
		InteractionType: "summarization",
		ModelName:       execCtx.Config.LLMProviderName,
		LLMRequest: map[string]any{
			"system_prompt": systemPrompt,
			"user_prompt":   userPrompt,
			"tool_name":     toolName,
		},
		LLMResponse: map[string]any{
			"text": resp.Text,
		},
	}

	if resp.Usage != nil {
		in, out, tot := resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.TotalTokens
		req.InputTokens, req.OutputTokens, req.TotalTokens = &in, &out, &tot
	}

	interaction, err := execCtx.Services.Interaction.CreateLLMInteraction(ctx, req)
	if err != nil {
		slog.Error("Failed to record summarization interaction",
			"session_id", execCtx.SessionID, "tool", toolName, "error", err)
		return
	}
	publishInteractionCreated(ctx, execCtx, interaction.ID, events.InteractionTypeLLM)
}

// buildConversationContext renders the non-system messages of a conversation
// into a flat transcript for the summarization prompt, giving the
// summarizer just enough context to know what the agent is trying to
// accomplish with this tool's output.
func buildConversationContext(messages []agent.ConversationMessage) string {
	var sb []byte
	for _, m := range messages {
		if m.Role == agent.RoleSystem {
			continue
		}
		sb = append(sb, []byte(fmt.Sprintf("[%s]: %s\n\n", m.Role, m.Content))...)
	}
	return string(sb)
}
