package controller

import (
	"strings"
	"testing"

	"github.com/resumeforge/pipeline/pkg/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildConversationContext(t *testing.T) {
	tests := []struct {
		name     string
		messages []agent.ConversationMessage
		expected string
	}{
		{
			name:     "empty messages returns empty string",
			messages: nil,
			expected: "",
		},
		{
			name: "excludes system messages",
			messages: []agent.ConversationMessage{
				{Role: agent.RoleSystem, Content: "You are a helpful assistant"},
				{Role: agent.RoleUser, Content: "What sections need work?"},
				{Role: agent.RoleAssistant, Content: "Let me check the evidence bank."},
			},
			expected: "[user]: What sections need work?\n\n[assistant]: Let me check the evidence bank.\n\n",
		},
		{
			name: "multi-turn conversation",
			messages: []agent.ConversationMessage{
				{Role: agent.RoleSystem, Content: "system prompt"},
				{Role: agent.RoleUser, Content: "question 1"},
				{Role: agent.RoleAssistant, Content: "answer 1"},
				{Role: agent.RoleUser, Content: "tool result"},
				{Role: agent.RoleAssistant, Content: "answer 2"},
			},
			expected: "[user]: question 1\n\n" +
				"[assistant]: answer 1\n\n" +
				"[user]: tool result\n\n" +
				"[assistant]: answer 2\n\n",
		},
		{
			name: "includes tool role messages",
			messages: []agent.ConversationMessage{
				{Role: agent.RoleTool, Content: "tool result content"},
			},
			expected: "[tool]: tool result content\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildConversationContext(tt.messages)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMaybeSummarize(t *testing.T) {
	ctx := t.Context()

	t.Run("returns raw content when below threshold", func(t *testing.T) {
		execCtx := newTestExecCtx(t, &mockLLMClient{}, agent.NewStubToolExecutor(nil))

		eventSeq := 0
		result, err := maybeSummarize(ctx, execCtx, "search_evidence", "small output", "", &eventSeq)
		require.NoError(t, err)
		assert.Equal(t, "small output", result.Content)
		assert.False(t, result.WasSummarized)
	})

	t.Run("triggers summarization above threshold", func(t *testing.T) {
		mockLLM := &mockLLMClient{
			responses: []mockLLMResponse{
				{chunks: []agent.Chunk{&agent.TextChunk{Content: "Summarized: 3 requirements covered, 1 gap"}}},
			},
		}

		execCtx := newTestExecCtx(t, mockLLM, agent.NewStubToolExecutor(nil))

		// DefaultStorageMaxTokens is 8000 tokens ≈ 32000 chars.
		largeContent := strings.Repeat("evidence-entry ", 3000) // ~45000 chars ≈ 11250 tokens > 8000
		eventSeq := 0
		result, err := maybeSummarize(ctx, execCtx, "search_evidence", largeContent, "[user]: find matching evidence", &eventSeq)
		require.NoError(t, err)
		assert.True(t, result.WasSummarized)
		assert.Equal(t, "Summarized: 3 requirements covered, 1 gap", result.Content)
	})

	t.Run("stores inline conversation in LLM interaction", func(t *testing.T) {
		mockLLM := &mockLLMClient{
			responses: []mockLLMResponse{
				{chunks: []agent.Chunk{&agent.TextChunk{Content: "Summary result"}}},
			},
		}

		execCtx := newTestExecCtx(t, mockLLM, agent.NewStubToolExecutor(nil))

		largeContent := strings.Repeat("evidence-entry ", 3000)
		eventSeq := 0
		result, err := maybeSummarize(ctx, execCtx, "search_evidence", largeContent, "[user]: find matching evidence", &eventSeq)
		require.NoError(t, err)
		assert.True(t, result.WasSummarized)

		// Verify the LLM interaction was stored with inline conversation.
		interactions, err := execCtx.Services.Interaction.GetLLMInteractionsList(ctx, execCtx.SessionID)
		require.NoError(t, err)
		require.Len(t, interactions, 1)
		assert.Equal(t, "summarization", string(interactions[0].InteractionType))

		llmReq := interactions[0].LlmRequest
		assert.Equal(t, "search_evidence", llmReq["tool_name"])
		assert.NotEmpty(t, llmReq["system_prompt"])
		assert.NotEmpty(t, llmReq["user_prompt"])
	})

	t.Run("fail-open on LLM error", func(t *testing.T) {
		mockLLM := &mockLLMClient{
			responses: []mockLLMResponse{
				{err: assert.AnError},
			},
		}

		execCtx := newTestExecCtx(t, mockLLM, agent.NewStubToolExecutor(nil))

		largeContent := strings.Repeat("evidence-entry ", 3000)
		eventSeq := 0
		result, err := maybeSummarize(ctx, execCtx, "search_evidence", largeContent, "", &eventSeq)
		require.NoError(t, err) // No error — fail-open
		assert.False(t, result.WasSummarized)
		assert.NotEqual(t, largeContent, result.Content) // Storage-truncated, not raw
	})

	t.Run("fail-open on empty summary", func(t *testing.T) {
		mockLLM := &mockLLMClient{
			responses: []mockLLMResponse{
				{chunks: []agent.Chunk{&agent.TextChunk{Content: "   "}}}, // whitespace-only
			},
		}

		execCtx := newTestExecCtx(t, mockLLM, agent.NewStubToolExecutor(nil))

		largeContent := strings.Repeat("evidence-entry ", 3000)
		eventSeq := 0
		result, err := maybeSummarize(ctx, execCtx, "search_evidence", largeContent, "", &eventSeq)
		require.NoError(t, err)
		assert.False(t, result.WasSummarized)
	})
}
