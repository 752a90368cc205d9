package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumeforge/pipeline/pkg/agent"
)

func TestAnthropicMessages_EncodesRolesAndToolTurns(t *testing.T) {
	messages := []agent.ConversationMessage{
		{Role: agent.RoleSystem, Content: "Be concise."},
		{Role: agent.RoleUser, Content: "Write the summary section."},
		{Role: agent.RoleAssistant, Content: "Working on it.", ToolCalls: []agent.ToolCall{
			{ID: "toolu_1", Name: "fetch_job_description", Arguments: `{"url":"https://example.com"}`},
		}},
		{Role: agent.RoleTool, ToolCallID: "toolu_1", Content: "job description text"},
	}

	conversation, system, err := anthropicMessages(messages)
	require.NoError(t, err)

	require.Len(t, system, 1)
	assert.Equal(t, "Be concise.", system[0].Text)
	require.Len(t, conversation, 3)
}

func TestAnthropicMessages_RequiresAtLeastOneTurn(t *testing.T) {
	_, _, err := anthropicMessages([]agent.ConversationMessage{
		{Role: agent.RoleSystem, Content: "Be concise."},
	})
	require.Error(t, err)
}

func TestAnthropicMessages_RejectsUnknownRole(t *testing.T) {
	_, _, err := anthropicMessages([]agent.ConversationMessage{
		{Role: "narrator", Content: "hi"},
	})
	require.Error(t, err)
}

func TestAnthropicToolSchema_FallsBackOnInvalidJSON(t *testing.T) {
	schema := anthropicToolSchema("{not json")
	assert.Nil(t, schema.ExtraFields)
}

func TestAnthropicToolSchema_PreservesJSONSchemaFields(t *testing.T) {
	schema := anthropicToolSchema(`{"type":"object","properties":{"query":{"type":"string"}}}`)
	require.NotNil(t, schema.ExtraFields)
	assert.Equal(t, "object", schema.ExtraFields["type"])
}

func TestIsAnthropicRetryable(t *testing.T) {
	assert.True(t, isAnthropicRetryable(errors.New("429 rate_limit_error: too many requests")))
	assert.True(t, isAnthropicRetryable(errors.New("529 overloaded_error")))
	assert.False(t, isAnthropicRetryable(errors.New("400 invalid_request_error")))
	assert.False(t, isAnthropicRetryable(nil))
}

func TestAnthropicToolBuffer_JoinsFragmentsAndDefaultsToEmptyObject(t *testing.T) {
	tb := &anthropicToolBuffer{id: "toolu_2", name: "dispatch_agent"}
	assert.Equal(t, "", joinFragments(tb.fragments))

	tb.fragments = []string{`{"nam`, `e":"summary"}`}
	assert.Equal(t, `{"name":"summary"}`, joinFragments(tb.fragments))
}

func joinFragments(fragments []string) string {
	out := ""
	for _, f := range fragments {
		out += f
	}
	return out
}
