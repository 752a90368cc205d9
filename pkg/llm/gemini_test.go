package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/resumeforge/pipeline/pkg/agent"
	"github.com/resumeforge/pipeline/pkg/config"
)

func TestGeminiContents_SplitsSystemFromConversation(t *testing.T) {
	messages := []agent.ConversationMessage{
		{Role: agent.RoleSystem, Content: "You are a resume assistant."},
		{Role: agent.RoleUser, Content: "Draft my summary."},
		{Role: agent.RoleAssistant, Content: "Sure, here it is.", ToolCalls: []agent.ToolCall{
			{ID: "call-1", Name: "fetch_job_description", Arguments: `{"url":"https://example.com"}`},
		}},
		{Role: agent.RoleTool, ToolCallID: "call-1", ToolName: "fetch_job_description", Content: "job description text"},
	}

	contents, system := geminiContents(messages)

	require.NotNil(t, system)
	assert.Equal(t, "You are a resume assistant.", system.Parts[0].Text)

	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "Draft my summary.", contents[0].Parts[0].Text)

	assert.Equal(t, "model", contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "fetch_job_description", contents[1].Parts[1].FunctionCall.Name)
	assert.Equal(t, "call-1", contents[1].Parts[1].FunctionCall.ID)

	assert.Equal(t, "user", contents[2].Role)
	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
	assert.Equal(t, "fetch_job_description", contents[2].Parts[0].FunctionResponse.Name)
	assert.Equal(t, "job description text", contents[2].Parts[0].FunctionResponse.Response["result"])
}

func TestGeminiConfig_NativeTools(t *testing.T) {
	cfg := &config.LLMProviderConfig{
		Type:  config.LLMProviderTypeGoogle,
		Model: "gemini-2.5-pro",
		NativeTools: map[config.GoogleNativeTool]bool{
			config.GoogleNativeToolGoogleSearch: true,
		},
	}

	gc := geminiConfig(cfg, nil, nil)

	require.Len(t, gc.Tools, 1)
	assert.NotNil(t, gc.Tools[0].GoogleSearch)
}

func TestGeminiSchema_ParsesNestedObjectSchema(t *testing.T) {
	schema := geminiSchema(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"count": {"type": "integer"}
		},
		"required": ["name"]
	}`)

	require.NotNil(t, schema)
	assert.Equal(t, genai.Type("OBJECT"), schema.Type)
	assert.Contains(t, schema.Required, "name")
	require.Contains(t, schema.Properties, "name")
	assert.Equal(t, genai.Type("STRING"), schema.Properties["name"].Type)
}

func TestGeminiSchema_FallsBackOnInvalidJSON(t *testing.T) {
	schema := geminiSchema("not json")
	require.NotNil(t, schema)
	assert.Equal(t, genai.TypeObject, schema.Type)
}

func TestGeminiStableCallID_IsDeterministic(t *testing.T) {
	args := map[string]any{"query": "golang testing"}
	id1 := geminiStableCallID("search", args)
	id2 := geminiStableCallID("search", args)
	assert.Equal(t, id1, id2)

	idOther := geminiStableCallID("search", map[string]any{"query": "different"})
	assert.NotEqual(t, id1, idOther)
}

func TestEmitGeminiResponse_DedupesRepeatedFunctionCalls(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{
					{FunctionCall: &genai.FunctionCall{ID: "call-1", Name: "dispatch_agent", Args: map[string]any{"name": "summary"}}},
				},
			},
		}},
	}

	seen := map[string]bool{}
	var chunks []agent.Chunk
	collect := func(c agent.Chunk) bool { chunks = append(chunks, c); return true }

	ok := emitGeminiResponse(resp, seen, collect)
	require.True(t, ok)
	ok = emitGeminiResponse(resp, seen, collect)
	require.True(t, ok)

	require.Len(t, chunks, 1, "second identical function call should be deduplicated")
}
