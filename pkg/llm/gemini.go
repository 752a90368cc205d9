package llm

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/resumeforge/pipeline/pkg/agent"
	"github.com/resumeforge/pipeline/pkg/config"
)

func (c *Client) geminiClientFor(ctx context.Context, cfg *config.LLMProviderConfig) (*genai.Client, error) {
	key, err := apiKeyFor(cfg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.gemini[key]; ok {
		return cl, nil
	}

	cl, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: key})
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create Gemini client: %w", err)
	}
	c.gemini[key] = cl
	return cl, nil
}

func (c *Client) generateGemini(ctx context.Context, input *agent.GenerateInput) (<-chan agent.Chunk, error) {
	client, err := c.geminiClientFor(ctx, input.Config)
	if err != nil {
		return nil, err
	}

	contents, system := geminiContents(input.Messages)
	genConfig := geminiConfig(input.Config, system, input.Tools)

	chunks := make(chan agent.Chunk, 32)
	go runGeminiStream(ctx, client, input.Config.Model, contents, genConfig, chunks)
	return chunks, nil
}

func runGeminiStream(
	ctx context.Context,
	client *genai.Client,
	model string,
	contents []*genai.Content,
	genConfig *genai.GenerateContentConfig,
	chunks chan<- agent.Chunk,
) {
	defer close(chunks)

	emit := func(ch agent.Chunk) bool {
		select {
		case chunks <- ch:
			return true
		case <-ctx.Done():
			return false
		}
	}

	emittedCallIDs := make(map[string]bool)

	for resp, err := range client.Models.GenerateContentStream(ctx, model, contents, genConfig) {
		if err != nil {
			emit(&agent.ErrorChunk{Message: err.Error(), Code: "gemini_stream_error", Retryable: isGeminiRetryable(err)})
			return
		}
		if !emitGeminiResponse(resp, emittedCallIDs, emit) {
			return
		}
	}
}

// emitGeminiResponse converts one streamed GenerateContentResponse into zero
// or more agent.Chunk values. Returns false if the consumer stopped reading.
func emitGeminiResponse(resp *genai.GenerateContentResponse, emittedCallIDs map[string]bool, emit func(agent.Chunk) bool) bool {
	if resp.UsageMetadata != nil {
		if !emit(&agent.UsageChunk{
			InputTokens:    int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens:   int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:    int(resp.UsageMetadata.TotalTokenCount),
			ThinkingTokens: int(resp.UsageMetadata.ThoughtsTokenCount),
		}) {
			return false
		}
	}

	if len(resp.Candidates) == 0 {
		return true
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return true
	}

	for _, part := range candidate.Content.Parts {
		switch {
		case part.Text != "" && part.Thought:
			if !emit(&agent.ThinkingChunk{Content: part.Text}) {
				return false
			}
		case part.Text != "":
			if !emit(&agent.TextChunk{Content: part.Text}) {
				return false
			}
		case part.FunctionCall != nil:
			callID := part.FunctionCall.ID
			if callID == "" {
				callID = geminiStableCallID(part.FunctionCall.Name, part.FunctionCall.Args)
			}
			if emittedCallIDs[callID] {
				continue
			}
			emittedCallIDs[callID] = true
			argsJSON, _ := json.Marshal(part.FunctionCall.Args)
			if !emit(&agent.ToolCallChunk{CallID: callID, Name: part.FunctionCall.Name, Arguments: string(argsJSON)}) {
				return false
			}
		case part.ExecutableCode != nil:
			if !emit(&agent.CodeExecutionChunk{Code: part.ExecutableCode.Code}) {
				return false
			}
		case part.CodeExecutionResult != nil:
			if !emit(&agent.CodeExecutionChunk{Result: part.CodeExecutionResult.Output}) {
				return false
			}
		}
	}

	if candidate.GroundingMetadata != nil {
		if g := geminiGroundingChunk(candidate.GroundingMetadata); g != nil {
			if !emit(g) {
				return false
			}
		}
	}
	return true
}

// geminiStableCallID generates a deterministic call ID when Gemini omits one,
// so the same function call (same name + args) maps to the same ID across
// retried or re-streamed chunks.
func geminiStableCallID(name string, args map[string]any) string {
	data, _ := json.Marshal(map[string]any{"name": name, "args": args})
	hash := sha256.Sum256(data)
	return fmt.Sprintf("gemini-%x", hash[:16])
}

func geminiGroundingChunk(gm *genai.GroundingMetadata) *agent.GroundingChunk {
	out := &agent.GroundingChunk{WebSearchQueries: gm.WebSearchQueries}
	for _, gc := range gm.GroundingChunks {
		if gc.Web != nil {
			out.Sources = append(out.Sources, agent.GroundingSource{URI: gc.Web.URI, Title: gc.Web.Title})
		}
	}
	for _, gs := range gm.GroundingSupports {
		support := agent.GroundingSupport{}
		if gs.Segment != nil {
			support.StartIndex = int(gs.Segment.StartIndex)
			support.EndIndex = int(gs.Segment.EndIndex)
			support.Text = gs.Segment.Text
		}
		for _, idx := range gs.GroundingChunkIndices {
			support.GroundingChunkIndices = append(support.GroundingChunkIndices, int(idx))
		}
		out.Supports = append(out.Supports, support)
	}
	if gm.SearchEntryPoint != nil {
		out.SearchEntryPointHTML = gm.SearchEntryPoint.RenderedContent
	}
	if len(out.WebSearchQueries) == 0 && len(out.Sources) == 0 && len(out.Supports) == 0 && out.SearchEntryPointHTML == "" {
		return nil
	}
	return out
}

// geminiContents converts the flat conversation history into Gemini's
// contents list plus a separate system instruction, since genai has no
// system role on the Contents slice itself.
func geminiContents(messages []agent.ConversationMessage) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var system *genai.Content

	for _, msg := range messages {
		switch msg.Role {
		case agent.RoleSystem:
			if msg.Content != "" {
				system = &genai.Content{Parts: []*genai.Part{{Text: msg.Content}}}
			}
		case agent.RoleUser:
			if msg.Content != "" {
				contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: msg.Content}}})
			}
		case agent.RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}
		case agent.RoleTool:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{
				FunctionResponse: &genai.FunctionResponse{
					ID:       msg.ToolCallID,
					Name:     msg.ToolName,
					Response: map[string]any{"result": msg.Content},
				},
			}}})
		}
	}
	return contents, system
}

func geminiConfig(cfg *config.LLMProviderConfig, system *genai.Content, tools []agent.ToolDefinition) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{SystemInstruction: system}

	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  geminiSchema(t.ParametersSchema),
			})
		}
		gc.Tools = append(gc.Tools, &genai.Tool{FunctionDeclarations: decls})
	}

	for native, enabled := range cfg.NativeTools {
		if !enabled {
			continue
		}
		switch native {
		case config.GoogleNativeToolGoogleSearch:
			gc.Tools = append(gc.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
		case config.GoogleNativeToolCodeExecution:
			gc.Tools = append(gc.Tools, &genai.Tool{CodeExecution: &genai.ToolCodeExecution{}})
		case config.GoogleNativeToolURLContext:
			gc.Tools = append(gc.Tools, &genai.Tool{URLContext: &genai.URLContext{}})
		}
	}

	return gc
}

// geminiSchema converts a tool's JSON Schema string to genai's typed schema.
// Unparseable or empty schemas fall back to an untyped object schema rather
// than failing the whole request.
func geminiSchema(paramsJSON string) *genai.Schema {
	if paramsJSON == "" {
		return &genai.Schema{Type: genai.TypeObject}
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(paramsJSON), &raw); err != nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	return jsonSchemaToGenai(raw)
}

func jsonSchemaToGenai(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}
	s := &genai.Schema{}
	if t, ok := schema["type"].(string); ok {
		s.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schema["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				s.Properties[name] = jsonSchemaToGenai(propMap)
			}
		}
	}
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			if rs, ok := r.(string); ok {
				s.Required = append(s.Required, rs)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		s.Items = jsonSchemaToGenai(items)
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok {
				s.Enum = append(s.Enum, es)
			}
		}
	}
	return s
}

func isGeminiRetryable(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"RESOURCE_EXHAUSTED", "UNAVAILABLE", "429", "503", "500"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
