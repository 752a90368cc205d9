package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/resumeforge/pipeline/pkg/agent"
	"github.com/resumeforge/pipeline/pkg/config"
)

// anthropicDefaultMaxTokens bounds an assistant turn's output when the
// calling agent config doesn't otherwise pin a tighter stage-specific
// ceiling. MaxToolResultTokens on LLMProviderConfig governs tool-result
// truncation, a distinct concern, so it is not reused here.
const anthropicDefaultMaxTokens = 8192

func (c *Client) anthropicClientFor(cfg *config.LLMProviderConfig) (*sdk.Client, error) {
	key, err := apiKeyFor(cfg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.anthropic[key]; ok {
		return cl, nil
	}

	cl := sdk.NewClient(option.WithAPIKey(key))
	c.anthropic[key] = &cl
	return &cl, nil
}

func (c *Client) generateAnthropic(ctx context.Context, input *agent.GenerateInput) (<-chan agent.Chunk, error) {
	client, err := c.anthropicClientFor(input.Config)
	if err != nil {
		return nil, err
	}

	params, err := anthropicParams(input)
	if err != nil {
		return nil, err
	}

	stream := client.Messages.NewStreaming(ctx, *params)
	if err := stream.Err(); err != nil {
		if isAnthropicRetryable(err) {
			return nil, fmt.Errorf("anthropic messages stream (retryable): %w", err)
		}
		return nil, fmt.Errorf("anthropic messages stream: %w", err)
	}

	chunks := make(chan agent.Chunk, 32)
	go runAnthropicStream(ctx, stream, chunks)
	return chunks, nil
}

func anthropicParams(input *agent.GenerateInput) (*sdk.MessageNewParams, error) {
	messages, system, err := anthropicMessages(input.Messages)
	if err != nil {
		return nil, err
	}

	params := &sdk.MessageNewParams{
		Model:     sdk.Model(input.Config.Model),
		MaxTokens: anthropicDefaultMaxTokens,
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(input.Tools) > 0 {
		params.Tools = anthropicTools(input.Tools)
	}
	return params, nil
}

func anthropicMessages(messages []agent.ConversationMessage) ([]sdk.MessageParam, []sdk.TextBlockParam, error) {
	var conversation []sdk.MessageParam
	var system []sdk.TextBlockParam

	for _, msg := range messages {
		switch msg.Role {
		case agent.RoleSystem:
			if msg.Content != "" {
				system = append(system, sdk.TextBlockParam{Text: msg.Content})
			}
		case agent.RoleUser:
			if msg.Content != "" {
				conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(msg.Content)))
			}
		case agent.RoleAssistant:
			var blocks []sdk.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				_ = json.Unmarshal([]byte(tc.Arguments), &args)
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			if len(blocks) > 0 {
				conversation = append(conversation, sdk.NewAssistantMessage(blocks...))
			}
		case agent.RoleTool:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewToolResultBlock(msg.ToolCallID, msg.Content, false)))
		default:
			return nil, nil, fmt.Errorf("anthropic: unsupported message role %q", msg.Role)
		}
	}

	if len(conversation) == 0 {
		return nil, nil, errors.New("anthropic: at least one user/assistant message is required")
	}
	return conversation, system, nil
}

func anthropicTools(tools []agent.ToolDefinition) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		u := sdk.ToolUnionParamOfTool(anthropicToolSchema(t.ParametersSchema), t.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(t.Description)
		}
		out = append(out, u)
	}
	return out
}

func anthropicToolSchema(paramsJSON string) sdk.ToolInputSchemaParam {
	if paramsJSON == "" {
		return sdk.ToolInputSchemaParam{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(paramsJSON), &m); err != nil {
		return sdk.ToolInputSchemaParam{}
	}
	return sdk.ToolInputSchemaParam{ExtraFields: m}
}

// anthropicToolBuffer accumulates a tool_use block's streamed JSON fragments
// until its content block closes.
type anthropicToolBuffer struct {
	id, name  string
	fragments []string
}

func runAnthropicStream(ctx context.Context, stream *ssestream.Stream[sdk.MessageStreamEventUnion], chunks chan<- agent.Chunk) {
	defer close(chunks)
	defer func() { _ = stream.Close() }()

	emit := func(ch agent.Chunk) bool {
		select {
		case chunks <- ch:
			return true
		case <-ctx.Done():
			return false
		}
	}

	toolBlocks := make(map[int64]*anthropicToolBuffer)

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case sdk.MessageStartEvent:
			toolBlocks = make(map[int64]*anthropicToolBuffer)

		case sdk.ContentBlockStartEvent:
			if toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
				toolBlocks[ev.Index] = &anthropicToolBuffer{id: toolUse.ID, name: toolUse.Name}
			}

		case sdk.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case sdk.TextDelta:
				if delta.Text != "" && !emit(&agent.TextChunk{Content: delta.Text}) {
					return
				}
			case sdk.ThinkingDelta:
				if delta.Thinking != "" && !emit(&agent.ThinkingChunk{Content: delta.Thinking}) {
					return
				}
			case sdk.InputJSONDelta:
				if tb, ok := toolBlocks[ev.Index]; ok && delta.PartialJSON != "" {
					tb.fragments = append(tb.fragments, delta.PartialJSON)
				}
			}

		case sdk.ContentBlockStopEvent:
			if tb, ok := toolBlocks[ev.Index]; ok {
				delete(toolBlocks, ev.Index)
				args := strings.Join(tb.fragments, "")
				if strings.TrimSpace(args) == "" {
					args = "{}"
				}
				if !emit(&agent.ToolCallChunk{CallID: tb.id, Name: tb.name, Arguments: args}) {
					return
				}
			}

		case sdk.MessageDeltaEvent:
			usage := &agent.UsageChunk{
				InputTokens:  int(ev.Usage.InputTokens),
				OutputTokens: int(ev.Usage.OutputTokens),
				TotalTokens:  int(ev.Usage.InputTokens + ev.Usage.OutputTokens),
			}
			if !emit(usage) {
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		emit(&agent.ErrorChunk{Message: err.Error(), Code: "anthropic_stream_error", Retryable: isAnthropicRetryable(err)})
	}
}

func isAnthropicRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{"rate_limit", "overloaded", "429", "500", "503", "529"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
