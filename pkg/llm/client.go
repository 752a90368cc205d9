// Package llm implements the Agent Loop's LLM provider boundary: translating
// a GenerateInput into a provider-specific streaming request and adapting
// the provider's response events back into agent.Chunk values.
//
// Two provider SDKs are wired in directly: google.golang.org/genai for
// Gemini (thinking traces, grounding, and code-execution support) and
// github.com/anthropics/anthropic-sdk-go for Claude. Both are plain HTTPS
// clients called in-process.
package llm

import (
	"context"
	"fmt"
	"os"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/genai"

	"github.com/resumeforge/pipeline/pkg/agent"
	"github.com/resumeforge/pipeline/pkg/config"
)

// Client implements agent.LLMClient against the Gemini and Anthropic SDKs.
// Provider clients are created lazily, one per distinct API key, and cached
// so a pod doesn't reconnect on every agent execution or sub-agent dispatch.
type Client struct {
	mu        sync.Mutex
	gemini    map[string]*genai.Client
	anthropic map[string]*sdk.Client
}

// NewClient returns an LLM client with empty provider caches.
func NewClient() *Client {
	return &Client{
		gemini:    make(map[string]*genai.Client),
		anthropic: make(map[string]*sdk.Client),
	}
}

// Generate dispatches to the provider SDK named by input.Config.Type and
// returns a channel of chunks. The channel is always closed by the time the
// provider's stream ends, successfully or not; a terminal failure is
// delivered as an ErrorChunk rather than by closing the channel early.
func (c *Client) Generate(ctx context.Context, input *agent.GenerateInput) (<-chan agent.Chunk, error) {
	if input == nil || input.Config == nil {
		return nil, fmt.Errorf("llm: generate input missing provider config")
	}

	switch input.Config.Type {
	case config.LLMProviderTypeGoogle:
		return c.generateGemini(ctx, input)
	case config.LLMProviderTypeAnthropic:
		return c.generateAnthropic(ctx, input)
	default:
		return nil, fmt.Errorf("llm: provider type %q has no SDK binding wired in this deployment", input.Config.Type)
	}
}

// Close is a no-op. Both SDKs are stateless HTTP clients with no persistent
// connection to release.
func (c *Client) Close() error { return nil }

var _ agent.LLMClient = (*Client)(nil)

func apiKeyFor(cfg *config.LLMProviderConfig) (string, error) {
	if cfg.APIKeyEnv == "" {
		return "", fmt.Errorf("llm: provider %q has no api_key_env configured", cfg.Type)
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("llm: environment variable %q is not set", cfg.APIKeyEnv)
	}
	return key, nil
}
