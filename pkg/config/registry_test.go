package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentRegistryGet(t *testing.T) {
	reg := NewAgentRegistry(map[string]*AgentConfig{
		"intake": {Description: "parses intake", ModelProfile: "light"},
	})

	agent, err := reg.Get("intake")
	require.NoError(t, err)
	assert.Equal(t, "light", agent.ModelProfile)

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestAgentRegistryHasAndLen(t *testing.T) {
	reg := NewAgentRegistry(map[string]*AgentConfig{
		"intake":      {},
		"positioning": {},
	})
	assert.True(t, reg.Has("intake"))
	assert.False(t, reg.Has("architect"))
	assert.Equal(t, 2, reg.Len())
}

func TestAgentRegistryGetAllIsACopy(t *testing.T) {
	reg := NewAgentRegistry(map[string]*AgentConfig{"intake": {Description: "a"}})
	all := reg.GetAll()
	all["intake"].Description = "mutated"

	agent, err := reg.Get("intake")
	require.NoError(t, err)
	assert.Equal(t, "a", agent.Description, "registry internals must not be affected by mutating the GetAll() result map")
}

func TestLLMProviderRegistryGet(t *testing.T) {
	reg := NewLLMProviderRegistry(map[string]*LLMProviderConfig{
		"primary": {Type: LLMProviderTypeGoogle, Model: "gemini-2.5-pro", MaxToolResultTokens: 950000},
	})

	provider, err := reg.Get("primary")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", provider.Model)

	_, err = reg.Get("missing")
	assert.True(t, errors.Is(err, ErrLLMProviderNotFound))
}

func TestLLMProviderRegistryHasAndLen(t *testing.T) {
	reg := NewLLMProviderRegistry(map[string]*LLMProviderConfig{
		"light": {},
		"mid":   {},
	})
	assert.True(t, reg.Has("light"))
	assert.False(t, reg.Has("orchestrator"))
	assert.Equal(t, 2, reg.Len())
}
