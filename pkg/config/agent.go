// Package config provides configuration management for the resume pipeline
// orchestrator: pipeline agent roles, model profiles, masking patterns, and
// system-wide defaults.
package config

import (
	"fmt"
	"sync"
	"time"
)

// AgentConfig defines one of the nine fixed pipeline roles (metadata only —
// see agent.AgentFactory for instantiation). There is no configurable stage
// graph or chain-of-agents concept: the stage graph itself is fixed code in
// pkg/pipeline, and AgentConfig only carries the per-role knobs a deployment
// may want to override (model profile, instructions, iteration budget).
type AgentConfig struct {
	// Agent type determines controller + wrapper selection.
	Type AgentType `yaml:"type,omitempty"`

	// Human-readable description.
	Description string `yaml:"description,omitempty"`

	// Tool namespaces this agent may call, resolved against the static
	// per-agent registry built by pkg/tools at coordinator start-up.
	ToolNamespaces []string `yaml:"tool_namespaces" validate:"omitempty"`

	// Custom instructions override built-in agent behavior. Prompt content
	// itself is out of scope for this spec; this field only exists so a
	// deployment can append operator guidance without a code change.
	CustomInstructions string `yaml:"custom_instructions"`

	// ModelProfile selects which entry of the LLM provider registry this
	// agent calls — one of "light", "mid", "primary", "orchestrator".
	// Empty means fall back to Defaults.ModelProfile.
	ModelProfile string `yaml:"model_profile,omitempty"`

	// Max iterations for this agent (forces conclusion when reached, no pause/resume).
	MaxIterations *int `yaml:"max_iterations,omitempty" validate:"omitempty,min=1"`

	// Per-agent native tool overrides (Google/Gemini). Merges with the
	// model profile's NativeTools on a per-key basis: agent keys override
	// profile keys, missing keys fall through to the profile default.
	NativeTools map[GoogleNativeTool]bool `yaml:"native_tools,omitempty"`

	// Orchestrator-specific configuration (only valid when Type == orchestrator).
	// Only the section_writer role sets this — it fans out one
	// section-writer sub-agent per resume section over the Agent Bus.
	Orchestrator *OrchestratorConfig `yaml:"orchestrator,omitempty"`
}

// OrchestratorConfig holds orchestrator-specific settings.
// Resolved at runtime by merging defaults.orchestrator → agent-level orchestrator.
type OrchestratorConfig struct {
	MaxConcurrentAgents *int           `yaml:"max_concurrent_agents,omitempty"`
	AgentTimeout        *time.Duration `yaml:"agent_timeout,omitempty"`
	MaxBudget           *time.Duration `yaml:"max_budget,omitempty"`
}

// AgentRegistry stores agent configurations in memory with thread-safe access.
type AgentRegistry struct {
	agents map[string]*AgentConfig
	mu     sync.RWMutex
}

// NewAgentRegistry creates a new agent registry.
func NewAgentRegistry(agents map[string]*AgentConfig) *AgentRegistry {
	copied := make(map[string]*AgentConfig, len(agents))
	for k, v := range agents {
		copied[k] = v
	}
	return &AgentRegistry{
		agents: copied,
	}
}

// Get retrieves an agent configuration by name (thread-safe).
func (r *AgentRegistry) Get(name string) (*AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, exists := r.agents[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return agent, nil
}

// GetAll returns all agent configurations (thread-safe, returns copy).
func (r *AgentRegistry) GetAll() map[string]*AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*AgentConfig, len(r.agents))
	for k, v := range r.agents {
		result[k] = v
	}
	return result
}

// Has checks if an agent exists in the registry (thread-safe).
func (r *AgentRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.agents[name]
	return exists
}

// Len returns the number of agents in the registry (thread-safe).
func (r *AgentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
