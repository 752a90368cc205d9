package agent

import (
	"fmt"
	"time"

	"github.com/resumeforge/pipeline/pkg/config"
)

const DefaultMaxIterations = 20

// DefaultIterationTimeout is the default per-iteration timeout.
// Each iteration (LLM call + tool execution) gets its own context.WithTimeout
// derived from the parent session context. This prevents a single stuck
// iteration from consuming the entire session budget.
const DefaultIterationTimeout = 120 * time.Second

// ResolveAgentConfig builds the final agent configuration for a pipeline
// role by applying the hierarchy: defaults → agent definition. There is no
// chain/stage-agent override layer: the stage graph is fixed code, and each
// of the nine roles resolves to exactly one agent definition.
func ResolveAgentConfig(cfg *config.Config, role string) (*ResolvedAgentConfig, error) {
	defaults := cfg.Defaults

	agentDef, err := cfg.GetAgent(role)
	if err != nil {
		return nil, fmt.Errorf("agent %q not found: %w", role, err)
	}

	profileName := agentDef.ModelProfile
	if profileName == "" && defaults != nil {
		profileName = defaults.ModelProfile
	}
	provider, err := cfg.GetModelProfile(profileName)
	if err != nil {
		return nil, fmt.Errorf("model profile %q not found: %w", profileName, err)
	}

	maxIter := resolveMaxIterations(
		defaultsMaxIterations(defaults), agentDef.MaxIterations,
	)

	return &ResolvedAgentConfig{
		AgentName:          role,
		Type:               agentDef.Type,
		LLMProvider:        provider,
		LLMProviderName:    profileName,
		MaxIterations:      maxIter,
		IterationTimeout:   DefaultIterationTimeout,
		ToolNamespaces:     agentDef.ToolNamespaces,
		CustomInstructions: agentDef.CustomInstructions,
	}, nil
}

func defaultsMaxIterations(defaults *config.Defaults) *int {
	if defaults == nil {
		return nil
	}
	return defaults.MaxIterations
}

// resolveMaxIterations returns the last non-nil value from the given
// overrides, falling back to DefaultMaxIterations.
func resolveMaxIterations(overrides ...*int) int {
	maxIter := DefaultMaxIterations
	for _, o := range overrides {
		if o != nil {
			maxIter = *o
		}
	}
	return maxIter
}

// ResolveOrchestratorConfig merges the orchestrator guardrails for an
// orchestrator-type agent role: defaults.Orchestrator → agent-level
// Orchestrator. Only section_writer sets this today.
func ResolveOrchestratorConfig(cfg *config.Config, role string) (*config.OrchestratorConfig, error) {
	agentDef, err := cfg.GetAgent(role)
	if err != nil {
		return nil, fmt.Errorf("agent %q not found: %w", role, err)
	}

	resolved := &config.OrchestratorConfig{}
	if cfg.Defaults != nil && cfg.Defaults.Orchestrator != nil {
		*resolved = *cfg.Defaults.Orchestrator
	}
	if agentDef.Orchestrator != nil {
		if agentDef.Orchestrator.MaxConcurrentAgents != nil {
			resolved.MaxConcurrentAgents = agentDef.Orchestrator.MaxConcurrentAgents
		}
		if agentDef.Orchestrator.AgentTimeout != nil {
			resolved.AgentTimeout = agentDef.Orchestrator.AgentTimeout
		}
		if agentDef.Orchestrator.MaxBudget != nil {
			resolved.MaxBudget = agentDef.Orchestrator.MaxBudget
		}
	}

	return resolved, nil
}
