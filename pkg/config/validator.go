package config

import (
	"fmt"
	"os"
)

// Validator validates configuration comprehensively with clear error messages
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error).
// Validated in dependency order: capacity → agents → model profiles → masking → defaults.
func (v *Validator) ValidateAll() error {
	if err := v.validateCapacity(); err != nil {
		return fmt.Errorf("capacity validation failed: %w", err)
	}

	if err := v.validateAgents(); err != nil {
		return fmt.Errorf("agent validation failed: %w", err)
	}

	if err := v.validateLLMProviders(); err != nil {
		return fmt.Errorf("model profile validation failed: %w", err)
	}

	if err := v.validateMasking(); err != nil {
		return fmt.Errorf("masking validation failed: %w", err)
	}

	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}

	return nil
}

func (v *Validator) validateCapacity() error {
	c := v.cfg.Capacity
	if c == nil {
		return fmt.Errorf("capacity configuration is nil")
	}

	if c.WorkerCount < 1 || c.WorkerCount > 50 {
		return fmt.Errorf("worker_count must be between 1 and 50, got %d", c.WorkerCount)
	}
	if c.GlobalMaxConcurrent < 1 {
		return fmt.Errorf("global_max_concurrent must be at least 1, got %d", c.GlobalMaxConcurrent)
	}
	if c.PerUserMaxConcurrent < 1 {
		return fmt.Errorf("per_user_max_concurrent must be at least 1, got %d", c.PerUserMaxConcurrent)
	}
	if c.PerUserMaxConcurrent > c.GlobalMaxConcurrent {
		return fmt.Errorf("per_user_max_concurrent (%d) must not exceed global_max_concurrent (%d)", c.PerUserMaxConcurrent, c.GlobalMaxConcurrent)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if c.PollIntervalJitter < 0 {
		return fmt.Errorf("poll_interval_jitter must be non-negative, got %v", c.PollIntervalJitter)
	}
	if c.PollIntervalJitter >= c.PollInterval {
		return fmt.Errorf("poll_interval_jitter must be less than poll_interval, got jitter=%v interval=%v", c.PollIntervalJitter, c.PollInterval)
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("session_timeout must be positive, got %v", c.SessionTimeout)
	}
	if c.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive, got %v", c.GracefulShutdownTimeout)
	}
	if c.OrphanDetectionInterval <= 0 {
		return fmt.Errorf("orphan_detection_interval must be positive, got %v", c.OrphanDetectionInterval)
	}
	if c.OrphanThreshold <= 0 {
		return fmt.Errorf("orphan_threshold must be positive, got %v", c.OrphanThreshold)
	}
	if c.OrphanDetectionInterval >= c.OrphanThreshold {
		return fmt.Errorf("orphan_detection_interval must be less than orphan_threshold to prevent false orphan detection, got interval=%v threshold=%v", c.OrphanDetectionInterval, c.OrphanThreshold)
	}

	rl := v.cfg.RateLimit
	if rl != nil {
		if rl.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limit.requests_per_second must be positive, got %v", rl.RequestsPerSecond)
		}
		if rl.Burst < 1 {
			return fmt.Errorf("rate_limit.burst must be at least 1, got %d", rl.Burst)
		}
		if rl.MaxTrackedUsers < 1 {
			return fmt.Errorf("rate_limit.max_tracked_users must be at least 1, got %d", rl.MaxTrackedUsers)
		}
	}

	return nil
}

func (v *Validator) validateDefaults() error {
	defaults := v.cfg.Defaults
	if defaults == nil {
		return nil
	}

	if defaults.ModelProfile != "" {
		if _, err := v.cfg.LLMProviderRegistry.Get(defaults.ModelProfile); err != nil {
			return NewValidationError("defaults", "", "model_profile",
				fmt.Errorf("model profile '%s' not found", defaults.ModelProfile))
		}
	}

	if defaults.MaxIterations != nil && *defaults.MaxIterations < 1 {
		return NewValidationError("defaults", "", "max_iterations",
			fmt.Errorf("max_iterations must be at least 1, got %d", *defaults.MaxIterations))
	}

	if defaults.SuccessPolicy != "" && !defaults.SuccessPolicy.IsValid() {
		return NewValidationError("defaults", "", "success_policy",
			fmt.Errorf("invalid success policy '%s'", defaults.SuccessPolicy))
	}

	if defaults.ScoringAgent != "" && !v.cfg.AgentRegistry.Has(defaults.ScoringAgent) {
		return NewValidationError("defaults", "", "scoring_agent",
			fmt.Errorf("agent '%s' not found", defaults.ScoringAgent))
	}

	if defaults.IntakeMasking != nil && defaults.IntakeMasking.Enabled {
		builtin := GetBuiltinConfig()
		groupName := defaults.IntakeMasking.PatternGroup
		if groupName == "" {
			return NewValidationError("defaults", "", "intake_masking.pattern_group",
				fmt.Errorf("pattern_group is required when intake masking is enabled"))
		}
		if _, exists := builtin.PatternGroups[groupName]; !exists {
			return NewValidationError("defaults", "", "intake_masking.pattern_group",
				fmt.Errorf("pattern group '%s' not found in built-in groups", groupName))
		}
	}

	if defaults.Orchestrator != nil {
		if err := v.validateOrchestratorConfig(defaults.Orchestrator, "defaults", ""); err != nil {
			return err
		}
	}

	return nil
}

func (v *Validator) validateAgents() error {
	for name, agent := range v.cfg.AgentRegistry.GetAll() {
		if !agent.Type.IsValid() {
			return NewValidationError("agent", name, "type",
				fmt.Errorf("invalid agent type '%s'", agent.Type))
		}

		if agent.ModelProfile != "" {
			if _, err := v.cfg.LLMProviderRegistry.Get(agent.ModelProfile); err != nil {
				return NewValidationError("agent", name, "model_profile",
					fmt.Errorf("model profile '%s' not found", agent.ModelProfile))
			}
		}

		if agent.MaxIterations != nil && *agent.MaxIterations < 1 {
			return NewValidationError("agent", name, "max_iterations",
				fmt.Errorf("max_iterations must be at least 1, got %d", *agent.MaxIterations))
		}

		for tool, enabled := range agent.NativeTools {
			if enabled && !tool.IsValid() {
				return NewValidationError("agent", name, "native_tools",
					fmt.Errorf("invalid native tool '%s'", tool))
			}
		}

		if agent.Orchestrator != nil {
			if agent.Type != AgentTypeOrchestrator {
				return NewValidationError("agent", name, "orchestrator",
					fmt.Errorf("orchestrator config set on non-orchestrator agent (type '%s')", agent.Type))
			}
			if err := v.validateOrchestratorConfig(agent.Orchestrator, "agent", name); err != nil {
				return err
			}
		}
	}

	return nil
}

func (v *Validator) validateOrchestratorConfig(o *OrchestratorConfig, component, id string) error {
	if o.MaxConcurrentAgents != nil && *o.MaxConcurrentAgents < 1 {
		return NewValidationError(component, id, "orchestrator.max_concurrent_agents",
			fmt.Errorf("must be at least 1, got %d", *o.MaxConcurrentAgents))
	}
	if o.AgentTimeout != nil && *o.AgentTimeout <= 0 {
		return NewValidationError(component, id, "orchestrator.agent_timeout",
			fmt.Errorf("must be positive, got %v", *o.AgentTimeout))
	}
	if o.MaxBudget != nil && *o.MaxBudget <= 0 {
		return NewValidationError(component, id, "orchestrator.max_budget",
			fmt.Errorf("must be positive, got %v", *o.MaxBudget))
	}
	if o.AgentTimeout != nil && o.MaxBudget != nil && *o.AgentTimeout > *o.MaxBudget {
		return NewValidationError(component, id, "orchestrator.agent_timeout",
			fmt.Errorf("agent_timeout (%v) must not exceed max_budget (%v)", *o.AgentTimeout, *o.MaxBudget))
	}

	return nil
}

func (v *Validator) validateLLMProviders() error {
	for name, provider := range v.cfg.LLMProviderRegistry.GetAll() {
		if !provider.Type.IsValid() {
			return NewValidationError("model_profile", name, "type",
				fmt.Errorf("invalid provider type '%s'", provider.Type))
		}

		if provider.Model == "" {
			return NewValidationError("model_profile", name, "model",
				fmt.Errorf("model is required"))
		}

		if provider.MaxToolResultTokens < 1000 {
			return NewValidationError("model_profile", name, "max_tool_result_tokens",
				fmt.Errorf("must be at least 1000, got %d", provider.MaxToolResultTokens))
		}

		for tool, enabled := range provider.NativeTools {
			if enabled && !tool.IsValid() {
				return NewValidationError("model_profile", name, "native_tools",
					fmt.Errorf("invalid native tool '%s'", tool))
			}
		}

		if provider.Type == LLMProviderTypeVertexAI {
			if provider.CredentialsEnv != "" {
				if _, ok := os.LookupEnv(provider.CredentialsEnv); !ok {
					return NewValidationError("model_profile", name, "credentials_env",
						fmt.Errorf("environment variable '%s' is not set", provider.CredentialsEnv))
				}
			}
			if provider.ProjectEnv != "" {
				if _, ok := os.LookupEnv(provider.ProjectEnv); !ok {
					return NewValidationError("model_profile", name, "project_env",
						fmt.Errorf("environment variable '%s' is not set", provider.ProjectEnv))
				}
			}
			if provider.LocationEnv != "" {
				if _, ok := os.LookupEnv(provider.LocationEnv); !ok {
					return NewValidationError("model_profile", name, "location_env",
						fmt.Errorf("environment variable '%s' is not set", provider.LocationEnv))
				}
			}
		}
	}

	// Only require an API key for profiles actually referenced by an agent
	// or the system defaults — an unreferenced built-in profile (e.g. a
	// vendor the deployment doesn't use) shouldn't block startup.
	for name := range v.collectReferencedLLMProviders() {
		provider, err := v.cfg.LLMProviderRegistry.Get(name)
		if err != nil {
			return NewValidationError("defaults_or_agent", "", "model_profile",
				fmt.Errorf("referenced model profile '%s' not found", name))
		}
		if provider.APIKeyEnv != "" {
			if _, ok := os.LookupEnv(provider.APIKeyEnv); !ok {
				return NewValidationError("model_profile", name, "api_key_env",
					fmt.Errorf("environment variable '%s' is not set", provider.APIKeyEnv))
			}
		}
	}

	return nil
}

// collectReferencedLLMProviders walks the agent registry and defaults to
// find every model profile name actually in use.
func (v *Validator) collectReferencedLLMProviders() map[string]struct{} {
	referenced := make(map[string]struct{})

	for _, agent := range v.cfg.AgentRegistry.GetAll() {
		if agent.ModelProfile != "" {
			referenced[agent.ModelProfile] = struct{}{}
		}
	}

	if v.cfg.Defaults != nil && v.cfg.Defaults.ModelProfile != "" {
		referenced[v.cfg.Defaults.ModelProfile] = struct{}{}
	}

	return referenced
}

func (v *Validator) validateMasking() error {
	builtin := GetBuiltinConfig()

	if m := v.cfg.Masking; m != nil && m.Enabled {
		for _, group := range m.PatternGroups {
			if _, exists := builtin.PatternGroups[group]; !exists {
				return NewValidationError("masking", "", "pattern_groups",
					fmt.Errorf("pattern group '%s' not found in built-in groups", group))
			}
		}
	}

	return nil
}
