package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// PipelineYAMLConfig represents the complete pipeline.yaml file structure.
type PipelineYAMLConfig struct {
	System    *SystemYAMLConfig      `yaml:"system"`
	Agents    map[string]AgentConfig `yaml:"agents"`
	Defaults  *Defaults              `yaml:"defaults"`
	Capacity  *CapacityConfig        `yaml:"capacity"`
	RateLimit *RateLimitConfig       `yaml:"rate_limit"`
}

// SystemYAMLConfig groups system-wide infrastructure settings.
type SystemYAMLConfig struct {
	DashboardURL   string           `yaml:"dashboard_url"`
	AllowedOrigins []string         `yaml:"allowed_origins"`
	Masking        *MaskingConfig   `yaml:"masking"`
	Retention      *RetentionConfig `yaml:"retention"`
}

// ModelProfilesYAMLConfig represents the complete model-profiles.yaml file structure.
type ModelProfilesYAMLConfig struct {
	ModelProfiles map[string]LLMProviderConfig `yaml:"model_profiles"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined configurations
//  5. Build in-memory registries
//  6. Apply default values
//  7. Validate all configuration
//  8. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"agents", stats.Agents,
		"model_profiles", stats.ModelProfiles)

	return cfg, nil
}

// load is the internal loader (not exported).
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	pipelineConfig, err := loader.loadPipelineYAML()
	if err != nil {
		return nil, NewLoadError("pipeline.yaml", err)
	}

	modelProfiles, err := loader.loadModelProfilesYAML()
	if err != nil {
		return nil, NewLoadError("model-profiles.yaml", err)
	}

	builtin := GetBuiltinConfig()

	agents := mergeAgents(builtin.Agents, pipelineConfig.Agents)
	profilesMerged := mergeLLMProviders(builtin.LLMProviders, modelProfiles)

	agentRegistry := NewAgentRegistry(agents)
	llmProviderRegistry := NewLLMProviderRegistry(profilesMerged)

	defaults := pipelineConfig.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}
	if defaults.ModelProfile == "" {
		defaults.ModelProfile = "mid"
	}
	if defaults.ScoringAgent == "" {
		defaults.ScoringAgent = builtin.DefaultScoringAgent
	}
	if defaults.IntakeMasking == nil {
		defaults.IntakeMasking = &IntakeMaskingDefaults{
			Enabled:      true,
			PatternGroup: "identity",
		}
	}

	capacityConfig := DefaultCapacityConfig()
	if pipelineConfig.Capacity != nil {
		if err := mergo.Merge(capacityConfig, pipelineConfig.Capacity, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge capacity config: %w", err)
		}
	}

	rateLimitConfig := DefaultRateLimitConfig()
	if pipelineConfig.RateLimit != nil {
		if err := mergo.Merge(rateLimitConfig, pipelineConfig.RateLimit, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge rate limit config: %w", err)
		}
	}

	maskingCfg := resolveMaskingConfig(pipelineConfig.System)
	retentionCfg := resolveRetentionConfig(pipelineConfig.System)
	dashboardURL := resolveDashboardURL(pipelineConfig.System)
	allowedOrigins := resolveAllowedOrigins(pipelineConfig.System)

	return &Config{
		configDir:           configDir,
		Defaults:            defaults,
		Capacity:            capacityConfig,
		RateLimit:           rateLimitConfig,
		Masking:             maskingCfg,
		Retention:           retentionCfg,
		DashboardURL:        dashboardURL,
		AllowedOrigins:      allowedOrigins,
		AgentRegistry:       agentRegistry,
		LLMProviderRegistry: llmProviderRegistry,
	}, nil
}

// validate performs comprehensive validation on loaded configuration.
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadPipelineYAML() (*PipelineYAMLConfig, error) {
	var cfg PipelineYAMLConfig
	cfg.Agents = make(map[string]AgentConfig)

	if err := l.loadYAML("pipeline.yaml", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (l *configLoader) loadModelProfilesYAML() (map[string]LLMProviderConfig, error) {
	var cfg ModelProfilesYAMLConfig
	cfg.ModelProfiles = make(map[string]LLMProviderConfig)

	if err := l.loadYAML("model-profiles.yaml", &cfg); err != nil {
		return nil, err
	}

	return cfg.ModelProfiles, nil
}

// resolveMaskingConfig resolves masking configuration from system YAML, applying defaults.
func resolveMaskingConfig(sys *SystemYAMLConfig) *MaskingConfig {
	if sys != nil && sys.Masking != nil {
		return sys.Masking
	}
	return &MaskingConfig{
		Enabled:       true,
		PatternGroups: []string{"identity", "security"},
	}
}

// resolveDashboardURL resolves the dashboard base URL from system YAML, applying defaults.
func resolveDashboardURL(sys *SystemYAMLConfig) string {
	if sys != nil && sys.DashboardURL != "" {
		return sys.DashboardURL
	}
	return "http://localhost:5173"
}

// resolveRetentionConfig resolves retention configuration from system YAML, applying defaults.
func resolveRetentionConfig(sys *SystemYAMLConfig) *RetentionConfig {
	cfg := DefaultRetentionConfig()

	if sys == nil || sys.Retention == nil {
		return cfg
	}

	r := sys.Retention
	if r.SessionRetentionDays > 0 {
		cfg.SessionRetentionDays = r.SessionRetentionDays
	}
	if r.EventTTL > 0 {
		cfg.EventTTL = r.EventTTL
	}
	if r.CleanupInterval > 0 {
		cfg.CleanupInterval = r.CleanupInterval
	}

	return cfg
}

// resolveAllowedOrigins returns additional SSE/CORS origin patterns from system YAML.
func resolveAllowedOrigins(sys *SystemYAMLConfig) []string {
	if sys != nil {
		return sys.AllowedOrigins
	}
	return nil
}
