package config

// Config is the umbrella configuration object that encapsulates all
// registries, defaults, and configuration state. This is the primary
// object returned by Initialize() and used throughout the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// System-wide defaults
	Defaults *Defaults

	// Capacity, admission, and rate-limit knobs.
	Capacity  *CapacityConfig
	RateLimit *RateLimitConfig

	// Intake/section masking policy.
	Masking *MaskingConfig

	// Data retention and cleanup policy.
	Retention *RetentionConfig

	// DashboardURL is the base URL of the client UI, used to build links
	// in transparency events and error messages.
	DashboardURL string

	// AllowedOrigins lists additional allowed SSE/CORS origins beyond the
	// dashboard's own origin.
	AllowedOrigins []string

	// Component registries
	AgentRegistry       *AgentRegistry
	LLMProviderRegistry *LLMProviderRegistry
}

// Initialize is defined in loader.go

// ConfigStats contains statistics about loaded configuration.
type ConfigStats struct {
	Agents        int
	ModelProfiles int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		Agents:        len(c.AgentRegistry.GetAll()),
		ModelProfiles: len(c.LLMProviderRegistry.GetAll()),
	}
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetAgent retrieves an agent configuration by role name.
// This is a convenience method that wraps AgentRegistry.Get().
func (c *Config) GetAgent(name string) (*AgentConfig, error) {
	return c.AgentRegistry.Get(name)
}

// GetModelProfile retrieves an LLM provider configuration by model profile name.
// This is a convenience method that wraps LLMProviderRegistry.Get().
func (c *Config) GetModelProfile(name string) (*LLMProviderConfig, error) {
	return c.LLMProviderRegistry.Get(name)
}
