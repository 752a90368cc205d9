package config

// Shared types used across configuration structs.

// MaskingConfig controls which built-in pattern groups the masking service
// applies to intake text, drafted sections, and tool output before either
// is persisted or handed to an LLM call. There is exactly one masking
// policy for the whole pipeline, since there are no remote servers to
// configure independently.
type MaskingConfig struct {
	Enabled       bool     `yaml:"enabled"`
	PatternGroups []string `yaml:"pattern_groups,omitempty"`
}

// MaskingPattern defines a regex-based masking pattern.
type MaskingPattern struct {
	Pattern     string `yaml:"pattern" validate:"required"`
	Replacement string `yaml:"replacement" validate:"required"`
	Description string `yaml:"description,omitempty"`
}
