package config

// Defaults contains system-wide default configurations.
// These values are used when a specific agent doesn't specify its own.
type Defaults struct {
	// ModelProfile default for all agents that don't set their own.
	ModelProfile string `yaml:"model_profile,omitempty"`

	// Max iterations default (forces conclusion when reached, no pause/resume).
	MaxIterations *int `yaml:"max_iterations,omitempty" validate:"omitempty,min=1"`

	// Success policy default for stages with more than one agent.
	SuccessPolicy SuccessPolicy `yaml:"success_policy,omitempty"`

	// Scoring agent name default, used by the quality_review stage when its
	// own agent definition doesn't override it.
	ScoringAgent string `yaml:"scoring_agent,omitempty"`

	// Orchestrator guardrails applied to any agent of type "orchestrator"
	// that doesn't set its own Orchestrator config (currently only
	// section_writer).
	Orchestrator *OrchestratorConfig `yaml:"orchestrator,omitempty"`

	// Intake masking configuration default. Applied to resume text and job
	// descriptions before storage.
	IntakeMasking *IntakeMaskingDefaults `yaml:"intake_masking,omitempty"`
}

// IntakeMaskingDefaults holds intake-payload masking settings.
// Applied system-wide to resume/job-description text before DB storage.
type IntakeMaskingDefaults struct {
	Enabled      bool   `yaml:"enabled"`
	PatternGroup string `yaml:"pattern_group"`
}
