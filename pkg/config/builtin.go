package config

import (
	"sync"
	"time"
)

// BuiltinConfig holds all built-in configuration data: the nine fixed
// pipeline roles, the four model profiles, and the PII masking patterns
// applied to intake text and drafted sections.
type BuiltinConfig struct {
	Agents          map[string]BuiltinAgentConfig
	LLMProviders    map[string]LLMProviderConfig
	MaskingPatterns map[string]MaskingPattern
	PatternGroups   map[string][]string
	// CodeMaskers names the structurally-aware maskers (pkg/masking.Masker
	// implementations) addressable from a pattern group, alongside the
	// purely regex-based MaskingPatterns.
	CodeMaskers         []string
	DefaultScoringAgent string
}

// BuiltinAgentConfig holds built-in agent metadata (configuration only).
// Agent instantiation/factory pattern lives in pkg/agent.AgentFactory.
type BuiltinAgentConfig struct {
	Type               AgentType
	Description        string
	ToolNamespaces     []string
	ModelProfile       string
	CustomInstructions string
	Orchestrator       *OrchestratorConfig
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration (thread-safe, lazy-initialized).
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		Agents:              initBuiltinAgents(),
		LLMProviders:        initBuiltinLLMProviders(),
		MaskingPatterns:     initBuiltinMaskingPatterns(),
		PatternGroups:       initBuiltinPatternGroups(),
		CodeMaskers:         []string{"embedded_credential"},
		DefaultScoringAgent: "quality_review",
	}
}

// initBuiltinAgents defines the nine fixed pipeline roles of the stage
// graph. Role names double as the agent registry key, the ent Stage's
// agent_name value, and (for section_writing/quality_review) the Agent Bus
// channel participant name.
func initBuiltinAgents() map[string]BuiltinAgentConfig {
	orchestratorMax := 4
	orchestratorBudget := 8 * time.Minute

	return map[string]BuiltinAgentConfig{
		"intake": {
			Description:    "Parses and normalizes the raw resume and job description into structured intake data.",
			ToolNamespaces: []string{"intake"},
			ModelProfile:   "light",
		},
		"positioning": {
			Description:    "Proposes a candidate positioning strategy; gate-bearing, pauses for user confirmation.",
			ToolNamespaces: []string{"positioning"},
			ModelProfile:   "mid",
		},
		"research": {
			Description:    "Gathers market and role-specific evidence to ground later claims.",
			ToolNamespaces: []string{"research"},
			ModelProfile:   "mid",
		},
		"gap_analysis": {
			Description:    "Compares resume evidence against job requirements and flags gaps.",
			ToolNamespaces: []string{"gap_analysis"},
			ModelProfile:   "mid",
		},
		"architect": {
			Description:    "Drafts the resume blueprint (section outline and content strategy).",
			ToolNamespaces: []string{"architect"},
			ModelProfile:   "primary",
		},
		"architect_review": {
			Description:    "Reviews the blueprint for soundness; gate-bearing, pauses for user confirmation.",
			ToolNamespaces: []string{"architect_review"},
			ModelProfile:   "mid",
		},
		"section_writer": {
			Type:           AgentTypeOrchestrator,
			Description:    "Fans out one section-writer sub-agent per resume section, in parallel.",
			ToolNamespaces: []string{"section_writing"},
			ModelProfile:   "orchestrator",
			Orchestrator: &OrchestratorConfig{
				MaxConcurrentAgents: &orchestratorMax,
				AgentTimeout:        &orchestratorBudget,
			},
		},
		"section_review": {
			Description:    "Reviews drafted sections against the blueprint; gate-bearing, pauses for user confirmation.",
			ToolNamespaces: []string{"section_review"},
			ModelProfile:   "mid",
		},
		"quality_review": {
			Type:           AgentTypeScoring,
			Description:    "Scores the assembled resume against the rubric and may emit revision requests.",
			ToolNamespaces: []string{"quality_review"},
			ModelProfile:   "primary",
		},
	}
}

func initBuiltinLLMProviders() map[string]LLMProviderConfig {
	return map[string]LLMProviderConfig{
		"light": {
			Type:                LLMProviderTypeOpenAI,
			Model:               "gpt-5-mini",
			APIKeyEnv:           "OPENAI_API_KEY",
			MaxToolResultTokens: 100000,
		},
		"mid": {
			Type:                LLMProviderTypeAnthropic,
			Model:               "claude-haiku-4-20250514",
			APIKeyEnv:           "ANTHROPIC_API_KEY",
			MaxToolResultTokens: 150000,
		},
		"primary": {
			Type:                LLMProviderTypeGoogle,
			Model:               "gemini-2.5-pro",
			APIKeyEnv:           "GOOGLE_API_KEY",
			MaxToolResultTokens: 950000,
			NativeTools: map[GoogleNativeTool]bool{
				GoogleNativeToolGoogleSearch: true,
			},
		},
		"orchestrator": {
			Type:                LLMProviderTypeAnthropic,
			Model:               "claude-sonnet-4-20250514",
			APIKeyEnv:           "ANTHROPIC_API_KEY",
			MaxToolResultTokens: 150000,
		},
	}
}

func initBuiltinMaskingPatterns() map[string]MaskingPattern {
	return map[string]MaskingPattern{
		"email": {
			Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`,
			Replacement: `[MASKED_EMAIL]`,
			Description: "Email addresses",
		},
		"phone": {
			Pattern:     `(?:\+?\d{1,3}[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`,
			Replacement: `[MASKED_PHONE]`,
			Description: "Phone numbers",
		},
		"ssn": {
			Pattern:     `\b\d{3}-\d{2}-\d{4}\b`,
			Replacement: `[MASKED_SSN]`,
			Description: "US Social Security numbers",
		},
		"street_address": {
			Pattern:     `(?i)\b\d{1,6}\s+[A-Za-z0-9.'\s]{2,40}\s+(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|court|ct|way|place|pl)\b`,
			Replacement: `[MASKED_ADDRESS]`,
			Description: "Street addresses",
		},
		"date_of_birth": {
			Pattern:     `(?i)\b(?:date of birth|dob)\s*[:=]?\s*\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`,
			Replacement: `[MASKED_DOB]`,
			Description: "Date of birth fields",
		},
		"linkedin_url": {
			Pattern:     `(?i)\bhttps?://(?:www\.)?linkedin\.com/in/[A-Za-z0-9_-]+/?\b`,
			Replacement: `[MASKED_LINKEDIN]`,
			Description: "LinkedIn profile URLs",
		},
		"token": {
			Pattern:     `(?i)(?:token|bearer|jwt)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-.]{20,})["']?`,
			Replacement: `"token": "[MASKED_TOKEN]"`,
			Description: "Access tokens that leak into pasted job descriptions or tool output",
		},
		"api_key": {
			Pattern:     `(?i)(?:api[_-]?key|apikey)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{20,})["']?`,
			Replacement: `"api_key": "[MASKED_API_KEY]"`,
			Description: "API keys",
		},
	}
}

// initBuiltinPatternGroups returns predefined groups of masking patterns.
func initBuiltinPatternGroups() map[string][]string {
	return map[string][]string{
		"basic":    {"email", "phone"},
		"identity": {"email", "phone", "ssn", "date_of_birth", "street_address"},
		"security": {"token", "api_key", "embedded_credential"},
		"all":      {"email", "phone", "ssn", "street_address", "date_of_birth", "linkedin_url", "token", "api_key", "embedded_credential"},
	}
}
