package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBuiltinConfigIsSingleton(t *testing.T) {
	a := GetBuiltinConfig()
	b := GetBuiltinConfig()
	assert.Same(t, a, b)
}

func TestBuiltinAgentsCoverAllNineRoles(t *testing.T) {
	roles := []string{
		"intake", "positioning", "research", "gap_analysis", "architect",
		"architect_review", "section_writer", "section_review", "quality_review",
	}
	agents := GetBuiltinConfig().Agents
	require.Len(t, agents, len(roles))
	for _, role := range roles {
		agent, ok := agents[role]
		assert.True(t, ok, "missing builtin agent %q", role)
		assert.NotEmpty(t, agent.ModelProfile, "agent %q must have a model profile", role)
	}
}

func TestBuiltinSectionWriterIsOrchestrator(t *testing.T) {
	agent := GetBuiltinConfig().Agents["section_writer"]
	assert.Equal(t, AgentTypeOrchestrator, agent.Type)
	require.NotNil(t, agent.Orchestrator)
	require.NotNil(t, agent.Orchestrator.MaxConcurrentAgents)
	assert.Greater(t, *agent.Orchestrator.MaxConcurrentAgents, 0)
}

func TestBuiltinQualityReviewIsScoring(t *testing.T) {
	agent := GetBuiltinConfig().Agents["quality_review"]
	assert.Equal(t, AgentTypeScoring, agent.Type)
}

func TestBuiltinOtherRolesAreDefaultType(t *testing.T) {
	for name, agent := range GetBuiltinConfig().Agents {
		if name == "section_writer" || name == "quality_review" {
			continue
		}
		assert.Equal(t, AgentTypeDefault, agent.Type, "agent %q should be default type", name)
	}
}

func TestBuiltinModelProfilesAreAllFourAndValid(t *testing.T) {
	expected := []string{"light", "mid", "primary", "orchestrator"}
	profiles := GetBuiltinConfig().LLMProviders
	require.Len(t, profiles, len(expected))
	for _, name := range expected {
		profile, ok := profiles[name]
		require.True(t, ok, "missing builtin model profile %q", name)
		assert.True(t, profile.Type.IsValid())
		assert.NotEmpty(t, profile.Model)
		assert.GreaterOrEqual(t, profile.MaxToolResultTokens, 1000)
	}
}

func TestBuiltinPatternGroupsReferenceKnownPatterns(t *testing.T) {
	builtin := GetBuiltinConfig()
	for group, patterns := range builtin.PatternGroups {
		for _, pattern := range patterns {
			_, ok := builtin.MaskingPatterns[pattern]
			assert.True(t, ok, "pattern group %q references unknown pattern %q", group, pattern)
		}
	}
}

func TestBuiltinDefaultScoringAgentExists(t *testing.T) {
	builtin := GetBuiltinConfig()
	_, ok := builtin.Agents[builtin.DefaultScoringAgent]
	assert.True(t, ok, "DefaultScoringAgent %q must exist in Agents", builtin.DefaultScoringAgent)
}
