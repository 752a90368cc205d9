package config

// mergeAgents merges built-in and user-defined agent configurations.
// User-defined agents override built-in agents with the same name.
func mergeAgents(builtinAgents map[string]BuiltinAgentConfig, userAgents map[string]AgentConfig) map[string]*AgentConfig {
	result := make(map[string]*AgentConfig)

	// First, convert built-in agents to AgentConfig format
	for name, builtin := range builtinAgents {
		toolsCopy := make([]string, len(builtin.ToolNamespaces))
		copy(toolsCopy, builtin.ToolNamespaces)
		result[name] = &AgentConfig{
			Type:               builtin.Type,
			Description:        builtin.Description,
			ToolNamespaces:     toolsCopy,
			CustomInstructions: builtin.CustomInstructions,
			ModelProfile:       builtin.ModelProfile,
			Orchestrator:       builtin.Orchestrator,
		}
	}

	// Then, override with user-defined agents (or add new ones)
	for name, userAgent := range userAgents {
		agentCopy := userAgent // Create a copy
		result[name] = &agentCopy
	}

	return result
}

// mergeLLMProviders merges built-in and user-defined model profile configurations.
// User-defined profiles override built-in profiles with the same name.
func mergeLLMProviders(builtinProviders map[string]LLMProviderConfig, userProviders map[string]LLMProviderConfig) map[string]*LLMProviderConfig {
	result := make(map[string]*LLMProviderConfig)

	for name, provider := range builtinProviders {
		providerCopy := provider
		result[name] = &providerCopy
	}

	for name, userProvider := range userProviders {
		providerCopy := userProvider
		result[name] = &providerCopy
	}

	return result
}
