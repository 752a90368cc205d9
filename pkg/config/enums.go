package config

// AgentType determines what the agent does — drives controller selection and agent wrapper.
type AgentType string

const (
	AgentTypeDefault      AgentType = ""             // Regular stage agent (iterating controller)
	AgentTypeScoring      AgentType = "scoring"      // Evaluates a stage's output against a rubric (single-shot)
	AgentTypeOrchestrator AgentType = "orchestrator" // Fans out parallel sub-agents over the Agent Bus
)

// IsValid checks if the agent type is valid (empty string is valid — means default).
func (t AgentType) IsValid() bool {
	switch t {
	case AgentTypeDefault, AgentTypeScoring, AgentTypeOrchestrator:
		return true
	default:
		return false
	}
}

// SuccessPolicy defines success criteria for a stage with multiple agents.
type SuccessPolicy string

const (
	// SuccessPolicyAll requires all agents to succeed
	SuccessPolicyAll SuccessPolicy = "all"
	// SuccessPolicyAny requires at least one agent to succeed (default)
	SuccessPolicyAny SuccessPolicy = "any"
)

// IsValid checks if the success policy is valid
func (p SuccessPolicy) IsValid() bool {
	return p == SuccessPolicyAll || p == SuccessPolicyAny
}

// LLMProviderType defines supported LLM providers.
type LLMProviderType string

const (
	LLMProviderTypeGoogle    LLMProviderType = "google"
	LLMProviderTypeOpenAI    LLMProviderType = "openai"
	LLMProviderTypeAnthropic LLMProviderType = "anthropic"
	LLMProviderTypeXAI       LLMProviderType = "xai"
	LLMProviderTypeVertexAI  LLMProviderType = "vertexai"
)

// IsValid checks if the LLM provider type is valid.
func (t LLMProviderType) IsValid() bool {
	switch t {
	case LLMProviderTypeGoogle,
		LLMProviderTypeOpenAI,
		LLMProviderTypeAnthropic,
		LLMProviderTypeXAI,
		LLMProviderTypeVertexAI:
		return true
	default:
		return false
	}
}

// GoogleNativeTool defines Google/Gemini native tools. Only a model profile
// backed by a Google model is expected to enable any of these — the
// research stage's profile uses google_search to ground drafted claims
// against a live web search before they reach gap analysis.
type GoogleNativeTool string

const (
	GoogleNativeToolGoogleSearch  GoogleNativeTool = "google_search"
	GoogleNativeToolCodeExecution GoogleNativeTool = "code_execution"
	GoogleNativeToolURLContext    GoogleNativeTool = "url_context"
)

// IsValid checks if the Google native tool is valid.
func (t GoogleNativeTool) IsValid() bool {
	return t == GoogleNativeToolGoogleSearch ||
		t == GoogleNativeToolCodeExecution ||
		t == GoogleNativeToolURLContext
}
