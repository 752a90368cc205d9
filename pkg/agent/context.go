package agent

import (
	"context"
	"time"

	"github.com/resumeforge/pipeline/pkg/config"
	"github.com/resumeforge/pipeline/pkg/events"
	"github.com/resumeforge/pipeline/pkg/masking"
	"github.com/resumeforge/pipeline/pkg/services"
)

// ExecutionContext carries all dependencies and state needed by an agent
// during one Agent Loop run. Created by the Pipeline Coordinator for each
// stage/agent execution.
type ExecutionContext struct {
	// Identity
	SessionID   string
	StageID     string
	ExecutionID string
	AgentName   string
	AgentIndex  int

	// IntakeData is the original input packet (resume text + job
	// description), passed through verbatim — never parsed as structured
	// data by the loop itself.
	IntakeData string

	// PrevStageArtifacts is the set of artifacts the previous stage
	// produced, already formatted into prompt context by
	// pkg/agent/context.Formatter before the loop starts.
	PrevStageArtifacts string

	// Config is the fully-resolved configuration for this run.
	Config *ResolvedAgentConfig

	// Dependencies (injected by the coordinator).
	LLMClient      LLMClient
	ToolExecutor   ToolExecutor
	EventPublisher EventPublisher
	Services       *ServiceBundle

	// PromptBuilder is stateless and shared across executions.
	PromptBuilder PromptBuilder

	// SubAgentCollector delivers results from dispatched sub-agents back
	// into this execution's conversation. Only set for orchestrator-type
	// agents (section_writer); nil otherwise.
	SubAgentCollector SubAgentResultCollector

	// FailedTools maps tool namespace → error message for tools that
	// failed to register. Used by the prompt builder to warn the LLM.
	FailedTools map[string]string
}

// ServiceBundle groups all service dependencies needed during execution.
type ServiceBundle struct {
	Timeline    *services.TimelineService
	Message     *services.MessageService
	Interaction *services.InteractionService
	Stage       *services.StageService

	// Masker sanitises tool output before it is persisted or summarized.
	// Optional; nil means tool output is stored unmasked.
	Masker *masking.MaskingService
}

// ResolvedAgentConfig is the fully-resolved configuration for an agent
// execution. All hierarchy levels (defaults -> stage -> agent) have been
// applied.
type ResolvedAgentConfig struct {
	AgentName          string
	Type               config.AgentType
	LLMProvider        *config.LLMProviderConfig
	LLMProviderName    string
	MaxIterations      int
	IterationTimeout   time.Duration
	ToolNamespaces     []string
	CustomInstructions string
}

// PromptBuilder builds all prompt text for the Agent Loop controller.
// Implemented by prompt.PromptBuilder; defined as an interface here to
// avoid a circular import between pkg/agent and pkg/agent/prompt.
type PromptBuilder interface {
	BuildFunctionCallingMessages(execCtx *ExecutionContext, prevStageContext string) []ConversationMessage
	BuildForcedConclusionPrompt(iteration int) string
	BuildSummarizationSystemPrompt(namespace, toolName string, maxSummaryTokens int) string
	BuildSummarizationUserPrompt(conversationContext, namespace, toolName, resultText string) string
	BuildFinalSummarySystemPrompt() string
	BuildFinalSummaryUserPrompt(finalOutput string) string
	BuildScoringSystemPrompt() string
	BuildScoringInitialPrompt(prevStageContext, outputSchema string) string
	BuildScoringOutputSchemaReminderPrompt(outputSchema string) string
	BuildScoringRevisionRequestPrompt() string
}

// EventPublisher publishes events for SSE delivery to stream clients.
// Implemented by events.EventPublisher; defined as an interface here to
// avoid a circular import between pkg/agent and pkg/events and to enable
// testing with fakes.
type EventPublisher interface {
	PublishTimelineCreated(ctx context.Context, sessionID string, payload events.TimelineCreatedPayload) error
	PublishTimelineCompleted(ctx context.Context, sessionID string, payload events.TimelineCompletedPayload) error
	PublishStreamChunk(ctx context.Context, sessionID string, payload events.StreamChunkPayload) error
	PublishSessionStatus(ctx context.Context, sessionID string, payload events.SessionStatusPayload) error
	PublishStageStatus(ctx context.Context, sessionID string, payload events.StageStatusPayload) error
	PublishGateOpened(ctx context.Context, sessionID string, payload events.GateOpenedPayload) error
	PublishExecutionProgress(ctx context.Context, sessionID string, payload events.ExecutionProgressPayload) error
	PublishInteractionCreated(ctx context.Context, sessionID string, payload events.InteractionCreatedPayload) error
}
