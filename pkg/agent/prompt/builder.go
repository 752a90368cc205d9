package prompt

import (
	"fmt"

	"github.com/resumeforge/pipeline/pkg/agent"
)

// PromptBuilder builds all prompt text for the Agent Loop. Stateless — all
// state comes from parameters — and therefore safe to share across every
// concurrent execution.
type PromptBuilder struct{}

// NewPromptBuilder creates a PromptBuilder.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildFunctionCallingMessages builds the initial conversation for a stage
// agent. Tools are bound natively on the LLM request (agent.GenerateInput.Tools)
// rather than described in text, so the user message carries only the
// intake data, prior-stage output, and this stage's task.
func (b *PromptBuilder) BuildFunctionCallingMessages(
	execCtx *agent.ExecutionContext,
	prevStageContext string,
) []agent.ConversationMessage {
	systemContent := b.ComposeInstructions(execCtx)

	var userContent string
	userContent += FormatIntakeSection(execCtx.IntakeData)
	userContent += "\n"
	userContent += FormatPriorStageSection(prevStageContext)
	userContent += "\n"
	userContent += analysisTask

	return []agent.ConversationMessage{
		{Role: agent.RoleSystem, Content: systemContent},
		{Role: agent.RoleUser, Content: userContent},
	}
}

// BuildForcedConclusionPrompt returns the prompt used to force a response
// once the per-execution iteration budget is exhausted.
func (b *PromptBuilder) BuildForcedConclusionPrompt(iteration int) string {
	return fmt.Sprintf(forcedConclusionTemplate, iteration, forcedConclusionFormat)
}

// BuildSummarizationSystemPrompt builds the system prompt for compressing
// an oversized tool result before it re-enters the conversation.
func (b *PromptBuilder) BuildSummarizationSystemPrompt(namespace, toolName string, maxSummaryTokens int) string {
	return fmt.Sprintf(toolSummarizationSystemTemplate, toolName, namespace, maxSummaryTokens)
}

// BuildSummarizationUserPrompt builds the user prompt for tool-result
// summarization.
func (b *PromptBuilder) BuildSummarizationUserPrompt(conversationContext, namespace, toolName, resultText string) string {
	return fmt.Sprintf(toolSummarizationUserTemplate, conversationContext, toolName, resultText)
}

// BuildFinalSummarySystemPrompt returns the system prompt for the short
// stage-completion summary.
func (b *PromptBuilder) BuildFinalSummarySystemPrompt() string {
	return finalSummarySystemPrompt
}

// BuildFinalSummaryUserPrompt builds the user prompt for the short
// stage-completion summary.
func (b *PromptBuilder) BuildFinalSummaryUserPrompt(finalOutput string) string {
	return fmt.Sprintf(finalSummaryUserTemplate, finalOutput)
}

// BuildScoringSystemPrompt returns the system prompt for the Quality
// Reviewer's score-extraction turn.
func (b *PromptBuilder) BuildScoringSystemPrompt() string {
	return scoringSystemPrompt
}

// BuildScoringInitialPrompt builds the user prompt opening the
// score-evaluation turn, prevStageContext being the drafted sections and
// their supporting artifacts.
func (b *PromptBuilder) BuildScoringInitialPrompt(prevStageContext, outputSchema string) string {
	return fmt.Sprintf(scoringInitialPrompt, prevStageContext, outputSchema)
}

// BuildScoringOutputSchemaReminderPrompt re-issues the score output format
// when a prior response didn't end with a parseable number.
func (b *PromptBuilder) BuildScoringOutputSchemaReminderPrompt(outputSchema string) string {
	return fmt.Sprintf(scoringOutputSchemaReminder, outputSchema)
}

// BuildScoringRevisionRequestPrompt asks the Quality Reviewer to turn any
// unresolved issues into structured per-section revision requests.
func (b *PromptBuilder) BuildScoringRevisionRequestPrompt() string {
	return scoringRevisionRequestPrompt
}

var _ agent.PromptBuilder = (*PromptBuilder)(nil)
