package pipeline

import (
	"context"

	"github.com/resumeforge/pipeline/ent"
	"github.com/resumeforge/pipeline/pkg/models"
)

// StageOutcome is what a StageExecutor reports back to the Coordinator
// after running one node of the stage graph to completion.
type StageOutcome struct {
	// Artifact, if non-nil, is persisted by the Coordinator through the
	// ArtifactStore under the node's canonical artifact type.
	Artifact map[string]any

	// Gate, if non-nil, tells the Coordinator to suspend the session on
	// this gate and await a human decision before continuing.
	Gate *models.Gate

	// RevisionInstructions carries a Quality Reviewer's requested edits;
	// only populated when stage == StageQualityReview.
	RevisionInstructions []models.RevisionInstruction

	// Rewind, if non-empty, tells the Coordinator to jump back to this
	// stage instead of advancing forward (the architect_review reject
	// edge always rewinds to StageGapAnalysis).
	Rewind models.StageKey

	// Context is the formatted text handed to the next stage's agent as
	// PrevStageArtifacts.
	Context string

	// PromptTokens and CompletionTokens carry this execution's share of the
	// session's token ledger, folded into the snapshot by the Coordinator.
	PromptTokens     int64
	CompletionTokens int64
}

// StageExecutor runs one pipeline stage's agent (or fan-out of agents) to
// completion. A Coordinator calls it once per stage graph node and, for
// revision cycles, once per admitted RevisionInstruction.
type StageExecutor interface {
	ExecuteStage(ctx context.Context, session *ent.Session, stageKey models.StageKey, snapshot *models.PipelineSnapshot, prevContext string) (*StageOutcome, error)

	// ExecuteRevision reruns the section_writing agent for a single
	// section against one admitted revision instruction.
	ExecuteRevision(ctx context.Context, session *ent.Session, snapshot *models.PipelineSnapshot, inst models.RevisionInstruction) (*StageOutcome, error)
}

// gateStages names the stage graph nodes that always suspend on a gate
// before the pipeline may continue, regardless of what the StageExecutor
// itself reports. The Quality Review gate is conditional on the Quality
// Reviewer stage reporting it: a quality score that clears the bar skips
// the gate and moves straight to completion.
var gateStages = map[models.StageKey]bool{
	models.StageArchitectReview: true,
	models.StageSectionReview:   true,
}
