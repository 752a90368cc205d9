package models

import (
	"encoding/json"
	"time"

	"github.com/resumeforge/pipeline/ent"
)

// StageKey identifies one node in the fixed resume pipeline graph.
type StageKey string

const (
	StageIntake          StageKey = "intake"
	StagePositioning     StageKey = "positioning"
	StageResearch        StageKey = "research"
	StageGapAnalysis     StageKey = "gap_analysis"
	StageArchitect       StageKey = "architect"
	StageArchitectReview StageKey = "architect_review"
	StageSectionWriting  StageKey = "section_writing"
	StageSectionReview   StageKey = "section_review"
	StageQualityReview   StageKey = "quality_review"
	StageRevision        StageKey = "revision"
	StageComplete        StageKey = "complete"
)

// StageGraph is the fixed, ordered list of primary pipeline nodes. Revision
// is a cycle off quality_review, not a forward edge, and complete is the
// terminal status rather than a node the Coordinator schedules work for.
var StageGraph = []StageKey{
	StageIntake,
	StagePositioning,
	StageResearch,
	StageGapAnalysis,
	StageArchitect,
	StageArchitectReview,
	StageSectionWriting,
	StageSectionReview,
	StageQualityReview,
}

// PipelineStatus is the coarse lifecycle state of a session.
type PipelineStatus string

const (
	PipelineIdle     PipelineStatus = "idle"
	PipelineRunning  PipelineStatus = "running"
	PipelineError    PipelineStatus = "error"
	PipelineComplete PipelineStatus = "complete"
)

// ReplanPhase tracks a mid-run benchmark-assumption change through its three
// durable phases. A nil *ReplanState on the snapshot means no replan is in
// flight.
type ReplanPhase string

const (
	ReplanRequested  ReplanPhase = "requested"
	ReplanInProgress ReplanPhase = "in_progress"
	ReplanCompleted  ReplanPhase = "completed"
)

// ReplanState is the durable record of one replan traversal.
type ReplanState struct {
	Phase       ReplanPhase `json:"phase"`
	RequestedAt time.Time   `json:"requested_at"`
	Reason      string      `json:"reason,omitempty"`
}

// Gate describes one paused point in the pipeline awaiting a human
// decision. Identity is (gate name, tool_call_id): a gate is satisfied
// exactly once, and any response that doesn't match the currently pending
// (name, tool_call_id) pair is buffered rather than applied, in case the
// client answered before the pending-gate event reached it.
type Gate struct {
	Name       string         `json:"name"`
	ToolCallID string         `json:"tool_call_id"`
	Payload    map[string]any `json:"payload"`
	OpenedAt   time.Time      `json:"opened_at"`
}

// RevisionPriority classifies a revision instruction's urgency. Only "high"
// priority instructions are ever dispatched.
type RevisionPriority string

const (
	RevisionPriorityHigh   RevisionPriority = "high"
	RevisionPriorityMedium RevisionPriority = "medium"
	RevisionPriorityLow    RevisionPriority = "low"
)

// RevisionInstruction is one requested edit to a section, emitted by the
// Quality Reviewer on the Agent Bus and filtered by the Revision Controller.
type RevisionInstruction struct {
	TargetSection string           `json:"target_section"`
	Issue         string           `json:"issue"`
	Instruction   string           `json:"instruction"`
	Priority      RevisionPriority `json:"priority"`
}

// RevisionCap is the maximum number of revision cycles any one section may
// consume across the life of a session.
const RevisionCap = 3

// RevisionCounts tracks, per section key, how many revision cycles have
// been spent. The cap is enforced by the Revision Controller reading this
// map; callers must not reset it except by explicit operator action, and a
// reloaded session with no revision_counts key is treated as all-zero.
type RevisionCounts map[string]int

// TokenLedger accumulates prompt/completion token usage for the whole
// pipeline run, independent of which stage or agent spent them.
type TokenLedger struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// PipelineSnapshot is the durable, JSON-encoded companion to a Session row,
// carried in its session_metadata column. It holds every piece of Pipeline
// State that has no natural home in a dedicated Session column: approved
// sections, revision counters, the token ledger, per-agent scratchpad
// references, and in-flight replan state.
type PipelineSnapshot struct {
	CurrentStage      StageKey            `json:"current_stage"`
	Status            PipelineStatus      `json:"status"`
	ApprovedSections  []string            `json:"approved_sections"`
	RevisionCounts    RevisionCounts      `json:"revision_counts"`
	Tokens            TokenLedger         `json:"tokens"`
	Replan            *ReplanState        `json:"replan,omitempty"`
	Scratchpads       map[string]any      `json:"scratchpads,omitempty"`
	BufferedResponses map[string]any      `json:"buffered_responses,omitempty"`
	LastErrorMessage  string              `json:"last_error_message,omitempty"`
}

// NewPipelineSnapshot returns the zero-value snapshot for a freshly created
// session, parked at the first stage.
func NewPipelineSnapshot() PipelineSnapshot {
	return PipelineSnapshot{
		CurrentStage:       StageIntake,
		Status:             PipelineIdle,
		ApprovedSections:   []string{},
		RevisionCounts:     RevisionCounts{},
		BufferedResponses:  map[string]any{},
		Scratchpads:        map[string]any{},
	}
}

// LoadPipelineSnapshot decodes a Session row's session_metadata JSON blob
// back into a PipelineSnapshot, falling back to a fresh snapshot if the
// session predates the field or the stored value is malformed.
func LoadPipelineSnapshot(sess *ent.Session) PipelineSnapshot {
	if sess.SessionMetadata == nil {
		return NewPipelineSnapshot()
	}
	raw, err := json.Marshal(sess.SessionMetadata)
	if err != nil {
		return NewPipelineSnapshot()
	}
	var snapshot PipelineSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return NewPipelineSnapshot()
	}
	if snapshot.RevisionCounts == nil {
		snapshot.RevisionCounts = RevisionCounts{}
	}
	if snapshot.BufferedResponses == nil {
		snapshot.BufferedResponses = map[string]any{}
	}
	if snapshot.Scratchpads == nil {
		snapshot.Scratchpads = map[string]any{}
	}
	return snapshot
}

// ToMetadata re-encodes the snapshot as the map[string]any shape ent's
// SetSessionMetadata expects.
func (p *PipelineSnapshot) ToMetadata() (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// RevisionCountFor returns the snapshot's counter for a section, treating a
// nil map (a session restored before revision counting existed) as all
// sections at zero rather than panicking.
func (p *PipelineSnapshot) RevisionCountFor(section string) int {
	if p.RevisionCounts == nil {
		return 0
	}
	return p.RevisionCounts[section]
}

// IncrementRevisionCount lazily initializes the map on first use, per the
// "reloaded without revision_counts is treated as empty" invariant.
func (p *PipelineSnapshot) IncrementRevisionCount(section string) int {
	if p.RevisionCounts == nil {
		p.RevisionCounts = RevisionCounts{}
	}
	p.RevisionCounts[section]++
	return p.RevisionCounts[section]
}

// IsSectionApproved reports whether a section is already in the approved
// set (revision filter 2).
func (p *PipelineSnapshot) IsSectionApproved(section string) bool {
	for _, s := range p.ApprovedSections {
		if s == section {
			return true
		}
	}
	return false
}

// Artifact is one versioned output produced by a pipeline stage: a
// blueprint, a section draft, a quality-review verdict. Versions are
// monotonic per (session, node key, artifact type) and never overwritten;
// the highest version is authoritative.
type Artifact struct {
	ID           int64          `json:"id"`
	SessionID    string         `json:"session_id"`
	NodeKey      string         `json:"node_key"`
	ArtifactType string         `json:"artifact_type"`
	Version      int            `json:"version"`
	Payload      map[string]any `json:"payload"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Artifact type constants used as the ArtifactType discriminator.
const (
	ArtifactTypePositioningProfile = "positioning_profile"
	ArtifactTypeResearchBundle     = "research_bundle"
	ArtifactTypeGapAnalysis        = "gap_analysis"
	ArtifactTypeBlueprint          = "blueprint"
	ArtifactTypeSectionDraft       = "section_draft"
	ArtifactTypeQualityScores      = "quality_scores"
	ArtifactTypeParsedResume       = "parsed_resume"
)

// EvidenceItem is a situation/action/result triple: the grounding for every
// claim the Section Writer makes. metrics_defensible and user_validated are
// independent flags — evidence can be user-validated without having a
// quantified scope metric, and vice versa during drafting.
type EvidenceItem struct {
	ID                string   `json:"id"`
	Situation         string   `json:"situation"`
	Action            string   `json:"action"`
	Result            string   `json:"result"`
	MetricsDefensible bool     `json:"metrics_defensible"`
	UserValidated     bool     `json:"user_validated"`
	ScopeMetrics      []string `json:"scope_metrics,omitempty"`
	Requirements      []string `json:"requirements,omitempty"` // requirement IDs this evidence addresses
}

// RequirementClass is the gap-analysis verdict for one job requirement.
type RequirementClass string

const (
	RequirementStrong  RequirementClass = "strong"
	RequirementPartial RequirementClass = "partial"
	RequirementGap     RequirementClass = "gap"
)

// Requirement is one testable ask extracted from the job description during
// research, classified during gap analysis against the evidence bank.
type Requirement struct {
	ID                   string           `json:"id"`
	Text                 string           `json:"text"`
	Class                RequirementClass `json:"class"`
	Unaddressable        bool             `json:"unaddressable,omitempty"`
	Evidence             []string         `json:"evidence,omitempty"` // EvidenceItem IDs
	StrengthenInstruction string          `json:"strengthen_instruction,omitempty"`
	MitigationInstruction string          `json:"mitigation_instruction,omitempty"`
}
