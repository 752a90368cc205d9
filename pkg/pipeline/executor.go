package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/resumeforge/pipeline/ent"
	"github.com/resumeforge/pipeline/ent/agentexecution"
	"github.com/resumeforge/pipeline/pkg/agent"
	"github.com/resumeforge/pipeline/pkg/agent/controller"
	"github.com/resumeforge/pipeline/pkg/agent/prompt"
	"github.com/resumeforge/pipeline/pkg/config"
	"github.com/resumeforge/pipeline/pkg/events"
	"github.com/resumeforge/pipeline/pkg/gate"
	"github.com/resumeforge/pipeline/pkg/models"
	"github.com/resumeforge/pipeline/pkg/services"
	"github.com/resumeforge/pipeline/pkg/tools"
)

// agentRoleFor maps a stage graph node to the agent role name the
// AgentRegistry resolves configuration under. Every role but
// section_writer runs a single agent per stage; section_writer is an
// orchestrator role that fans out one sub-agent per resume section over
// the Agent Bus, handled inside the agent it creates rather than here.
func agentRoleFor(stageKey models.StageKey) string {
	switch stageKey {
	case models.StageIntake:
		return "intake"
	case models.StagePositioning:
		return "positioning"
	case models.StageResearch:
		return "research"
	case models.StageGapAnalysis:
		return "gap_analysis"
	case models.StageArchitect:
		return "architect"
	case models.StageSectionWriting:
		return "section_writer"
	case models.StageQualityReview:
		return "quality_review"
	default:
		return string(stageKey)
	}
}

// RealStageExecutor runs one stage's agent to completion via the Agent
// Loop, the same assembly worker.go's RealSessionExecutor used to do per
// chain stage, minus the config-defined chain: the role-to-stage mapping
// here is fixed code, not something a chain.yaml resolves.
type RealStageExecutor struct {
	cfg            *config.Config
	dbClient       *ent.Client
	llmClient      agent.LLMClient
	toolRegistry   *tools.Registry
	gateWaiter     tools.GateWaiter
	emitter        tools.Emitter
	stateReader    tools.StateReader
	eventPublisher agent.EventPublisher
	agentFactory   *agent.AgentFactory
	promptBuilder  *prompt.PromptBuilder
	stageService   *services.StageService
	services       *agent.ServiceBundle
}

// NewRealStageExecutor wires a StageExecutor against the live Agent Loop.
// toolRegistry is the immutable, coordinator-wide tool set; a fresh
// tools.DispatchingExecutor scoped to one session and agent role is built
// per execution in buildExecutionContext, since RealStageExecutor itself is
// shared across every session the pod is concurrently driving. publisher
// doubles as the agent.EventPublisher the Agent Loop streams through and as
// the backing transport for the tool-level Emitter, since
// *events.EventPublisher already satisfies both.
func NewRealStageExecutor(
	cfg *config.Config,
	dbClient *ent.Client,
	llmClient agent.LLMClient,
	toolRegistry *tools.Registry,
	gates *gate.Coordinator,
	publisher *events.EventPublisher,
	agentFactory *agent.AgentFactory,
	stageService *services.StageService,
	svcBundle *agent.ServiceBundle,
) *RealStageExecutor {
	return &RealStageExecutor{
		cfg:            cfg,
		dbClient:       dbClient,
		llmClient:      llmClient,
		toolRegistry:   toolRegistry,
		gateWaiter:     &toolGateWaiter{client: dbClient, gates: gates},
		emitter:        &toolEventEmitter{publisher: publisher},
		stateReader:    &toolStateReader{client: dbClient},
		eventPublisher: publisher,
		agentFactory:   agentFactory,
		promptBuilder:  prompt.NewPromptBuilder(),
		stageService:   stageService,
		services:       svcBundle,
	}
}

// ExecuteStage creates the Stage and AgentExecution rows for stageKey (the
// intake stage's rows already exist from session creation), runs its agent
// through the Agent Loop, and folds the result into a StageOutcome.
func (e *RealStageExecutor) ExecuteStage(ctx context.Context, sess *ent.Session, stageKey models.StageKey, snapshot *models.PipelineSnapshot, prevContext string) (*StageOutcome, error) {
	role := agentRoleFor(stageKey)

	stg, execRow, err := e.ensureStageAndExecution(ctx, sess.ID, stageKey, role)
	if err != nil {
		return nil, err
	}

	execCtx, cleanup, err := e.buildExecutionContext(ctx, sess, stg, execRow, role, prevContext)
	if err != nil {
		_ = e.stageService.UpdateAgentExecutionStatus(ctx, execRow.ID, agentexecution.StatusFailed, err.Error())
		return nil, err
	}
	defer cleanup()

	ag, err := e.agentFactory.CreateAgent(execCtx)
	if err != nil {
		_ = e.stageService.UpdateAgentExecutionStatus(ctx, execRow.ID, agentexecution.StatusFailed, err.Error())
		return nil, fmt.Errorf("failed to create agent for role %q: %w", role, err)
	}

	result, err := ag.Execute(ctx, execCtx, prevContext)
	if err != nil {
		_ = e.stageService.UpdateAgentExecutionStatus(ctx, execRow.ID, agentexecution.StatusFailed, err.Error())
		return nil, err
	}

	status := mapExecutionStatus(result.Status)
	errMsg := ""
	if result.Error != nil {
		errMsg = result.Error.Error()
	}
	if err := e.stageService.UpdateAgentExecutionStatus(ctx, execRow.ID, status, errMsg); err != nil {
		return nil, fmt.Errorf("failed to record agent execution status: %w", err)
	}
	if err := e.stageService.UpdateStageStatus(ctx, stg.ID); err != nil {
		return nil, fmt.Errorf("failed to recompute stage status: %w", err)
	}

	if result.Status != agent.ExecutionStatusCompleted {
		return nil, fmt.Errorf("stage %q agent did not complete: %s", stageKey, errMsg)
	}

	outcome := &StageOutcome{
		Context:          result.FinalAnalysis,
		PromptTokens:     int64(result.TokensUsed.InputTokens),
		CompletionTokens: int64(result.TokensUsed.OutputTokens),
	}

	// The Quality Reviewer reports its findings as ScoringResult JSON rather
	// than through tool calls; pull the admitted revision requests out of it
	// so the Coordinator can decide whether to run a revision cycle.
	if stageKey == models.StageQualityReview {
		var scored controller.ScoringResult
		if err := json.Unmarshal([]byte(result.FinalAnalysis), &scored); err != nil {
			slog.Error("failed to parse quality review result", "session_id", sess.ID, "error", err)
		} else {
			outcome.RevisionInstructions = scored.RevisionInstructions
		}
	}

	return outcome, nil
}

// ExecuteRevision reruns the section_writer role against a single admitted
// revision instruction, scoped to inst.TargetSection.
func (e *RealStageExecutor) ExecuteRevision(ctx context.Context, sess *ent.Session, snapshot *models.PipelineSnapshot, inst models.RevisionInstruction) (*StageOutcome, error) {
	stages, err := e.stageService.GetStagesBySession(ctx, sess.ID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load stages for revision: %w", err)
	}
	var writingStage *ent.Stage
	for _, s := range stages {
		if s.StageName == string(models.StageSectionWriting) {
			writingStage = s
		}
	}
	if writingStage == nil {
		return nil, fmt.Errorf("section_writing stage not found for session %s", sess.ID)
	}

	execRow, err := e.createAgentExecution(ctx, sess.ID, writingStage.ID, "section_writer:"+inst.TargetSection)
	if err != nil {
		return nil, err
	}

	execCtx, cleanup, err := e.buildExecutionContext(ctx, sess, writingStage, execRow, "section_writer", inst.Instruction)
	if err != nil {
		_ = e.stageService.UpdateAgentExecutionStatus(ctx, execRow.ID, agentexecution.StatusFailed, err.Error())
		return nil, err
	}
	defer cleanup()

	ag, err := e.agentFactory.CreateAgent(execCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to create revision agent: %w", err)
	}

	result, err := ag.Execute(ctx, execCtx, inst.Instruction)
	if err != nil {
		_ = e.stageService.UpdateAgentExecutionStatus(ctx, execRow.ID, agentexecution.StatusFailed, err.Error())
		return nil, err
	}

	status := mapExecutionStatus(result.Status)
	errMsg := ""
	if result.Error != nil {
		errMsg = result.Error.Error()
	}
	if err := e.stageService.UpdateAgentExecutionStatus(ctx, execRow.ID, status, errMsg); err != nil {
		return nil, fmt.Errorf("failed to record revision execution status: %w", err)
	}

	return &StageOutcome{
		Artifact: map[string]any{
			"section":     inst.TargetSection,
			"instruction": inst.Instruction,
			"content":     result.FinalAnalysis,
		},
		PromptTokens:     int64(result.TokensUsed.InputTokens),
		CompletionTokens: int64(result.TokensUsed.OutputTokens),
	}, nil
}

func (e *RealStageExecutor) ensureStageAndExecution(ctx context.Context, sessionID string, stageKey models.StageKey, role string) (*ent.Stage, *ent.AgentExecution, error) {
	existing, err := e.stageService.GetStagesBySession(ctx, sessionID, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load existing stages: %w", err)
	}
	for _, s := range existing {
		if s.StageName == string(stageKey) {
			if len(s.Edges.AgentExecutions) > 0 {
				return s, s.Edges.AgentExecutions[len(s.Edges.AgentExecutions)-1], nil
			}
			execRow, err := e.createAgentExecution(ctx, sessionID, s.ID, role)
			return s, execRow, err
		}
	}

	idx, err := e.stageService.GetMaxStageIndex(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compute next stage index: %w", err)
	}
	stg, err := e.stageService.CreateStage(ctx, models.CreateStageRequest{
		SessionID:          sessionID,
		StageName:          string(stageKey),
		StageIndex:         idx + 1,
		ExpectedAgentCount: 1,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create stage %q: %w", stageKey, err)
	}
	execRow, err := e.createAgentExecution(ctx, sessionID, stg.ID, role)
	return stg, execRow, err
}

func (e *RealStageExecutor) createAgentExecution(ctx context.Context, sessionID, stageID, role string) (*ent.AgentExecution, error) {
	agentCfg, err := e.resolveAgentConfig(role)
	if err != nil {
		return nil, err
	}
	return e.stageService.CreateAgentExecution(ctx, models.CreateAgentExecutionRequest{
		StageID:      stageID,
		SessionID:    sessionID,
		AgentRole:    role,
		AgentIndex:   1,
		ModelProfile: modelProfileName(agentCfg, e.cfg.Defaults),
	})
}

// buildExecutionContext resolves role's configuration and tool bindings
// into an agent.ExecutionContext. The returned cleanup func must be called
// (via defer) once the agent this context feeds has finished executing; for
// every role but section_writer it is a no-op, but section_writer's
// CompositeToolExecutor owns sub-agent goroutines that must be cancelled
// and waited on before the stage is considered done.
func (e *RealStageExecutor) buildExecutionContext(ctx context.Context, sess *ent.Session, stg *ent.Stage, execRow *ent.AgentExecution, role, prevContext string) (*agent.ExecutionContext, func(), error) {
	baseRole := role
	if idx := indexOfByte(role, ':'); idx >= 0 {
		baseRole = role[:idx]
	}

	agentCfg, err := e.resolveAgentConfig(baseRole)
	if err != nil {
		return nil, nil, err
	}

	resolved, err := e.resolveLLMProvider(agentCfg)
	if err != nil {
		return nil, nil, err
	}

	maxIter := 10
	if agentCfg.MaxIterations != nil {
		maxIter = *agentCfg.MaxIterations
	} else if e.cfg.Defaults.MaxIterations != nil {
		maxIter = *e.cfg.Defaults.MaxIterations
	}

	toolExecutor, err := e.newToolContext(sess.ID, baseRole, execRow.ID, agentCfg.ToolNamespaces)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to bind tools for role %q: %w", baseRole, err)
	}

	resolvedCfg := &agent.ResolvedAgentConfig{
		AgentName:          role,
		Type:               agentCfg.Type,
		LLMProvider:        resolved,
		LLMProviderName:    modelProfileName(agentCfg, e.cfg.Defaults),
		MaxIterations:      maxIter,
		IterationTimeout:   5 * time.Minute,
		ToolNamespaces:     agentCfg.ToolNamespaces,
		CustomInstructions: agentCfg.CustomInstructions,
	}

	execCtx := &agent.ExecutionContext{
		SessionID:          sess.ID,
		StageID:            stg.ID,
		ExecutionID:        execRow.ID,
		AgentName:          role,
		AgentIndex:         execRow.AgentIndex,
		IntakeData:         sess.IntakeData,
		PrevStageArtifacts: prevContext,
		Config:             resolvedCfg,
		LLMClient:          e.llmClient,
		ToolExecutor:       toolExecutor,
		EventPublisher:     e.eventPublisher,
		Services:           e.services,
		PromptBuilder:      e.promptBuilder,
	}

	cleanup := func() {}
	if baseRole == "section_writer" {
		composite, collector, orchestratorCleanup, err := e.wrapOrchestratorTools(ctx, sess, stg, execRow, resolvedCfg, agentCfg, toolExecutor)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to wire orchestrator tools: %w", err)
		}
		execCtx.ToolExecutor = composite
		execCtx.SubAgentCollector = collector
		cleanup = orchestratorCleanup
	}

	return execCtx, cleanup, nil
}

func (e *RealStageExecutor) resolveAgentConfig(role string) (*config.AgentConfig, error) {
	agentCfg, err := e.cfg.GetAgent(role)
	if err != nil {
		return nil, fmt.Errorf("no agent configuration for role %q: %w", role, err)
	}
	return agentCfg, nil
}

func (e *RealStageExecutor) resolveLLMProvider(agentCfg *config.AgentConfig) (*config.LLMProviderConfig, error) {
	name := modelProfileName(agentCfg, e.cfg.Defaults)
	provider, err := e.cfg.LLMProviderRegistry.Get(name)
	if err != nil {
		return nil, fmt.Errorf("no model profile %q: %w", name, err)
	}
	return provider, nil
}

func modelProfileName(agentCfg *config.AgentConfig, defaults *config.Defaults) string {
	if agentCfg.ModelProfile != "" {
		return agentCfg.ModelProfile
	}
	if defaults != nil && defaults.ModelProfile != "" {
		return defaults.ModelProfile
	}
	return "mid"
}

func mapExecutionStatus(s agent.ExecutionStatus) agentexecution.Status {
	switch s {
	case agent.ExecutionStatusCompleted:
		return agentexecution.StatusCompleted
	case agent.ExecutionStatusFailed:
		return agentexecution.StatusFailed
	case agent.ExecutionStatusTimedOut:
		return agentexecution.StatusTimedOut
	case agent.ExecutionStatusCancelled:
		return agentexecution.StatusCancelled
	default:
		return agentexecution.StatusFailed
	}
}

func indexOfByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
