package pipeline

import (
	"context"
	"time"

	"github.com/resumeforge/pipeline/ent"
	"github.com/resumeforge/pipeline/pkg/agent"
	"github.com/resumeforge/pipeline/pkg/agent/orchestrator"
	"github.com/resumeforge/pipeline/pkg/config"
)

// defaultOrchestratorGuardrails is used when neither defaults.orchestrator
// nor the section_writer agent's own Orchestrator block sets a field.
var defaultOrchestratorGuardrails = orchestrator.OrchestratorGuardrails{
	MaxConcurrentAgents: 3,
	AgentTimeout:        5 * time.Minute,
	MaxBudget:           20 * time.Minute,
}

// resolveOrchestratorGuardrails merges defaults.orchestrator with the
// section_writer agent's own Orchestrator override, agent-level values
// winning field by field.
func resolveOrchestratorGuardrails(defaults *config.Defaults, agentCfg *config.AgentConfig) orchestrator.OrchestratorGuardrails {
	g := defaultOrchestratorGuardrails
	if defaults != nil && defaults.Orchestrator != nil {
		applyOrchestratorOverride(&g, defaults.Orchestrator)
	}
	if agentCfg != nil {
		applyOrchestratorOverride(&g, agentCfg.Orchestrator)
	}
	return g
}

func applyOrchestratorOverride(g *orchestrator.OrchestratorGuardrails, override *config.OrchestratorConfig) {
	if override == nil {
		return
	}
	if override.MaxConcurrentAgents != nil {
		g.MaxConcurrentAgents = *override.MaxConcurrentAgents
	}
	if override.AgentTimeout != nil {
		g.AgentTimeout = *override.AgentTimeout
	}
	if override.MaxBudget != nil {
		g.MaxBudget = *override.MaxBudget
	}
}

// wrapOrchestratorTools builds a SubAgentRunner and wraps inner (the
// section_writer role's own bound tools) in a CompositeToolExecutor that
// additionally dispatches dispatch_agent/cancel_agent/list_agents. Returns
// the wrapped executor, the result collector the Agent Loop drains between
// rounds, and a cleanup func the caller must run once the orchestrator
// execution finishes (cancels any still-running sub-agents and waits for
// them to return).
//
// ctx must be the session-level context the coordinator holds for the
// whole stage execution, not a per-iteration context: sub-agent goroutines
// dispatched mid-round must outlive the round that dispatched them.
func (e *RealStageExecutor) wrapOrchestratorTools(
	ctx context.Context,
	sess *ent.Session,
	stg *ent.Stage,
	execRow *ent.AgentExecution,
	resolvedCfg *agent.ResolvedAgentConfig,
	agentCfg *config.AgentConfig,
	inner agent.ToolExecutor,
) (agent.ToolExecutor, agent.SubAgentResultCollector, func(), error) {
	guardrails := resolveOrchestratorGuardrails(e.cfg.Defaults, agentCfg)

	deps := &orchestrator.SubAgentDeps{
		Config:       resolvedCfg,
		AgentFactory: e.agentFactory,
		ToolRegistry: e.toolRegistry,

		LLMClient:      e.llmClient,
		EventPublisher: e.eventPublisher,
		PromptBuilder:  e.promptBuilder,

		StageService:       e.stageService,
		TimelineService:    e.services.Timeline,
		MessageService:     e.services.Message,
		InteractionService: e.services.Interaction,

		Masker: e.services.Masker,

		Gate:   e.gateWaiter,
		Events: e.emitter,
		State:  e.stateReader,

		IntakeData: sess.IntakeData,
	}

	runner := orchestrator.NewSubAgentRunner(ctx, deps, execRow.ID, sess.ID, stg.ID, &guardrails)
	composite := orchestrator.NewCompositeToolExecutor(inner, runner)
	collector := orchestrator.NewResultCollector(runner)

	cleanup := func() { _ = composite.Close() }

	return composite, collector, cleanup, nil
}
