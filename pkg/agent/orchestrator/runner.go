package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/resumeforge/pipeline/ent/agentexecution"
	"github.com/resumeforge/pipeline/pkg/agent"
	"github.com/resumeforge/pipeline/pkg/models"
	"github.com/resumeforge/pipeline/pkg/tools"
)

// SubAgentRunner manages the lifecycle of section-writer sub-agent
// goroutines within the section_writer orchestrator execution. It provides
// push-based result delivery (via a buffered channel) and lifecycle
// management (cancel, wait).
type SubAgentRunner struct {
	mu         sync.Mutex
	executions map[string]*subAgentExecution

	// Bounds concurrent sub-agents at MaxConcurrentAgents. Acquired in
	// Dispatch before the sub-agent goroutine starts, released in
	// completeSubAgent once it finishes — so a slot stays held for the
	// sub-agent's whole lifetime, not just its registration.
	sem *semaphore.Weighted

	// Buffered channel for completed sub-agent results.
	// Capacity = MaxConcurrentAgents to prevent goroutine blocking.
	resultsCh chan *SubAgentResult

	// Closed during CancelAll to signal goroutines that the orchestrator is
	// shutting down and results should be dropped. Individual sub-agent
	// cancellations still deliver their result to resultsCh.
	closeCh chan struct{}

	// Atomic count of sub-agents whose results have not yet been consumed.
	pending int32

	// parentCtx is the session-level context used to derive sub-agent contexts.
	// Sub-agent goroutines must NOT use the per-iteration context from
	// executeToolCall (which is cancelled at the end of each iteration).
	parentCtx context.Context

	deps         *SubAgentDeps
	parentExecID string
	sessionID    string
	stageID      string

	// Atomic counter for sub-agent agent_index (starts at 1).
	nextSubAgentIndex int32

	guardrails *OrchestratorGuardrails
}

// NewSubAgentRunner creates a runner for managing section-writer sub-agents
// within the orchestrator execution. parentCtx should be the session-level
// context (not a per-iteration context) so sub-agent goroutines outlive
// individual orchestrator iterations.
func NewSubAgentRunner(
	parentCtx context.Context,
	deps *SubAgentDeps,
	parentExecID string,
	sessionID string,
	stageID string,
	guardrails *OrchestratorGuardrails,
) *SubAgentRunner {
	return &SubAgentRunner{
		executions:   make(map[string]*subAgentExecution),
		sem:          semaphore.NewWeighted(int64(guardrails.MaxConcurrentAgents)),
		resultsCh:    make(chan *SubAgentResult, guardrails.MaxConcurrentAgents),
		closeCh:      make(chan struct{}),
		parentCtx:    parentCtx,
		deps:         deps,
		parentExecID: parentExecID,
		sessionID:    sessionID,
		stageID:      stageID,
		guardrails:   guardrails,
	}
}

// Dispatch starts a sub-agent to draft the named section. Returns
// immediately with the execution ID. The sub-agent result will be delivered
// to the results channel when the goroutine finishes. section is a
// blueprint-derived section name (e.g. "summary"), not a config lookup key —
// there is only one sub-agent role, section_writer, and section identifies
// which instance of it this is.
func (r *SubAgentRunner) Dispatch(ctx context.Context, section, task string) (string, error) {
	// TryAcquire is non-blocking: a full house fails the dispatch immediately
	// rather than queuing the caller behind a running sub-agent.
	if !r.sem.TryAcquire(1) {
		return "", fmt.Errorf("%w: limit is %d", ErrMaxConcurrentAgents, r.guardrails.MaxConcurrentAgents)
	}

	// Released on any error path below. On success it's released once the
	// sub-agent goroutine finishes, in completeSubAgent.
	acquired := true
	defer func() {
		if acquired {
			r.sem.Release(1)
		}
	}()

	agentIndex := int(atomic.AddInt32(&r.nextSubAgentIndex, 1))
	resolvedConfig := r.deps.Config

	exec, err := r.deps.StageService.CreateAgentExecution(ctx, models.CreateAgentExecutionRequest{
		StageID:      r.stageID,
		SessionID:    r.sessionID,
		AgentRole:    fmt.Sprintf("section_writer:%s", section),
		AgentIndex:   agentIndex,
		ModelProfile: resolvedConfig.LLMProviderName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create sub-agent execution record: %w", err)
	}
	executionID := exec.ID

	if updateErr := r.deps.StageService.UpdateAgentExecutionStatus(
		ctx, executionID, agentexecution.StatusActive, "",
	); updateErr != nil {
		slog.Warn("Failed to mark sub-agent execution as active",
			"execution_id", executionID, "error", updateErr)
	}

	subCtx, cancel := context.WithTimeout(r.parentCtx, r.guardrails.AgentTimeout)

	subExec := &subAgentExecution{
		executionID: executionID,
		agentName:   section,
		task:        task,
		status:      agent.ExecutionStatusActive,
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	r.mu.Lock()
	r.executions[executionID] = subExec
	r.mu.Unlock()

	atomic.AddInt32(&r.pending, 1)

	// The semaphore slot now transfers to the goroutine, which releases it
	// via completeSubAgent when the sub-agent finishes.
	acquired = false
	go r.runSubAgent(subCtx, cancel, subExec, resolvedConfig, agentIndex)

	return executionID, nil
}

// runSubAgent executes a sub-agent in a goroutine and delivers the result.
func (r *SubAgentRunner) runSubAgent(
	ctx context.Context,
	cancel context.CancelFunc,
	exec *subAgentExecution,
	resolvedConfig *agent.ResolvedAgentConfig,
	agentIndex int,
) {
	defer cancel()
	defer close(exec.done)

	logger := slog.With(
		"parent_exec_id", r.parentExecID,
		"sub_exec_id", exec.executionID,
		"section", exec.agentName,
	)

	toolExecutor := r.createSubAgentToolExecutor(exec, resolvedConfig, logger)
	defer func() { _ = toolExecutor.Close() }()

	execCtx := &agent.ExecutionContext{
		SessionID:          r.sessionID,
		StageID:            r.stageID,
		ExecutionID:        exec.executionID,
		AgentName:          exec.agentName,
		AgentIndex:         agentIndex,
		IntakeData:         r.deps.IntakeData,
		PrevStageArtifacts: exec.task,
		Config:             resolvedConfig,
		LLMClient:          r.deps.LLMClient,
		ToolExecutor:       toolExecutor,
		EventPublisher:     r.deps.EventPublisher,
		PromptBuilder:      r.deps.PromptBuilder,
		Services: &agent.ServiceBundle{
			Timeline:    r.deps.TimelineService,
			Message:     r.deps.MessageService,
			Interaction: r.deps.InteractionService,
			Stage:       r.deps.StageService,
			Masker:      r.deps.Masker,
		},
	}

	agentInstance, err := r.deps.AgentFactory.CreateAgent(execCtx)
	if err != nil {
		logger.Error("Failed to create sub-agent", "error", err)
		r.completeSubAgent(exec, agent.ExecutionStatusFailed, "", err.Error())
		return
	}

	result, err := agentInstance.Execute(ctx, execCtx, "")
	if err != nil {
		status := agent.ExecutionStatusFailed
		if ctx.Err() == context.DeadlineExceeded {
			status = agent.ExecutionStatusTimedOut
		} else if ctx.Err() != nil {
			status = agent.ExecutionStatusCancelled
		}
		logger.Error("Sub-agent execution error", "error", err, "resolved_status", status)
		r.completeSubAgent(exec, status, "", err.Error())
		return
	}

	// BaseAgent wraps controller errors in result.Error (returning (result, nil)).
	var errMsg string
	if result.Error != nil {
		errMsg = result.Error.Error()
	}
	r.completeSubAgent(exec, result.Status, result.FinalAnalysis, errMsg)
}

// completeSubAgent updates the execution record and delivers the result.
func (r *SubAgentRunner) completeSubAgent(
	exec *subAgentExecution,
	status agent.ExecutionStatus,
	finalAnalysis string,
	errMsg string,
) {
	r.mu.Lock()
	exec.status = status
	r.mu.Unlock()

	r.sem.Release(1)

	entStatus := mapToEntStatus(status)
	if updateErr := r.deps.StageService.UpdateAgentExecutionStatus(
		context.Background(), exec.executionID, entStatus, errMsg,
	); updateErr != nil {
		slog.Warn("Failed to update sub-agent execution status",
			"execution_id", exec.executionID, "status", status, "error", updateErr)
	}

	result := &SubAgentResult{
		ExecutionID: exec.executionID,
		AgentName:   exec.agentName,
		Task:        exec.task,
		Status:      status,
		Result:      finalAnalysis,
		Error:       errMsg,
	}

	// Non-blocking on shutdown: if closeCh is closed (CancelAll during cleanup),
	// drop the result. The orchestrator is shutting down and won't consume it.
	// Individual sub-agent cancellations still deliver their result normally.
	select {
	case r.resultsCh <- result:
	case <-r.closeCh:
	}
}

// createSubAgentToolExecutor builds a ToolExecutor bound to the sub-agent's
// own tool_writing namespace. Falls back to a stub when the runner has no
// registry wired (unit tests with no DB/tool dependencies).
func (r *SubAgentRunner) createSubAgentToolExecutor(
	exec *subAgentExecution,
	resolvedConfig *agent.ResolvedAgentConfig,
	logger *slog.Logger,
) agent.ToolExecutor {
	if r.deps.ToolRegistry == nil {
		return agent.NewStubToolExecutor(nil)
	}
	tc := &tools.Context{
		SessionID:   r.sessionID,
		AgentRole:   exec.agentName,
		ExecutionID: exec.executionID,
		State:       r.deps.State,
		Gate:        r.deps.Gate,
		Events:      r.deps.Events,
		Scratchpad:  map[string]any{},
	}
	executor, err := tools.NewDispatchingExecutor(r.deps.ToolRegistry, resolvedConfig.ToolNamespaces, tc)
	if err != nil {
		logger.Warn("Failed to bind tool set for sub-agent, using stub", "error", err)
		return agent.NewStubToolExecutor(nil)
	}
	return executor
}

// TryGetNext returns a completed sub-agent result without blocking.
// Returns (nil, false) if no results are available.
func (r *SubAgentRunner) TryGetNext() (*SubAgentResult, bool) {
	select {
	case result := <-r.resultsCh:
		atomic.AddInt32(&r.pending, -1)
		return result, true
	default:
		return nil, false
	}
}

// WaitForNext blocks until a sub-agent result is available or the context
// is cancelled. Called when the LLM has no tool calls but sub-agents are
// still pending.
func (r *SubAgentRunner) WaitForNext(ctx context.Context) (*SubAgentResult, error) {
	select {
	case result := <-r.resultsCh:
		atomic.AddInt32(&r.pending, -1)
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HasPending returns true if any sub-agent results have not been consumed.
func (r *SubAgentRunner) HasPending() bool {
	return atomic.LoadInt32(&r.pending) > 0
}

// Cancel cancels a specific sub-agent by execution ID.
// Returns a human-readable status string.
func (r *SubAgentRunner) Cancel(executionID string) (string, error) {
	r.mu.Lock()
	exec, ok := r.executions[executionID]
	if !ok {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	if exec.status != agent.ExecutionStatusActive {
		status := exec.status
		r.mu.Unlock()
		return fmt.Sprintf("already %s", status), nil
	}
	r.mu.Unlock()

	exec.cancel()
	return "cancellation requested", nil
}

// List returns a snapshot of all dispatched sub-agents and their statuses.
func (r *SubAgentRunner) List() []SubAgentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]SubAgentStatus, 0, len(r.executions))
	for _, exec := range r.executions {
		statuses = append(statuses, SubAgentStatus{
			ExecutionID: exec.executionID,
			AgentName:   exec.agentName,
			Task:        exec.task,
			Status:      exec.status,
		})
	}
	return statuses
}

// CancelAll cancels all running sub-agent contexts and signals goroutines
// to drop undelivered results (via closeCh).
func (r *SubAgentRunner) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.closeCh:
		// already closed
	default:
		close(r.closeCh)
	}

	for _, exec := range r.executions {
		if exec.status == agent.ExecutionStatusActive && exec.cancel != nil {
			exec.cancel()
		}
	}
}

// WaitAll waits for all sub-agent goroutines to finish. Called during cleanup
// from CompositeToolExecutor.Close.
func (r *SubAgentRunner) WaitAll(ctx context.Context) {
	r.mu.Lock()
	execs := make([]*subAgentExecution, 0, len(r.executions))
	for _, exec := range r.executions {
		execs = append(execs, exec)
	}
	r.mu.Unlock()

	for _, exec := range execs {
		select {
		case <-exec.done:
		case <-ctx.Done():
			return
		}
	}
}

func mapToEntStatus(status agent.ExecutionStatus) agentexecution.Status {
	switch status {
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
