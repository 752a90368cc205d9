package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/resumeforge/pipeline/pkg/agent"
	"github.com/resumeforge/pipeline/pkg/config"
	"github.com/resumeforge/pipeline/pkg/events"
	"github.com/resumeforge/pipeline/pkg/models"
	"github.com/resumeforge/pipeline/pkg/services"
	testdb "github.com/resumeforge/pipeline/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Channel mechanics tests (no DB) ────────────────────────────────────────

func TestSubAgentRunner_TryGetNext_Empty(t *testing.T) {
	r := newMinimalRunner(1)
	result, ok := r.TryGetNext()
	assert.Nil(t, result)
	assert.False(t, ok)
}

func TestSubAgentRunner_TryGetNext_WithResult(t *testing.T) {
	r := newMinimalRunner(1)
	atomic.StoreInt32(&r.pending, 1)
	r.resultsCh <- &SubAgentResult{
		ExecutionID: "exec-1",
		AgentName:   "summary",
		Status:      agent.ExecutionStatusCompleted,
		Result:      "done",
	}

	result, ok := r.TryGetNext()
	require.True(t, ok)
	assert.Equal(t, "exec-1", result.ExecutionID)
	assert.Equal(t, agent.ExecutionStatusCompleted, result.Status)
	assert.False(t, r.HasPending())
}

func TestSubAgentRunner_WaitForNext_GetsResult(t *testing.T) {
	r := newMinimalRunner(1)
	atomic.StoreInt32(&r.pending, 1)

	go func() {
		time.Sleep(50 * time.Millisecond)
		r.resultsCh <- &SubAgentResult{
			ExecutionID: "exec-2",
			Status:      agent.ExecutionStatusCompleted,
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := r.WaitForNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "exec-2", result.ExecutionID)
	assert.False(t, r.HasPending())
}

func TestSubAgentRunner_WaitForNext_ContextCancelled(t *testing.T) {
	r := newMinimalRunner(1)
	atomic.StoreInt32(&r.pending, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := r.WaitForNext(ctx)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubAgentRunner_HasPending(t *testing.T) {
	r := newMinimalRunner(5)
	assert.False(t, r.HasPending())

	atomic.StoreInt32(&r.pending, 3)
	assert.True(t, r.HasPending())

	atomic.StoreInt32(&r.pending, 0)
	assert.False(t, r.HasPending())
}

func TestSubAgentRunner_CancelAll_WaitAll(t *testing.T) {
	r := newMinimalRunner(5)

	cancelled := make(chan struct{})
	ctx, ctxCancel := context.WithCancel(context.Background())
	defer ctxCancel()

	exec1 := &subAgentExecution{
		executionID: "exec-1",
		status:      agent.ExecutionStatusActive,
		cancel: func() {
			close(cancelled)
		},
		done: make(chan struct{}),
	}
	r.mu.Lock()
	r.executions["exec-1"] = exec1
	r.mu.Unlock()

	// Simulate goroutine completing after cancel
	go func() {
		<-cancelled
		close(exec1.done)
	}()

	r.CancelAll()

	select {
	case <-cancelled:
		// cancel was called
	case <-time.After(time.Second):
		t.Fatal("cancel was not called within timeout")
	}

	r.WaitAll(ctx)
	// If we get here, WaitAll returned successfully
}

func TestSubAgentRunner_WaitAll_ContextTimeout(t *testing.T) {
	r := newMinimalRunner(1)
	exec := &subAgentExecution{
		executionID: "stuck",
		status:      agent.ExecutionStatusActive,
		cancel:      func() {},
		done:        make(chan struct{}), // never closes
	}
	r.mu.Lock()
	r.executions["stuck"] = exec
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r.WaitAll(ctx)
	// Should return after timeout without hanging
}

// ─── Dispatch validation tests (no DB) ──────────────────────────────────────

func TestSubAgentRunner_Dispatch_MaxConcurrentExceeded(t *testing.T) {
	r := newMinimalRunner(1)

	// Pre-populate with an active execution to hit the limit
	r.mu.Lock()
	r.executions["existing"] = &subAgentExecution{
		executionID: "existing",
		status:      agent.ExecutionStatusActive,
	}
	r.mu.Unlock()

	_, err := r.Dispatch(context.Background(), "summary", "some task")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxConcurrentAgents)
}

// ─── Dispatch integration tests (test DB + mock agent) ──────────────────────

func TestSubAgentRunner_Dispatch_Success(t *testing.T) {
	ctx := context.Background()
	runner, cleanup := setupIntegrationRunner(t, func(_ context.Context) (*agent.ExecutionResult, error) {
		return &agent.ExecutionResult{
			Status:        agent.ExecutionStatusCompleted,
			FinalAnalysis: "drafted the summary section",
		}, nil
	})
	defer cleanup()

	execID, err := runner.Dispatch(ctx, "summary", "draft the summary section")
	require.NoError(t, err)
	assert.NotEmpty(t, execID)

	result, err := runner.WaitForNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, execID, result.ExecutionID)
	assert.Equal(t, "summary", result.AgentName)
	assert.Equal(t, "draft the summary section", result.Task)
	assert.Equal(t, agent.ExecutionStatusCompleted, result.Status)
	assert.Equal(t, "drafted the summary section", result.Result)
	assert.Empty(t, result.Error)
	assert.False(t, runner.HasPending())
}

func TestSubAgentRunner_Dispatch_AgentFailure(t *testing.T) {
	ctx := context.Background()
	runner, cleanup := setupIntegrationRunner(t, func(_ context.Context) (*agent.ExecutionResult, error) {
		return &agent.ExecutionResult{
			Status: agent.ExecutionStatusFailed,
			Error:  fmt.Errorf("LLM call failed"),
		}, nil
	})
	defer cleanup()

	execID, err := runner.Dispatch(ctx, "experience", "draft the experience section")
	require.NoError(t, err)

	result, err := runner.WaitForNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, execID, result.ExecutionID)
	assert.Equal(t, agent.ExecutionStatusFailed, result.Status)
}

func TestSubAgentRunner_Dispatch_AgentError(t *testing.T) {
	ctx := context.Background()
	runner, cleanup := setupIntegrationRunner(t, func(_ context.Context) (*agent.ExecutionResult, error) {
		return nil, fmt.Errorf("infrastructure failure")
	})
	defer cleanup()

	_, err := runner.Dispatch(ctx, "education", "draft the education section")
	require.NoError(t, err)

	result, err := runner.WaitForNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, agent.ExecutionStatusFailed, result.Status)
	assert.Contains(t, result.Error, "infrastructure failure")
}

func TestSubAgentRunner_Dispatch_Timeout(t *testing.T) {
	ctx := context.Background()
	runner, cleanup := setupIntegrationRunner(t, func(runCtx context.Context) (*agent.ExecutionResult, error) {
		<-runCtx.Done() // blocks until timeout
		return nil, runCtx.Err()
	})
	defer cleanup()
	runner.guardrails.AgentTimeout = 200 * time.Millisecond

	_, err := runner.Dispatch(ctx, "skills", "draft the skills section")
	require.NoError(t, err)

	result, err := runner.WaitForNext(ctx)
	require.NoError(t, err)
	// The agent sees DeadlineExceeded and maps to TimedOut or Cancelled
	assert.Contains(t, []agent.ExecutionStatus{
		agent.ExecutionStatusTimedOut,
		agent.ExecutionStatusCancelled,
		agent.ExecutionStatusFailed,
	}, result.Status)
}

func TestSubAgentRunner_Cancel_RunningAgent(t *testing.T) {
	ctx := context.Background()
	started := make(chan struct{})
	runner, cleanup := setupIntegrationRunner(t, func(runCtx context.Context) (*agent.ExecutionResult, error) {
		close(started)
		<-runCtx.Done()
		return nil, runCtx.Err()
	})
	defer cleanup()

	execID, err := runner.Dispatch(ctx, "summary", "cancellable task")
	require.NoError(t, err)

	// Wait for the agent to start
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not start in time")
	}

	status, err := runner.Cancel(execID)
	require.NoError(t, err)
	assert.Equal(t, "cancellation requested", status)

	result, err := runner.WaitForNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, execID, result.ExecutionID)
	assert.Contains(t, []agent.ExecutionStatus{
		agent.ExecutionStatusCancelled,
		agent.ExecutionStatusFailed,
	}, result.Status)
}

func TestSubAgentRunner_Cancel_NotFound(t *testing.T) {
	r := newMinimalRunner(5)
	_, err := r.Cancel("nonexistent")
	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestSubAgentRunner_Cancel_AlreadyCompleted(t *testing.T) {
	r := newMinimalRunner(5)
	r.mu.Lock()
	r.executions["done-exec"] = &subAgentExecution{
		executionID: "done-exec",
		status:      agent.ExecutionStatusCompleted,
		cancel:      func() {},
		done:        make(chan struct{}),
	}
	r.mu.Unlock()

	status, err := r.Cancel("done-exec")
	require.NoError(t, err)
	assert.Contains(t, status, "already completed")
}

func TestSubAgentRunner_List(t *testing.T) {
	r := newMinimalRunner(5)
	r.mu.Lock()
	r.executions["e1"] = &subAgentExecution{
		executionID: "e1", agentName: "summary", task: "task A",
		status: agent.ExecutionStatusActive,
	}
	r.executions["e2"] = &subAgentExecution{
		executionID: "e2", agentName: "experience", task: "task B",
		status: agent.ExecutionStatusCompleted,
	}
	r.mu.Unlock()

	statuses := r.List()
	assert.Len(t, statuses, 2)

	found := make(map[string]SubAgentStatus)
	for _, s := range statuses {
		found[s.ExecutionID] = s
	}
	assert.Equal(t, agent.ExecutionStatusActive, found["e1"].Status)
	assert.Equal(t, agent.ExecutionStatusCompleted, found["e2"].Status)
}

// ─── Concurrent dispatch + result collection (integration) ──────────────────

func TestSubAgentRunner_Dispatch_ConcurrentMultipleAgents(t *testing.T) {
	ctx := context.Background()
	runner, cleanup := setupIntegrationRunner(t, func(_ context.Context) (*agent.ExecutionResult, error) {
		time.Sleep(50 * time.Millisecond) // simulate brief work
		return &agent.ExecutionResult{
			Status:        agent.ExecutionStatusCompleted,
			FinalAnalysis: "done",
		}, nil
	})
	defer cleanup()

	sections := []string{"summary", "experience", "skills"}
	execIDs := make([]string, len(sections))
	for i, section := range sections {
		id, err := runner.Dispatch(ctx, section, fmt.Sprintf("draft the %s section", section))
		require.NoError(t, err)
		execIDs[i] = id
	}

	// Collect all results
	collected := make(map[string]*SubAgentResult, len(sections))
	for range sections {
		result, err := runner.WaitForNext(ctx)
		require.NoError(t, err)
		collected[result.ExecutionID] = result
	}

	assert.Len(t, collected, len(sections))
	for _, id := range execIDs {
		r, ok := collected[id]
		require.True(t, ok, "missing result for %s", id)
		assert.Equal(t, agent.ExecutionStatusCompleted, r.Status)
	}
	assert.False(t, runner.HasPending())
}

// ─── DB record verification (integration) ───────────────────────────────────

func TestSubAgentRunner_Dispatch_SetsAgentRole(t *testing.T) {
	ctx := context.Background()
	runner, cleanup := setupIntegrationRunner(t, func(_ context.Context) (*agent.ExecutionResult, error) {
		return &agent.ExecutionResult{
			Status:        agent.ExecutionStatusCompleted,
			FinalAnalysis: "verified",
		}, nil
	})
	defer cleanup()

	execID, err := runner.Dispatch(ctx, "summary", "check DB linkage")
	require.NoError(t, err)

	// Wait for the sub-agent to complete
	_, err = runner.WaitForNext(ctx)
	require.NoError(t, err)

	// Verify the DB record encodes the sub-agent identity as
	// "section_writer:<section>", since there is no separate parent/task
	// linkage column on agent_executions.
	dbExec, err := runner.deps.StageService.GetAgentExecutionByID(ctx, execID)
	require.NoError(t, err)
	assert.Equal(t, "section_writer:summary", dbExec.AgentRole)
}

// ─── CancelAll idempotent ───────────────────────────────────────────────────

func TestSubAgentRunner_CancelAll_Idempotent(t *testing.T) {
	r := newMinimalRunner(5)
	r.mu.Lock()
	r.executions["e1"] = &subAgentExecution{
		executionID: "e1",
		status:      agent.ExecutionStatusActive,
		cancel:      func() {},
		done:        make(chan struct{}),
	}
	r.mu.Unlock()

	// First call closes closeCh and cancels
	r.CancelAll()
	// Second call must not panic (closeCh already closed)
	r.CancelAll()
}

// ─── FormatSubAgentResult ───────────────────────────────────────────────────

func TestFormatSubAgentResult_Completed(t *testing.T) {
	msg := FormatSubAgentResult(&SubAgentResult{
		ExecutionID: "exec-1",
		AgentName:   "summary",
		Status:      agent.ExecutionStatusCompleted,
		Result:      "Experienced backend engineer...",
	})
	assert.Equal(t, agent.RoleUser, msg.Role)
	assert.Contains(t, msg.Content, "[Sub-agent completed]")
	assert.Contains(t, msg.Content, "summary")
	assert.Contains(t, msg.Content, "Experienced backend engineer")
}

func TestFormatSubAgentResult_Failed(t *testing.T) {
	msg := FormatSubAgentResult(&SubAgentResult{
		ExecutionID: "exec-2",
		AgentName:   "education",
		Status:      agent.ExecutionStatusFailed,
		Error:       "connection refused",
	})
	assert.Equal(t, agent.RoleUser, msg.Role)
	assert.Contains(t, msg.Content, "[Sub-agent failed]")
	assert.Contains(t, msg.Content, "connection refused")
}

// ─── Test helpers ───────────────────────────────────────────────────────────

// newMinimalRunner creates a SubAgentRunner with no DB deps. Suitable for
// channel mechanics and validation tests that don't call Dispatch against a
// real backend.
func newMinimalRunner(maxConcurrent int) *SubAgentRunner {
	return NewSubAgentRunner(
		context.Background(),
		&SubAgentDeps{
			Config: &agent.ResolvedAgentConfig{
				AgentName: "section_writer",
				Type:      config.AgentTypeDefault,
			},
		},
		"parent-exec", "session-1", "stage-1",
		&OrchestratorGuardrails{
			MaxConcurrentAgents: maxConcurrent,
			AgentTimeout:        5 * time.Minute,
			MaxBudget:           10 * time.Minute,
		},
	)
}

// mockControllerFactory returns a factory that produces controllers
// calling resultFn when Run is invoked. resultFn receives ctx so tests
// can respect context cancellation/timeout.
type mockControllerFactory struct {
	resultFn func(ctx context.Context) (*agent.ExecutionResult, error)
}

func (f *mockControllerFactory) CreateController(_ config.AgentType, _ *agent.ExecutionContext) (agent.Controller, error) {
	return &mockController{resultFn: f.resultFn}, nil
}

type mockController struct {
	resultFn func(ctx context.Context) (*agent.ExecutionResult, error)
}

func (c *mockController) Run(ctx context.Context, _ *agent.ExecutionContext, _ string) (*agent.ExecutionResult, error) {
	return c.resultFn(ctx)
}

// Compile-time check that noopEventPublisher satisfies agent.EventPublisher.
var _ agent.EventPublisher = noopEventPublisher{}

// noopEventPublisher satisfies agent.EventPublisher with no-ops.
type noopEventPublisher struct{}

func (noopEventPublisher) PublishTimelineCreated(_ context.Context, _ string, _ events.TimelineCreatedPayload) error {
	return nil
}
func (noopEventPublisher) PublishTimelineCompleted(_ context.Context, _ string, _ events.TimelineCompletedPayload) error {
	return nil
}
func (noopEventPublisher) PublishStreamChunk(_ context.Context, _ string, _ events.StreamChunkPayload) error {
	return nil
}
func (noopEventPublisher) PublishSessionStatus(_ context.Context, _ string, _ events.SessionStatusPayload) error {
	return nil
}
func (noopEventPublisher) PublishStageStatus(_ context.Context, _ string, _ events.StageStatusPayload) error {
	return nil
}
func (noopEventPublisher) PublishGateOpened(_ context.Context, _ string, _ events.GateOpenedPayload) error {
	return nil
}
func (noopEventPublisher) PublishExecutionProgress(_ context.Context, _ string, _ events.ExecutionProgressPayload) error {
	return nil
}
func (noopEventPublisher) PublishInteractionCreated(_ context.Context, _ string, _ events.InteractionCreatedPayload) error {
	return nil
}

// setupIntegrationRunner creates a fully wired SubAgentRunner backed by the
// test database. resultFn controls what the mock agent returns.
func setupIntegrationRunner(
	t *testing.T,
	resultFn func(ctx context.Context) (*agent.ExecutionResult, error),
) (*SubAgentRunner, func()) {
	t.Helper()

	dbClient := testdb.NewTestClient(t)
	ctx := context.Background()

	stageService := services.NewStageService(dbClient.Client)
	timelineService := services.NewTimelineService(dbClient.Client)
	messageService := services.NewMessageService(dbClient.Client)
	interactionService := services.NewInteractionService(dbClient.Client, messageService)
	sessionService := services.NewSessionService(dbClient.Client)

	session, err := sessionService.CreateSession(ctx, models.CreateSessionRequest{
		OwnerUserID: "test-owner",
		IntakeData:  "resume text and job description go here",
	})
	require.NoError(t, err)

	// CreateSession creates a bootstrap "intake" stage + execution. Query
	// them with edges and reuse the execution as the parent orchestrator
	// execution for these tests — its actual role doesn't matter here.
	stages, err := stageService.GetStagesBySession(ctx, session.ID, true)
	require.NoError(t, err)
	require.NotEmpty(t, stages)
	stageID := stages[0].ID

	executions, err := stageService.GetAgentExecutions(ctx, stageID)
	require.NoError(t, err)
	require.NotEmpty(t, executions)
	parentExecID := executions[0].ID

	agentFactory := agent.NewAgentFactory(&mockControllerFactory{resultFn: resultFn})

	deps := &SubAgentDeps{
		Config: &agent.ResolvedAgentConfig{
			AgentName:       "section_writer",
			Type:            config.AgentTypeDefault,
			LLMProviderName: "primary",
		},
		AgentFactory:       agentFactory,
		ToolRegistry:       nil, // sub-agents get a stub tool executor
		LLMClient:          nil, // controller is mocked, LLM not called
		EventPublisher:     noopEventPublisher{},
		PromptBuilder:      nil,
		StageService:       stageService,
		TimelineService:    timelineService,
		MessageService:     messageService,
		InteractionService: interactionService,
		IntakeData:         "resume text and job description go here",
	}

	runner := NewSubAgentRunner(
		context.Background(),
		deps,
		parentExecID,
		session.ID,
		stageID,
		&OrchestratorGuardrails{
			MaxConcurrentAgents: 5,
			AgentTimeout:        30 * time.Second,
			MaxBudget:           60 * time.Second,
		},
	)

	return runner, func() {}
}
