// Package pipeline implements the Pipeline Coordinator: the worker loop
// that walks one admitted session through the fixed stage graph, pausing at
// gates and routing revision cycles, the way the queue worker's poll/
// claim/execute/heartbeat loop once drove a config-defined chain.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/resumeforge/pipeline/ent"
	"github.com/resumeforge/pipeline/ent/session"
	"github.com/resumeforge/pipeline/pkg/capacity"
	"github.com/resumeforge/pipeline/pkg/config"
	"github.com/resumeforge/pipeline/pkg/events"
	"github.com/resumeforge/pipeline/pkg/gate"
	"github.com/resumeforge/pipeline/pkg/models"
	"github.com/resumeforge/pipeline/pkg/revision"
	"github.com/resumeforge/pipeline/pkg/services"
)

// Coordinator owns a pool of worker goroutines, each independently polling
// for an admitted session and driving it to completion or suspension.
type Coordinator struct {
	podID          string
	config         *config.CapacityConfig
	client         *ent.Client
	admitter       *capacity.Admitter
	sessionService *services.SessionService
	stageService   *services.StageService
	gates          *gate.Coordinator
	revisions      *revision.Controller
	artifacts      *ArtifactStore
	publisher      *events.EventPublisher
	executor       StageExecutor

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]context.CancelFunc

	metrics TokenMetricsRecorder
}

// TokenMetricsRecorder is the subset of pkg/metrics.Metrics the Coordinator
// needs, kept as an interface so this package doesn't import the metrics
// package directly. A nil recorder (the default) just skips reporting.
type TokenMetricsRecorder interface {
	AddTokenUsage(promptTokens, completionTokens int64)
}

// SetMetricsRecorder wires a token-usage sink, normally pkg/metrics.Metrics,
// so every stage and revision execution's usage is reflected in /metrics in
// addition to the session's own durable token ledger.
func (c *Coordinator) SetMetricsRecorder(m TokenMetricsRecorder) {
	c.metrics = m
}

// recordTokens folds one execution's usage into the session's durable token
// ledger and, if a recorder is wired, the pod-wide metrics counters.
func (c *Coordinator) recordTokens(snapshot *models.PipelineSnapshot, promptTokens, completionTokens int64) {
	if promptTokens == 0 && completionTokens == 0 {
		return
	}
	snapshot.Tokens.PromptTokens += promptTokens
	snapshot.Tokens.CompletionTokens += completionTokens
	if c.metrics != nil {
		c.metrics.AddTokenUsage(promptTokens, completionTokens)
	}
}

// New creates a Coordinator. executor supplies the actual per-stage agent
// work; everything else in this package is graph traversal, admission, and
// suspension bookkeeping around it.
func New(
	podID string,
	cfg *config.CapacityConfig,
	client *ent.Client,
	admitter *capacity.Admitter,
	sessionService *services.SessionService,
	stageService *services.StageService,
	gates *gate.Coordinator,
	revisions *revision.Controller,
	artifacts *ArtifactStore,
	publisher *events.EventPublisher,
	executor StageExecutor,
) *Coordinator {
	return &Coordinator{
		podID:          podID,
		config:         cfg,
		client:         client,
		admitter:       admitter,
		sessionService: sessionService,
		stageService:   stageService,
		gates:          gates,
		revisions:      revisions,
		artifacts:      artifacts,
		publisher:      publisher,
		executor:       executor,
		stopCh:         make(chan struct{}),
		sessions:       make(map[string]context.CancelFunc),
	}
}

// Start launches config.WorkerCount polling goroutines.
func (c *Coordinator) Start(ctx context.Context) {
	for i := 0; i < c.config.WorkerCount; i++ {
		c.wg.Add(1)
		go c.run(ctx, i)
	}
}

// Stop signals every worker to finish its current session and return.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// Cancel aborts a specific in-flight session, used by the HTTP cancel
// route.
func (c *Coordinator) Cancel(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cancel, ok := c.sessions[sessionID]
	if ok {
		cancel()
	}
	return ok
}

// ErrBenchmarkRebuildConfirmRequired is returned by RequestReplan when a
// benchmark-assumption edit arrives after section writing has already
// started. Rewinding in place at that point would throw away drafted
// sections silently, so the caller must re-submit with confirmRebuild=true
// (and then drive a Restart) rather than have the rewind happen implicitly.
var ErrBenchmarkRebuildConfirmRequired = errors.New("pipeline: replan past section writing requires confirm_rebuild")

// RequestReplan announces a mid-run benchmark-assumption change. Before
// section writing has started, it records the request as the "requested"
// phase of a ReplanState and lets driveSession pick it up at the next
// stage-boundary checkpoint, where it rewinds to gap_analysis. Once section
// writing has started, an in-place rewind would discard drafted sections, so
// it instead reports ErrBenchmarkRebuildConfirmRequired unless confirmRebuild
// is set, in which case it reports that a full Restart is required.
func (c *Coordinator) RequestReplan(ctx context.Context, sessionID, reason string, confirmRebuild bool) (restartRequired bool, err error) {
	sess, err := c.client.Session.Get(ctx, sessionID)
	if err != nil {
		if ent.IsNotFound(err) {
			return false, services.ErrNotFound
		}
		return false, fmt.Errorf("pipeline: failed to load session for replan: %w", err)
	}
	snapshot := models.LoadPipelineSnapshot(sess)

	writingIdx := indexOf(models.StageSectionWriting)
	currentIdx := indexOf(snapshot.CurrentStage)
	pastWriting := writingIdx >= 0 && currentIdx >= writingIdx

	if pastWriting {
		if !confirmRebuild {
			return false, ErrBenchmarkRebuildConfirmRequired
		}
		return true, nil
	}

	snapshot.Replan = &models.ReplanState{
		Phase:       models.ReplanRequested,
		RequestedAt: time.Now(),
		Reason:      reason,
	}
	c.persist(ctx, sessionID, &snapshot)
	if c.publisher != nil {
		_ = c.publisher.PublishWorkflowReplanRequested(ctx, sessionID, events.WorkflowReplanPayload{
			Type:      "workflow_replan_requested",
			SessionID: sessionID,
			Reason:    reason,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
	return false, nil
}

// Restart resets a session back to its first stage using its original
// intake data, for the case where RequestReplan reported restartRequired
// (a benchmark edit arriving after section writing has already started).
// The session is left idle so the next worker poll picks it up fresh.
func (c *Coordinator) Restart(ctx context.Context, sessionID string) error {
	fresh := models.NewPipelineSnapshot()
	c.persist(ctx, sessionID, &fresh)
	if err := c.client.Session.UpdateOneID(sessionID).
		SetPipelineStatus(session.PipelineStatusIdle).
		ClearCompletedAt().
		ClearErrorMessage().
		ClearPendingGate().
		ClearPendingGateData().
		Exec(ctx); err != nil {
		if ent.IsNotFound(err) {
			return services.ErrNotFound
		}
		return fmt.Errorf("pipeline: failed to reset session for restart: %w", err)
	}
	return nil
}

// checkpointReplan runs at each stage boundary in driveSession. It advances
// a requested replan into in_progress (rewinding to gap_analysis) and, once
// the rewound gap_analysis stage has re-executed, flips in_progress to
// completed so the suspended downstream path resumes normally.
func (c *Coordinator) checkpointReplan(ctx context.Context, sessionID string, snapshot *models.PipelineSnapshot, justExecuted models.StageKey) (rewound bool) {
	if snapshot.Replan == nil {
		return false
	}
	switch snapshot.Replan.Phase {
	case models.ReplanRequested:
		snapshot.Replan.Phase = models.ReplanInProgress
		snapshot.CurrentStage = models.StageGapAnalysis
		c.persist(ctx, sessionID, snapshot)
		if c.publisher != nil {
			_ = c.publisher.PublishWorkflowReplanStarted(ctx, sessionID, events.WorkflowReplanPayload{
				Type:      "workflow_replan_started",
				SessionID: sessionID,
				Reason:    snapshot.Replan.Reason,
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			})
		}
		return true
	case models.ReplanInProgress:
		if justExecuted == models.StageGapAnalysis {
			snapshot.Replan.Phase = models.ReplanCompleted
			c.persist(ctx, sessionID, snapshot)
			if c.publisher != nil {
				_ = c.publisher.PublishWorkflowReplanCompleted(ctx, sessionID, events.WorkflowReplanPayload{
					Type:      "workflow_replan_completed",
					SessionID: sessionID,
					Reason:    snapshot.Replan.Reason,
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
				})
			}
		}
	}
	return false
}

func (c *Coordinator) run(ctx context.Context, workerIdx int) {
	defer c.wg.Done()
	log := slog.With("pod_id", c.podID, "worker", workerIdx)

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := c.pollAndDrive(ctx); err != nil {
			if errors.Is(err, capacity.ErrAtCapacity) || errors.Is(err, capacity.ErrNoSessionsAvailable) {
				c.sleep(c.pollInterval())
				continue
			}
			log.Error("pipeline worker error", "error", err)
			c.sleep(time.Second)
			continue
		}
	}
}

func (c *Coordinator) sleep(d time.Duration) {
	select {
	case <-c.stopCh:
	case <-time.After(d):
	}
}

func (c *Coordinator) pollInterval() time.Duration {
	jitter := time.Duration(0)
	if c.config.PollIntervalJitter > 0 {
		jitter = time.Duration(rand.Int64N(int64(c.config.PollIntervalJitter)))
	}
	return c.config.PollInterval + jitter
}

// pollAndDrive claims the oldest idle session, admits it against the
// capacity caps, and drives it through the stage graph.
func (c *Coordinator) pollAndDrive(ctx context.Context) error {
	sess, err := c.sessionService.ClaimNextPendingSession(ctx, c.podID)
	if err != nil {
		return fmt.Errorf("failed to claim session: %w", err)
	}
	if sess == nil {
		return capacity.ErrNoSessionsAvailable
	}

	// TryAdmit fails open: a DB error during the capacity check admits the
	// session rather than erroring, so the only non-nil error path here is
	// defensive and should not in practice be hit.
	admitted, err := c.admitter.TryAdmit(ctx, sess.ID, sess.OwnerUserID)
	if err != nil {
		return fmt.Errorf("failed to admit session: %w", err)
	}
	if !admitted {
		// Claimed but over capacity: put it back to idle for the next poll.
		_ = c.sessionService.UpdateSessionStatus(ctx, sess.ID, session.PipelineStatusIdle)
		return capacity.ErrAtCapacity
	}
	defer func() { _ = c.admitter.Release(context.Background(), sess.ID) }()
	defer c.gates.Forget(sess.ID)

	sessionCtx, cancel := context.WithTimeout(ctx, c.config.SessionTimeout)
	defer cancel()

	c.mu.Lock()
	c.sessions[sess.ID] = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.sessions, sess.ID)
		c.mu.Unlock()
	}()

	heartbeatCtx, stopHeartbeat := context.WithCancel(sessionCtx)
	defer stopHeartbeat()
	go c.runHeartbeat(heartbeatCtx, sess.ID)

	c.driveSession(sessionCtx, sess)
	return nil
}

func (c *Coordinator) runHeartbeat(ctx context.Context, sessionID string) {
	ticker := time.NewTicker(c.config.OrphanThreshold / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.admitter.Heartbeat(ctx, sessionID)
		}
	}
}

// driveSession walks snapshot.CurrentStage forward through models.StageGraph,
// persisting the snapshot after every node, suspending on gates, and
// routing the revision cycle off StageQualityReview.
func (c *Coordinator) driveSession(ctx context.Context, sess *ent.Session) {
	log := slog.With("session_id", sess.ID, "pod_id", c.podID)
	snapshot := models.LoadPipelineSnapshot(sess)
	snapshot.Status = models.PipelineRunning

	if err := c.sessionService.UpdateSessionStatus(ctx, sess.ID, session.PipelineStatusRunning); err != nil {
		log.Error("failed to mark session running", "error", err)
		return
	}

	prevContext := snapshot.Scratchpads["_prev_context"]
	prevContextStr, _ := prevContext.(string)

	stageIdx := indexOf(snapshot.CurrentStage)
	if stageIdx < 0 {
		stageIdx = 0
	}

	for stageIdx < len(models.StageGraph) {
		select {
		case <-ctx.Done():
			c.fail(ctx, sess.ID, &snapshot, ctx.Err())
			return
		default:
		}

		stageKey := models.StageGraph[stageIdx]
		snapshot.CurrentStage = stageKey
		c.persist(ctx, sess.ID, &snapshot)

		outcome, err := c.executor.ExecuteStage(ctx, sess, stageKey, &snapshot, prevContextStr)
		if err != nil {
			c.fail(ctx, sess.ID, &snapshot, err)
			return
		}

		if outcome.Artifact != nil {
			if _, err := c.artifacts.Put(ctx, sess.ID, string(stageKey), artifactTypeFor(stageKey), outcome.Artifact); err != nil {
				log.Error("failed to persist stage artifact", "stage", stageKey, "error", err)
			}
		}
		c.recordTokens(&snapshot, outcome.PromptTokens, outcome.CompletionTokens)

		// The end of a stage's own execution is the "next safe checkpoint"
		// a pending replan waits for: rewind to gap_analysis here, before
		// this stage's gate (if any) or its normal advance runs.
		if c.checkpointReplan(ctx, sess.ID, &snapshot, stageKey) {
			stageIdx = indexOf(snapshot.CurrentStage)
			if stageIdx < 0 {
				stageIdx = 0
			}
			continue
		}

		if g := outcome.Gate; g != nil || gateStages[stageKey] {
			if g == nil {
				g = &models.Gate{Name: string(stageKey), OpenedAt: time.Now()}
			}
			if !c.awaitGate(ctx, sess, &snapshot, *g) {
				return
			}
			if snapshot.CurrentStage != stageKey {
				// awaitGate rewound the pipeline (e.g. architect_review
				// reject -> gap_analysis); restart the loop from there
				// instead of falling through to this stage's own outcome.
				stageIdx = indexOf(snapshot.CurrentStage)
				if stageIdx < 0 {
					stageIdx = 0
				}
				continue
			}
		}

		if stageKey == models.StageQualityReview && len(outcome.RevisionInstructions) > 0 {
			if !c.runRevisionCycle(ctx, sess, &snapshot, outcome.RevisionInstructions) {
				return
			}
			// After revision, re-run quality review rather than advancing.
			continue
		}

		if outcome.Rewind != "" {
			snapshot.CurrentStage = outcome.Rewind
			stageIdx = indexOf(outcome.Rewind)
			if stageIdx < 0 {
				stageIdx = 0
			}
			c.persist(ctx, sess.ID, &snapshot)
			continue
		}

		prevContextStr = outcome.Context
		snapshot.Scratchpads["_prev_context"] = prevContextStr
		stageIdx++
	}

	snapshot.CurrentStage = models.StageComplete
	snapshot.Status = models.PipelineComplete
	c.persist(ctx, sess.ID, &snapshot)
	if err := c.sessionService.UpdateSessionStatus(ctx, sess.ID, session.PipelineStatusComplete); err != nil {
		log.Error("failed to mark session complete", "error", err)
	}
}

// awaitGate opens g and blocks the worker goroutine until it is resolved.
// It returns false if the wait was aborted (context cancelled or the
// session must stop being driven by this call).
func (c *Coordinator) awaitGate(ctx context.Context, sess *ent.Session, snapshot *models.PipelineSnapshot, g models.Gate) bool {
	if err := c.gates.Open(ctx, sess.ID, g); err != nil {
		c.fail(ctx, sess.ID, snapshot, err)
		return false
	}

	decision, err := c.gates.Await(ctx, sess.ID, snapshot, g.Name, g.ToolCallID)
	if err != nil {
		c.fail(ctx, sess.ID, snapshot, err)
		return false
	}

	if !decision.Approve {
		if g.Name == string(models.StageArchitectReview) {
			snapshot.CurrentStage = models.StageGapAnalysis
		}
	} else {
		snapshot.ApprovedSections = append(snapshot.ApprovedSections, g.Name)
	}
	c.persist(ctx, sess.ID, snapshot)
	return true
}

// runRevisionCycle plans, reserves, and executes each admitted revision
// instruction in turn, capped and filtered by the Revision Controller.
func (c *Coordinator) runRevisionCycle(ctx context.Context, sess *ent.Session, snapshot *models.PipelineSnapshot, instructions []models.RevisionInstruction) bool {
	plan := c.revisions.Plan(ctx, sess.ID, snapshot, instructions)
	for _, inst := range plan {
		if !c.revisions.TryReserve(sess.ID, inst.TargetSection) {
			continue
		}
		outcome, err := c.executor.ExecuteRevision(ctx, sess, snapshot, inst)
		c.revisions.Release(sess.ID, inst.TargetSection)
		if err != nil {
			c.fail(ctx, sess.ID, snapshot, err)
			return false
		}
		if outcome.Artifact != nil {
			if _, err := c.artifacts.Put(ctx, sess.ID, inst.TargetSection, models.ArtifactTypeSectionDraft, outcome.Artifact); err != nil {
				slog.Error("failed to persist revision artifact", "section", inst.TargetSection, "error", err)
			}
		}
		c.recordTokens(snapshot, outcome.PromptTokens, outcome.CompletionTokens)
	}
	c.persist(ctx, sess.ID, snapshot)
	return true
}

func (c *Coordinator) fail(ctx context.Context, sessionID string, snapshot *models.PipelineSnapshot, err error) {
	snapshot.Status = models.PipelineError
	snapshot.LastErrorMessage = err.Error()
	c.persist(context.Background(), sessionID, snapshot)
	if updateErr := c.client.Session.UpdateOneID(sessionID).
		SetPipelineStatus(session.PipelineStatusError).
		SetCompletedAt(time.Now()).
		SetErrorMessage(err.Error()).
		Exec(context.Background()); updateErr != nil {
		slog.Error("failed to record session failure", "session_id", sessionID, "error", updateErr)
	}
}

func (c *Coordinator) persist(ctx context.Context, sessionID string, snapshot *models.PipelineSnapshot) {
	raw, err := snapshot.ToMetadata()
	if err != nil {
		slog.Error("failed to marshal pipeline snapshot", "session_id", sessionID, "error", err)
		return
	}
	if err := c.client.Session.UpdateOneID(sessionID).
		SetPipelineStage(string(snapshot.CurrentStage)).
		SetSessionMetadata(raw).
		Exec(ctx); err != nil {
		slog.Error("failed to persist pipeline snapshot", "session_id", sessionID, "error", err)
	}
}

func indexOf(stageKey models.StageKey) int {
	for i, s := range models.StageGraph {
		if s == stageKey {
			return i
		}
	}
	return -1
}

func artifactTypeFor(stageKey models.StageKey) string {
	switch stageKey {
	case models.StagePositioning:
		return models.ArtifactTypePositioningProfile
	case models.StageResearch:
		return models.ArtifactTypeResearchBundle
	case models.StageGapAnalysis:
		return models.ArtifactTypeGapAnalysis
	case models.StageArchitect:
		return models.ArtifactTypeBlueprint
	case models.StageSectionWriting:
		return models.ArtifactTypeSectionDraft
	case models.StageQualityReview:
		return models.ArtifactTypeQualityScores
	default:
		return string(stageKey)
	}
}
