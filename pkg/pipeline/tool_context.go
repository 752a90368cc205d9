package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/resumeforge/pipeline/ent"
	"github.com/resumeforge/pipeline/pkg/events"
	"github.com/resumeforge/pipeline/pkg/gate"
	"github.com/resumeforge/pipeline/pkg/models"
	"github.com/resumeforge/pipeline/pkg/tools"
)

// toolGateWaiter adapts gate.Coordinator to tools.GateWaiter for tool calls
// an agent makes mid-execution (interview_user, present_to_user), as
// opposed to the whole-stage confirmation gates driveSession opens itself.
// Both go through the same Coordinator, since a session has only one
// pending gate at a time regardless of who opened it.
type toolGateWaiter struct {
	client *ent.Client
	gates  *gate.Coordinator
}

func (w *toolGateWaiter) WaitForUser(ctx context.Context, sessionID, gateName string, payload map[string]any) (map[string]any, error) {
	sess, err := w.client.Session.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("tool gate: failed to load session: %w", err)
	}
	snapshot := models.LoadPipelineSnapshot(sess)

	// toolCallID doubles as the gate identity's second component here; a
	// tool-opened gate never overlaps another pending gate on the same
	// session, so the gate's own name is a sufficient, stable key.
	toolCallID := gateName

	if err := w.gates.Open(ctx, sessionID, models.Gate{
		Name:       gateName,
		ToolCallID: toolCallID,
		Payload:    payload,
		OpenedAt:   time.Now(),
	}); err != nil {
		return nil, fmt.Errorf("tool gate: failed to open: %w", err)
	}

	decision, err := w.gates.Await(ctx, sessionID, &snapshot, gateName, toolCallID)
	if err != nil {
		return nil, err
	}

	raw, err := snapshot.ToMetadata()
	if err == nil {
		_ = w.client.Session.UpdateOneID(sessionID).SetSessionMetadata(raw).Exec(ctx)
	}

	response := decision.Response
	if response == nil {
		response = map[string]any{}
	}
	response["approve"] = decision.Approve
	if decision.Reason != "" {
		response["reason"] = decision.Reason
	}
	return response, nil
}

// toolEventEmitter adapts events.EventPublisher to tools.Emitter. Tool
// emissions are a coarse progress signal ("evidence recorded", "requirement
// classified"), not a distinct event type of their own, so they ride the
// same execution.progress channel the Agent Loop uses for phase labels.
type toolEventEmitter struct {
	publisher *events.EventPublisher
}

func (e *toolEventEmitter) Emit(sessionID string, eventType string, payload map[string]any) {
	if e.publisher == nil {
		return
	}
	detail, _ := json.Marshal(payload)
	_ = e.publisher.PublishExecutionProgress(context.Background(), sessionID, events.ExecutionProgressPayload{
		Type:      "execution.progress",
		SessionID: sessionID,
		Phase:     eventType,
		Detail:    string(detail),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// toolStateReader adapts *ent.Client to tools.StateReader, giving a tool
// body read access to the session's Pipeline State without handing it the
// coordinator's own in-memory snapshot pointer.
type toolStateReader struct {
	client *ent.Client
}

func (r *toolStateReader) Snapshot(sessionID string) (*models.PipelineSnapshot, error) {
	sess, err := r.client.Session.Get(context.Background(), sessionID)
	if err != nil {
		return nil, fmt.Errorf("tool state: failed to load session: %w", err)
	}
	snapshot := models.LoadPipelineSnapshot(sess)
	return &snapshot, nil
}

// newToolContext builds the per-execution tools.Context and binds it to
// the fixed tool subset agentCfg's namespaces resolve to. A fresh
// DispatchingExecutor is built here rather than once at RealStageExecutor
// construction, since a DispatchingExecutor closes over one SessionID and
// AgentRole and RealStageExecutor is shared across every concurrent
// session the pod is driving.
func (e *RealStageExecutor) newToolContext(sessionID, agentRole, executionID string, toolNamespaces []string) (*tools.DispatchingExecutor, error) {
	tc := &tools.Context{
		SessionID:   sessionID,
		AgentRole:   agentRole,
		ExecutionID: executionID,
		State:       e.stateReader,
		Gate:        e.gateWaiter,
		Events:      e.emitter,
	}
	toolNames := tools.ToolNamesForNamespaces(toolNamespaces)
	return tools.NewDispatchingExecutor(e.toolRegistry, toolNames, tc)
}
