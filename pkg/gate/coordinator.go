// Package gate implements the Gate Coordinator: the suspend/resume point
// where a running pipeline stops and waits on a human decision before an
// agent may continue.
//
// A gate's identity is the pair (name, tool_call_id): the agent that opened
// it is blocked on exactly that pair being answered, and a response that
// doesn't match the currently pending pair is buffered rather than applied,
// in case the client answers before the gate-opened event reaches it. State
// lives on the Session row (pending_gate, pending_gate_data) so a restarted
// pod can tell a suspended session apart from one that finished; the wake-up
// itself is in-process, following the same register-a-channel-then-wait
// shape as the NOTIFY listener's Subscribe/receiveLoop pair.
package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/resumeforge/pipeline/ent"
	"github.com/resumeforge/pipeline/pkg/events"
	"github.com/resumeforge/pipeline/pkg/models"
)

// ErrNoGatePending is returned by Resolve when the session has no gate
// currently pending at all; the response is buffered under (name,
// tool_call_id) instead of being discarded, in case the client answers
// before the gate-opened event reaches it.
var ErrNoGatePending = fmt.Errorf("gate: no gate currently pending, response buffered")

// ErrMismatch is returned by Resolve when a gate IS currently pending but
// name doesn't match it. This is a genuine client error (answering the
// wrong gate), not a race to buffer through: the caller should reject it
// rather than park it.
var ErrMismatch = fmt.Errorf("gate: response does not match the currently pending gate")

// Decision is a human's answer to an open gate.
type Decision struct {
	Approve  bool
	Reason   string
	Response map[string]any
}

// Coordinator tracks one in-flight wait channel per suspended session and
// persists gate state to the owning Session row.
type Coordinator struct {
	client    *ent.Client
	publisher *events.EventPublisher

	mu     sync.Mutex
	waiter map[string]chan Decision // sessionID -> channel awaited by Await
}

// New creates a Coordinator bound to client for persistence and publisher
// for gate-opened/gate-resolved notifications.
func New(client *ent.Client, publisher *events.EventPublisher) *Coordinator {
	return &Coordinator{
		client:    client,
		publisher: publisher,
		waiter:    make(map[string]chan Decision),
	}
}

// Open persists gate as the session's pending gate, publishes gate.opened,
// and prepares the wait channel Await will block on. Any response buffered
// under a previous mismatched (name, tool_call_id) pair is left untouched;
// it is consulted at the start of Await so an answer that arrived before
// this Open call is not lost.
func (c *Coordinator) Open(ctx context.Context, sessionID string, g models.Gate) error {
	if err := c.client.Session.UpdateOneID(sessionID).
		SetPendingGate(g.Name).
		SetPendingGateData(g.Payload).
		Exec(ctx); err != nil {
		return fmt.Errorf("gate: failed to persist pending gate: %w", err)
	}

	c.mu.Lock()
	c.waiter[sessionID] = make(chan Decision, 1)
	c.mu.Unlock()

	if c.publisher != nil {
		_ = c.publisher.PublishGateOpened(ctx, sessionID, events.GateOpenedPayload{
			Type:       "gate.opened",
			SessionID:  sessionID,
			GateName:   g.Name,
			ToolCallID: g.ToolCallID,
			Payload:    g.Payload,
			Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
	return nil
}

// Await blocks until Resolve delivers a matching decision, ctx is
// cancelled, or a previously buffered response for this (name, toolCallID)
// pair is found in the session's snapshot.
func (c *Coordinator) Await(ctx context.Context, sessionID string, snapshot *models.PipelineSnapshot, gateName, toolCallID string) (Decision, error) {
	key := bufferKey(gateName, toolCallID)
	if snapshot != nil && snapshot.BufferedResponses != nil {
		if raw, ok := snapshot.BufferedResponses[key]; ok {
			delete(snapshot.BufferedResponses, key)
			return decisionFromBuffered(raw), nil
		}
	}

	c.mu.Lock()
	ch, ok := c.waiter[sessionID]
	if !ok {
		ch = make(chan Decision, 1)
		c.waiter[sessionID] = ch
	}
	c.mu.Unlock()

	select {
	case d := <-ch:
		return d, nil
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
}

// Resolve answers the session's currently pending gate. If nothing is
// pending at all, the decision is buffered into snapshot under the (name,
// tool_call_id) key and ErrNoGatePending is returned so the caller knows to
// persist the updated snapshot without waking anyone. If a gate IS pending
// but name doesn't match it, the response is rejected outright (ErrMismatch)
// and snapshot is left untouched — buffering only covers the "answer
// arrived before the gate-opened event" race, not answering the wrong gate.
func (c *Coordinator) Resolve(ctx context.Context, sessionID string, snapshot *models.PipelineSnapshot, name, toolCallID string, d Decision) error {
	sess, err := c.client.Session.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("gate: failed to load session: %w", err)
	}

	pending := ""
	if sess.PendingGate != nil {
		pending = *sess.PendingGate
	}
	if pending == "" {
		c.buffer(snapshot, name, toolCallID, d)
		return ErrNoGatePending
	}
	if pending != name {
		return ErrMismatch
	}

	if err := c.client.Session.UpdateOneID(sessionID).
		ClearPendingGate().
		ClearPendingGateData().
		Exec(ctx); err != nil {
		return fmt.Errorf("gate: failed to clear pending gate: %w", err)
	}

	if c.publisher != nil {
		_ = c.publisher.PublishGateResolved(ctx, sessionID, events.GateResolvedPayload{
			Type:      "gate.resolved",
			SessionID: sessionID,
			GateName:  name,
			Decision:  decisionLabel(d),
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
	}

	c.mu.Lock()
	ch, ok := c.waiter[sessionID]
	c.mu.Unlock()
	if ok {
		select {
		case ch <- d:
		default:
		}
	}
	return nil
}

// Forget drops the in-process wait channel for sessionID, called once the
// pipeline finishes or is cancelled so a stale channel isn't retained.
func (c *Coordinator) Forget(sessionID string) {
	c.mu.Lock()
	delete(c.waiter, sessionID)
	c.mu.Unlock()
}

func (c *Coordinator) buffer(snapshot *models.PipelineSnapshot, name, toolCallID string, d Decision) {
	if snapshot.BufferedResponses == nil {
		snapshot.BufferedResponses = map[string]any{}
	}
	snapshot.BufferedResponses[bufferKey(name, toolCallID)] = map[string]any{
		"approve":  d.Approve,
		"reason":   d.Reason,
		"response": d.Response,
	}
}

func bufferKey(name, toolCallID string) string {
	return name + ":" + toolCallID
}

func decisionLabel(d Decision) string {
	if d.Approve {
		return "approve"
	}
	if d.Reason != "" {
		return "reject"
	}
	return "revise"
}

func decisionFromBuffered(raw any) Decision {
	m, ok := raw.(map[string]any)
	if !ok {
		return Decision{}
	}
	d := Decision{}
	if approve, ok := m["approve"].(bool); ok {
		d.Approve = approve
	}
	if reason, ok := m["reason"].(string); ok {
		d.Reason = reason
	}
	if resp, ok := m["response"].(map[string]any); ok {
		d.Response = resp
	}
	return d
}
