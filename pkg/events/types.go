// Package events provides real-time event delivery over Server-Sent
// Events, with PostgreSQL NOTIFY/LISTEN used for cross-pod distribution so
// any replica can serve any session's stream.
//
// ════════════════════════════════════════════════════════════════
// Timeline Event Lifecycle Patterns
// ════════════════════════════════════════════════════════════════
//
// Timeline events follow one of two lifecycle patterns. Clients
// differentiate them by the "status" field in the created payload.
//
// Pattern 1 — STREAMING (status: "streaming"):
//
//	timeline_event.created   {status: "streaming", content: ""}
//	stream.chunk             {delta: "..."}  (repeated, not persisted)
//	timeline_event.completed {status: "completed", content: "full text"}
//
//	The event is created empty while the LLM is still producing output.
//	Deltas arrive via stream.chunk (transient — lost on reconnect, but
//	the final content is delivered by the completed event). Clients
//	concatenate deltas locally for a live typing effect.
//
//	Event types using this pattern:
//	  - llm_thinking, llm_response, llm_tool_call, tool_summary
//
// Pattern 2 — FIRE-AND-FORGET (status: "completed"):
//
//	timeline_event.created   {status: "completed", content: "full text"}
//
//	The event is created with its final content in a single message.
//	There is no subsequent timeline_event.completed.
//
//	Event types using this pattern:
//	  - stage_output (a stage's final artifact summary)
//
// ════════════════════════════════════════════════════════════════
package events

// Persistent event types (stored in DB + NOTIFY).
const (
	EventTypeTimelineCreated   = "timeline_event.created"
	EventTypeTimelineCompleted = "timeline_event.completed"

	EventTypeSessionStatus = "session.status"
	EventTypeStageStatus   = "stage.status"

	EventTypeGateOpened   = "gate.opened"
	EventTypeGateResolved = "gate.resolved"

	EventTypeRevisionLimitReached = "revision.limit_reached"
)

// Stage lifecycle status values (used in StageStatusPayload.Status).
const (
	StageStatusStarted   = "started"
	StageStatusCompleted = "completed"
	StageStatusFailed    = "failed"
	StageStatusTimedOut  = "timed_out"
	StageStatusCancelled = "cancelled"
)

// Transient event types (NOTIFY only, no DB persistence).
const (
	EventTypeStreamChunk        = "stream.chunk"
	EventTypeExecutionProgress  = "execution.progress"
	EventTypeSessionProgress    = "session.progress"
	EventTypeInteractionCreated = "interaction.created"
)

// ProgressPhase labels a short-lived phase of an in-flight agent execution,
// surfaced to the client as an ExecutionProgressPayload.Phase value. These
// are display labels only — nothing in the Agent Loop branches on them.
const (
	ProgressPhaseWorking       = "working"
	ProgressPhaseGatheringInfo = "gathering_info"
	ProgressPhaseDistilling    = "distilling"
	ProgressPhaseConcluding    = "concluding"
	ProgressPhaseSynthesizing  = "synthesizing"
	ProgressPhaseFinalizing    = "finalizing"
)

// Interaction kinds (InteractionCreatedPayload.Kind).
const (
	InteractionTypeLLM  = "llm"
	InteractionTypeTool = "tool"
)

// GlobalSessionsChannel is the channel for session-level status events.
// The session list view subscribes to this for real-time updates.
const GlobalSessionsChannel = "sessions"

// SessionChannel returns the channel name for a specific session's events.
// Format: "session:{session_id}"
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}
