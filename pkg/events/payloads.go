package events

// TimelineCreatedPayload is the payload for timeline_event.created events.
// Published when a new timeline event is created (streaming or completed).
type TimelineCreatedPayload struct {
	Type           string         `json:"type"`                   // always EventTypeTimelineCreated
	EventID        string         `json:"event_id"`               // timeline event UUID
	SessionID      string         `json:"session_id"`             // owning session
	StageID        string         `json:"stage_id,omitempty"`     // owning stage (empty for session-level events)
	ExecutionID    string         `json:"execution_id,omitempty"` // owning agent execution (empty for session-level events)
	EventType      string         `json:"event_type"`             // e.g. "llm_thinking", "llm_tool_call"
	Status         string         `json:"status"`                 // "streaming" or "completed"
	Content        string         `json:"content"`                // event content (may be empty for streaming)
	Metadata       map[string]any `json:"metadata,omitempty"`
	SequenceNumber int            `json:"sequence_number"` // order in timeline
	Timestamp      string         `json:"timestamp"`       // RFC3339Nano
}

// TimelineCompletedPayload is the payload for timeline_event.completed events.
// Published when a streaming timeline event transitions to a terminal status.
type TimelineCompletedPayload struct {
	Type      string         `json:"type"`     // always EventTypeTimelineCompleted
	EventID   string         `json:"event_id"` // timeline event UUID
	Content   string         `json:"content"`  // final content
	Status    string         `json:"status"`   // "completed" or "failed"
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp string         `json:"timestamp"` // RFC3339Nano
}

// StreamChunkPayload is the payload for stream.chunk transient events.
// Published for each LLM streaming token, high frequency and ephemeral.
type StreamChunkPayload struct {
	Type      string `json:"type"`      // always EventTypeStreamChunk
	EventID   string `json:"event_id"`  // parent timeline event UUID
	Delta     string `json:"delta"`     // incremental text chunk
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

// SessionStatusPayload is the payload for session.status events.
// Published when a session transitions between lifecycle states.
type SessionStatusPayload struct {
	Type      string `json:"type"`       // always EventTypeSessionStatus
	SessionID string `json:"session_id"` // session UUID
	Status    string `json:"status"`     // new status (e.g. "in_progress", "completed")
	Timestamp string `json:"timestamp"`  // RFC3339Nano
}

// StageStatusPayload is the payload for stage.status events.
// Single event type for all stage lifecycle transitions (started, completed, failed, etc.).
type StageStatusPayload struct {
	Type       string `json:"type"`               // always EventTypeStageStatus
	SessionID  string `json:"session_id"`         // session UUID
	StageID    string `json:"stage_id,omitempty"` // may be empty on "started" if stage creation hasn't happened yet
	StageName  string `json:"stage_name"`         // human-readable stage name from config
	StageIndex int    `json:"stage_index"`        // 1-based
	Status     string `json:"status"`             // started, completed, failed, timed_out, cancelled
	Timestamp  string `json:"timestamp"`          // RFC3339Nano
}

// GateOpenedPayload is the payload for gate.opened events: the pipeline has
// paused and is awaiting a human decision before continuing.
type GateOpenedPayload struct {
	Type       string         `json:"type"` // always EventTypeGateOpened
	SessionID  string         `json:"session_id"`
	GateName   string         `json:"gate_name"`
	ToolCallID string         `json:"tool_call_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  string         `json:"timestamp"`
}

// GateResolvedPayload is the payload for gate.resolved events: a human
// decision has been applied and the pipeline is resuming or rewinding.
type GateResolvedPayload struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	GateName  string `json:"gate_name"`
	Decision  string `json:"decision"` // approve | reject | revise
	Timestamp string `json:"timestamp"`
}

// InteractionCreatedPayload is the payload for interaction.created events,
// fired when an LLM or tool interaction record is saved to the database.
type InteractionCreatedPayload struct {
	Type          string `json:"type"`
	SessionID     string `json:"session_id"`
	InteractionID string `json:"interaction_id"`
	Kind          string `json:"kind"` // "llm" or "tool"
	Timestamp     string `json:"timestamp"`
}

// SessionProgressPayload is a transient session.progress event broadcast to
// the global sessions channel, for a list view showing live stage progress
// without subscribing to every individual session channel.
type SessionProgressPayload struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	StageName  string `json:"stage_name"`
	StageIndex int    `json:"stage_index"`
	Timestamp  string `json:"timestamp"`
}

// ExecutionProgressPayload is a transient execution.progress event, used to
// show a short human-readable phase label ("gathering requirements",
// "drafting summary", ...) while an agent execution is in flight.
type ExecutionProgressPayload struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"`
}

// RevisionLimitPayload is the payload for revision.limit_reached events:
// a section hit its revision cap and further revise requests are refused.
type RevisionLimitPayload struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	SectionKey string `json:"section_key"`
	Count      int    `json:"count"`
	Timestamp  string `json:"timestamp"`
}

// WorkflowReplanPayload covers the three workflow_replan_* events emitted as
// a mid-run benchmark-assumption change moves through its requested /
// in_progress / completed phases.
type WorkflowReplanPayload struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}
