package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// TimelineEvent holds the schema definition for the TimelineEvent entity:
// the durable, queryable record of what happened during a pipeline run —
// distinct from the in-memory Stream Fan-out (pkg/events), which is the
// live delivery path to exactly one connected client. Every SSE event the
// Fan-out emits for a durable (non-heartbeat, non-transient) event type has
// a corresponding TimelineEvent row so a reconnecting client, or a later
// audit, can reconstruct the run from the database alone.
//
// Event types follow one of two lifecycle patterns, distinguished by the
// "status" field:
//
//	STREAMING  (status: "streaming" -> "completed"/"failed")
//	  created empty while the agent is still producing output; transient
//	  text_delta frames (pkg/events) are not persisted, only the final
//	  content on completion. Used by: llm_thinking, llm_response,
//	  llm_tool_call, tool_summary, final_analysis.
//
//	FIRE-AND-FORGET (status: "completed" only)
//	  created once with final content, no follow-up row. Used by:
//	  stage_output, gate_opened, gate_resolved, revision_requested, error,
//	  tool_call, code_execution, google_search_result, url_context_result.
type TimelineEvent struct {
	ent.Schema
}

// Fields of the TimelineEvent.
func (TimelineEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("event_id").
			Unique().
			Immutable(),
		field.String("session_id").
			Immutable(),
		field.String("stage_id").
			Immutable(),
		field.String("execution_id").
			Immutable(),

		field.Int("sequence_number").
			Comment("Session-scoped order; mirrors text_complete.seq on the live stream"),

		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),

		field.Enum("event_type").
			Values(
				"llm_thinking",
				"llm_response",
				"llm_tool_call",
				"tool_call",
				"tool_summary",
				"stage_output",
				"gate_opened",
				"gate_resolved",
				"revision_requested",
				"error",
				"final_analysis",
				"code_execution",
				"google_search_result",
				"url_context_result",
			),
		field.Enum("status").
			Values("streaming", "completed", "failed", "cancelled", "timed_out").
			Default("streaming"),
		field.Text("content").
			Comment("Grows during streaming, final on completion"),
		field.JSON("metadata", map[string]interface{}{}).
			Optional().
			Comment("Type-specific data: tool_name, gate_name, section key, etc."),

		field.String("llm_interaction_id").
			Optional().
			Nillable(),
		field.String("tool_interaction_id").
			Optional().
			Nillable(),
	}
}

// Edges of the TimelineEvent.
func (TimelineEvent) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("session", Session.Type).
			Ref("timeline_events").
			Field("session_id").
			Unique().
			Required().
			Immutable(),
		edge.From("stage", Stage.Type).
			Ref("timeline_events").
			Field("stage_id").
			Unique().
			Required().
			Immutable(),
		edge.From("agent_execution", AgentExecution.Type).
			Ref("timeline_events").
			Field("execution_id").
			Unique().
			Required().
			Immutable(),
		edge.From("llm_interaction", LLMInteraction.Type).
			Ref("timeline_events").
			Field("llm_interaction_id").
			Unique(),
		edge.From("tool_interaction", ToolInteraction.Type).
			Ref("timeline_events").
			Field("tool_interaction_id").
			Unique(),
	}
}

// Indexes of the TimelineEvent.
func (TimelineEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("session_id", "sequence_number"),
		index.Fields("stage_id", "sequence_number"),
		index.Fields("execution_id", "sequence_number"),
		index.Fields("id"),
		index.Fields("created_at"),
	}
}
