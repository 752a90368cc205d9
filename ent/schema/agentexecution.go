package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AgentExecution holds the schema definition for the AgentExecution entity:
// one Agent Loop run (one agent to completion, or until suspended on a
// gate) within a Stage.
type AgentExecution struct {
	ent.Schema
}

// Fields of the AgentExecution.
func (AgentExecution) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("execution_id").
			Unique().
			Immutable(),
		field.String("stage_id").
			Immutable(),
		field.String("session_id").
			Immutable().
			Comment("Denormalized for query performance"),

		field.String("agent_role").
			Comment("e.g. 'positioning_agent', 'section_writer:summary'"),
		field.Int("agent_index").
			Comment("1 for single-agent stages, 1..N when section_writing fans out per section"),
		field.String("model_profile").
			Comment("light | mid | primary | orchestrator, chosen per stage"),

		field.Enum("status").
			Values("pending", "active", "completed", "failed", "cancelled", "timed_out", "suspended").
			Default("pending").
			Comment("'suspended' while parked on a gate awaiting a client response"),
		field.Time("started_at").
			Optional().
			Nillable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
		field.Int("duration_ms").
			Optional().
			Nillable(),
		field.Int("rounds_used").
			Optional().
			Nillable().
			Comment("Agent Loop rounds consumed, bounded by the per-agent max round count"),
		field.String("error_message").
			Optional().
			Nillable(),

		field.String("controller_strategy").
			Default("function_calling").
			Comment("Loop implementation used; fixed today but kept for observability parity"),
	}
}

// Edges of the AgentExecution.
func (AgentExecution) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("stage", Stage.Type).
			Ref("agent_executions").
			Field("stage_id").
			Unique().
			Required().
			Immutable(),
		edge.From("session", Session.Type).
			Ref("agent_executions").
			Field("session_id").
			Unique().
			Required().
			Immutable(),
		edge.To("timeline_events", TimelineEvent.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("messages", Message.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("llm_interactions", LLMInteraction.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("tool_interactions", ToolInteraction.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the AgentExecution.
func (AgentExecution) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("stage_id", "agent_index").
			Unique(),
		index.Fields("id"),
		index.Fields("session_id"),
	}
}
