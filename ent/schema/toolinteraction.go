package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ToolInteraction holds the schema definition for the ToolInteraction
// entity: full request/response trace for one Tool Registry dispatch, for
// the debug/trace view. Tools here are in-process Go callables, not a
// remote protocol, so there is no server/transport field — only the tool
// name and its input/output.
type ToolInteraction struct {
	ent.Schema
}

// Fields of the ToolInteraction.
func (ToolInteraction) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("interaction_id").
			Unique().
			Immutable(),
		field.String("session_id").
			Immutable(),
		field.String("stage_id").
			Immutable(),
		field.String("execution_id").
			Immutable().
			Comment("Which agent execution issued the call"),

		field.Time("created_at").
			Default(time.Now).
			Immutable(),

		field.Enum("interaction_type").
			Values("tool_call", "tool_list"),
		field.String("tool_name").
			Optional().
			Nillable().
			Comment("e.g. 'search_evidence', 'score_requirement'"),
		field.Bool("parallel_safe").
			Optional().
			Nillable(),

		field.JSON("tool_input", map[string]interface{}{}).
			Optional(),
		field.JSON("tool_result", map[string]interface{}{}).
			Optional(),
		field.JSON("available_tools", []interface{}{}).
			Optional().
			Comment("For tool_list type: the descriptors bound for this agent"),

		field.Int("duration_ms").
			Optional().
			Nillable(),
		field.String("error_message").
			Optional().
			Nillable().
			Comment("null = success; non-null is fed back to the model as a tool-result error, not raised"),
	}
}

// Edges of the ToolInteraction.
func (ToolInteraction) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("session", Session.Type).
			Ref("tool_interactions").
			Field("session_id").
			Unique().
			Required().
			Immutable(),
		edge.From("stage", Stage.Type).
			Ref("tool_interactions").
			Field("stage_id").
			Unique().
			Required().
			Immutable(),
		edge.From("agent_execution", AgentExecution.Type).
			Ref("tool_interactions").
			Field("execution_id").
			Unique().
			Required().
			Immutable(),
		edge.To("timeline_events", TimelineEvent.Type),
	}
}

// Indexes of the ToolInteraction.
func (ToolInteraction) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("execution_id", "created_at"),
		index.Fields("stage_id", "created_at"),
		index.Fields("id"),
	}
}
