package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Stage holds the schema definition for the Stage entity: one pass through
// a node of the fixed stage graph (intake, positioning, research,
// gap_analysis, architect, architect_review, section_writing,
// section_review, quality_review, revision, complete).
type Stage struct {
	ent.Schema
}

// Fields of the Stage.
func (Stage) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("stage_id").
			Unique().
			Immutable(),
		field.String("session_id").
			Immutable(),

		field.String("stage_name").
			Comment("e.g. 'research', 'section_writing'"),
		field.Int("stage_index").
			Comment("Position in the fixed graph, 0-based; revision cycles reuse section_writing's index"),

		// Execution mode. Most stages run exactly one agent; section_writing
		// may fan out one section-writer agent per writable section.
		field.Int("expected_agent_count").
			Comment("1 for single-agent stages, N for section_writing with N sections"),
		field.Enum("parallel_type").
			Values("multi_agent").
			Optional().
			Nillable().
			Comment("null if count=1, 'multi_agent' if section_writing fans out"),
		field.Enum("success_policy").
			Values("all", "any").
			Optional().
			Nillable().
			Comment("null if count=1; section_writing requires 'all' sections to complete"),

		field.Enum("status").
			Values("pending", "active", "completed", "failed", "timed_out", "cancelled").
			Default("pending"),
		field.Time("started_at").
			Optional().
			Nillable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
		field.Int("duration_ms").
			Optional().
			Nillable(),
		field.String("error_message").
			Optional().
			Nillable().
			Comment("Aggregated error if stage failed/timed_out/cancelled"),

		field.Bool("is_revision_cycle").
			Default(false).
			Comment("True when this stage row is a Revision Controller sub-loop, not the primary pass"),
	}
}

// Edges of the Stage.
func (Stage) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("session", Session.Type).
			Ref("stages").
			Field("session_id").
			Unique().
			Required().
			Immutable(),
		edge.To("agent_executions", AgentExecution.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
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

// Indexes of the Stage.
func (Stage) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("session_id", "stage_index"),
	}
}
