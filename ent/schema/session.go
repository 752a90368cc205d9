package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Session holds the schema definition for the Session entity: the root
// entity for one resume-generation run, pairing the session row with its
// embedded Pipeline State.
type Session struct {
	ent.Schema
}

// Mixin for custom ID field.
func (Session) Mixin() []ent.Mixin {
	return []ent.Mixin{}
}

// Fields of the Session.
func (Session) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("session_id").
			Unique().
			Immutable(),
		field.String("owner_user_id").
			Immutable().
			Comment("Opaque user id from auth; owner check gates every route"),
		field.Text("intake_data").
			Comment("Raw resume text + job posting text submitted at intake"),
		field.String("pipeline_stage").
			Default("intake").
			Comment("Current position in the fixed stage graph"),
		field.Enum("pipeline_status").
			Values("idle", "running", "error", "complete").
			Default("idle"),
		field.String("pending_gate").
			Optional().
			Nillable().
			Comment("Name of the gate currently suspending this pipeline, if any"),
		field.JSON("pending_gate_data", map[string]interface{}{}).
			Optional().
			Comment("Payload the suspended agent needs to resume once the gate is answered"),
		field.String("last_panel_type").
			Optional().
			Nillable().
			Comment("Type tag of the most recent right-panel snapshot, for client resume"),
		field.JSON("last_panel_data", map[string]interface{}{}).
			Optional().
			Comment("Most recent right-panel snapshot; never returned from the session list route"),
		field.JSON("session_metadata", map[string]interface{}{}).
			Optional().
			Comment("PipelineSnapshot: approved sections, revision counts, token ledger, scratchpad refs"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now).
			Comment("Bumped on every stage transition and gate event; drives the 15-minute staleness check"),
		field.Time("started_at").
			Optional().
			Nillable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
		field.String("error_message").
			Optional().
			Nillable(),
		field.String("pod_id").
			Optional().
			Nillable().
			Comment("Process that currently holds the admission lock for this session"),
		field.Time("deleted_at").
			Optional().
			Nillable().
			Comment("Soft delete for retention policy"),
	}
}

// Edges of the Session.
func (Session) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("stages", Stage.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
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
		edge.To("quality_scores", QualityScore.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("events", Event.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Session.
func (Session) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("owner_user_id"),
		index.Fields("pipeline_status"),
		index.Fields("pipeline_stage"),
		index.Fields("pipeline_status", "created_at"),
		index.Fields("pipeline_status", "updated_at"),
		// Partial index for soft deletes
		index.Fields("deleted_at").
			Annotations(entsql.IndexWhere("deleted_at IS NOT NULL")),
	}
}

// Annotations for PostgreSQL-specific features.
// Full-text search GIN indexes over intake_data are created via migration
// hooks in pkg/database/migrations.go, not here.
func (Session) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}
