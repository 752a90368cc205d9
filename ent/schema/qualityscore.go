package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// QualityScore holds the schema definition for the QualityScore entity: one
// Quality Review agent's judged score for a session's current draft.
type QualityScore struct {
	ent.Schema
}

// Fields of the QualityScore.
func (QualityScore) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("score_id").
			Unique().
			Immutable(),
		field.String("session_id").
			Immutable(),
		field.String("rubric_hash").
			Optional().
			Nillable().
			Comment("SHA256 hex of the rubric prompt used, for reproducibility audits"),
		field.Int("total_score").
			Optional().
			Nillable().
			Comment("0-100, extracted from the judge's structured response"),
		field.JSON("section_scores", map[string]interface{}{}).
			Optional().
			Comment("Per-section sub-scores and rationale, e.g. {summary: {score, rationale}}"),
		field.Text("score_analysis").
			Optional().
			Nillable(),
		field.Text("gap_analysis_summary").
			Optional().
			Nillable().
			Comment("Unaddressed requirements the score took into account"),
		field.String("triggered_by").
			Comment("'pipeline' for the normal quality_review stage, 'revision' for a re-score after a revision cycle"),
		field.Enum("status").
			Values("pending", "in_progress", "completed", "failed", "timed_out", "cancelled").
			Default("pending"),
		field.Time("started_at").
			Default(time.Now).
			Immutable(),
		field.Time("completed_at").
			Optional().
			Nillable(),
		field.Text("error_message").
			Optional().
			Nillable(),
	}
}

// Edges of the QualityScore.
func (QualityScore) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("session", Session.Type).
			Ref("quality_scores").
			Field("session_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the QualityScore.
func (QualityScore) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("rubric_hash"),
		index.Fields("total_score"),
		index.Fields("status"),
		index.Fields("session_id", "status"),
		index.Fields("status", "started_at"),
		// Prevent duplicate in-flight scoring per session
		index.Fields("session_id").
			Unique().
			Annotations(entsql.IndexWhere("status IN ('pending', 'in_progress')")),
	}
}
