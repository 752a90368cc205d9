package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Event holds the schema definition for the Event entity: the durable
// outbox behind PostgreSQL NOTIFY. Every payload the Stream Fan-out
// publishes to a channel is also inserted here with a monotonic
// autoincrement id, so a reconnecting client's catchup query
// ("events after sinceID") is answered from the database rather than from
// an in-memory buffer that may have rolled off.
type Event struct {
	ent.Schema
}

// Fields of the Event.
func (Event) Fields() []ent.Field {
	return []ent.Field{
		field.Int("id").
			Immutable(),
		field.String("session_id").
			Immutable(),
		field.String("channel").
			Immutable().
			Comment("e.g. 'session:<id>' or the global sessions-list channel"),
		field.JSON("payload", map[string]interface{}{}),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Event.
func (Event) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("session", Session.Type).
			Ref("events").
			Field("session_id").
			Unique().
			Required().
			Immutable(),
	}
}

// Indexes of the Event.
func (Event) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("channel", "id"),
		index.Fields("session_id"),
		index.Fields("created_at"),
	}
}
