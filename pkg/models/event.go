package models

import "github.com/resumeforge/pipeline/ent"

// CreateEventRequest contains fields for appending to the durable event
// outbox behind a NOTIFY channel.
type CreateEventRequest struct {
	SessionID string         `json:"session_id"`
	Channel   string         `json:"channel"`
	Payload   map[string]any `json:"payload"`
}

// EventResponse wraps an Event.
type EventResponse struct {
	*ent.Event
}

// EventsResponse contains the list of events since a given id.
type EventsResponse struct {
	Events []*ent.Event `json:"events"`
}
