package models

import (
	"github.com/resumeforge/pipeline/ent"
	"github.com/resumeforge/pipeline/ent/timelineevent"
)

// CreateTimelineEventRequest contains fields for creating a timeline event
type CreateTimelineEventRequest struct {
	SessionID      string                   `json:"session_id"`
	StageID        string                   `json:"stage_id"`
	ExecutionID    string                   `json:"execution_id"`
	SequenceNumber int                      `json:"sequence_number"`
	EventType      timelineevent.EventType  `json:"event_type"`
	Content        string                   `json:"content"`
	Metadata       map[string]any           `json:"metadata,omitempty"`
}

// UpdateTimelineEventRequest contains fields for updating event during streaming
type UpdateTimelineEventRequest struct {
	Content string `json:"content"`
}

// TimelineEventResponse wraps a TimelineEvent
type TimelineEventResponse struct {
	*ent.TimelineEvent
}
