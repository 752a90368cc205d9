package models

import (
	"time"

	"github.com/resumeforge/pipeline/ent"
)

// CreateSessionRequest contains fields for creating a new session. The
// intake agent parses IntakeData (resume text + job posting text) into the
// first artifact; everything else is assigned by the Coordinator.
type CreateSessionRequest struct {
	OwnerUserID string `json:"owner_user_id"`
	IntakeData  string `json:"intake_data"`
}

// SessionFilters contains filtering options for listing sessions.
type SessionFilters struct {
	OwnerUserID    string     `json:"owner_user_id,omitempty"`
	PipelineStatus string     `json:"pipeline_status,omitempty"`
	CreatedAfter   *time.Time `json:"created_after,omitempty"`
	CreatedBefore  *time.Time `json:"created_before,omitempty"`
	Limit          int        `json:"limit,omitempty"`
	Offset         int        `json:"offset,omitempty"`
	IncludeDeleted bool       `json:"include_deleted,omitempty"`
}

// SessionListLimit is the hard cap on the ?limit query parameter for
// GET /api/sessions, regardless of what the client requests.
const SessionListLimit = 100

// SessionSummary is the enriched row returned by the session list route.
// last_panel_data itself is never returned, only the two fields derived
// from it for the list view.
type SessionSummary struct {
	*ent.Session
	CompanyName string `json:"company_name,omitempty"`
	JobTitle    string `json:"job_title,omitempty"`
}

// SessionListResponse contains the paginated session list.
type SessionListResponse struct {
	Sessions   []*SessionSummary `json:"sessions"`
	TotalCount int               `json:"total_count"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
}
