package api

import "github.com/resumeforge/pipeline/ent"

// SessionResponse is returned by POST /api/v1/sessions.
type SessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Stage     string `json:"stage"`
}

// CancelResponse is returned by POST /api/v1/sessions/:id/cancel.
type CancelResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// SessionSummaryResponse is returned by GET /api/v1/sessions/:id/summary.
type SessionSummaryResponse struct {
	*ent.Session
	ApprovedSections []string `json:"approved_sections"`
	PendingGate      *string  `json:"pending_gate,omitempty"`
}

// GateResolvedResponse is returned by POST /api/v1/sessions/:id/gates/resolve.
type GateResolvedResponse struct {
	SessionID string `json:"session_id"`
	Buffered  bool   `json:"buffered"`
	Message   string `json:"message"`
}

// RevisionStatusResponse is returned by GET /api/v1/sessions/:id/revisions.
type RevisionStatusResponse struct {
	SessionID        string         `json:"session_id"`
	ApprovedSections []string       `json:"approved_sections"`
	RevisionCounts   map[string]int `json:"revision_counts"`
	RevisionCap      int            `json:"revision_cap"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Version string                 `json:"version"`
	Checks  map[string]HealthCheck `json:"checks"`
}

// HealthCheck represents the status of a single health check component.
type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ReadyResponse is returned by GET /ready.
type ReadyResponse struct {
	Ready    bool `json:"ready"`
	DBOK     bool `json:"db_ok"`
	LLMKeyOK bool `json:"llm_key_ok"`
}

// WorkflowSummaryResponse is returned by GET /api/workflow/:id: the polled
// client-facing snapshot of a session's pipeline progress, distinct from
// the fuller SessionSummaryResponse in that it also surfaces replan state
// and a simple per-stage node list.
type WorkflowSummaryResponse struct {
	SessionID        string               `json:"session_id"`
	Status           string               `json:"status"`
	CurrentStage     string               `json:"current_stage"`
	Nodes            []WorkflowNodeStatus `json:"nodes"`
	ApprovedSections []string             `json:"approved_sections"`
	PendingGate      *string              `json:"pending_gate,omitempty"`
	Replan           *WorkflowReplanView  `json:"replan,omitempty"`
	DraftReady       bool                 `json:"draft_ready"`
}

// WorkflowNodeStatus is one stage graph node's position relative to the
// session's current stage, for the client's workflow progress view.
type WorkflowNodeStatus struct {
	Stage  string `json:"stage"`
	Status string `json:"status"` // pending | active | done
}

// WorkflowReplanView reports an in-flight replan's phase to the client.
type WorkflowReplanView struct {
	Phase       string `json:"phase"`
	RequestedAt string `json:"requested_at"`
	Reason      string `json:"reason,omitempty"`
}

// BenchmarkAssumptionsResponse is returned by a successful POST
// /api/workflow/:id/benchmark/assumptions.
type BenchmarkAssumptionsResponse struct {
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`
}

// RestartResponse is returned by POST /api/workflow/:id/restart.
type RestartResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ResumeResponse is returned by GET /api/sessions/:id/resume: the latest
// rendered resume, assembled from the session's approved section drafts.
type ResumeResponse struct {
	SessionID string            `json:"session_id"`
	Sections  map[string]string `json:"sections"`
}
