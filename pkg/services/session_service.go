package services

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/resumeforge/pipeline/ent"
	"github.com/resumeforge/pipeline/ent/session"
	"github.com/resumeforge/pipeline/ent/stage"
	"github.com/resumeforge/pipeline/pkg/masking"
	"github.com/resumeforge/pipeline/pkg/models"
	"github.com/google/uuid"
)

// SessionService manages resume pipeline session lifecycle.
type SessionService struct {
	client *ent.Client
	masker *masking.MaskingService
}

// NewSessionService creates a new SessionService.
func NewSessionService(client *ent.Client) *SessionService {
	return &SessionService{client: client}
}

// SetMasker wires PII/credential sanitisation into session intake.
// Optional; when unset, CreateSession persists intake data unmasked.
func (s *SessionService) SetMasker(m *masking.MaskingService) {
	s.masker = m
}

// CreateSession creates a new session with its bootstrap intake stage and
// agent execution row. The intake agent itself is dispatched by the
// Pipeline Coordinator, not here — this only persists the starting state.
func (s *SessionService) CreateSession(httpCtx context.Context, req models.CreateSessionRequest) (*ent.Session, error) {
	if req.OwnerUserID == "" {
		return nil, NewValidationError("owner_user_id", "required")
	}
	if req.IntakeData == "" {
		return nil, NewValidationError("intake_data", "required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := s.client.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	intakeData := req.IntakeData
	if s.masker != nil {
		intakeData = s.masker.MaskIntakeText(intakeData)
	}

	sessionID := uuid.New().String()
	sess, err := tx.Session.Create().
		SetID(sessionID).
		SetOwnerUserID(req.OwnerUserID).
		SetIntakeData(intakeData).
		SetPipelineStage("intake").
		SetPipelineStatus(session.PipelineStatusIdle).
		SetStartedAt(time.Now()).
		Save(ctx)
	if err != nil {
		if ent.IsConstraintError(err) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	stageID := uuid.New().String()
	stg, err := tx.Stage.Create().
		SetID(stageID).
		SetSessionID(sess.ID).
		SetStageName("intake").
		SetStageIndex(0).
		SetExpectedAgentCount(1).
		SetStatus(stage.StatusPending).
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create intake stage: %w", err)
	}

	executionID := uuid.New().String()
	_, err = tx.AgentExecution.Create().
		SetID(executionID).
		SetStageID(stg.ID).
		SetSessionID(sess.ID).
		SetAgentRole("intake_agent").
		SetAgentIndex(1).
		SetModelProfile("light").
		Save(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create intake agent execution: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return sess, nil
}

// GetSession retrieves a session by ID with optional edge loading.
func (s *SessionService) GetSession(ctx context.Context, sessionID string, withEdges bool) (*ent.Session, error) {
	query := s.client.Session.Query().Where(session.IDEQ(sessionID))

	if withEdges {
		query = query.WithStages(func(q *ent.StageQuery) {
			q.WithAgentExecutions().Order(ent.Asc(stage.FieldStageIndex))
		})
	}

	sess, err := query.Only(ctx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return sess, nil
}

// ListSessions lists sessions with filtering and pagination, scoped to one
// owner — every route that lists sessions is an owner-scoped route.
func (s *SessionService) ListSessions(ctx context.Context, filters models.SessionFilters) (*models.SessionListResponse, error) {
	query := s.client.Session.Query()

	if filters.OwnerUserID != "" {
		query = query.Where(session.OwnerUserIDEQ(filters.OwnerUserID))
	}
	if filters.PipelineStatus != "" {
		query = query.Where(session.PipelineStatusEQ(session.PipelineStatus(filters.PipelineStatus)))
	}
	if filters.CreatedAfter != nil {
		query = query.Where(session.CreatedAtGTE(*filters.CreatedAfter))
	}
	if filters.CreatedBefore != nil {
		query = query.Where(session.CreatedAtLT(*filters.CreatedBefore))
	}
	if !filters.IncludeDeleted {
		query = query.Where(session.DeletedAtIsNil())
	}

	totalCount, err := query.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	limit := filters.Limit
	if limit <= 0 || limit > models.SessionListLimit {
		limit = models.SessionListLimit
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	sessions, err := query.
		Limit(limit).
		Offset(offset).
		Order(ent.Desc(session.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	summaries := make([]*models.SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		summaries = append(summaries, &models.SessionSummary{Session: sess})
	}

	return &models.SessionListResponse{
		Sessions:   summaries,
		TotalCount: totalCount,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

// UpdateSessionStatus updates a session's pipeline status.
func (s *SessionService) UpdateSessionStatus(ctx context.Context, sessionID string, status session.PipelineStatus) error {
	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	update := s.client.Session.UpdateOneID(sessionID).
		SetPipelineStatus(status).
		SetUpdatedAt(time.Now())

	if status == session.PipelineStatusComplete || status == session.PipelineStatusError {
		update = update.SetCompletedAt(time.Now())
	}

	err := update.Exec(writeCtx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update session status: %w", err)
	}

	return nil
}

// CancelSession marks a non-terminal session as cancelled. There is no
// dedicated "cancelled" status — a cancel is recorded as an error completion
// with a fixed message, distinguishable from an agent failure by that text.
func (s *SessionService) CancelSession(ctx context.Context, sessionID string) error {
	writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := s.client.Session.Get(writeCtx, sessionID)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load session: %w", err)
	}

	if sess.PipelineStatus == session.PipelineStatusComplete || sess.PipelineStatus == session.PipelineStatusError {
		return ErrNotCancellable
	}

	err = s.client.Session.UpdateOneID(sessionID).
		SetPipelineStatus(session.PipelineStatusError).
		SetErrorMessage("cancelled by user").
		SetCompletedAt(time.Now()).
		SetUpdatedAt(time.Now()).
		Exec(writeCtx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to cancel session: %w", err)
	}
	return nil
}

// ClaimNextPendingSession atomically claims an idle session for this pod,
// used by the Capacity/Admission layer's slot grant.
// Note: a simple SELECT + conditional UPDATE is sufficient at this scale; a
// high-concurrency deployment would use SELECT ... FOR UPDATE SKIP LOCKED.
func (s *SessionService) ClaimNextPendingSession(ctx context.Context, podID string) (*ent.Session, error) {
	claimCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := s.client.Tx(claimCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	sess, err := tx.Session.Query().
		Where(session.PipelineStatusEQ(session.PipelineStatusIdle)).
		Order(ent.Asc(session.FieldCreatedAt)).
		First(claimCtx)
	if err != nil {
		if ent.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query idle session: %w", err)
	}

	count, err := tx.Session.Update().
		Where(
			session.IDEQ(sess.ID),
			session.PipelineStatusEQ(session.PipelineStatusIdle),
		).
		SetPipelineStatus(session.PipelineStatusRunning).
		SetPodID(podID).
		SetUpdatedAt(time.Now()).
		Save(claimCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to claim session: %w", err)
	}

	if count == 0 {
		return nil, nil
	}

	sess, err = tx.Session.Get(claimCtx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to refetch claimed session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return sess, nil
}

// FindOrphanedSessions finds sessions stuck running past the staleness
// threshold: no updates within timeoutDuration.
func (s *SessionService) FindOrphanedSessions(ctx context.Context, timeoutDuration time.Duration) ([]*ent.Session, error) {
	threshold := time.Now().Add(-timeoutDuration)

	sessions, err := s.client.Session.Query().
		Where(
			session.PipelineStatusEQ(session.PipelineStatusRunning),
			session.UpdatedAtLT(threshold),
		).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphaned sessions: %w", err)
	}

	return sessions, nil
}

// SoftDeleteOldSessions soft deletes sessions older than the retention period.
func (s *SessionService) SoftDeleteOldSessions(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention_days must be positive, got %d", retentionDays)
	}

	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	deleteCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := s.client.Session.Update().
		Where(
			session.CompletedAtLT(cutoff),
			session.DeletedAtIsNil(),
		).
		SetDeletedAt(time.Now()).
		Save(deleteCtx)
	if err != nil {
		return 0, fmt.Errorf("failed to soft delete sessions: %w", err)
	}

	return count, nil
}

// RestoreSession restores a soft-deleted session.
func (s *SessionService) RestoreSession(ctx context.Context, sessionID string) error {
	restoreCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.client.Session.UpdateOneID(sessionID).
		ClearDeletedAt().
		Exec(restoreCtx)
	if err != nil {
		if ent.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to restore session: %w", err)
	}

	return nil
}

// SearchSessions performs full-text search over intake_data.
func (s *SessionService) SearchSessions(ctx context.Context, query string, limit int) ([]*ent.Session, error) {
	if limit <= 0 {
		limit = 20
	}

	sessions, err := s.client.Session.Query().
		Where(session.DeletedAtIsNil()).
		Where(func(sel *sql.Selector) {
			sel.Where(sql.ExprP("to_tsvector('english', intake_data) @@ plainto_tsquery($1)", query))
		}).
		Limit(limit).
		Order(ent.Desc(session.FieldCreatedAt)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search sessions: %w", err)
	}

	return sessions, nil
}
