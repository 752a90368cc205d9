package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/resumeforge/pipeline/ent/session"
	"github.com/resumeforge/pipeline/pkg/config"
	"github.com/resumeforge/pipeline/pkg/database"
	"github.com/resumeforge/pipeline/pkg/models"
	"github.com/resumeforge/pipeline/pkg/services"
	testdb "github.com/resumeforge/pipeline/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSessionService(t *testing.T) (*database.Client, *services.SessionService) {
	t.Helper()
	client := testdb.NewTestClient(t)
	return client, services.NewSessionService(client.Client)
}

func TestService_SoftDeletesOldCompletedSessions(t *testing.T) {
	client, sessionService := setupSessionService(t)
	eventService := services.NewEventService(client.Client)
	ctx := context.Background()

	sess, err := sessionService.CreateSession(ctx, models.CreateSessionRequest{
		OwnerUserID: "user-1",
		IntakeData:  "test",
	})
	require.NoError(t, err)

	err = client.Session.UpdateOneID(sess.ID).
		SetPipelineStatus(session.PipelineStatusComplete).
		SetCompletedAt(time.Now().Add(-400 * 24 * time.Hour)).
		Exec(ctx)
	require.NoError(t, err)

	cfg := &config.RetentionConfig{
		SessionRetentionDays: 365,
		EventTTL:             1 * time.Hour,
		CleanupInterval:      1 * time.Hour,
	}
	svc := NewService(cfg, sessionService, eventService)
	svc.runAll(ctx)

	updated, err := sessionService.GetSession(ctx, sess.ID, false)
	require.NoError(t, err)
	assert.NotNil(t, updated.DeletedAt)
}

func TestService_PreservesNeverCompletedSessions(t *testing.T) {
	client, sessionService := setupSessionService(t)
	eventService := services.NewEventService(client.Client)
	ctx := context.Background()

	// A session that was created long ago but never reached a terminal
	// state (no CompletedAt) is not a retention candidate: only
	// completed_at age is checked.
	sess, err := sessionService.CreateSession(ctx, models.CreateSessionRequest{
		OwnerUserID: "user-1",
		IntakeData:  "test-pending",
	})
	require.NoError(t, err)

	err = client.Session.UpdateOneID(sess.ID).
		SetCreatedAt(time.Now().Add(-400 * 24 * time.Hour)).
		Exec(ctx)
	require.NoError(t, err)

	cfg := &config.RetentionConfig{
		SessionRetentionDays: 365,
		EventTTL:             1 * time.Hour,
		CleanupInterval:      1 * time.Hour,
	}
	svc := NewService(cfg, sessionService, eventService)
	svc.runAll(ctx)

	updated, err := sessionService.GetSession(ctx, sess.ID, false)
	require.NoError(t, err)
	assert.Nil(t, updated.DeletedAt)
}

func TestService_PreservesRecentSessions(t *testing.T) {
	client, sessionService := setupSessionService(t)
	eventService := services.NewEventService(client.Client)
	ctx := context.Background()

	sess, err := sessionService.CreateSession(ctx, models.CreateSessionRequest{
		OwnerUserID: "user-1",
		IntakeData:  "test-recent",
	})
	require.NoError(t, err)

	err = client.Session.UpdateOneID(sess.ID).
		SetPipelineStatus(session.PipelineStatusComplete).
		SetCompletedAt(time.Now()).
		Exec(ctx)
	require.NoError(t, err)

	cfg := &config.RetentionConfig{
		SessionRetentionDays: 365,
		EventTTL:             1 * time.Hour,
		CleanupInterval:      1 * time.Hour,
	}
	svc := NewService(cfg, sessionService, eventService)
	svc.runAll(ctx)

	updated, err := sessionService.GetSession(ctx, sess.ID, false)
	require.NoError(t, err)
	assert.Nil(t, updated.DeletedAt)
}

func TestService_CleansUpOldEvents(t *testing.T) {
	client, sessionService := setupSessionService(t)
	eventService := services.NewEventService(client.Client)
	ctx := context.Background()

	sess, err := sessionService.CreateSession(ctx, models.CreateSessionRequest{
		OwnerUserID: "user-1",
		IntakeData:  "test-events",
	})
	require.NoError(t, err)

	// Create an old event (2 hours ago)
	_, err = client.Event.Create().
		SetSessionID(sess.ID).
		SetChannel("test").
		SetPayload(map[string]any{}).
		SetCreatedAt(time.Now().Add(-2 * time.Hour)).
		Save(ctx)
	require.NoError(t, err)

	// Create a recent event
	_, err = client.Event.Create().
		SetSessionID(sess.ID).
		SetChannel("test").
		SetPayload(map[string]any{}).
		SetCreatedAt(time.Now()).
		Save(ctx)
	require.NoError(t, err)

	cfg := &config.RetentionConfig{
		SessionRetentionDays: 365,
		EventTTL:             1 * time.Hour,
		CleanupInterval:      1 * time.Hour,
	}
	svc := NewService(cfg, sessionService, eventService)
	svc.runAll(ctx)

	events, err := eventService.GetEventsSince(ctx, "test", 0, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1, "old event should be deleted, recent event preserved")
}
