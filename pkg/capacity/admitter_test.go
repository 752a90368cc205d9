package capacity_test

import (
	"context"
	"testing"
	"time"

	"github.com/resumeforge/pipeline/ent"
	"github.com/resumeforge/pipeline/pkg/capacity"
	"github.com/resumeforge/pipeline/pkg/config"
	"github.com/resumeforge/pipeline/pkg/models"
	"github.com/resumeforge/pipeline/pkg/services"
	testdb "github.com/resumeforge/pipeline/test/database"
	"github.com/stretchr/testify/require"
)

func newTestAdmitter(t *testing.T, cfg *config.CapacityConfig) (*capacity.Admitter, *ent.Client, func(context.Context) string) {
	t.Helper()
	client := testdb.NewTestClient(t)
	sessions := services.NewSessionService(client.Client)

	create := func(ctx context.Context) string {
		sess, err := sessions.CreateSession(ctx, models.CreateSessionRequest{
			OwnerUserID: "user-1",
			IntakeData:  "resume text / job post text",
		})
		require.NoError(t, err)
		return sess.ID
	}

	return capacity.NewAdmitter(client.DB(), "pod-test", cfg), client.Client, create
}

func testCapacityConfig() *config.CapacityConfig {
	cfg := config.DefaultCapacityConfig()
	cfg.GlobalMaxConcurrent = 2
	cfg.PerUserMaxConcurrent = 1
	cfg.OrphanThreshold = 50 * time.Millisecond
	cfg.OrphanDetectionInterval = 10 * time.Millisecond
	return cfg
}

func TestAdmitter_TryAdmit_GrantsSlot(t *testing.T) {
	ctx := context.Background()
	admitter, _, create := newTestAdmitter(t, testCapacityConfig())

	sessionID := create(ctx)

	admitted, err := admitter.TryAdmit(ctx, sessionID, "user-1")
	require.NoError(t, err)
	require.True(t, admitted)
}

func TestAdmitter_TryAdmit_RespectsGlobalCap(t *testing.T) {
	ctx := context.Background()
	cfg := testCapacityConfig()
	cfg.GlobalMaxConcurrent = 1
	cfg.PerUserMaxConcurrent = 10
	admitter, _, create := newTestAdmitter(t, cfg)

	first := create(ctx)
	second := create(ctx)

	admitted, err := admitter.TryAdmit(ctx, first, "user-1")
	require.NoError(t, err)
	require.True(t, admitted)

	admitted, err = admitter.TryAdmit(ctx, second, "user-2")
	require.NoError(t, err)
	require.False(t, admitted, "global cap of 1 should refuse a second admission")
}

func TestAdmitter_TryAdmit_RespectsPerUserCap(t *testing.T) {
	ctx := context.Background()
	cfg := testCapacityConfig()
	cfg.GlobalMaxConcurrent = 10
	cfg.PerUserMaxConcurrent = 1
	admitter, _, create := newTestAdmitter(t, cfg)

	first := create(ctx)
	second := create(ctx)

	admitted, err := admitter.TryAdmit(ctx, first, "user-1")
	require.NoError(t, err)
	require.True(t, admitted)

	admitted, err = admitter.TryAdmit(ctx, second, "user-1")
	require.NoError(t, err)
	require.False(t, admitted, "per-user cap of 1 should refuse a second session for the same owner")
}

func TestAdmitter_ReleaseFreesSlot(t *testing.T) {
	ctx := context.Background()
	cfg := testCapacityConfig()
	cfg.GlobalMaxConcurrent = 1
	admitter, _, create := newTestAdmitter(t, cfg)

	first := create(ctx)
	second := create(ctx)

	admitted, err := admitter.TryAdmit(ctx, first, "user-1")
	require.NoError(t, err)
	require.True(t, admitted)

	require.NoError(t, admitter.Release(ctx, first))

	admitted, err = admitter.TryAdmit(ctx, second, "user-2")
	require.NoError(t, err)
	require.True(t, admitted, "releasing the first lock should free the global slot")
}

func TestAdmitter_Health_ReportsActiveCount(t *testing.T) {
	ctx := context.Background()
	admitter, _, create := newTestAdmitter(t, testCapacityConfig())

	sessionID := create(ctx)
	admitted, err := admitter.TryAdmit(ctx, sessionID, "user-1")
	require.NoError(t, err)
	require.True(t, admitted)

	h := admitter.Health(ctx)
	require.True(t, h.DBReachable)
	require.Equal(t, 1, h.GlobalActive)
}

func TestAdmitter_RecoverOrphan_ReleasesStaleLock(t *testing.T) {
	ctx := context.Background()
	cfg := testCapacityConfig()
	admitter, client, create := newTestAdmitter(t, cfg)

	sessionID := create(ctx)
	admitted, err := admitter.TryAdmit(ctx, sessionID, "user-1")
	require.NoError(t, err)
	require.True(t, admitted)

	// Let the lock's heartbeat age past OrphanThreshold.
	time.Sleep(cfg.OrphanThreshold + 20*time.Millisecond)

	detectCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	admitter.RunOrphanDetection(detectCtx, client)

	h := admitter.Health(ctx)
	require.Equal(t, 0, h.GlobalActive, "orphan detection should have released the stale lock")

	sess, err := client.Session.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, "error", string(sess.PipelineStatus))
}
