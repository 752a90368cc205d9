package capacity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resumeforge/pipeline/ent"
	"github.com/resumeforge/pipeline/ent/session"
	"github.com/resumeforge/pipeline/ent/timelineevent"
)

// RunOrphanDetection periodically scans session_locks for rows whose
// heartbeat has gone stale and recovers them. All pods run this
// independently; recovery is idempotent (a lock deleted by one pod is
// simply absent for the next).
func (a *Admitter) RunOrphanDetection(ctx context.Context, client *ent.Client) {
	ticker := time.NewTicker(a.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.detectAndRecoverOrphans(ctx, client); err != nil {
				slog.Error("Orphan detection failed", "error", err)
			}
		}
	}
}

// detectAndRecoverOrphans finds session_locks rows idle past OrphanThreshold,
// marks the owning session as errored (terminal, no resume), and drops the
// stale lock so the slot becomes available again.
func (a *Admitter) detectAndRecoverOrphans(ctx context.Context, client *ent.Client) error {
	threshold := time.Now().Add(-a.config.OrphanThreshold)

	rows, err := a.db.QueryContext(ctx,
		`SELECT session_id, pod_id, heartbeat_at FROM session_locks WHERE heartbeat_at < $1`,
		threshold)
	if err != nil {
		return fmt.Errorf("failed to query stale session locks: %w", err)
	}

	type orphan struct {
		sessionID string
		podID     string
		heartbeat time.Time
	}
	var orphans []orphan
	for rows.Next() {
		var o orphan
		if err := rows.Scan(&o.sessionID, &o.podID, &o.heartbeat); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan stale session lock: %w", err)
		}
		orphans = append(orphans, o)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("failed to close stale lock scan: %w", err)
	}

	if len(orphans) == 0 {
		a.mu.Lock()
		a.lastOrphanScan = time.Now()
		a.mu.Unlock()
		return nil
	}

	slog.Warn("Detected orphaned pipeline locks", "count", len(orphans))

	recovered := 0
	for _, o := range orphans {
		errMsg := fmt.Sprintf("Orphaned: no heartbeat from pod %s since %s", o.podID, o.heartbeat.Format(time.RFC3339))
		if err := a.recoverOrphan(ctx, client, o.sessionID, errMsg); err != nil {
			slog.Error("Failed to recover orphaned pipeline", "session_id", o.sessionID, "error", err)
			continue
		}
		recovered++
	}

	a.mu.Lock()
	a.lastOrphanScan = time.Now()
	a.orphansRecovered += recovered
	a.mu.Unlock()

	return nil
}

// recoverOrphan marks session as errored, fails any still-streaming timeline
// events, and releases its lock, all in one transaction.
func (a *Admitter) recoverOrphan(ctx context.Context, client *ent.Client, sessionID, errMsg string) error {
	tx, err := client.Tx(ctx)
	if err != nil {
		return fmt.Errorf("failed to start recovery transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	if err := tx.Session.UpdateOneID(sessionID).
		SetPipelineStatus(session.PipelineStatusError).
		SetCompletedAt(now).
		SetErrorMessage(errMsg).
		SetPodID("").
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark session errored: %w", err)
	}

	if err := tx.TimelineEvent.Update().
		Where(
			timelineevent.SessionIDEQ(sessionID),
			timelineevent.StatusEQ(timelineevent.StatusStreaming),
		).
		SetStatus(timelineevent.StatusTimedOut).
		SetUpdatedAt(now).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to update timeline events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recovery: %w", err)
	}

	if _, err := a.db.ExecContext(ctx, `DELETE FROM session_locks WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to release orphaned lock: %w", err)
	}

	slog.Warn("Orphaned pipeline recovered", "session_id", sessionID)
	return nil
}
