package capacity

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/resumeforge/pipeline/pkg/config"
)

// Admitter grants and releases admission slots for pipeline execution,
// enforcing the global and per-user concurrency caps from a pod's own
// database connection. All pods enforce the caps independently against the
// same session_locks table, counting rows directly rather than coordinating
// through a shared in-memory state.
type Admitter struct {
	db     *sql.DB
	podID  string
	config *config.CapacityConfig

	mu               sync.Mutex
	lastOrphanScan   time.Time
	orphansRecovered int
}

// NewAdmitter creates an Admitter bound to db's session_locks table.
func NewAdmitter(db *sql.DB, podID string, cfg *config.CapacityConfig) *Admitter {
	return &Admitter{db: db, podID: podID, config: cfg}
}

// TryAdmit attempts to grant an admission slot for sessionID, owned by
// ownerUserID. It returns (true, nil) if a session_locks row was inserted or
// (false, nil) if the global or per-user cap is currently exhausted.
// Admission fails OPEN: if the database cannot be reached at any point in
// the check, the slot is granted anyway rather than blocking the session on
// an infrastructure blip, and the error is only logged. This makes TryAdmit
// effectively never return a non-nil error; the return type is kept so a
// caller can still treat one defensively as "try again next poll" if it ever
// occurs.
func (a *Admitter) TryAdmit(ctx context.Context, sessionID, ownerUserID string) (bool, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin admission transaction, admitting session (fail open)", "session_id", sessionID, "error", err)
		return true, nil
	}
	defer func() { _ = tx.Rollback() }()

	var globalActive int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM session_locks`).Scan(&globalActive); err != nil {
		slog.Error("failed to count active locks, admitting session (fail open)", "session_id", sessionID, "error", err)
		return true, nil
	}
	if globalActive >= a.config.GlobalMaxConcurrent {
		return false, nil
	}

	var userActive int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM session_locks WHERE owner_user_id = $1`, ownerUserID,
	).Scan(&userActive); err != nil {
		slog.Error("failed to count user's active locks, admitting session (fail open)", "session_id", sessionID, "error", err)
		return true, nil
	}
	if userActive >= a.config.PerUserMaxConcurrent {
		return false, nil
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO session_locks (session_id, owner_user_id, pod_id, acquired_at, heartbeat_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (session_id) DO NOTHING`,
		sessionID, ownerUserID, a.podID)
	if err != nil {
		slog.Error("failed to insert session lock, admitting session without a lock row (fail open)", "session_id", sessionID, "error", err)
		return true, nil
	}
	rows, err := res.RowsAffected()
	if err != nil {
		slog.Error("failed to confirm session lock insert, admitting session without a lock row (fail open)", "session_id", sessionID, "error", err)
		return true, nil
	}
	if rows == 0 {
		// Already locked by a concurrent admission elsewhere; not an error.
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit admission, admitting session without a lock row (fail open)", "session_id", sessionID, "error", err)
		return true, nil
	}
	return true, nil
}

// Release removes the admission slot for sessionID, whether the pipeline
// finished, failed, or was cancelled. Safe to call even if no lock exists.
func (a *Admitter) Release(ctx context.Context, sessionID string) error {
	if _, err := a.db.ExecContext(ctx,
		`DELETE FROM session_locks WHERE session_id = $1`, sessionID,
	); err != nil {
		return fmt.Errorf("failed to release session lock: %w", err)
	}
	return nil
}

// Heartbeat refreshes the lock's heartbeat_at so orphan recovery does not
// treat a slow-but-alive pipeline as abandoned.
func (a *Admitter) Heartbeat(ctx context.Context, sessionID string) error {
	if _, err := a.db.ExecContext(ctx,
		`UPDATE session_locks SET heartbeat_at = now() WHERE session_id = $1`, sessionID,
	); err != nil {
		return fmt.Errorf("failed to heartbeat session lock: %w", err)
	}
	return nil
}

// Health reports the admission layer's current load. DB errors are
// reported but do not themselves flip IsHealthy false for a single blip —
// the Pipeline Coordinator's poll loop is the thing that actually stops
// admitting, and it does so by getting errors back from TryAdmit.
func (a *Admitter) Health(ctx context.Context) *Health {
	var globalActive int
	err := a.db.QueryRowContext(ctx, `SELECT count(*) FROM session_locks`).Scan(&globalActive)
	dbHealthy := err == nil

	var dbError string
	if err != nil {
		dbError = err.Error()
		slog.Error("Failed to query active lock count for health check", "pod_id", a.podID, "error", err)
	}

	a.mu.Lock()
	lastScan := a.lastOrphanScan
	recovered := a.orphansRecovered
	a.mu.Unlock()

	return &Health{
		IsHealthy:        dbHealthy,
		DBReachable:      dbHealthy,
		DBError:          dbError,
		PodID:            a.podID,
		GlobalActive:     globalActive,
		GlobalMax:        a.config.GlobalMaxConcurrent,
		LastOrphanScan:   lastScan,
		OrphansRecovered: recovered,
	}
}
