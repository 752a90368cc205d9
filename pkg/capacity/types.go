// Package capacity implements the Capacity/Admission layer: the global and
// per-user concurrency caps on running pipelines, and recovery of sessions
// abandoned by a crashed pod.
//
// Admission state lives in session_locks, a table independent of
// sessions.pipeline_status: a pipeline can be "running" while its lock has
// gone stale after a worker crash, so the two are tracked separately and
// reconciled by orphan recovery.
package capacity

import (
	"errors"
	"time"
)

// ErrAtCapacity indicates the global or per-user concurrency cap has been
// reached; the caller should leave the session idle and retry on the next
// poll.
var ErrAtCapacity = errors.New("at capacity")

// ErrNoSessionsAvailable indicates there is no idle session to admit.
var ErrNoSessionsAvailable = errors.New("no sessions available")

// Health reports the admission layer's view of system load, surfaced on the
// health/readiness route.
type Health struct {
	IsHealthy        bool      `json:"is_healthy"`
	DBReachable      bool      `json:"db_reachable"`
	DBError          string    `json:"db_error,omitempty"`
	PodID            string    `json:"pod_id"`
	GlobalActive     int       `json:"global_active"`
	GlobalMax        int       `json:"global_max"`
	LastOrphanScan   time.Time `json:"last_orphan_scan"`
	OrphansRecovered int       `json:"orphans_recovered"`
}
