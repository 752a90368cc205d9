package config

import "time"

// CapacityConfig contains admission and worker pool configuration.
// These values control the global/per-user pipeline caps and how the
// Pipeline Coordinator's workers poll for admitted sessions.
type CapacityConfig struct {
	// WorkerCount is the number of coordinator worker goroutines per
	// replica/pod. Each worker independently polls and drives sessions.
	WorkerCount int `yaml:"worker_count"`

	// GlobalMaxConcurrent is MAX_GLOBAL_PIPELINES: the system-wide cap on
	// concurrently running pipelines, enforced by counting live rows in
	// session_locks.
	GlobalMaxConcurrent int `yaml:"global_max_concurrent"`

	// PerUserMaxConcurrent is the cap on concurrently running pipelines
	// owned by a single user.
	PerUserMaxConcurrent int `yaml:"per_user_max_concurrent"`

	// PollInterval is the base interval for checking pending sessions.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// SessionTimeout is the maximum time a pipeline can run end to end.
	SessionTimeout time.Duration `yaml:"session_timeout"`

	// GracefulShutdownTimeout is the max time to wait for active sessions
	// to reach a safe checkpoint during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// OrphanDetectionInterval is how often to scan session_locks for rows
	// that have gone stale.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// OrphanThreshold is the idle threshold past which a session_locks row
	// no longer counts as live — the "rows younger than an idle threshold
	// count as live" rule from the persisted state layout.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`

	// SubmissionRateLimit is the sustained rate (intake submissions per
	// second) allowed per owner before POST /sessions starts rejecting
	// with 429, ahead of the DB-backed concurrency check in TryAdmit.
	SubmissionRateLimit float64 `yaml:"submission_rate_limit"`

	// SubmissionBurst is the bucket size backing SubmissionRateLimit.
	SubmissionBurst int `yaml:"submission_burst"`

	// RateLimiterCacheSize bounds the number of per-owner limiters held in
	// memory at once; least-recently-used owners are evicted rather than
	// left to grow unbounded across the lifetime of a pod.
	RateLimiterCacheSize int `yaml:"rate_limiter_cache_size"`
}

// DefaultCapacityConfig returns the built-in capacity defaults.
func DefaultCapacityConfig() *CapacityConfig {
	return &CapacityConfig{
		WorkerCount:             5,
		GlobalMaxConcurrent:     10,
		PerUserMaxConcurrent:    2,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		SessionTimeout:          15 * time.Minute,
		GracefulShutdownTimeout: 15 * time.Minute,
		OrphanDetectionInterval: 2 * time.Minute,
		OrphanThreshold:         5 * time.Minute,
		SubmissionRateLimit:     0.2,
		SubmissionBurst:         3,
		RateLimiterCacheSize:    4096,
	}
}
