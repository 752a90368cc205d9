package capacity

import (
	"github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/resumeforge/pipeline/pkg/config"
)

// SubmissionLimiter enforces a per-owner token-bucket cap on
// POST /sessions, ahead of the database-backed concurrency check in
// Admitter.TryAdmit. It exists to reject an obviously abusive burst of
// submissions cheaply, without round-tripping to session_locks for each
// one; it does not replace TryAdmit's authoritative, cross-pod cap.
//
// Limiters are cached per owner in a bounded LRU rather than a plain map so
// a pod that has served many distinct owners over its lifetime doesn't
// retain a *rate.Limiter per owner forever.
type SubmissionLimiter struct {
	limiters *lru.Cache[string, *rate.Limiter]
	r        rate.Limit
	burst    int
}

// NewSubmissionLimiter builds a SubmissionLimiter from cfg's rate/burst/
// cache-size knobs.
func NewSubmissionLimiter(cfg *config.CapacityConfig) *SubmissionLimiter {
	size := cfg.RateLimiterCacheSize
	if size <= 0 {
		size = 4096
	}
	cache, _ := lru.New[string, *rate.Limiter](size)
	return &SubmissionLimiter{
		limiters: cache,
		r:        rate.Limit(cfg.SubmissionRateLimit),
		burst:    cfg.SubmissionBurst,
	}
}

// Allow reports whether ownerUserID may submit another session right now,
// consuming a token from that owner's bucket if so.
func (l *SubmissionLimiter) Allow(ownerUserID string) bool {
	limiter, ok := l.limiters.Get(ownerUserID)
	if !ok {
		limiter = rate.NewLimiter(l.r, l.burst)
		l.limiters.Add(ownerUserID, limiter)
	}
	return limiter.Allow()
}
