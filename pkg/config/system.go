package config

// RateLimitConfig controls the per-user token-bucket rate limiter that
// wraps mutating endpoints and the SSE endpoint.
type RateLimitConfig struct {
	// RequestsPerSecond is the steady-state refill rate of each user's bucket.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the bucket's maximum token count.
	Burst int `yaml:"burst"`

	// MaxTrackedUsers bounds the LRU holding per-user buckets so an
	// attacker cycling identities cannot exhaust memory.
	MaxTrackedUsers int `yaml:"max_tracked_users"`
}

// DefaultRateLimitConfig returns the built-in rate-limit defaults.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerSecond: 5,
		Burst:             10,
		MaxTrackedUsers:   10000,
	}
}
