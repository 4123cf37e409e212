// internal/scraper/ratelimiter.go
package scraper

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default configuration constants
const (
	DefaultBaseInterval        = 2 * time.Second
	DefaultMaxInterval         = 60 * time.Second
	DefaultErrorRateThreshold  = 0.1
	DefaultConsecutiveErrLimit = 2
)

// Adaptation behavior constants
const (
	ErrorRateMultiplier      = 3.0
	MaxConsecutiveMultiplier = 10.0
)

// RateLimiterConfig configures the request spacing floor.
type RateLimiterConfig struct {
	BaseInterval        time.Duration `yaml:"base_interval"`
	MaxInterval         time.Duration `yaml:"max_interval"`
	ErrorRateThreshold  float64       `yaml:"error_rate_threshold"`
	ConsecutiveErrLimit int           `yaml:"consecutive_error_limit"`
}

// AdaptiveRateLimiter enforces a minimum spacing between requests. The
// spacing widens while the server answers with errors and returns to the
// base interval as successes come back. It is a floor under the humanlike
// delays, not a replacement for them.
type AdaptiveRateLimiter struct {
	limiter *rate.Limiter
	mu      sync.Mutex

	baseInterval        time.Duration
	maxInterval         time.Duration
	errorRateThreshold  float64
	consecutiveErrLimit int

	errorCount      int
	successCount    int
	consecutiveErrs int
	currentInterval time.Duration
	waits           int
}

// RateLimiterStats is a snapshot of limiter counters.
type RateLimiterStats struct {
	CurrentInterval time.Duration
	Successes       int
	Errors          int
	ConsecutiveErrs int
	Waits           int
}

// NewAdaptiveRateLimiter creates a limiter with burst one.
func NewAdaptiveRateLimiter(config RateLimiterConfig) *AdaptiveRateLimiter {
	if config.BaseInterval <= 0 {
		config.BaseInterval = DefaultBaseInterval
	}
	if config.MaxInterval < config.BaseInterval {
		config.MaxInterval = DefaultMaxInterval
		if config.MaxInterval < config.BaseInterval {
			config.MaxInterval = config.BaseInterval
		}
	}
	if config.ErrorRateThreshold <= 0 {
		config.ErrorRateThreshold = DefaultErrorRateThreshold
	}
	if config.ConsecutiveErrLimit <= 0 {
		config.ConsecutiveErrLimit = DefaultConsecutiveErrLimit
	}

	return &AdaptiveRateLimiter{
		limiter:             rate.NewLimiter(rate.Every(config.BaseInterval), 1),
		baseInterval:        config.BaseInterval,
		maxInterval:         config.MaxInterval,
		errorRateThreshold:  config.ErrorRateThreshold,
		consecutiveErrLimit: config.ConsecutiveErrLimit,
		currentInterval:     config.BaseInterval,
	}
}

// Wait blocks until the next request may be sent.
func (rl *AdaptiveRateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	rl.waits++
	rl.mu.Unlock()
	return rl.limiter.Wait(ctx)
}

// ReportSuccess reports a successful request.
func (rl *AdaptiveRateLimiter) ReportSuccess() {
	rl.mu.Lock()
	rl.successCount++
	rl.consecutiveErrs = 0
	rl.mu.Unlock()
	rl.updateAdaptiveRate()
}

// ReportError reports a failed request.
func (rl *AdaptiveRateLimiter) ReportError() {
	rl.mu.Lock()
	rl.errorCount++
	rl.consecutiveErrs++
	rl.mu.Unlock()
	rl.updateAdaptiveRate()
}

// updateAdaptiveRate recomputes the spacing from the error pattern.
func (rl *AdaptiveRateLimiter) updateAdaptiveRate() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	total := rl.successCount + rl.errorCount
	if total == 0 {
		return
	}
	errorRate := float64(rl.errorCount) / float64(total)

	multiplier := 1.0
	if errorRate > rl.errorRateThreshold {
		multiplier = 1 + errorRate*ErrorRateMultiplier
	}
	if rl.consecutiveErrs >= rl.consecutiveErrLimit {
		ratio := float64(rl.consecutiveErrs) / float64(rl.consecutiveErrLimit)
		multiplier *= math.Min(ratio+1, MaxConsecutiveMultiplier)
	}

	next := time.Duration(float64(rl.baseInterval) * multiplier)
	if next > rl.maxInterval {
		next = rl.maxInterval
	}
	if next != rl.currentInterval {
		rl.currentInterval = next
		rl.limiter.SetLimit(rate.Every(next))
	}
}

// GetStats returns current limiter statistics.
func (rl *AdaptiveRateLimiter) GetStats() RateLimiterStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return RateLimiterStats{
		CurrentInterval: rl.currentInterval,
		Successes:       rl.successCount,
		Errors:          rl.errorCount,
		ConsecutiveErrs: rl.consecutiveErrs,
		Waits:           rl.waits,
	}
}

// String implements fmt.Stringer.
func (rl *AdaptiveRateLimiter) String() string {
	s := rl.GetStats()
	return fmt.Sprintf("AdaptiveRateLimiter{interval=%v, ok=%d, err=%d}", s.CurrentInterval, s.Successes, s.Errors)
}
