// internal/scraper/types.go
package scraper

import (
	"time"

	"github.com/valpere/landwatch/internal/utils"
)

// DelayRange is a humanlike delay range in minutes.
type DelayRange struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Validate checks that the range is usable by the pacing engine.
func (d DelayRange) Validate() error {
	if d.Min < 0 || d.Max < 0 || d.Min > d.Max {
		return utils.NewError(utils.ErrCodeInvalidRange, "delay range must satisfy 0 <= min <= max").
			WithContext("min", d.Min).WithContext("max", d.Max).Build()
	}
	return nil
}

// Scale multiplies both bounds.
func (d DelayRange) Scale(f float64) DelayRange {
	return DelayRange{Min: d.Min * f, Max: d.Max * f}
}

// RetryConfig is the retry policy of a single logical fetch.
type RetryConfig struct {
	Attempts          int           `yaml:"attempts"`
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"`
	ForbiddenDelayMin time.Duration `yaml:"forbidden_delay_min"`
	ForbiddenDelayMax time.Duration `yaml:"forbidden_delay_max"`
	ErrorDelayMin     time.Duration `yaml:"error_delay_min"`
	ErrorDelayMax     time.Duration `yaml:"error_delay_max"`
}

// DefaultRetryConfig returns the production retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:          3,
		RateLimitCooldown: 30 * time.Minute,
		ForbiddenDelayMin: 5 * time.Second,
		ForbiddenDelayMax: 10 * time.Second,
		ErrorDelayMin:     3 * time.Second,
		ErrorDelayMax:     10 * time.Second,
	}
}

func (r RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if r.Attempts <= 0 {
		r.Attempts = d.Attempts
	}
	if r.RateLimitCooldown <= 0 {
		r.RateLimitCooldown = d.RateLimitCooldown
	}
	if r.ForbiddenDelayMax <= 0 {
		r.ForbiddenDelayMin, r.ForbiddenDelayMax = d.ForbiddenDelayMin, d.ForbiddenDelayMax
	}
	if r.ErrorDelayMax <= 0 {
		r.ErrorDelayMin, r.ErrorDelayMax = d.ErrorDelayMin, d.ErrorDelayMax
	}
	return r
}

// TraversalConfig drives ScrapeRegion.
type TraversalConfig struct {
	RequestDelay     DelayRange    `yaml:"request_delay"`
	ListReviewDelay  DelayRange    `yaml:"list_review_delay"`
	ComplexHopDelay  DelayRange    `yaml:"complex_hop_delay"`
	TradeSwitchDelay DelayRange    `yaml:"trade_switch_delay"`
	DetailDelay      DelayRange    `yaml:"detail_delay"`
	LongBreakChance  float64       `yaml:"long_break_chance"`
	LongBreakMin     time.Duration `yaml:"long_break_min"`
	LongBreakMax     time.Duration `yaml:"long_break_max"`
	MaxComplexes     int           `yaml:"max_complexes"`
	FetchDetails     bool          `yaml:"fetch_details"`
	VisitLanding     bool          `yaml:"visit_landing"`
}

// DefaultTraversalConfig returns the fast-profile traversal timings.
func DefaultTraversalConfig() TraversalConfig {
	return TraversalConfig{
		RequestDelay:     DelayRange{Min: 0.5, Max: 1.5},
		ListReviewDelay:  DelayRange{Min: 1.0, Max: 2.5},
		ComplexHopDelay:  DelayRange{Min: 2.5, Max: 5.0},
		TradeSwitchDelay: DelayRange{Min: 15, Max: 30},
		DetailDelay:      DelayRange{Min: 0.5, Max: 1.5},
		LongBreakChance:  0.2,
		LongBreakMin:     7*time.Minute + 30*time.Second,
		LongBreakMax:     15 * time.Minute,
		MaxComplexes:     10,
		VisitLanding:     true,
	}
}

// Outcome is the terminal state of one fetch attempt.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeForbidden   Outcome = "forbidden"
	OutcomeOtherError  Outcome = "other_error"
	OutcomeMalformed   Outcome = "malformed"
)

// FetchReport describes how a logical fetch went.
type FetchReport struct {
	URL        string
	Attempts   int
	Retries    int
	Refreshes  int
	Rotations  int
	Cooldown   time.Duration
	StatusCode int
	Outcome    Outcome
}

// Observer receives fetch events, typically for metrics.
type Observer interface {
	ObserveRequest(endpoint string, outcome Outcome, d time.Duration)
	ObserveCooldown(reason string, d time.Duration)
}
