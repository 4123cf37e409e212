// Package pacing computes humanlike delays, breaks and traversal order for
// the poller. All randomness, clock reads and sleeps are injected so a run
// can be replayed deterministically.
package pacing

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/valpere/landwatch/internal/utils"
)

// Delay kinds used as log and metric labels.
const (
	KindRequest     = "request"
	KindListReview  = "list_review"
	KindComplexHop  = "complex_hop"
	KindTradeSwitch = "trade_switch"
	KindBackoff     = "backoff"
	KindReading     = "reading"
	KindLongBreak   = "long_break"
)

const (
	fatiguePerHour     = 0.1
	fatigueWeight      = 0.5
	breakRecovery      = 0.2
	breakThresholdMin  = 5
	breakThresholdMax  = 10
	breakProbability   = 0.8
	randomBreakChance  = 0.05
	readingPauseChance = 0.3
	readingShape       = 2.0
	readingScale       = 1.5
	readingUnit        = 30 * time.Second
)

// Rand is the random source used by the engine. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	NormFloat64() float64
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// Observer receives pacing events, typically for metrics.
type Observer interface {
	ObserveDelay(kind string, d time.Duration)
	ObserveBreak(d time.Duration)
}

// State is the mutable pacing state of one polling session.
type State struct {
	RequestCount   int
	LastBreakCount int
	Fatigue        float64
	SessionStart   time.Time
	Breaks         int
}

// Config configures an Engine. Zero fields get production defaults.
type Config struct {
	Profile  string
	Rand     Rand
	Sleeper  Sleeper
	Now      func() time.Time
	Logger   *slog.Logger
	Observer Observer
}

// Engine owns the pacing state and draws all pacing decisions.
type Engine struct {
	mu        sync.Mutex
	profile   Profile
	rnd       Rand
	sleeper   Sleeper
	now       func() time.Time
	logger    *slog.Logger
	observer  Observer
	state     State
	recovered float64
}

// NewEngine creates an engine whose session starts now.
func NewEngine(config Config) (*Engine, error) {
	profile, err := LookupProfile(config.Profile)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeConfiguration, "pacing profile")
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Rand == nil {
		config.Rand = rand.New(rand.NewSource(config.Now().UnixNano()))
	}
	if config.Sleeper == nil {
		config.Sleeper = TimerSleeper{}
	}
	if config.Logger == nil {
		config.Logger = utils.NewComponentLogger("pacing")
	}

	return &Engine{
		profile:  profile,
		rnd:      config.Rand,
		sleeper:  config.Sleeper,
		now:      config.Now,
		logger:   config.Logger,
		observer: config.Observer,
		state:    State{SessionStart: config.Now()},
	}, nil
}

// Profile returns the active pacing profile.
func (e *Engine) Profile() Profile {
	return e.profile
}

// State returns a snapshot of the pacing state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// NextDelay draws a delay for the given kind. The base draw is normal with
// mean (min+max)/2 and deviation (max-min)/4 clipped to [min,max] minutes,
// then scaled by fatigue and by the local time of day.
func (e *Engine) NextDelay(kind string, minMinutes, maxMinutes float64) (time.Duration, error) {
	if minMinutes < 0 || maxMinutes < 0 || minMinutes > maxMinutes ||
		math.IsNaN(minMinutes) || math.IsNaN(maxMinutes) {
		return 0, utils.NewError(utils.ErrCodeInvalidRange,
			fmt.Sprintf("invalid delay range [%g, %g] minutes", minMinutes, maxMinutes)).
			WithContext("kind", kind).Build()
	}

	e.mu.Lock()
	fatigue := e.updateFatigueLocked(e.state.SessionStart)
	mean := (minMinutes + maxMinutes) / 2
	std := (maxMinutes - minMinutes) / 4
	base := clippedNormal(e.rnd, mean, std, minMinutes, maxMinutes)
	now := e.now()
	e.mu.Unlock()

	minutes := base * (1 + fatigue*fatigueWeight) * TimeOfDayMultiplier(now)
	return minutesToDuration(minutes), nil
}

// TimeOfDayMultiplier slows activity at night and speeds it up during
// office hours.
func TimeOfDayMultiplier(t time.Time) float64 {
	hour := t.Hour()
	switch {
	case hour >= 9 && hour <= 18:
		return 0.8
	case hour >= 22 || hour <= 6:
		return 1.3
	default:
		return 1.0
	}
}

// ShouldTakeBreak decides whether a break is due. Past a random threshold
// of 5 to 10 requests since the last break it answers yes 80% of the time;
// before that it answers yes 5% of the time.
func (e *Engine) ShouldTakeBreak(requestCount, lastBreakCount int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	threshold := breakThresholdMin + e.rnd.Intn(breakThresholdMax-breakThresholdMin+1)
	if requestCount-lastBreakCount >= threshold {
		return e.rnd.Float64() < breakProbability
	}
	return e.rnd.Float64() < randomBreakChance
}

// BreakDuration draws Beta(2,2) remapped onto the profile's break range.
func (e *Engine) BreakDuration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.breakDurationLocked()
}

func (e *Engine) breakDurationLocked() time.Duration {
	b := betaSample(e.rnd, 2, 2)
	lo := float64(e.profile.BreakMin)
	hi := float64(e.profile.BreakMax)
	return time.Duration(lo + b*(hi-lo))
}

// UpdateFatigue recomputes fatigue from the elapsed session time. The
// level ramps linearly to 1.0 over ten hours and is lowered by the
// recovery earned through breaks.
func (e *Engine) UpdateFatigue(sessionStart time.Time) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateFatigueLocked(sessionStart)
}

func (e *Engine) updateFatigueLocked(sessionStart time.Time) float64 {
	hours := e.now().Sub(sessionStart).Hours()
	if hours < 0 {
		hours = 0
	}
	ramp := math.Min(1, hours*fatiguePerHour)
	e.state.Fatigue = clamp(ramp-e.recovered, 0, 1)
	return e.state.Fatigue
}

// ReadingPause draws Gamma(2, 1.5) x 30s clipped to the profile's range.
func (e *Engine) ReadingPause() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := gammaSample(e.rnd, readingShape, readingScale) * float64(readingUnit)
	return time.Duration(clamp(v, float64(e.profile.ReadingMin), float64(e.profile.ReadingMax)))
}

// RecordRequest counts one outgoing request.
func (e *Engine) RecordRequest() {
	e.mu.Lock()
	e.state.RequestCount++
	e.mu.Unlock()
}

// MaybeTakeBreak takes a break when ShouldTakeBreak says so.
func (e *Engine) MaybeTakeBreak(ctx context.Context) (bool, error) {
	s := e.State()
	if !e.ShouldTakeBreak(s.RequestCount, s.LastBreakCount) {
		return false, nil
	}
	return true, e.TakeBreak(ctx)
}

// TakeBreak sleeps for BreakDuration, resets the break counter and lowers
// fatigue by 0.2.
func (e *Engine) TakeBreak(ctx context.Context) error {
	e.mu.Lock()
	d := e.breakDurationLocked()
	e.mu.Unlock()

	e.logger.Info("taking a break", "duration", d.Round(time.Second))
	if e.observer != nil {
		e.observer.ObserveBreak(d)
	}
	if err := e.sleeper.Sleep(ctx, d); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fatigue := e.updateFatigueLocked(e.state.SessionStart)
	e.recovered += math.Min(breakRecovery, fatigue)
	e.updateFatigueLocked(e.state.SessionStart)
	e.state.LastBreakCount = e.state.RequestCount
	e.state.Breaks++
	return nil
}

// Pause draws NextDelay for kind and sleeps it.
func (e *Engine) Pause(ctx context.Context, kind string, minMinutes, maxMinutes float64) error {
	d, err := e.NextDelay(kind, minMinutes, maxMinutes)
	if err != nil {
		return err
	}
	return e.Sleep(ctx, kind, d)
}

// PauseUniform sleeps a uniform draw from [min, max).
func (e *Engine) PauseUniform(ctx context.Context, kind string, min, max time.Duration) error {
	e.mu.Lock()
	d := time.Duration(uniform(e.rnd, float64(min), float64(max)))
	e.mu.Unlock()
	return e.Sleep(ctx, kind, d)
}

// MaybeReadingPause sleeps a ReadingPause 30% of the time.
func (e *Engine) MaybeReadingPause(ctx context.Context) error {
	if !e.Chance(readingPauseChance) {
		return nil
	}
	return e.Sleep(ctx, KindReading, e.ReadingPause())
}

// Sleep sleeps d through the injected sleeper and reports it.
func (e *Engine) Sleep(ctx context.Context, kind string, d time.Duration) error {
	e.logger.Debug("pausing", "kind", kind, "duration", d.Round(time.Second))
	if e.observer != nil {
		e.observer.ObserveDelay(kind, d)
	}
	return e.sleeper.Sleep(ctx, d)
}

// Chance returns true with probability p.
func (e *Engine) Chance(p float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Float64() < p
}

// Intn returns a uniform int in [0, n).
func (e *Engine) Intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Intn(n)
}

// Shuffle permutes n elements in place through swap.
func (e *Engine) Shuffle(n int, swap func(i, j int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rnd.Shuffle(n, swap)
}

func minutesToDuration(minutes float64) time.Duration {
	return time.Duration(minutes * float64(time.Minute))
}
