package pacing

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/valpere/landwatch/internal/utils"
)

// stubRand returns fixed values so break decisions can be forced.
type stubRand struct {
	float float64
	norm  float64
	intn  int
}

func (s stubRand) Float64() float64                   { return s.float }
func (s stubRand) NormFloat64() float64               { return s.norm }
func (s stubRand) Intn(n int) int                     { return s.intn % n }
func (s stubRand) Shuffle(n int, swap func(i, j int)) {}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = utils.DiscardLogger()
	}
	if cfg.Sleeper == nil {
		cfg.Sleeper = &RecordingSleeper{}
	}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestNextDelayBounds(t *testing.T) {
	ranges := [][2]float64{{0.5, 1.5}, {1, 2.5}, {2.5, 5}, {15, 30}, {0, 0}, {3, 3}}
	hours := []int{3, 8, 12, 20, 23}

	for _, hour := range hours {
		start := time.Date(2024, 3, 1, hour, 0, 0, 0, time.Local)
		for _, elapsed := range []time.Duration{0, 5 * time.Hour, 30 * time.Hour} {
			now := start.Add(elapsed)
			e := newTestEngine(t, Config{
				Rand: rand.New(rand.NewSource(int64(hour)*31 + int64(elapsed))),
				Now:  fixedClock(start),
			})
			e.now = fixedClock(now)

			for _, r := range ranges {
				lo := time.Duration(r[0] * 0.8 * float64(time.Minute))
				hi := time.Duration(r[1] * 1.5 * 1.3 * float64(time.Minute))
				for i := 0; i < 200; i++ {
					d, err := e.NextDelay(KindRequest, r[0], r[1])
					if err != nil {
						t.Fatalf("NextDelay(%v) error: %v", r, err)
					}
					if d < 0 || d < lo-time.Millisecond || d > hi+time.Millisecond {
						t.Fatalf("NextDelay(%v) at %s = %v, outside [%v, %v]", r, now.Format("15:04"), d, lo, hi)
					}
				}
			}
		}
	}
}

func TestNextDelayInvalidRange(t *testing.T) {
	e := newTestEngine(t, Config{Rand: rand.New(rand.NewSource(1))})
	tests := [][2]float64{{-1, 2}, {2, -1}, {5, 1}}
	for _, r := range tests {
		_, err := e.NextDelay(KindRequest, r[0], r[1])
		if !errors.Is(err, utils.ErrInvalidRange) {
			t.Errorf("NextDelay(%v) error = %v, want InvalidRange", r, err)
		}
	}
}

func TestNextDelayMultipliers(t *testing.T) {
	// A zero normal draw lands exactly on the mean.
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	tests := []struct {
		name    string
		now     time.Time
		elapsed time.Duration
		want    time.Duration
	}{
		{"office hours", start, 0, time.Duration(0.8 * float64(time.Minute))},
		{"evening", time.Date(2024, 3, 1, 20, 0, 0, 0, time.Local), 0, time.Minute},
		{"night", time.Date(2024, 3, 1, 23, 0, 0, 0, time.Local), 0, time.Duration(1.3 * float64(time.Minute))},
		{"tired at night", time.Date(2024, 3, 2, 2, 0, 0, 0, time.Local), 10 * time.Hour, time.Duration(1.5 * 1.3 * float64(time.Minute))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, Config{Rand: stubRand{}, Now: fixedClock(tt.now.Add(-tt.elapsed))})
			e.now = fixedClock(tt.now)
			got, err := e.NextDelay(KindRequest, 0.5, 1.5)
			if err != nil {
				t.Fatal(err)
			}
			if diff := got - tt.want; diff > time.Millisecond || diff < -time.Millisecond {
				t.Errorf("NextDelay = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeOfDayMultiplier(t *testing.T) {
	tests := map[int]float64{0: 1.3, 6: 1.3, 7: 1.0, 8: 1.0, 9: 0.8, 18: 0.8, 19: 1.0, 21: 1.0, 22: 1.3, 23: 1.3}
	for hour, want := range tests {
		at := time.Date(2024, 1, 1, hour, 30, 0, 0, time.Local)
		if got := TimeOfDayMultiplier(at); got != want {
			t.Errorf("TimeOfDayMultiplier(%02d:30) = %v, want %v", hour, got, want)
		}
	}
}

func TestShouldTakeBreakPastThreshold(t *testing.T) {
	// Threshold draws 5..10; 11 requests is past any threshold.
	e := newTestEngine(t, Config{Rand: stubRand{float: 0.79, intn: 5}})
	if !e.ShouldTakeBreak(11, 0) {
		t.Error("expected a break once past the maximum threshold")
	}

	e = newTestEngine(t, Config{Rand: stubRand{float: 0.81, intn: 5}})
	if e.ShouldTakeBreak(11, 0) {
		t.Error("draw above 0.8 must not break")
	}
}

func TestShouldTakeBreakBeforeThreshold(t *testing.T) {
	e := newTestEngine(t, Config{Rand: stubRand{float: 0.04, intn: 0}})
	if !e.ShouldTakeBreak(2, 0) {
		t.Error("draw below 5% should break early")
	}
	e = newTestEngine(t, Config{Rand: stubRand{float: 0.06, intn: 0}})
	if e.ShouldTakeBreak(2, 0) {
		t.Error("draw above 5% must not break early")
	}
}

func TestShouldTakeBreakSeededIsReproducible(t *testing.T) {
	run := func() []bool {
		e := newTestEngine(t, Config{Rand: rand.New(rand.NewSource(42))})
		out := make([]bool, 0, 30)
		for i := 0; i < 30; i++ {
			out = append(out, e.ShouldTakeBreak(i, 0))
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("decision %d differs between identically seeded runs", i)
		}
	}
}

func TestBreakDurationRange(t *testing.T) {
	for _, name := range ProfileNames() {
		p, _ := LookupProfile(name)
		e := newTestEngine(t, Config{Profile: name, Rand: rand.New(rand.NewSource(7))})
		for i := 0; i < 500; i++ {
			d := e.BreakDuration()
			if d < p.BreakMin || d > p.BreakMax {
				t.Fatalf("%s BreakDuration = %v, outside [%v, %v]", name, d, p.BreakMin, p.BreakMax)
			}
		}
	}
}

func TestReadingPauseRange(t *testing.T) {
	for _, name := range ProfileNames() {
		p, _ := LookupProfile(name)
		e := newTestEngine(t, Config{Profile: name, Rand: rand.New(rand.NewSource(11))})
		for i := 0; i < 500; i++ {
			d := e.ReadingPause()
			if d < p.ReadingMin || d > p.ReadingMax {
				t.Fatalf("%s ReadingPause = %v, outside [%v, %v]", name, d, p.ReadingMin, p.ReadingMax)
			}
		}
	}
}

func TestUpdateFatigueRamp(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.Local)
	e := newTestEngine(t, Config{Rand: stubRand{}, Now: fixedClock(start)})

	tests := []struct {
		elapsed time.Duration
		want    float64
	}{
		{0, 0},
		{time.Hour, 0.1},
		{5 * time.Hour, 0.5},
		{10 * time.Hour, 1},
		{25 * time.Hour, 1},
	}
	prev := -1.0
	for _, tt := range tests {
		e.now = fixedClock(start.Add(tt.elapsed))
		got := e.UpdateFatigue(start)
		if got < tt.want-1e-9 || got > tt.want+1e-9 {
			t.Errorf("fatigue after %v = %v, want %v", tt.elapsed, got, tt.want)
		}
		if got < prev {
			t.Errorf("fatigue decreased without a break: %v -> %v", prev, got)
		}
		prev = got
	}
}

func TestTakeBreakResetsCounterAndFatigue(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.Local)
	sleeper := &RecordingSleeper{}
	e := newTestEngine(t, Config{Rand: rand.New(rand.NewSource(3)), Now: fixedClock(start), Sleeper: sleeper})
	e.now = fixedClock(start.Add(5 * time.Hour))

	for i := 0; i < 8; i++ {
		e.RecordRequest()
	}
	if err := e.TakeBreak(context.Background()); err != nil {
		t.Fatal(err)
	}

	s := e.State()
	if s.LastBreakCount != 8 || s.RequestCount != 8 {
		t.Errorf("break counter not reset: %+v", s)
	}
	if s.Fatigue < 0.3-1e-9 || s.Fatigue > 0.3+1e-9 {
		t.Errorf("fatigue after break = %v, want 0.3", s.Fatigue)
	}
	if s.Breaks != 1 || len(sleeper.Sleeps()) != 1 {
		t.Errorf("expected one recorded break, got %d sleeps", len(sleeper.Sleeps()))
	}

	// Fatigue never drops below zero.
	e.now = fixedClock(start.Add(time.Hour))
	_ = e.TakeBreak(context.Background())
	if f := e.State().Fatigue; f < 0 {
		t.Errorf("fatigue went negative: %v", f)
	}
}

func TestTakeBreakHonoursCancel(t *testing.T) {
	e := newTestEngine(t, Config{Rand: rand.New(rand.NewSource(3)), Sleeper: TimerSleeper{}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.TakeBreak(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("TakeBreak error = %v, want context.Canceled", err)
	}
	if e.State().Breaks != 0 {
		t.Error("a cancelled break must not count")
	}
}

func TestUnknownProfile(t *testing.T) {
	_, err := NewEngine(Config{Profile: "turbo"})
	if !errors.Is(err, utils.ErrConfiguration) {
		t.Errorf("NewEngine error = %v, want configuration error", err)
	}
}

type countingObserver struct {
	delays map[string]int
	breaks int
}

func (o *countingObserver) ObserveDelay(kind string, d time.Duration) { o.delays[kind]++ }
func (o *countingObserver) ObserveBreak(d time.Duration)              { o.breaks++ }

func TestPauseReportsToObserver(t *testing.T) {
	obs := &countingObserver{delays: map[string]int{}}
	sleeper := &RecordingSleeper{}
	e := newTestEngine(t, Config{Rand: rand.New(rand.NewSource(5)), Observer: obs, Sleeper: sleeper})

	if err := e.Pause(context.Background(), KindComplexHop, 2.5, 5); err != nil {
		t.Fatal(err)
	}
	if err := e.PauseUniform(context.Background(), KindLongBreak, 7*time.Minute+30*time.Second, 15*time.Minute); err != nil {
		t.Fatal(err)
	}
	if obs.delays[KindComplexHop] != 1 || obs.delays[KindLongBreak] != 1 {
		t.Errorf("observer saw %v", obs.delays)
	}
	sleeps := sleeper.Sleeps()
	if len(sleeps) != 2 || sleeps[1] < 7*time.Minute+30*time.Second || sleeps[1] >= 15*time.Minute {
		t.Errorf("unexpected sleeps %v", sleeps)
	}
}
