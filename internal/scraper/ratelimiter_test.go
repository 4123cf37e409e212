package scraper

import (
	"context"
	"testing"
	"time"
)

func TestAdaptiveRateLimiterDefaults(t *testing.T) {
	rl := NewAdaptiveRateLimiter(RateLimiterConfig{})
	if s := rl.GetStats(); s.CurrentInterval != DefaultBaseInterval {
		t.Errorf("interval = %v, want %v", s.CurrentInterval, DefaultBaseInterval)
	}
}

func TestAdaptiveRateLimiterWidensOnErrors(t *testing.T) {
	rl := NewAdaptiveRateLimiter(RateLimiterConfig{BaseInterval: time.Second, MaxInterval: 20 * time.Second})

	rl.ReportError()
	rl.ReportError()
	rl.ReportError()
	widened := rl.GetStats().CurrentInterval
	if widened <= time.Second {
		t.Fatalf("interval did not widen: %v", widened)
	}
	if widened > 20*time.Second {
		t.Errorf("interval %v exceeds max", widened)
	}

	for i := 0; i < 100; i++ {
		rl.ReportSuccess()
	}
	if got := rl.GetStats().CurrentInterval; got != time.Second {
		t.Errorf("interval after recovery = %v, want base", got)
	}
}

func TestAdaptiveRateLimiterWait(t *testing.T) {
	rl := NewAdaptiveRateLimiter(RateLimiterConfig{BaseInterval: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if rl.GetStats().Waits != 3 {
		t.Errorf("waits = %d", rl.GetStats().Waits)
	}
}
