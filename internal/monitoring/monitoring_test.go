package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/valpere/landwatch/internal/scraper"
	"github.com/valpere/landwatch/internal/utils"
)

func TestMetricsObservers(t *testing.T) {
	m := NewMetrics(MetricsConfig{})

	m.ObserveRequest("articles", scraper.OutcomeSuccess, 200*time.Millisecond)
	m.ObserveRequest("articles", scraper.OutcomeRateLimited, 100*time.Millisecond)
	m.ObserveRequest("articles", scraper.OutcomeSuccess, 300*time.Millisecond)
	m.ObserveCooldown("rate_limited", 30*time.Minute)
	m.ObserveDelay("complex_hop", 3*time.Minute)
	m.ObserveBreak(10 * time.Minute)
	m.ObserveSessionEvent("rotate")
	m.ObserveListings("fetched", 6)
	m.ObserveListings("new", 0)
	m.ObserveRun(time.Hour, nil)
	m.SetStored(4, 2)

	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("articles", "success")); got != 2 {
		t.Errorf("requests success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.cooldownSeconds.WithLabelValues("rate_limited")); got != 1800 {
		t.Errorf("cooldown seconds = %v, want 1800", got)
	}
	if got := testutil.ToFloat64(m.delaySeconds.WithLabelValues("complex_hop")); got != 180 {
		t.Errorf("delay seconds = %v", got)
	}
	if got := testutil.ToFloat64(m.breaksTotal); got != 1 {
		t.Errorf("breaks = %v", got)
	}
	if got := testutil.ToFloat64(m.sessionEvents.WithLabelValues("rotate")); got != 1 {
		t.Errorf("session rotate = %v", got)
	}
	if got := testutil.ToFloat64(m.listingsTotal.WithLabelValues("fetched")); got != 6 {
		t.Errorf("fetched = %v", got)
	}
	if got := testutil.CollectAndCount(m.listingsTotal); got != 1 {
		t.Errorf("listing stages collected = %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("runs ok = %v", got)
	}
	if got := testutil.ToFloat64(m.storedListings.WithLabelValues("pending")); got != 2 {
		t.Errorf("pending gauge = %v", got)
	}
}

func TestHealthAggregation(t *testing.T) {
	hm := NewHealthManager("test")
	hm.RegisterCheck(DatabaseHealthCheck("db", func(context.Context) error { return nil }))
	if h := hm.GetHealth(context.Background()); h.Status != HealthStatusHealthy {
		t.Fatalf("status = %s, want healthy", h.Status)
	}

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-5 * time.Hour)
	hm.RegisterCheck(LastRunHealthCheck(4*time.Hour, func() time.Time { return last }, func() time.Time { return now }))
	if h := hm.GetHealth(context.Background()); h.Status != HealthStatusDegraded {
		t.Fatalf("status = %s, want degraded", h.Status)
	}

	hm.RegisterCheck(DatabaseHealthCheck("db", func(context.Context) error { return errors.New("locked") }))
	h := hm.GetHealth(context.Background())
	if h.Status != HealthStatusUnhealthy {
		t.Fatalf("status = %s, want unhealthy", h.Status)
	}
	if h.Checks["db"].Error != "locked" {
		t.Errorf("db check = %+v", h.Checks["db"])
	}
}

func TestServerRoutes(t *testing.T) {
	m := NewMetrics(MetricsConfig{})
	m.ObserveSessionEvent("acquire")
	hm := NewHealthManager("v1")
	srv := httptest.NewServer(NewServer(":0", m, hm, utils.DiscardLogger()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `landwatch_session_events_total{event="acquire"} 1`) {
		t.Errorf("metrics body missing session counter:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
	var h SystemHealth
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatal(err)
	}
	if h.Version != "v1" || h.Status != HealthStatusHealthy {
		t.Errorf("health = %+v", h)
	}

	resp, _ = http.Post(srv.URL+"/healthz", "text/plain", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /healthz status = %d, want 405", resp.StatusCode)
	}
	resp.Body.Close()
}
