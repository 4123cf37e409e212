// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/valpere/landwatch/internal/scraper"
)

// Metrics holds the poller's Prometheus collectors on a private registry.
// It satisfies the pacing, session and scraper observer interfaces.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cooldownSeconds *prometheus.CounterVec
	delaySeconds    *prometheus.CounterVec
	breaksTotal     prometheus.Counter
	breakSeconds    prometheus.Counter
	sessionEvents   *prometheus.CounterVec
	listingsTotal   *prometheus.CounterVec
	runDuration     prometheus.Histogram
	runsTotal       *prometheus.CounterVec
	storedListings  *prometheus.GaugeVec
}

// MetricsConfig configures metric naming.
type MetricsConfig struct {
	Namespace       string `yaml:"namespace"`
	EnableGoMetrics bool   `yaml:"go_metrics"`
}

// NewMetrics creates and registers all collectors.
func NewMetrics(config MetricsConfig) *Metrics {
	if config.Namespace == "" {
		config.Namespace = "landwatch"
	}
	ns := config.Namespace
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "fetch", Name: "requests_total",
		Help: "API requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "fetch", Name: "request_duration_seconds",
		Help:    "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	m.cooldownSeconds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "fetch", Name: "cooldown_seconds_total",
		Help: "Time spent in cooldown by reason",
	}, []string{"reason"})
	m.delaySeconds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "pacing", Name: "delay_seconds_total",
		Help: "Time spent in pacing delays by kind",
	}, []string{"kind"})
	m.breaksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "pacing", Name: "breaks_total",
		Help: "Long breaks taken",
	})
	m.breakSeconds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "pacing", Name: "break_seconds_total",
		Help: "Time spent in long breaks",
	})
	m.sessionEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "session", Name: "events_total",
		Help: "Session lifecycle events",
	}, []string{"event"})
	m.listingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "run", Name: "listings_total",
		Help: "Listings by pipeline stage",
	}, []string{"stage"})
	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "run", Name: "duration_seconds",
		Help:    "Duration of polling runs",
		Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400},
	})
	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "run", Name: "total",
		Help: "Completed polling runs by status",
	}, []string{"status"})
	m.storedListings = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns, Subsystem: "store", Name: "listings",
		Help: "Stored listings by notification state",
	}, []string{"state"})

	m.registry.MustRegister(
		m.requestsTotal, m.requestDuration, m.cooldownSeconds,
		m.delaySeconds, m.breaksTotal, m.breakSeconds,
		m.sessionEvents, m.listingsTotal, m.runDuration, m.runsTotal, m.storedListings,
	)
	if config.EnableGoMetrics {
		m.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one API attempt.
func (m *Metrics) ObserveRequest(endpoint string, outcome scraper.Outcome, d time.Duration) {
	m.requestsTotal.WithLabelValues(endpoint, string(outcome)).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveCooldown records a server-imposed wait.
func (m *Metrics) ObserveCooldown(reason string, d time.Duration) {
	m.cooldownSeconds.WithLabelValues(reason).Add(d.Seconds())
}

// ObserveDelay records a pacing delay.
func (m *Metrics) ObserveDelay(kind string, d time.Duration) {
	m.delaySeconds.WithLabelValues(kind).Add(d.Seconds())
}

// ObserveBreak records a long break.
func (m *Metrics) ObserveBreak(d time.Duration) {
	m.breaksTotal.Inc()
	m.breakSeconds.Add(d.Seconds())
}

// ObserveSessionEvent counts session acquisitions, refreshes and rotations.
func (m *Metrics) ObserveSessionEvent(event string) {
	m.sessionEvents.WithLabelValues(event).Inc()
}

// ObserveListings adds n listings at a pipeline stage (fetched, filtered,
// new, notified).
func (m *Metrics) ObserveListings(stage string, n int) {
	if n > 0 {
		m.listingsTotal.WithLabelValues(stage).Add(float64(n))
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.runDuration.Observe(d.Seconds())
	m.runsTotal.WithLabelValues(status).Inc()
}

// SetStored publishes store totals.
func (m *Metrics) SetStored(notified, pending int) {
	m.storedListings.WithLabelValues("notified").Set(float64(notified))
	m.storedListings.WithLabelValues("pending").Set(float64(pending))
}
