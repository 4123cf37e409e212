// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck is a named probe.
type HealthCheck struct {
	Name      string
	Critical  bool
	Timeout   time.Duration
	CheckFunc func(ctx context.Context) HealthCheckResult
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status   HealthStatus   `json:"status"`
	Message  string         `json:"message,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SystemHealth represents overall health information
type SystemHealth struct {
	Status    HealthStatus                 `json:"status"`
	Timestamp time.Time                    `json:"timestamp"`
	Version   string                       `json:"version,omitempty"`
	Uptime    string                       `json:"uptime"`
	Checks    map[string]HealthCheckResult `json:"checks,omitempty"`
}

// HealthManager runs registered checks on demand.
type HealthManager struct {
	mu      sync.RWMutex
	checks  map[string]*HealthCheck
	version string
	started time.Time
	now     func() time.Time
}

// NewHealthManager creates a new health manager
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checks:  make(map[string]*HealthCheck),
		version: version,
		started: time.Now(),
		now:     time.Now,
	}
}

// RegisterCheck adds or replaces a check.
func (hm *HealthManager) RegisterCheck(check *HealthCheck) {
	if check.Timeout == 0 {
		check.Timeout = 5 * time.Second
	}
	hm.mu.Lock()
	hm.checks[check.Name] = check
	hm.mu.Unlock()
}

// GetHealth runs every check and aggregates the result. A failing critical
// check makes the system unhealthy, a failing optional one degraded.
func (hm *HealthManager) GetHealth(ctx context.Context) SystemHealth {
	hm.mu.RLock()
	checks := make([]*HealthCheck, 0, len(hm.checks))
	for _, c := range hm.checks {
		checks = append(checks, c)
	}
	hm.mu.RUnlock()
	sort.Slice(checks, func(i, j int) bool { return checks[i].Name < checks[j].Name })

	health := SystemHealth{
		Status:    HealthStatusHealthy,
		Timestamp: hm.now(),
		Version:   hm.version,
		Uptime:    hm.now().Sub(hm.started).Round(time.Second).String(),
		Checks:    make(map[string]HealthCheckResult, len(checks)),
	}
	for _, c := range checks {
		res := runCheck(ctx, c)
		health.Checks[c.Name] = res
		if res.Status == HealthStatusHealthy {
			continue
		}
		if c.Critical {
			health.Status = HealthStatusUnhealthy
		} else if health.Status == HealthStatusHealthy {
			health.Status = HealthStatusDegraded
		}
	}
	return health
}

func runCheck(ctx context.Context, check *HealthCheck) HealthCheckResult {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	var result HealthCheckResult
	if check.CheckFunc != nil {
		result = check.CheckFunc(checkCtx)
	} else {
		result = HealthCheckResult{Status: HealthStatusDegraded, Message: "no check function defined"}
	}
	result.Duration = time.Since(start)
	return result
}

// HealthHandler returns HTTP handler for the health endpoint
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.GetHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(health)
	}
}

// DatabaseHealthCheck creates a database connectivity health check
func DatabaseHealthCheck(name string, checkFunc func(ctx context.Context) error) *HealthCheck {
	return &HealthCheck{
		Name:     name,
		Critical: true,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			if err := checkFunc(ctx); err != nil {
				return HealthCheckResult{
					Status:  HealthStatusUnhealthy,
					Message: "database query failed",
					Error:   err.Error(),
				}
			}
			return HealthCheckResult{Status: HealthStatusHealthy, Message: "database reachable"}
		},
	}
}

// LastRunHealthCheck degrades when no run has finished within maxAge.
// lastRun returns the zero time before the first run.
func LastRunHealthCheck(maxAge time.Duration, lastRun func() time.Time, now func() time.Time) *HealthCheck {
	if now == nil {
		now = time.Now
	}
	return &HealthCheck{
		Name: "last_run",
		CheckFunc: func(context.Context) HealthCheckResult {
			last := lastRun()
			if last.IsZero() {
				return HealthCheckResult{Status: HealthStatusHealthy, Message: "no run finished yet"}
			}
			age := now().Sub(last)
			meta := map[string]any{"last_run": last, "age": age.Round(time.Second).String()}
			if age > maxAge {
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("last run finished %s ago", age.Round(time.Second)),
					Metadata: meta,
				}
			}
			return HealthCheckResult{Status: HealthStatusHealthy, Metadata: meta}
		},
	}
}
