// Package session owns the simulated client identity of a polling session:
// one browser profile and one cookie jar, refreshed on schedule or on
// failure signals.
package session

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/valpere/landwatch/internal/antidetect"
	"github.com/valpere/landwatch/internal/utils"
)

// DefaultMaxAge is the cookie staleness limit.
const DefaultMaxAge = 30 * time.Minute

// PageKind names a landing page of the site.
type PageKind string

const (
	PageRoot      PageKind = "root"
	PageComplexes PageKind = "complexes"
	PageComplex   PageKind = "complex"
	PageArticles  PageKind = "articles"
)

// ImportantCookies are the cookies whose presence is logged after a visit.
var ImportantCookies = []string{"NNB", "JSESSIONID", "nid_inf", "NID_AUT", "NID_SES"}

// LandingURL maps a page kind onto a URL under base.
func LandingURL(base string, kind PageKind) string {
	base = strings.TrimRight(base, "/")
	switch kind {
	case PageComplexes, PageComplex:
		return base + "/complexes"
	case PageArticles:
		return base + "/articles"
	default:
		return base + "/"
	}
}

// State is an immutable snapshot of the session identity. Cookies is
// replaced as a whole on every update and must be treated as read-only.
type State struct {
	ID           int
	Profile      antidetect.BrowserProfile
	Cookies      map[string]string
	CookiesValid bool
	LastRefresh  time.Time
	StartedAt    time.Time
	LastPage     string
}

// HasCookie reports whether the jar holds name.
func (s State) HasCookie(name string) bool {
	_, ok := s.Cookies[name]
	return ok
}

// CookieHeader renders the jar as a Cookie request header value.
func (s State) CookieHeader() string {
	if len(s.Cookies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(s.Cookies))
	for name, value := range s.Cookies {
		parts = append(parts, name+"="+value)
	}
	return strings.Join(parts, "; ")
}

// Stats counts identity events over the manager lifetime.
type Stats struct {
	Sessions      int
	Refreshes     int
	Rotations     int
	FailedVisits  int
	LandingVisits int
}

// Observer receives identity events, typically for metrics.
type Observer interface {
	ObserveSessionEvent(event string)
}

// Config configures a Manager.
type Config struct {
	BaseURL   string
	MaxAge    time.Duration
	Profiles  []antidetect.BrowserProfile
	Harvester Harvester
	Rand      interface{ Intn(n int) int }
	Now       func() time.Time
	Logger    *slog.Logger
	Observer  Observer
}

// Manager hands out the current identity and refreshes it. All methods are
// serialized by an internal mutex.
type Manager struct {
	mu       sync.Mutex
	config   Config
	state    *State
	stats    Stats
	nextID   int
	logger   *slog.Logger
	observer Observer
}

// NewManager creates a Manager. No network traffic happens until Acquire.
func NewManager(config Config) *Manager {
	if config.BaseURL == "" {
		config.BaseURL = "https://new.land.naver.com"
	}
	if config.MaxAge == 0 {
		config.MaxAge = DefaultMaxAge
	}
	if len(config.Profiles) == 0 {
		config.Profiles = antidetect.Catalog()
	}
	if config.Harvester == nil {
		config.Harvester = NewHTTPHarvester(0)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Rand == nil {
		config.Rand = rand.New(rand.NewSource(config.Now().UnixNano()))
	}
	if config.Logger == nil {
		config.Logger = utils.NewComponentLogger("session")
	}
	return &Manager{
		config:   config,
		logger:   config.Logger,
		observer: config.Observer,
	}
}

// BaseURL returns the site root the manager visits.
func (m *Manager) BaseURL() string {
	return strings.TrimRight(m.config.BaseURL, "/")
}

// Acquire returns the current identity, starting a session on first use.
// A failed landing visit leaves the session in degraded mode with an
// empty jar; it is not an error.
func (m *Manager) Acquire(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		m.startLocked(ctx)
	}
	return *m.state
}

// Current returns the identity without starting a session.
func (m *Manager) Current() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return State{}, false
	}
	return *m.state, true
}

// RefreshIfStale re-visits the landing page when the cookies are invalid or
// older than maxAge. A zero maxAge uses the configured limit.
func (m *Manager) RefreshIfStale(ctx context.Context, maxAge time.Duration) State {
	if maxAge <= 0 {
		maxAge = m.config.MaxAge
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		m.startLocked(ctx)
		return *m.state
	}
	age := m.config.Now().Sub(m.state.LastRefresh)
	if m.state.CookiesValid && age <= maxAge {
		return *m.state
	}
	m.logger.Info("refreshing stale session", "session", m.state.ID, "age", age.Round(time.Second), "valid", m.state.CookiesValid)
	m.refreshLocked(ctx)
	return *m.state
}

// Refresh re-harvests cookies while keeping the profile.
func (m *Manager) Refresh(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		m.startLocked(ctx)
		return *m.state
	}
	m.refreshLocked(ctx)
	return *m.state
}

// Rotate discards the session and starts a new one with a freshly picked
// profile and an empty jar, so profiles are never mixed in one jar.
func (m *Manager) Rotate(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		m.logger.Info("rotating session identity", "session", m.state.ID, "profile", m.state.Profile.Name)
	}
	m.stats.Rotations++
	m.emit("rotate")
	m.startLocked(ctx)
	return *m.state
}

// VisitLanding loads the page matching the upcoming API call so the
// referer chain looks natural. Cookies are merged opportunistically; a
// failed visit changes nothing.
func (m *Manager) VisitLanding(ctx context.Context, kind PageKind) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		m.startLocked(ctx)
	}
	target := LandingURL(m.config.BaseURL, kind)
	cookies, err := m.harvestLocked(ctx, target, m.state.LastPage)
	if err != nil {
		m.logger.Debug("landing visit failed", "page", kind, "error", err)
		return *m.state
	}

	merged := make(map[string]string, len(m.state.Cookies)+len(cookies))
	for k, v := range m.state.Cookies {
		merged[k] = v
	}
	for k, v := range cookies {
		merged[k] = v
	}
	next := *m.state
	next.Cookies = merged
	next.LastPage = target
	m.state = &next
	return *m.state
}

// Stats returns the identity counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Manager) startLocked(ctx context.Context) {
	profiles := m.config.Profiles
	profile := profiles[m.config.Rand.Intn(len(profiles))]
	now := m.config.Now()
	m.nextID++
	m.stats.Sessions++

	m.state = &State{
		ID:          m.nextID,
		Profile:     profile,
		Cookies:     map[string]string{},
		LastRefresh: now,
		StartedAt:   now,
	}
	m.logger.Info("session started", "session", m.nextID, "profile", profile.Name, "browser", profile.Kind)
	m.emit("start")
	m.harvestIntoLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) {
	m.stats.Refreshes++
	m.emit("refresh")
	m.harvestIntoLocked(ctx)
}

// harvestIntoLocked replaces the jar with the cookies of a fresh root
// visit, or marks the jar invalid when the visit fails.
func (m *Manager) harvestIntoLocked(ctx context.Context) {
	root := LandingURL(m.config.BaseURL, PageRoot)
	cookies, err := m.harvestLocked(ctx, root, "")

	next := *m.state
	next.LastRefresh = m.config.Now()
	if err != nil {
		m.logger.Warn("cookie harvest failed, continuing without cookies", "session", next.ID, "error", err)
		next.Cookies = map[string]string{}
		next.CookiesValid = false
		m.state = &next
		return
	}

	next.Cookies = cookies
	next.CookiesValid = true
	next.LastPage = root
	m.state = &next

	var found []string
	for _, name := range ImportantCookies {
		if next.HasCookie(name) {
			found = append(found, name)
		}
	}
	m.logger.Info("cookies harvested", "session", next.ID, "count", len(cookies), "important", found)
}

func (m *Manager) harvestLocked(ctx context.Context, target, referer string) (map[string]string, error) {
	m.stats.LandingVisits++
	cookies, err := m.config.Harvester.Harvest(ctx, HarvestRequest{
		Profile: m.state.Profile,
		URL:     target,
		Referer: referer,
		Cookies: m.state.Cookies,
	})
	if err != nil {
		m.stats.FailedVisits++
		m.emit("visit_failed")
		return nil, err
	}
	return cookies, nil
}

func (m *Manager) emit(event string) {
	if m.observer != nil {
		m.observer.ObserveSessionEvent(event)
	}
}
