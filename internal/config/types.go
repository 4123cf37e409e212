// internal/config/types.go
package config

import (
	"time"

	"github.com/valpere/landwatch/internal/browser"
	"github.com/valpere/landwatch/internal/filter"
	"github.com/valpere/landwatch/internal/monitoring"
	"github.com/valpere/landwatch/internal/notify"
	"github.com/valpere/landwatch/internal/scraper"
	"github.com/valpere/landwatch/internal/storage"
	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// Config is the complete poller configuration.
type Config struct {
	Regions    []Region                `yaml:"regions"`
	TradeTypes []types.TradeType       `yaml:"trade_types"`
	Filters    filter.Rules            `yaml:"filters"`
	Storage    storage.Config          `yaml:"storage"`
	Telegram   notify.Config           `yaml:"telegram"`
	Pacing     PacingConfig            `yaml:"pacing"`
	Retry      scraper.RetryConfig     `yaml:"retry"`
	Traversal  scraper.TraversalConfig `yaml:"traversal"`
	Session    SessionConfig           `yaml:"session"`
	HTTP       HTTPConfig              `yaml:"http"`
	Metrics    MetricsConfig           `yaml:"metrics"`
	Schedule   ScheduleConfig          `yaml:"schedule"`
	Log        utils.LogConfig         `yaml:"log"`
}

// Region is one search area identified by its legal-district code.
type Region struct {
	Name     string `yaml:"name"`
	CortarNo string `yaml:"cortar_no"`
}

// Label returns the name, falling back to the code.
func (r Region) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return r.CortarNo
}

// PacingConfig selects the pacing profile.
type PacingConfig struct {
	Profile string `yaml:"profile"`
	// Seed fixes the random source when non-zero.
	Seed int64 `yaml:"seed,omitempty"`
}

// SessionConfig controls identity handling.
type SessionConfig struct {
	BaseURL   string         `yaml:"base_url"`
	MaxAge    time.Duration  `yaml:"max_age"`
	Harvester string         `yaml:"harvester"` // http or browser
	Browsers  []string       `yaml:"browsers,omitempty"`
	Browser   browser.Config `yaml:"browser"`
}

// HTTPConfig configures the API client.
type HTTPConfig struct {
	Timeout   time.Duration             `yaml:"timeout"`
	RateLimit scraper.RateLimiterConfig `yaml:"rate_limit"`
}

// MetricsConfig configures the monitoring endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Address   string `yaml:"address"`
	Namespace string `yaml:"namespace"`
}

// Options returns the monitoring package options.
func (m MetricsConfig) Options() monitoring.MetricsConfig {
	return monitoring.MetricsConfig{Namespace: m.Namespace, EnableGoMetrics: true}
}

// ScheduleConfig controls daemon mode.
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
	// RunOnStart starts the first run immediately instead of after one interval.
	RunOnStart bool `yaml:"run_on_start"`
}

const (
	HarvesterHTTP    = "http"
	HarvesterBrowser = "browser"

	DefaultInterval       = 2 * time.Hour
	DefaultMetricsAddr    = ":9090"
	DefaultRequestTimeout = 30 * time.Second
)

func notifyTemplate() notify.Config {
	return notify.Config{
		Enabled:       true,
		BotToken:      "${TELEGRAM_BOT_TOKEN}",
		ChatID:        "${TELEGRAM_CHAT_ID}",
		ResendPending: true,
	}
}
