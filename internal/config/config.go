// internal/config/config.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/valpere/landwatch/internal/browser"
	"github.com/valpere/landwatch/internal/filter"
	"github.com/valpere/landwatch/internal/pacing"
	"github.com/valpere/landwatch/internal/scraper"
	"github.com/valpere/landwatch/internal/session"
	"github.com/valpere/landwatch/internal/storage"
	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// Default returns a configuration with every default filled in and no
// regions.
func Default() Config {
	return Config{
		TradeTypes: []types.TradeType{types.TradeSale, types.TradeLease},
		Filters:    filter.DefaultRules(),
		Storage:    storage.Config{Driver: "sqlite3"},
		Pacing:     PacingConfig{Profile: pacing.ProfileFast},
		Retry:      scraper.DefaultRetryConfig(),
		Traversal:  scraper.DefaultTraversalConfig(),
		Session: SessionConfig{
			BaseURL:   scraper.DefaultBaseURL,
			MaxAge:    session.DefaultMaxAge,
			Harvester: HarvesterHTTP,
			Browser:   browser.DefaultConfig(),
		},
		HTTP:     HTTPConfig{Timeout: DefaultRequestTimeout},
		Metrics:  MetricsConfig{Address: DefaultMetricsAddr, Namespace: "landwatch"},
		Schedule: ScheduleConfig{Interval: DefaultInterval, RunOnStart: true},
		Log:      utils.LogConfig{Level: "info", Format: "text"},
	}
}

// LoadDotEnv loads .env from the working directory and from dir, without
// overriding variables already set.
func LoadDotEnv(dir string) error {
	candidates := []string{".env"}
	if dir != "" && dir != "." {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, path := range candidates {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return utils.WrapError(err, utils.ErrCodeConfiguration, "failed to load env file").WithContext("path", path)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file, reading .env files first.
func LoadFromFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, utils.NewError(utils.ErrCodeConfiguration, "configuration filename cannot be empty").Build()
	}
	if err := LoadDotEnv(filepath.Dir(filename)); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeConfiguration, "failed to read configuration file").WithContext("path", filename)
	}
	return LoadFromBytes(data)
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, utils.NewError(utils.ErrCodeConfiguration, "reader cannot be nil").Build()
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeConfiguration, "failed to read configuration")
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses YAML over the defaults, expands ${VAR} and
// ${VAR:-default} references, applies environment overrides and validates.
func LoadFromBytes(data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, utils.NewError(utils.ErrCodeConfiguration, "configuration data cannot be empty").Build()
	}

	cfg := Default()
	dec := yaml.NewDecoder(strings.NewReader(expandEnvironmentVariables(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeConfiguration, "failed to parse YAML configuration")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveToWriter writes cfg as YAML.
func SaveToWriter(cfg *Config, writer io.Writer) error {
	if cfg == nil || writer == nil {
		return utils.NewError(utils.ErrCodeConfiguration, "configuration and writer are required").Build()
	}
	enc := yaml.NewEncoder(writer)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return utils.WrapError(err, utils.ErrCodeConfiguration, "failed to marshal configuration to YAML")
	}
	return enc.Close()
}

// GenerateTemplate returns a starter configuration for the named pacing
// profile. Secrets are left as environment references.
func GenerateTemplate(profile string) Config {
	cfg := Default()
	cfg.Regions = []Region{
		{Name: "서울시 강남구 역삼동", CortarNo: "1168010100"},
		{Name: "서울시 송파구 잠실동", CortarNo: "1171010100"},
	}
	cfg.Filters.Price = map[types.TradeType]filter.Range[int64]{
		types.TradeSale:  {Min: 50000, Max: 200000},
		types.TradeLease: {Min: 30000, Max: 100000},
	}
	cfg.Filters.AreaNet = filter.Range[float64]{Min: 59, Max: 135}
	cfg.Filters.HouseholdCount = filter.Range[int]{Min: 300}
	cfg.Filters.Floors = []filter.FloorClass{filter.FloorMiddle, filter.FloorHigh}
	cfg.Storage.DSN = storage.DefaultSQLitePath
	cfg.Telegram = notifyTemplate()
	cfg.Metrics.Enabled = true
	if profile == pacing.ProfileSlow {
		cfg.Pacing.Profile = pacing.ProfileSlow
		applyDefaults(&cfg)
	}
	return cfg
}

// expandEnvironmentVariables substitutes ${VAR}, $VAR and ${VAR:-default}.
func expandEnvironmentVariables(content string) string {
	return os.Expand(content, func(key string) string {
		name, def, hasDefault := strings.Cut(key, ":-")
		if v, ok := os.LookupEnv(name); ok && (v != "" || !hasDefault) {
			return v
		}
		if hasDefault {
			return def
		}
		return ""
	})
}

// applyEnvOverrides fills values the deployment traditionally passes
// through the environment when the file leaves them empty.
func applyEnvOverrides(cfg *Config) {
	if cfg.Telegram.BotToken == "" {
		cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if cfg.Telegram.ChatID == "" {
		cfg.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")
	}
	if len(cfg.Regions) == 0 {
		for _, code := range splitList(os.Getenv("SEARCH_REGIONS")) {
			cfg.Regions = append(cfg.Regions, Region{CortarNo: code})
		}
	}
	if v := splitList(os.Getenv("TRADE_TYPES")); len(v) > 0 {
		cfg.TradeTypes = cfg.TradeTypes[:0]
		for _, t := range v {
			cfg.TradeTypes = append(cfg.TradeTypes, types.TradeType(t))
		}
	}
}

// applyDefaults fills zero values and stretches untouched traversal delays
// for the slow profile.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Pacing.Profile == "" {
		cfg.Pacing.Profile = pacing.ProfileFast
	}
	if cfg.Session.Harvester == "" {
		cfg.Session.Harvester = HarvesterHTTP
	}
	if cfg.Session.MaxAge == 0 {
		cfg.Session.MaxAge = def.Session.MaxAge
	}
	if cfg.Session.BaseURL == "" {
		cfg.Session.BaseURL = def.Session.BaseURL
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = def.HTTP.Timeout
	}
	if cfg.Schedule.Interval == 0 {
		cfg.Schedule.Interval = def.Schedule.Interval
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = def.Metrics.Address
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = def.Storage.Driver
	}
	if cfg.Traversal.MaxComplexes == 0 {
		cfg.Traversal.MaxComplexes = def.Traversal.MaxComplexes
	}

	if cfg.Pacing.Profile == pacing.ProfileSlow {
		t, d := &cfg.Traversal, def.Traversal
		for _, pair := range []struct {
			cur *scraper.DelayRange
			def scraper.DelayRange
		}{
			{&t.RequestDelay, d.RequestDelay},
			{&t.ListReviewDelay, d.ListReviewDelay},
			{&t.ComplexHopDelay, d.ComplexHopDelay},
			{&t.TradeSwitchDelay, d.TradeSwitchDelay},
			{&t.DetailDelay, d.DetailDelay},
		} {
			if *pair.cur == pair.def {
				*pair.cur = pair.def.Scale(2)
			}
		}
		if t.LongBreakMin == d.LongBreakMin && t.LongBreakMax == d.LongBreakMax {
			t.LongBreakMin, t.LongBreakMax = 2*d.LongBreakMin, 2*d.LongBreakMax
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Summary is a one-line description for logs.
func (c *Config) Summary() string {
	return fmt.Sprintf("%d regions, trades %v, profile %s, store %s", len(c.Regions), c.TradeTypes, c.Pacing.Profile, c.Storage.Driver)
}
