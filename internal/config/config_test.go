// internal/config/config_test.go
package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/valpere/landwatch/internal/pacing"
	"github.com/valpere/landwatch/internal/scraper"
	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

const minimalYAML = `
regions:
  - name: 역삼동
    cortar_no: "1168010100"
`

func TestLoadFromBytesAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}
	if cfg.Regions[0].Label() != "역삼동" {
		t.Errorf("region = %+v", cfg.Regions[0])
	}
	if cfg.Retry.Attempts != 3 || cfg.Retry.RateLimitCooldown != 30*time.Minute {
		t.Errorf("retry defaults = %+v", cfg.Retry)
	}
	if cfg.Traversal != scraper.DefaultTraversalConfig() {
		t.Errorf("traversal defaults = %+v", cfg.Traversal)
	}
	if cfg.Schedule.Interval != 2*time.Hour {
		t.Errorf("interval = %v", cfg.Schedule.Interval)
	}
	if cfg.Session.Harvester != HarvesterHTTP || cfg.Session.MaxAge != 30*time.Minute {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Storage.Driver != "sqlite3" {
		t.Errorf("storage driver = %q", cfg.Storage.Driver)
	}
}

func TestLoadFromBytesOverrides(t *testing.T) {
	yml := minimalYAML + `
trade_types: [A1, B2]
pacing:
  profile: slow
traversal:
  complex_hop_delay: {min: 1, max: 2}
  max_complexes: 4
  visit_landing: false
retry:
  attempts: 5
  rate_limit_cooldown: 10m
filters:
  loan: none
  rooms: [3, 4]
`
	cfg, err := LoadFromBytes([]byte(yml))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}
	if len(cfg.TradeTypes) != 2 || cfg.TradeTypes[1] != types.TradeMonthly {
		t.Errorf("trade types = %v", cfg.TradeTypes)
	}
	if cfg.Retry.Attempts != 5 || cfg.Retry.RateLimitCooldown != 10*time.Minute {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	def := scraper.DefaultTraversalConfig()
	if cfg.Traversal.ComplexHopDelay != (scraper.DelayRange{Min: 1, Max: 2}) {
		t.Errorf("explicit range scaled: %+v", cfg.Traversal.ComplexHopDelay)
	}
	if cfg.Traversal.TradeSwitchDelay != def.TradeSwitchDelay.Scale(2) {
		t.Errorf("slow profile trade switch = %+v", cfg.Traversal.TradeSwitchDelay)
	}
	if cfg.Traversal.MaxComplexes != 4 || cfg.Traversal.VisitLanding {
		t.Errorf("traversal = %+v", cfg.Traversal)
	}
	if cfg.Filters.Loan != "none" || len(cfg.Filters.Rooms) != 2 {
		t.Errorf("filters = %+v", cfg.Filters)
	}
}

func TestEnvironmentExpansion(t *testing.T) {
	t.Setenv("LW_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100")
	yml := minimalYAML + `
telegram:
  enabled: true
  bot_token: ${LW_TOKEN}
storage:
  dsn: ${LW_DB_PATH:-/tmp/lw.db}
`
	cfg, err := LoadFromBytes([]byte(yml))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}
	if cfg.Telegram.BotToken != "123:abc" {
		t.Errorf("bot token = %q", cfg.Telegram.BotToken)
	}
	if cfg.Telegram.ChatID != "-100" {
		t.Errorf("chat id from environment = %q", cfg.Telegram.ChatID)
	}
	if cfg.Storage.DSN != "/tmp/lw.db" {
		t.Errorf("dsn default = %q", cfg.Storage.DSN)
	}
}

func TestEnvironmentRegionsAndTrades(t *testing.T) {
	t.Setenv("SEARCH_REGIONS", "1168010100, 1171010100")
	t.Setenv("TRADE_TYPES", "A1")
	cfg, err := LoadFromBytes([]byte("log:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}
	if len(cfg.Regions) != 2 || cfg.Regions[1].CortarNo != "1171010100" {
		t.Errorf("regions = %+v", cfg.Regions)
	}
	if len(cfg.TradeTypes) != 1 || cfg.TradeTypes[0] != types.TradeSale {
		t.Errorf("trade types = %v", cfg.TradeTypes)
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"no regions", "log: {level: info}\n", "regions"},
		{"bad region", "regions: [{cortar_no: abc}]\n", "regions[0].cortar_no"},
		{"bad trade", minimalYAML + "trade_types: [Z1]\n", "trade_types[0]"},
		{"telegram secrets", minimalYAML + "telegram: {enabled: true}\n", "telegram.bot_token"},
		{"unknown profile", minimalYAML + "pacing: {profile: turbo}\n", "pacing.profile"},
		{"inverted delay", minimalYAML + "traversal: {list_review_delay: {min: 3, max: 1}}\n", "traversal.list_review_delay"},
		{"storage dsn", minimalYAML + "storage: {driver: postgres}\n", "storage.dsn"},
		{"harvester", minimalYAML + "session: {harvester: curl}\n", "session.harvester"},
		{"browsers", minimalYAML + "session: {browsers: [lynx]}\n", "session.browsers"},
		{"interval", minimalYAML + "schedule: {interval: 10s}\n", "schedule.interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TELEGRAM_BOT_TOKEN", "")
			t.Setenv("TELEGRAM_CHAT_ID", "")
			t.Setenv("SEARCH_REGIONS", "")
			_, err := LoadFromBytes([]byte(tt.yaml))
			if utils.CodeOf(err) != utils.ErrCodeConfiguration {
				t.Fatalf("error = %v, want CONFIGURATION", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", err, tt.field)
			}
		})
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	_, err := LoadFromBytes([]byte(minimalYAML + "regoins: []\n"))
	if utils.CodeOf(err) != utils.ErrCodeConfiguration {
		t.Fatalf("error = %v", err)
	}
}

func TestLoadFromFileReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWD) })
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("LW_REGION=1168010100\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("regions:\n  - cortar_no: \"${LW_REGION}\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("LW_REGION") })

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Regions[0].CortarNo != "1168010100" {
		t.Errorf("region = %+v", cfg.Regions[0])
	}
}

func TestGenerateTemplateRoundTrip(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("TELEGRAM_CHAT_ID", "c")
	for _, profile := range []string{pacing.ProfileFast, pacing.ProfileSlow} {
		tmpl := GenerateTemplate(profile)
		if err := tmpl.Validate(); err != nil {
			t.Fatalf("%s template invalid: %v", profile, err)
		}
		var buf bytes.Buffer
		if err := SaveToWriter(&tmpl, &buf); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadFromBytes(buf.Bytes())
		if err != nil {
			t.Fatalf("%s template reload failed: %v\n%s", profile, err, buf.String())
		}
		if cfg.Traversal != tmpl.Traversal {
			t.Errorf("%s traversal changed on reload: %+v vs %+v", profile, cfg.Traversal, tmpl.Traversal)
		}
		if cfg.Telegram.BotToken != "t" {
			t.Errorf("token = %q", cfg.Telegram.BotToken)
		}
	}
}

func TestConfigWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	w, err := NewConfigWatcher(path, utils.DiscardLogger())
	if err != nil {
		t.Fatalf("NewConfigWatcher() error = %v", err)
	}
	w.debounce = 20 * time.Millisecond
	got := make(chan *Config, 4)
	w.OnChange(func(c *Config) { got <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// An invalid file never reaches callbacks.
	if err := os.WriteFile(path, []byte("regions: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(minimalYAML+"traversal: {max_complexes: 7}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-got:
		if c.Traversal.MaxComplexes != 7 {
			t.Errorf("reloaded max_complexes = %d", c.Traversal.MaxComplexes)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}
