// internal/config/validation.go - configuration validation with detailed error messages
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/valpere/landwatch/internal/antidetect"
	"github.com/valpere/landwatch/internal/pacing"
	"github.com/valpere/landwatch/internal/scraper"
	"github.com/valpere/landwatch/internal/utils"
)

// ValidationError represents a detailed validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

func (r *ValidationResult) addError(field, value, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: message})
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate returns a CONFIGURATION error listing every problem.
func (c *Config) Validate() error {
	result := c.ValidateWithDetails()
	if result.Valid {
		return nil
	}
	return formatValidationError(result)
}

// ValidateWithDetails provides detailed validation results
func (c *Config) ValidateWithDetails() *ValidationResult {
	result := &ValidationResult{}

	c.validateRegions(result)
	c.validateFilters(result)
	c.validateStorage(result)
	c.validateTelegram(result)
	c.validatePacing(result)
	c.validateSession(result)
	c.validateSchedule(result)

	result.Valid = len(result.Errors) == 0
	return result
}

func (c *Config) validateRegions(result *ValidationResult) {
	if len(c.Regions) == 0 {
		result.addError("regions", "", "at least one region is required (or set SEARCH_REGIONS)")
	}
	seen := make(map[string]bool)
	for i, r := range c.Regions {
		field := fmt.Sprintf("regions[%d].cortar_no", i)
		if !isDigits(r.CortarNo) {
			result.addError(field, r.CortarNo, "region code must be numeric")
			continue
		}
		if len(r.CortarNo) != 10 {
			result.addWarning("%s: region codes are usually 10 digits, got %q", field, r.CortarNo)
		}
		if seen[r.CortarNo] {
			result.addError(field, r.CortarNo, "duplicate region")
		}
		seen[r.CortarNo] = true
	}

	if len(c.TradeTypes) == 0 {
		result.addError("trade_types", "", "at least one trade type is required")
	}
	for i, t := range c.TradeTypes {
		if !t.IsValid() {
			result.addError(fmt.Sprintf("trade_types[%d]", i), string(t), "unknown trade type (valid: A1, B1, B2, B3)")
		}
	}
}

func (c *Config) validateFilters(result *ValidationResult) {
	if err := c.Filters.Validate(); err != nil {
		result.addError("filters", "", messageOf(err))
	}
	for _, t := range c.Filters.TradeTypes {
		if !containsTrade(c, string(t)) {
			result.addWarning("filters.trade_types: %s is never fetched", t)
		}
	}
}

func (c *Config) validateStorage(result *ValidationResult) {
	switch strings.ToLower(c.Storage.Driver) {
	case "sqlite", "sqlite3":
	case "postgres", "postgresql", "mysql":
		if c.Storage.DSN == "" {
			result.addError("storage.dsn", "", "a connection string is required for "+c.Storage.Driver)
		}
	default:
		result.addError("storage.driver", c.Storage.Driver, "must be sqlite3, postgres or mysql")
	}
}

func (c *Config) validateTelegram(result *ValidationResult) {
	if !c.Telegram.Enabled {
		return
	}
	if c.Telegram.BotToken == "" {
		result.addError("telegram.bot_token", "", "required when telegram is enabled (or set TELEGRAM_BOT_TOKEN)")
	}
	if c.Telegram.ChatID == "" {
		result.addError("telegram.chat_id", "", "required when telegram is enabled (or set TELEGRAM_CHAT_ID)")
	}
}

func (c *Config) validatePacing(result *ValidationResult) {
	if _, err := pacing.LookupProfile(c.Pacing.Profile); err != nil {
		result.addError("pacing.profile", c.Pacing.Profile, err.Error())
	}

	r := c.Retry
	if r.Attempts < 1 {
		result.addError("retry.attempts", fmt.Sprint(r.Attempts), "must be at least 1")
	}
	if r.RateLimitCooldown < 0 {
		result.addError("retry.rate_limit_cooldown", r.RateLimitCooldown.String(), "must not be negative")
	}
	if r.ForbiddenDelayMin > r.ForbiddenDelayMax {
		result.addError("retry.forbidden_delay_min", r.ForbiddenDelayMin.String(), "must not exceed forbidden_delay_max")
	}
	if r.ErrorDelayMin > r.ErrorDelayMax {
		result.addError("retry.error_delay_min", r.ErrorDelayMin.String(), "must not exceed error_delay_max")
	}

	t := c.Traversal
	for name, d := range map[string]scraper.DelayRange{
		"request_delay":      t.RequestDelay,
		"list_review_delay":  t.ListReviewDelay,
		"complex_hop_delay":  t.ComplexHopDelay,
		"trade_switch_delay": t.TradeSwitchDelay,
		"detail_delay":       t.DetailDelay,
	} {
		if err := d.Validate(); err != nil {
			result.addError("traversal."+name, fmt.Sprintf("%v-%v", d.Min, d.Max), messageOf(err))
		}
	}
	if t.LongBreakChance < 0 || t.LongBreakChance > 1 {
		result.addError("traversal.long_break_chance", fmt.Sprint(t.LongBreakChance), "must be between 0 and 1")
	}
	if t.LongBreakMin > t.LongBreakMax {
		result.addError("traversal.long_break_min", t.LongBreakMin.String(), "must not exceed long_break_max")
	}
	if t.MaxComplexes < 1 {
		result.addError("traversal.max_complexes", fmt.Sprint(t.MaxComplexes), "must be at least 1")
	}
	if t.RequestDelay.Min < 0.25 {
		result.addWarning("traversal.request_delay below 15s makes blocking likely")
	}
}

func (c *Config) validateSession(result *ValidationResult) {
	switch c.Session.Harvester {
	case HarvesterHTTP, HarvesterBrowser:
	default:
		result.addError("session.harvester", c.Session.Harvester, "must be http or browser")
	}
	if c.Session.MaxAge < time.Minute {
		result.addError("session.max_age", c.Session.MaxAge.String(), "must be at least 1m")
	}
	if !strings.HasPrefix(c.Session.BaseURL, "http://") && !strings.HasPrefix(c.Session.BaseURL, "https://") {
		result.addError("session.base_url", c.Session.BaseURL, "must be an http(s) URL")
	}
	if len(c.Session.Browsers) > 0 && len(c.BrowserProfiles()) == 0 {
		result.addError("session.browsers", strings.Join(c.Session.Browsers, ","), "no browser profile matches (valid: chrome, firefox, edge, safari)")
	}
}

func (c *Config) validateSchedule(result *ValidationResult) {
	if c.Schedule.Interval < time.Minute {
		result.addError("schedule.interval", c.Schedule.Interval.String(), "must be at least 1m")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		result.addError("log.format", c.Log.Format, "must be text or json")
	}
}

// BrowserProfiles returns the identity catalog restricted to the
// configured browser families.
func (c *Config) BrowserProfiles() []antidetect.BrowserProfile {
	if len(c.Session.Browsers) == 0 {
		return antidetect.Catalog()
	}
	kinds := make([]antidetect.BrowserKind, 0, len(c.Session.Browsers))
	for _, b := range c.Session.Browsers {
		kinds = append(kinds, antidetect.BrowserKind(strings.ToLower(strings.TrimSpace(b))))
	}
	return antidetect.FilterCatalog(antidetect.Catalog(), kinds)
}

// formatValidationError creates a comprehensive error message
func formatValidationError(result *ValidationResult) error {
	var msg strings.Builder
	msg.WriteString("configuration validation failed:")
	for i, err := range result.Errors {
		fmt.Fprintf(&msg, "\n  %d. %s", i+1, err.Message)
		if err.Field != "" {
			fmt.Fprintf(&msg, " (field: %s)", err.Field)
		}
		if err.Value != "" {
			fmt.Fprintf(&msg, " (value: %s)", err.Value)
		}
	}
	return utils.NewError(utils.ErrCodeConfiguration, msg.String()).
		WithContext("errors", len(result.Errors)).
		Build()
}

func messageOf(err error) string {
	if se, ok := err.(*utils.StructuredError); ok {
		return se.Message
	}
	return err.Error()
}

func containsTrade(c *Config, t string) bool {
	for _, have := range c.TradeTypes {
		if string(have) == t {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
