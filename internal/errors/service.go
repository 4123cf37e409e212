// internal/errors/service.go
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valpere/landwatch/internal/utils"
)

// Exit codes returned by the CLI.
const (
	ExitOK            = 0
	ExitGeneral       = 1
	ExitConfiguration = 2
	ExitNetwork       = 3
	ExitParse         = 4
	ExitOutput        = 5
	ExitValidation    = 6
	ExitRateLimited   = 7
	ExitForbidden     = 8
	ExitInterrupted   = 130
)

// Service maps errors to user-facing messages and exit codes and owns the
// circuit breakers guarding outbound side effects.
type Service struct {
	showTechnical bool
	breakerConfig CircuitBreakerConfig
	now           func() time.Time

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewService creates a new error service
func NewService() *Service {
	return &Service{
		breakerConfig: CircuitBreakerConfig{MaxFailures: 5, ResetTimeout: 10 * time.Minute},
		now:           time.Now,
		breakers:      make(map[string]*CircuitBreaker),
	}
}

// WithVerbose enables technical error details
func (s *Service) WithVerbose(verbose bool) *Service {
	s.showTechnical = verbose
	return s
}

// WithBreakerConfig sets the configuration of breakers created afterwards.
func (s *Service) WithBreakerConfig(cfg CircuitBreakerConfig) *Service {
	s.breakerConfig = cfg
	return s
}

// Breaker returns the named circuit breaker, creating it on first use.
func (s *Service) Breaker(name string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[name]; ok {
		return cb
	}
	cb := NewCircuitBreaker(name, s.breakerConfig, s.now)
	s.breakers[name] = cb
	return cb
}

// GetCircuitBreakerStats returns statistics for all circuit breakers
func (s *Service) GetCircuitBreakerStats() map[string]BreakerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]BreakerStats, len(s.breakers))
	for name, cb := range s.breakers {
		out[name] = cb.Stats()
	}
	return out
}

// GetUserFriendlyError converts technical errors to user-friendly messages
func (s *Service) GetUserFriendlyError(err error) (title, message string, suggestions []string) {
	if err == nil {
		return "", "", nil
	}

	switch utils.CodeOf(err) {
	case utils.ErrCodeConfiguration:
		return "Configuration Error",
			"The configuration is invalid or incomplete.",
			[]string{
				"Run 'landwatch validate' to list every problem",
				"Generate a starting point with 'landwatch template'",
				"Check that secrets referenced as ${VAR} are set or present in .env",
			}
	case utils.ErrCodeTransientNetwork:
		return "Network Error",
			"The listing site could not be reached.",
			[]string{
				"Check your internet connection",
				"The site might be temporarily unavailable, the next run will retry",
			}
	case utils.ErrCodeRateLimited:
		return "Rate Limit Exceeded",
			"The site answered 429 on every attempt.",
			[]string{
				"Switch to the slow pacing profile",
				"Increase retry.rate_limit_cooldown",
				"Reduce the number of regions or trade types per run",
			}
	case utils.ErrCodeForbidden:
		return "Access Blocked",
			"The site refused the request even after rotating identity.",
			[]string{
				"Use the browser harvester (session.harvester: browser)",
				"Wait a few hours before the next run",
			}
	case utils.ErrCodeMalformedResponse:
		return "Unexpected Response",
			"The site returned data in an unexpected shape.",
			[]string{"The API may have changed; run with -v to see the payload errors"}
	case utils.ErrCodeDatabaseError:
		return "Storage Error",
			"The listing database could not be read or written.",
			[]string{
				"Check storage.driver and storage.dsn",
				"Make sure the database file's directory is writable",
			}
	case utils.ErrCodeOutputFailed:
		return "Export Failed",
			"The export file could not be written.",
			[]string{"Check the --out path and its permissions"}
	case utils.ErrCodeNotifyFailed:
		return "Notification Failed",
			"Telegram did not accept the message.",
			[]string{"Check telegram.bot_token and telegram.chat_id", "Make sure the bot was added to the chat"}
	case utils.ErrCodeContextCanceled:
		return "Interrupted", "The operation was cancelled.", nil
	}

	if strings.Contains(strings.ToLower(err.Error()), "yaml") {
		return "Configuration Error",
			"The configuration file has invalid YAML syntax.",
			[]string{"Check YAML indentation (use spaces, not tabs)"}
	}
	return "Unexpected Error",
		"An unexpected error occurred during the operation.",
		[]string{"Try running the command again with -v"}
}

// GetExitCode returns appropriate exit code for error
func (s *Service) GetExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch utils.CodeOf(err) {
	case utils.ErrCodeConfiguration:
		return ExitConfiguration
	case utils.ErrCodeTransientNetwork:
		return ExitNetwork
	case utils.ErrCodeMalformedResponse:
		return ExitParse
	case utils.ErrCodeOutputFailed, utils.ErrCodeDatabaseError:
		return ExitOutput
	case utils.ErrCodeInvalidRange:
		return ExitValidation
	case utils.ErrCodeRateLimited:
		return ExitRateLimited
	case utils.ErrCodeForbidden:
		return ExitForbidden
	case utils.ErrCodeContextCanceled:
		return ExitInterrupted
	default:
		return ExitGeneral
	}
}

// FormatErrorForCLI formats error for command-line display
func (s *Service) FormatErrorForCLI(err error) string {
	title, message, suggestions := s.GetUserFriendlyError(err)

	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n%s\n", title, message)
	if s.showTechnical {
		fmt.Fprintf(&b, "\nTechnical details: %s\n", err.Error())
	}
	if len(suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(&b, "  - %s\n", suggestion)
		}
	}
	return b.String()
}

// IsCircuitOpen reports whether err came from an open breaker.
func IsCircuitOpen(err error) bool {
	return stderrors.Is(err, ErrCircuitOpen)
}
