// internal/scraper/orchestrator.go
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/valpere/landwatch/internal/antidetect"
	"github.com/valpere/landwatch/internal/pacing"
	"github.com/valpere/landwatch/internal/session"
	"github.com/valpere/landwatch/internal/utils"
)

// Fetcher runs the per-request state machine
// PREPARE -> VISIT_LANDING -> REQUEST -> {SUCCESS, RATE_LIMITED, FORBIDDEN, OTHER_ERROR}
// with a bounded retry budget.
type Fetcher struct {
	client       *HTTPClient
	sessions     *session.Manager
	pacer        *pacing.Engine
	retry        RetryConfig
	requestDelay DelayRange
	visitLanding bool
	logger       *slog.Logger
	observer     Observer
}

// FetcherConfig wires a Fetcher.
type FetcherConfig struct {
	Client       *HTTPClient
	Sessions     *session.Manager
	Pacer        *pacing.Engine
	Retry        RetryConfig
	RequestDelay DelayRange
	VisitLanding bool
	Logger       *slog.Logger
	Observer     Observer
}

// NewFetcher creates a Fetcher.
func NewFetcher(config FetcherConfig) *Fetcher {
	if config.Client == nil {
		config.Client = NewHTTPClient(ClientConfig{})
	}
	if config.RequestDelay == (DelayRange{}) {
		config.RequestDelay = DefaultTraversalConfig().RequestDelay
	}
	if config.Logger == nil {
		config.Logger = utils.NewComponentLogger("fetcher")
	}
	return &Fetcher{
		client:       config.Client,
		sessions:     config.Sessions,
		pacer:        config.Pacer,
		retry:        config.Retry.withDefaults(),
		requestDelay: config.RequestDelay,
		visitLanding: config.VisitLanding,
		logger:       config.Logger,
		observer:     config.Observer,
	}
}

// FetchJSON fetches target and returns its JSON body. Every error returned
// is a StructuredError except context cancellation.
func (f *Fetcher) FetchJSON(ctx context.Context, target string) (json.RawMessage, FetchReport, error) {
	report := FetchReport{URL: target}
	endpoint := endpointName(target)

	// PREPARE
	f.sessions.RefreshIfStale(ctx, 0)
	if _, err := f.pacer.MaybeTakeBreak(ctx); err != nil {
		return nil, report, err
	}

	// VISIT_LANDING
	if f.visitLanding {
		f.sessions.VisitLanding(ctx, PageFor(target))
	}

	// The humanlike delay precedes the first attempt only.
	if err := f.pacer.Pause(ctx, pacing.KindRequest, f.requestDelay.Min, f.requestDelay.Max); err != nil {
		return nil, report, err
	}

	var lastErr error
	for attempt := 1; attempt <= f.retry.Attempts; attempt++ {
		report.Attempts = attempt
		if attempt > 1 {
			report.Retries++
		}
		more := attempt < f.retry.Attempts

		state := f.sessions.Acquire(ctx)
		base := f.sessions.BaseURL()
		req := Request{
			URL:    target,
			Header: state.Profile.Headers(antidetect.PurposeAPI, base, RefererFor(base, target)),
			Cookie: state.CookieHeader(),
		}

		f.pacer.RecordRequest()
		resp, err := f.client.Get(ctx, req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, report, err
			}
			report.Outcome = OutcomeOtherError
			lastErr = err
			f.observe(endpoint, OutcomeOtherError, 0)
			f.logger.Warn("request failed", "url", target, "attempt", attempt, "error", err)
			if more {
				if err := f.pacer.PauseUniform(ctx, pacing.KindBackoff, f.retry.ErrorDelayMin, f.retry.ErrorDelayMax); err != nil {
					return nil, report, err
				}
			}
			continue
		}

		report.StatusCode = resp.StatusCode
		switch {
		case resp.StatusCode == http.StatusOK:
			if !json.Valid(resp.Body) {
				report.Outcome = OutcomeMalformed
				f.observe(endpoint, OutcomeMalformed, resp.Duration)
				return nil, report, utils.NewError(utils.ErrCodeMalformedResponse, "response is not JSON").
					WithContext("url", target).Build()
			}
			report.Outcome = OutcomeSuccess
			f.observe(endpoint, OutcomeSuccess, resp.Duration)
			if err := f.pacer.MaybeReadingPause(ctx); err != nil {
				return nil, report, err
			}
			return json.RawMessage(resp.Body), report, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			report.Outcome = OutcomeRateLimited
			f.observe(endpoint, OutcomeRateLimited, resp.Duration)
			lastErr = utils.NewError(utils.ErrCodeRateLimited, "server answered 429").
				WithCause(&HTTPError{StatusCode: resp.StatusCode, URL: target, Attempt: attempt}).Build()
			if !more {
				f.logger.Error("rate limited, retry budget exhausted", "url", target, "attempts", attempt)
				break
			}
			f.logger.Warn("rate limited, cooling down", "url", target, "cooldown", f.retry.RateLimitCooldown,
				"resume_at", time.Now().Add(f.retry.RateLimitCooldown).Format("15:04:05"))
			if f.observer != nil {
				f.observer.ObserveCooldown("rate_limited", f.retry.RateLimitCooldown)
			}
			if err := f.pacer.Sleep(ctx, "cooldown", f.retry.RateLimitCooldown); err != nil {
				return nil, report, err
			}
			report.Cooldown += f.retry.RateLimitCooldown
			f.sessions.Refresh(ctx)
			report.Refreshes++

		case resp.StatusCode == http.StatusForbidden:
			report.Outcome = OutcomeForbidden
			f.observe(endpoint, OutcomeForbidden, resp.Duration)
			lastErr = utils.NewError(utils.ErrCodeForbidden, "server answered 403").
				WithCause(&HTTPError{StatusCode: resp.StatusCode, URL: target, Attempt: attempt}).Build()
			f.logger.Warn("forbidden", "url", target, "attempt", attempt, "profile", state.Profile.Name)
			if more {
				f.sessions.Rotate(ctx)
				report.Rotations++
				if err := f.pacer.PauseUniform(ctx, pacing.KindBackoff, f.retry.ForbiddenDelayMin, f.retry.ForbiddenDelayMax); err != nil {
					return nil, report, err
				}
			}

		default:
			report.Outcome = OutcomeOtherError
			f.observe(endpoint, OutcomeOtherError, resp.Duration)
			lastErr = utils.NewError(utils.ErrCodeTransientNetwork, fmt.Sprintf("unexpected status %d", resp.StatusCode)).
				WithCause(&HTTPError{StatusCode: resp.StatusCode, URL: target, Attempt: attempt}).Build()
			f.logger.Warn("unexpected status", "url", target, "status", resp.StatusCode, "attempt", attempt)
			if more {
				if err := f.pacer.PauseUniform(ctx, pacing.KindBackoff, f.retry.ErrorDelayMin, f.retry.ErrorDelayMax); err != nil {
					return nil, report, err
				}
			}
		}
	}

	return nil, report, lastErr
}

func (f *Fetcher) observe(endpoint string, outcome Outcome, d time.Duration) {
	if f.observer != nil {
		f.observer.ObserveRequest(endpoint, outcome, d)
	}
}
