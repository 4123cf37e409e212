// internal/scraper/client.go
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/valpere/landwatch/internal/utils"
)

const maxBodyBytes = 16 << 20

// HTTPClient sends single GET requests behind the adaptive spacing floor.
// Retries and identity handling live in the Fetcher.
type HTTPClient struct {
	httpClient  *http.Client
	rateLimiter *AdaptiveRateLimiter
	stats       ClientStats
	statsMu     sync.Mutex
}

// ClientConfig defines configuration options for the HTTP client
type ClientConfig struct {
	Timeout     time.Duration
	RateLimit   RateLimiterConfig
	Transport   http.RoundTripper
	DisableRate bool
}

// ClientStats counts requests by result.
type ClientStats struct {
	Requests       int
	TransportError int
	ByStatus       map[int]int
}

// Request is one outgoing GET.
type Request struct {
	URL    string
	Header http.Header
	Cookie string
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// HTTPError represents a non-success HTTP status with additional context
type HTTPError struct {
	StatusCode int
	URL        string
	Attempt    int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d (URL: %s, Attempt: %d)", e.StatusCode, e.URL, e.Attempt)
}

// NewHTTPClient creates a new HTTP client with the specified configuration
func NewHTTPClient(config ClientConfig) *HTTPClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	transport := config.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	c := &HTTPClient{
		httpClient: &http.Client{Timeout: config.Timeout, Transport: transport},
		stats:      ClientStats{ByStatus: make(map[int]int)},
	}
	if !config.DisableRate {
		c.rateLimiter = NewAdaptiveRateLimiter(config.RateLimit)
	}
	return c
}

// Get performs one GET. A non-2xx status is not an error; transport
// failures are reported as TransientNetwork.
func (c *HTTPClient) Get(ctx context.Context, r Request) (*Response, error) {
	if _, err := url.Parse(r.URL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if r.Cookie != "" {
		req.Header.Set("Cookie", r.Cookie)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(0)
		c.reportError()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, utils.WrapError(err, utils.ErrCodeTransientNetwork, "request failed").WithContext("url", r.URL)
	}
	defer resp.Body.Close()

	body, err := utils.DecodeBody(resp)
	if err != nil {
		c.record(resp.StatusCode)
		c.reportError()
		return nil, utils.WrapError(err, utils.ErrCodeMalformedResponse, "undecodable body")
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		c.record(resp.StatusCode)
		c.reportError()
		return nil, utils.WrapError(err, utils.ErrCodeTransientNetwork, "read body")
	}

	c.record(resp.StatusCode)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.reportSuccess()
	} else {
		c.reportError()
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Duration:   time.Since(start),
	}, nil
}

// GetStats returns a copy of the request counters.
func (c *HTTPClient) GetStats() ClientStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	out := ClientStats{
		Requests:       c.stats.Requests,
		TransportError: c.stats.TransportError,
		ByStatus:       make(map[int]int, len(c.stats.ByStatus)),
	}
	for k, v := range c.stats.ByStatus {
		out.ByStatus[k] = v
	}
	return out
}

// RateLimiter exposes the spacing floor, nil when disabled.
func (c *HTTPClient) RateLimiter() *AdaptiveRateLimiter {
	return c.rateLimiter
}

func (c *HTTPClient) record(status int) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats.Requests++
	if status == 0 {
		c.stats.TransportError++
		return
	}
	c.stats.ByStatus[status]++
}

func (c *HTTPClient) reportSuccess() {
	if c.rateLimiter != nil {
		c.rateLimiter.ReportSuccess()
	}
}

func (c *HTTPClient) reportError() {
	if c.rateLimiter != nil {
		c.rateLimiter.ReportError()
	}
}
