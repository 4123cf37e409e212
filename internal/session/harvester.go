// internal/session/harvester.go
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/valpere/landwatch/internal/antidetect"
	"github.com/valpere/landwatch/internal/utils"
)

// HarvestRequest describes one landing-page visit.
type HarvestRequest struct {
	Profile antidetect.BrowserProfile
	URL     string
	Referer string
	Cookies map[string]string
}

// Harvester visits a landing page and returns the cookies the client holds
// afterwards. Implementations must not mutate req.Cookies.
type Harvester interface {
	Harvest(ctx context.Context, req HarvestRequest) (map[string]string, error)
}

// HTTPHarvester loads landing pages with a plain HTTP client.
type HTTPHarvester struct {
	client *http.Client
}

// NewHTTPHarvester creates a harvester with the given request timeout.
func NewHTTPHarvester(timeout time.Duration) *HTTPHarvester {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPHarvester{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Harvest implements Harvester.
func (h *HTTPHarvester) Harvest(ctx context.Context, req HarvestRequest) (map[string]string, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid landing URL: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if len(req.Cookies) > 0 {
		seed := make([]*http.Cookie, 0, len(req.Cookies))
		for name, value := range req.Cookies {
			seed = append(seed, &http.Cookie{Name: name, Value: value, Path: "/"})
		}
		jar.SetCookies(target, seed)
	}

	client := *h.client
	client.Jar = jar

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header = req.Profile.Headers(antidetect.PurposeDocument, "", req.Referer)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeTransientNetwork, "landing visit failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, utils.NewError(utils.ErrCodeForbidden, "landing page forbidden").Build()
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, utils.NewError(utils.ErrCodeRateLimited, "landing page rate limited").Build()
	case resp.StatusCode >= 400:
		return nil, utils.NewError(utils.ErrCodeTransientNetwork,
			fmt.Sprintf("landing page returned HTTP %d", resp.StatusCode)).Build()
	}

	body, err := utils.DecodeBody(resp)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeMalformedResponse, "landing body")
	}
	defer body.Close()

	signal, err := antidetect.DetectBlock(body)
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeMalformedResponse, "landing body")
	}
	if signal.Blocked {
		return nil, utils.NewError(utils.ErrCodeForbidden, "landing page is a block page").
			WithContext("reason", signal.Reason).Build()
	}

	cookies := make(map[string]string)
	for _, c := range jar.Cookies(target) {
		cookies[c.Name] = c.Value
	}
	return cookies, nil
}
