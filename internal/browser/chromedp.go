// internal/browser/chromedp.go
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/valpere/landwatch/internal/antidetect"
	"github.com/valpere/landwatch/internal/session"
	"github.com/valpere/landwatch/internal/utils"
)

// ChromeHarvester obtains landing-page cookies from a real Chrome instance.
// Each harvest runs in a fresh browser so one profile never leaks into
// another.
type ChromeHarvester struct {
	config Config
	logger *slog.Logger
}

// NewChromeHarvester creates a harvester. Chrome is started lazily.
func NewChromeHarvester(config Config, logger *slog.Logger) *ChromeHarvester {
	if logger == nil {
		logger = utils.NewComponentLogger("browser")
	}
	return &ChromeHarvester{config: config.withDefaults(), logger: logger}
}

// allocatorOptions builds the Chrome flags for one profile.
func (h *ChromeHarvester) allocatorOptions(profile antidetect.BrowserProfile) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.UserAgent(profile.UserAgent),
		chromedp.WindowSize(profile.ViewportWidth, profile.ViewportHeight),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "ko-KR"),
	}
	if h.config.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if h.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(h.config.ExecPath))
	}
	if h.config.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(h.config.UserDataDir))
	}
	if h.config.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	return opts
}

// Harvest implements session.Harvester.
func (h *ChromeHarvester) Harvest(ctx context.Context, req session.HarvestRequest) (map[string]string, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, h.allocatorOptions(req.Profile)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancel := context.WithTimeout(browserCtx, h.config.Timeout)
	defer cancel()

	extra := network.Headers{"Accept-Language": req.Profile.AcceptLanguage}
	if req.Referer != "" {
		extra["Referer"] = req.Referer
	}

	var html string
	var harvested []*network.Cookie
	tasks := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(extra),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if len(req.Cookies) == 0 {
				return nil
			}
			params := make([]*network.CookieParam, 0, len(req.Cookies))
			for name, value := range req.Cookies {
				params = append(params, &network.CookieParam{Name: name, Value: value, URL: req.URL})
			}
			return network.SetCookies(params).Do(ctx)
		}),
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(h.config.WaitDelay),
		chromedp.OuterHTML("html", &html),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			harvested, err = network.GetCookies().WithUrls([]string{req.URL}).Do(ctx)
			return err
		}),
	}

	if err := chromedp.Run(runCtx, tasks); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeTransientNetwork, "browser landing visit failed")
	}

	signal, err := antidetect.DetectBlock(strings.NewReader(html))
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeMalformedResponse, "browser landing body")
	}
	if signal.Blocked {
		return nil, utils.NewError(utils.ErrCodeForbidden, "landing page is a block page").
			WithContext("reason", signal.Reason).Build()
	}

	cookies := make(map[string]string, len(harvested))
	for _, c := range harvested {
		cookies[c.Name] = c.Value
	}
	h.logger.Debug("browser harvest complete", "url", req.URL, "cookies", len(cookies), "profile", req.Profile.Name)
	if len(cookies) == 0 {
		return nil, fmt.Errorf("browser visit to %s produced no cookies", req.URL)
	}
	return cookies, nil
}
