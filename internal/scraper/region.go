// internal/scraper/region.go
package scraper

import (
	"context"
	"errors"
	"log/slog"

	"github.com/valpere/landwatch/internal/pacing"
	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// RegionReport counts what one ScrapeRegion call did.
type RegionReport struct {
	Region    string
	Complexes int
	Articles  int
	Listings  int
	Errors    int
}

// Scraper walks a region the way a person browsing the site would.
type Scraper struct {
	api    *LandClient
	pacer  *pacing.Engine
	config TraversalConfig
	logger *slog.Logger
}

// NewScraper creates a Scraper.
func NewScraper(api *LandClient, pacer *pacing.Engine, config TraversalConfig, logger *slog.Logger) *Scraper {
	d := DefaultTraversalConfig()
	if config.MaxComplexes <= 0 {
		config.MaxComplexes = d.MaxComplexes
	}
	if config.LongBreakMax <= 0 {
		config.LongBreakMin, config.LongBreakMax = d.LongBreakMin, d.LongBreakMax
	}
	if logger == nil {
		logger = utils.NewComponentLogger("scraper")
	}
	return &Scraper{api: api, pacer: pacer, config: config, logger: logger}
}

// ScrapeRegion fetches the listings of region for every trade type. Failed
// fetches are logged and counted; only cancellation aborts the walk.
func (s *Scraper) ScrapeRegion(ctx context.Context, region string, trades []types.TradeType) ([]types.Listing, RegionReport, error) {
	report := RegionReport{Region: region}
	var listings []types.Listing

	for idx, trade := range trades {
		st := s.pacer.State()
		s.logger.Info("trade type started", "region", region, "trade_type", trade,
			"progress", idx+1, "of", len(trades), "requests", st.RequestCount, "fatigue", st.Fatigue)

		if idx > 0 {
			if err := s.pause(ctx, pacing.KindTradeSwitch, s.config.TradeSwitchDelay); err != nil {
				return listings, report, err
			}
		}

		complexes, _, err := s.api.SearchComplexes(ctx, region, trade)
		if err != nil {
			if isCancel(err) {
				return listings, report, err
			}
			report.Errors++
			s.logger.Warn("complex search failed", "region", region, "trade_type", trade, "error", err)
			continue
		}

		s.pacer.Shuffle(len(complexes), func(i, j int) { complexes[i], complexes[j] = complexes[j], complexes[i] })
		if len(complexes) > s.config.MaxComplexes {
			complexes = complexes[:s.config.MaxComplexes]
		}

		for i, cx := range complexes {
			s.logger.Info("visiting complex", "index", i+1, "of", len(complexes), "complex", cx.No, "name", cx.Name)
			report.Complexes++

			got, err := s.scrapeComplex(ctx, cx, trade, &report)
			listings = append(listings, got...)
			if err != nil {
				return listings, report, err
			}

			if err := s.pause(ctx, pacing.KindComplexHop, s.config.ComplexHopDelay); err != nil {
				return listings, report, err
			}
			if s.pacer.Chance(s.config.LongBreakChance) {
				if err := s.pacer.PauseUniform(ctx, pacing.KindLongBreak, s.config.LongBreakMin, s.config.LongBreakMax); err != nil {
					return listings, report, err
				}
			}
		}
	}

	report.Listings = len(listings)
	s.logger.Info("region scraped", "region", region, "listings", report.Listings, "errors", report.Errors)
	return listings, report, nil
}

func (s *Scraper) scrapeComplex(ctx context.Context, cx types.Complex, trade types.TradeType, report *RegionReport) ([]types.Listing, error) {
	articles, _, err := s.api.ComplexArticles(ctx, cx.No, trade)
	if err != nil {
		if isCancel(err) {
			return nil, err
		}
		report.Errors++
		s.logger.Warn("article list failed", "complex", cx.No, "error", err)
		return nil, nil
	}
	if err := s.pause(ctx, pacing.KindListReview, s.config.ListReviewDelay); err != nil {
		return nil, err
	}

	s.pacer.Shuffle(len(articles), func(i, j int) { articles[i], articles[j] = articles[j], articles[i] })

	out := make([]types.Listing, 0, len(articles))
	for _, raw := range articles {
		listing, err := ParseArticle(raw, cx, trade)
		if err != nil {
			report.Errors++
			s.logger.Debug("skipping unparseable article", "complex", cx.No, "error", err)
			continue
		}
		report.Articles++

		if s.config.FetchDetails {
			detail, _, err := s.api.ArticleDetail(ctx, listing.ArticleNo)
			switch {
			case isCancel(err):
				return out, err
			case err != nil:
				report.Errors++
				s.logger.Debug("article detail failed", "article", listing.ArticleNo, "error", err)
			default:
				listing = ApplyDetail(listing, detail)
			}
			if err := s.pause(ctx, pacing.KindRequest, s.config.DetailDelay); err != nil {
				return out, err
			}
		}
		out = append(out, listing)
	}
	return out, nil
}

func (s *Scraper) pause(ctx context.Context, kind string, r DelayRange) error {
	if r == (DelayRange{}) {
		return nil
	}
	return s.pacer.Pause(ctx, kind, r.Min, r.Max)
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
