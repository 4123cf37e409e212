// internal/scraper/api.go
package scraper

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"

	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// DefaultBaseURL is the site the poller talks to.
const DefaultBaseURL = "https://new.land.naver.com"

// LandClient knows the listing site's endpoints and their fixed query
// parameters.
type LandClient struct {
	fetcher *Fetcher
	baseURL string
	logger  *slog.Logger
}

// NewLandClient creates a client over fetcher.
func NewLandClient(fetcher *Fetcher, baseURL string, logger *slog.Logger) *LandClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = utils.NewComponentLogger("land")
	}
	return &LandClient{fetcher: fetcher, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

func searchFilterParams(trade types.TradeType) url.Values {
	v := url.Values{}
	v.Set("realEstateType", "APT:OPST")
	v.Set("tradeType", string(trade))
	v.Set("tag", "::::::::")
	v.Set("rentPriceMin", "0")
	v.Set("rentPriceMax", "999999")
	v.Set("priceMin", "0")
	v.Set("priceMax", "999999")
	v.Set("areaMin", "0")
	v.Set("areaMax", "999999")
	v.Set("oldBuildYears", "")
	v.Set("recentlyBuildYears", "")
	v.Set("minHouseHoldCount", "")
	v.Set("maxHouseHoldCount", "")
	v.Set("page", "1")
	return v
}

// ComplexesURL builds the complex search URL for a region.
func (c *LandClient) ComplexesURL(region string, trade types.TradeType) string {
	v := searchFilterParams(trade)
	v.Set("cortarNo", region)
	v.Set("showArticle", "false")
	v.Set("sameAddressGroup", "true")
	v.Set("complexNo", "")
	v.Set("buildingNo", "")
	return c.baseURL + "/api/complexes?" + v.Encode()
}

// ArticlesURL builds the article list URL of a complex.
func (c *LandClient) ArticlesURL(complexNo string, trade types.TradeType) string {
	v := searchFilterParams(trade)
	v.Set("showArticle", "true")
	v.Set("sameAddressGroup", "false")
	v.Set("minMoveInMonth", "")
	v.Set("maxMoveInMonth", "")
	return c.baseURL + "/api/articles/complex/" + url.PathEscape(complexNo) + "?" + v.Encode()
}

// DetailURL builds the article detail URL.
func (c *LandClient) DetailURL(articleNo string) string {
	return c.baseURL + "/api/articles/" + url.PathEscape(articleNo)
}

// SearchComplexes lists the complexes of a region for one trade type.
func (c *LandClient) SearchComplexes(ctx context.Context, region string, trade types.TradeType) ([]types.Complex, FetchReport, error) {
	c.logger.Info("searching complexes", "region", region, "trade_type", trade)
	body, report, err := c.fetcher.FetchJSON(ctx, c.ComplexesURL(region, trade))
	if err != nil {
		return nil, report, err
	}
	complexes, err := DecodeComplexList(body)
	if err != nil {
		report.Outcome = OutcomeMalformed
		return nil, report, err
	}
	c.logger.Info("complexes found", "region", region, "trade_type", trade, "count", len(complexes))
	return complexes, report, nil
}

// ComplexArticles lists the raw articles of a complex.
func (c *LandClient) ComplexArticles(ctx context.Context, complexNo string, trade types.TradeType) ([]json.RawMessage, FetchReport, error) {
	body, report, err := c.fetcher.FetchJSON(ctx, c.ArticlesURL(complexNo, trade))
	if err != nil {
		return nil, report, err
	}
	articles, err := DecodeArticleList(body)
	if err != nil {
		report.Outcome = OutcomeMalformed
		return nil, report, err
	}
	c.logger.Info("articles found", "complex", complexNo, "count", len(articles))
	return articles, report, nil
}

// ArticleDetail fetches the detail record of one article.
func (c *LandClient) ArticleDetail(ctx context.Context, articleNo string) (ArticleDetail, FetchReport, error) {
	body, report, err := c.fetcher.FetchJSON(ctx, c.DetailURL(articleNo))
	if err != nil {
		return ArticleDetail{}, report, err
	}
	d, err := DecodeArticleDetail(body)
	if err != nil {
		report.Outcome = OutcomeMalformed
	}
	return d, report, err
}

// endpointName labels a URL for metrics.
func endpointName(target string) string {
	switch {
	case strings.Contains(target, "/api/complexes"):
		return "complexes"
	case strings.Contains(target, "/api/articles/complex/"):
		return "articles"
	case strings.Contains(target, "/api/articles/"):
		return "article_detail"
	default:
		return "other"
	}
}
