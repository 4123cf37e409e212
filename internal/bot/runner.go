// Package bot runs polling cycles: scrape, filter, store, notify.
package bot

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/landwatch/internal/config"
	lwerrors "github.com/valpere/landwatch/internal/errors"
	"github.com/valpere/landwatch/internal/filter"
	"github.com/valpere/landwatch/internal/notify"
	"github.com/valpere/landwatch/internal/scraper"
	"github.com/valpere/landwatch/internal/storage"
	"github.com/valpere/landwatch/internal/utils"
	"github.com/valpere/landwatch/pkg/types"
)

// Pipeline stages reported to RunMetrics.
const (
	StageFetched  = "fetched"
	StageFiltered = "filtered"
	StageNew      = "new"
	StageNotified = "notified"
)

const resendLimit = 50

// RegionScraper walks one region.
type RegionScraper interface {
	ScrapeRegion(ctx context.Context, region string, trades []types.TradeType) ([]types.Listing, scraper.RegionReport, error)
}

// RunMetrics receives run level counters.
type RunMetrics interface {
	ObserveListings(stage string, n int)
	ObserveRun(d time.Duration, err error)
	SetStored(notified, pending int)
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Regions       []config.Region
	TradeTypes    []types.TradeType
	ResendPending bool
	// NextRun is announced in the summary message; zero omits it.
	NextRun time.Duration

	Scraper  RegionScraper
	Filter   *filter.Evaluator
	Store    storage.Store
	Notifier notify.Notifier
	Breaker  *lwerrors.CircuitBreaker
	Metrics  RunMetrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// Runner executes polling runs. Run must not be called concurrently.
type Runner struct {
	cfg     RunnerConfig
	filter  atomic.Pointer[filter.Evaluator]
	logger  *slog.Logger
	now     func() time.Time
	lastRun atomic.Int64
}

var errNotDelivered = stderrors.New("notification not delivered")

// NewRunner validates the wiring.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Scraper == nil || cfg.Store == nil || cfg.Filter == nil {
		return nil, utils.NewError(utils.ErrCodeConfiguration, "runner needs a scraper, a filter and a store").Build()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Disabled{}
	}
	if cfg.Breaker == nil {
		cfg.Breaker = lwerrors.NewCircuitBreaker("telegram", lwerrors.CircuitBreakerConfig{}, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = utils.NewComponentLogger("bot")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	r := &Runner{cfg: cfg, logger: cfg.Logger, now: cfg.Now}
	r.filter.Store(cfg.Filter)
	return r, nil
}

// SetFilter swaps the filter rules used by subsequent runs.
func (r *Runner) SetFilter(e *filter.Evaluator) {
	if e != nil {
		r.filter.Store(e)
	}
}

// LastRun returns when the last run finished, zero before the first.
func (r *Runner) LastRun() time.Time {
	if ns := r.lastRun.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}

// Run performs one polling run. A failing region is logged and counted;
// only cancellation stops the run early.
func (r *Runner) Run(ctx context.Context) (types.RunSummary, error) {
	start := r.now()
	summary := types.RunSummary{RunID: uuid.NewString()}
	log := r.logger.With("run_id", summary.RunID)
	log.Info("run started", "regions", len(r.cfg.Regions), "trade_types", r.cfg.TradeTypes)

	if r.cfg.ResendPending && r.cfg.Notifier.Enabled() {
		summary.Notified += r.resendPending(ctx, log)
	}

	var regionErrs []string
	for _, region := range r.cfg.Regions {
		if ctx.Err() != nil {
			break
		}
		part, err := r.runRegion(ctx, region, log)
		summary.Add(part)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			regionErrs = append(regionErrs, fmt.Sprintf("%s: %v", region.Label(), err))
		}
	}

	if st, err := r.cfg.Store.Stats(context.WithoutCancel(ctx)); err != nil {
		log.Warn("store stats unavailable", "error", err)
	} else {
		summary.StoredAll = st.Total
		if r.cfg.Metrics != nil {
			r.cfg.Metrics.SetStored(st.Notified, st.Pending)
		}
	}

	summary.Duration = r.now().Sub(start)
	r.lastRun.Store(r.now().UnixNano())
	runErr := ctx.Err()
	r.report(ctx, summary, regionErrs, log)
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.ObserveRun(summary.Duration, runErr)
	}
	if runErr != nil {
		return summary, utils.WrapError(runErr, utils.ErrCodeContextCanceled, "run interrupted")
	}
	return summary, nil
}

func (r *Runner) runRegion(ctx context.Context, region config.Region, log *slog.Logger) (types.RunSummary, error) {
	var part types.RunSummary
	log = log.With("region", region.Label(), "cortar_no", region.CortarNo)

	listings, report, err := r.cfg.Scraper.ScrapeRegion(ctx, region.CortarNo, r.cfg.TradeTypes)
	part.Errors += report.Errors
	if err != nil && ctx.Err() == nil {
		part.Errors++
		log.Error("region scrape failed", "error", err, "partial_listings", len(listings))
	}
	part.Fetched = len(listings)
	if err == nil && part.Fetched == 0 && report.Errors > 0 {
		err = fmt.Errorf("%d failed fetches and no listings", report.Errors)
	}

	passed := r.filter.Load().Apply(listings)
	part.Filtered = len(passed)

	// Stored listings survive cancellation; notifications do not.
	storeCtx := context.WithoutCancel(ctx)
	for _, l := range passed {
		inserted, ierr := r.cfg.Store.Insert(storeCtx, l)
		if ierr != nil {
			part.Errors++
			log.Error("store insert failed", "id", l.ID, "error", ierr)
			continue
		}
		if !inserted {
			if terr := r.cfg.Store.Touch(storeCtx, l.ID); terr != nil {
				log.Warn("store touch failed", "id", l.ID, "error", terr)
			}
			continue
		}
		part.New++
		log.Info("new listing", "id", l.ID, "complex", l.ComplexName, "price", l.Price)

		if ctx.Err() == nil && r.deliver(ctx, l, log) {
			part.Notified++
		}
	}

	if r.cfg.Metrics != nil {
		r.cfg.Metrics.ObserveListings(StageFetched, part.Fetched)
		r.cfg.Metrics.ObserveListings(StageFiltered, part.Filtered)
		r.cfg.Metrics.ObserveListings(StageNew, part.New)
		r.cfg.Metrics.ObserveListings(StageNotified, part.Notified)
	}
	log.Info("region finished", "complexes", report.Complexes, "fetched", part.Fetched,
		"filtered", part.Filtered, "new", part.New, "notified", part.Notified, "errors", part.Errors)
	return part, err
}

// deliver sends one listing through the breaker and marks it notified.
func (r *Runner) deliver(ctx context.Context, l types.Listing, log *slog.Logger) bool {
	if !r.cfg.Notifier.Enabled() {
		return false
	}
	err := r.cfg.Breaker.Execute(func() error {
		if !r.cfg.Notifier.Notify(ctx, l) {
			return errNotDelivered
		}
		return nil
	})
	if err != nil {
		if lwerrors.IsCircuitOpen(err) {
			log.Debug("notification deferred, breaker open", "id", l.ID)
		}
		return false
	}
	if err := r.cfg.Store.MarkNotified(context.WithoutCancel(ctx), l.ID); err != nil {
		log.Error("mark notified failed", "id", l.ID, "error", err)
	}
	return true
}

func (r *Runner) resendPending(ctx context.Context, log *slog.Logger) int {
	pending, err := r.cfg.Store.Pending(ctx, resendLimit)
	if err != nil {
		log.Warn("pending listings unavailable", "error", err)
		return 0
	}
	sent := 0
	for _, l := range pending {
		if ctx.Err() != nil {
			break
		}
		if r.deliver(ctx, l, log) {
			sent++
		}
	}
	if len(pending) > 0 {
		log.Info("pending notifications resent", "pending", len(pending), "sent", sent)
	}
	return sent
}

func (r *Runner) report(ctx context.Context, s types.RunSummary, regionErrs []string, log *slog.Logger) {
	log.Info("run finished",
		"fetched", s.Fetched, "filtered", s.Filtered, "new", s.New, "notified", s.Notified,
		"errors", s.Errors, "stored_total", s.StoredAll, "duration", s.Duration.Round(time.Second))

	if ctx.Err() != nil || !r.cfg.Notifier.Enabled() {
		return
	}
	if s.New > 0 {
		if err := r.cfg.Notifier.NotifySummary(ctx, s, r.cfg.NextRun); err != nil {
			log.Error("summary notification failed", "error", err)
		}
	}
	if s.Fetched == 0 && len(regionErrs) > 0 && len(regionErrs) == len(r.cfg.Regions) {
		msg := "모든 지역 수집 실패\n" + strings.Join(regionErrs, "\n")
		if err := r.cfg.Notifier.NotifyError(ctx, msg); err != nil {
			log.Error("error notification failed", "error", err)
		}
	}
}
