package crawler

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-harvester/internal/harvest"
	"github.com/JakeFAU/site-harvester/internal/logging"
	"github.com/JakeFAU/site-harvester/internal/metrics"
)

// Config holds the settings for a crawl run.
type Config struct {
	Concurrency     int
	MinContentChars int
	SeenCapFactor   int
	QueueCapFactor  int
	// FetchTimeout overrides the page fetcher's own per-request timeout when > 0.
	FetchTimeout time.Duration
}

// DefaultConfig returns the crawl defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     3,
		MinContentChars: 50,
		SeenCapFactor:   5,
		QueueCapFactor:  3,
	}
}

// Page outcomes reported to metrics.
const (
	outcomeRecorded   = "recorded"
	outcomeFetchError = "fetch_error"
	outcomeNotHTML    = "not_html"
	outcomeTooShort   = "too_short"
	outcomeParseError = "parse_error"
	outcomeOverCap    = "over_cap"
)

// Crawler walks a single site breadth first.
type Crawler struct {
	fetcher harvest.PageFetcher
	cfg     Config
	logger  *zap.Logger
}

// New builds a Crawler on top of a retrying page fetcher.
func New(fetcher harvest.PageFetcher, cfg Config, logger *zap.Logger) *Crawler {
	defaults := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.MinContentChars < 0 {
		cfg.MinContentChars = 0
	}
	if cfg.SeenCapFactor <= 0 {
		cfg.SeenCapFactor = defaults.SeenCapFactor
	}
	if cfg.QueueCapFactor <= 0 {
		cfg.QueueCapFactor = defaults.QueueCapFactor
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger.Named("crawler"),
	}
}

type visitResult struct {
	url     string
	page    *harvest.CrawlPage
	links   []string
	outcome string
	bytes   int
}

// Crawl discovers up to maxPages HTML pages on the seed's host. Dispatch stops
// once maxPages pages are recorded, the deadline passes, or ctx is done;
// fetches already in flight are allowed to finish and their pages are kept
// while under the cap. Results are in completion order. Only an invalid seed
// is an error.
func (c *Crawler) Crawl(ctx context.Context, seed string, maxPages int, deadline time.Time) ([]harvest.CrawlPage, error) {
	seedURL, err := harvest.ParseSeed(seed)
	if err != nil {
		return nil, err
	}
	if maxPages <= 0 {
		maxPages = 1
	}

	logger := logging.Named(ctx, c.logger, "crawler").With(zap.String("seed", seedURL.String()))
	sc := newScope(seedURL)
	frontier := NewFrontier(maxPages*c.cfg.SeenCapFactor, maxPages*c.cfg.QueueCapFactor)
	frontier.Offer(seedURL.String())

	dispatchCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	started := time.Now()
	done := make(chan visitResult, c.cfg.Concurrency)
	pages := make([]harvest.CrawlPage, 0, maxPages)
	inflight := 0

	for {
		for inflight < c.cfg.Concurrency && len(pages) < maxPages && dispatchCtx.Err() == nil {
			next, ok := frontier.Next()
			if !ok {
				break
			}
			inflight++
			metrics.IncFetchesInFlight()
			go func(target string) {
				defer metrics.DecFetchesInFlight()
				done <- c.visit(ctx, target, sc)
			}(next)
		}
		if inflight == 0 {
			break
		}

		res := <-done
		inflight--

		if res.page != nil && len(pages) >= maxPages {
			res.outcome = outcomeOverCap
			res.page = nil
		}
		metrics.ObserveCrawlPage(res.url, res.outcome, res.bytes)
		if res.page == nil {
			logger.Debug("page skipped", zap.String("url", res.url), zap.String("reason", res.outcome))
			continue
		}
		pages = append(pages, *res.page)
		for _, link := range res.links {
			frontier.Offer(link)
		}
	}

	reason := "frontier exhausted"
	switch {
	case len(pages) >= maxPages:
		reason = "page cap reached"
	case ctx.Err() != nil:
		reason = "canceled"
	case dispatchCtx.Err() != nil:
		reason = "deadline reached"
	}
	logger.Info("crawl finished",
		zap.Int("pages", len(pages)),
		zap.Int("max_pages", maxPages),
		zap.Int("seen", frontier.SeenCount()),
		zap.Int("pending", frontier.Pending()),
		zap.String("reason", reason),
		zap.Duration("elapsed", time.Since(started)),
	)
	return pages, nil
}

func (c *Crawler) visit(ctx context.Context, target string, sc scope) visitResult {
	res := visitResult{url: target}
	outcome := c.fetcher.Fetch(ctx, target, harvest.FetchOptions{Timeout: c.cfg.FetchTimeout})
	res.bytes = len(outcome.Body)
	if !outcome.OK() {
		res.outcome = outcomeFetchError
		logging.Named(ctx, c.logger, "crawler").Debug("page fetch failed",
			zap.String("url", target),
			zap.String("class", string(outcome.Class)),
			zap.Int("status", outcome.StatusCode),
			zap.Int("attempts", outcome.Attempts),
			zap.Error(outcome.Err),
		)
		return res
	}
	if !isHTML(outcome.ContentType, outcome.Body) {
		res.outcome = outcomeNotHTML
		return res
	}
	if len(strings.TrimSpace(string(outcome.Body))) < c.cfg.MinContentChars {
		res.outcome = outcomeTooShort
		return res
	}

	pageURL, err := url.Parse(target)
	if err != nil {
		res.outcome = outcomeParseError
		return res
	}
	parsed, err := parsePage(outcome.Body, pageURL, sc)
	if err != nil {
		res.outcome = outcomeParseError
		logging.Named(ctx, c.logger, "crawler").Debug("page parse failed", zap.String("url", target), zap.Error(err))
		return res
	}

	res.outcome = outcomeRecorded
	res.links = parsed.links
	res.page = &harvest.CrawlPage{
		URL:         target,
		Title:       parsed.title,
		Description: parsed.description,
		Status:      outcome.StatusCode,
	}
	return res
}
