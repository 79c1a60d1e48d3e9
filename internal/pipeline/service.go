// Package pipeline exposes the four harvest operations on top of the crawler,
// extractor, and analysis aggregator. It holds no state between calls.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-harvester/internal/clock/system"
	"github.com/JakeFAU/site-harvester/internal/harvest"
	"github.com/JakeFAU/site-harvester/internal/id/uuid"
	"github.com/JakeFAU/site-harvester/internal/logging"
	"github.com/JakeFAU/site-harvester/internal/metrics"
)

// Operation names as they appear on the wire.
const (
	OpCollectURLs    = "collect-urls"
	OpExtractContent = "extract-content"
	OpAnalyzeInfo    = "analyze-info"
	OpProcessAll     = "process-all"
)

// Messages for process-all short circuits.
const (
	ErrNoPagesCollected  = "no pages collected from seed URL"
	ErrNothingExtracted  = "no content could be extracted"
	defaultStoreCategory = "general"
)

// Crawler discovers pages under a seed.
type Crawler interface {
	Crawl(ctx context.Context, seed string, maxPages int, deadline time.Time) ([]harvest.CrawlPage, error)
}

// Extractor turns URLs into extraction results.
type Extractor interface {
	ExtractBatch(ctx context.Context, urls []harvest.URLItem, batchIndex, batchSize int) ([]harvest.ExtractionResult, harvest.BatchProgress)
	ExtractAll(ctx context.Context, urls []harvest.URLItem, batchSize int) []harvest.ExtractionResult
}

// Analyzer builds one record from extraction results.
type Analyzer interface {
	Configured() bool
	Analyze(ctx context.Context, results []harvest.ExtractionResult, storeType string) (harvest.AnalysisRecord, error)
}

// Limits bounds page counts per operation.
type Limits struct {
	CrawlDefaultPages   int
	CrawlMaxPages       int
	CrawlDeadline       time.Duration
	ProcessDefaultPages int
	ProcessMaxPages     int
}

// DefaultLimits returns the production page limits.
func DefaultLimits() Limits {
	return Limits{
		CrawlDefaultPages:   20,
		CrawlMaxPages:       50,
		CrawlDeadline:       8 * time.Second,
		ProcessDefaultPages: 10,
		ProcessMaxPages:     25,
	}
}

// Deps are the collaborators a Service runs on. Archiver, Clock, and IDs are optional.
type Deps struct {
	Crawler   Crawler
	Extractor Extractor
	Analyzer  Analyzer
	Archiver  harvest.Archiver
	Clock     harvest.Clock
	IDs       harvest.IDGenerator
}

// Service runs harvest operations.
type Service struct {
	deps   Deps
	limits Limits
	logger *zap.Logger
}

// New builds a Service.
func New(deps Deps, limits Limits, logger *zap.Logger) *Service {
	defaults := DefaultLimits()
	if limits.CrawlMaxPages <= 0 {
		limits.CrawlMaxPages = defaults.CrawlMaxPages
	}
	if limits.CrawlDefaultPages <= 0 {
		limits.CrawlDefaultPages = defaults.CrawlDefaultPages
	}
	if limits.CrawlDeadline <= 0 {
		limits.CrawlDeadline = defaults.CrawlDeadline
	}
	if limits.ProcessMaxPages <= 0 {
		limits.ProcessMaxPages = defaults.ProcessMaxPages
	}
	if limits.ProcessDefaultPages <= 0 {
		limits.ProcessDefaultPages = defaults.ProcessDefaultPages
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = uuid.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{deps: deps, limits: limits, logger: logger}
}

// CollectRequest is the input to collect-urls.
type CollectRequest struct {
	URL      string
	MaxPages int
}

// CollectResult lists the pages found.
type CollectResult struct {
	URLs    []harvest.CrawlPage `json:"urls"`
	Count   int                 `json:"count"`
	SeedURL string              `json:"seedUrl"`
	// Error is set when the crawl finished without collecting a page.
	Error   string              `json:"error,omitempty"`
}

// CollectURLs crawls req.URL breadth first within its domain.
func (s *Service) CollectURLs(ctx context.Context, req CollectRequest) (result CollectResult, err error) {
	defer s.observe(OpCollectURLs, time.Now(), func() string { return outcome(err, result.Error == "") })

	if _, err = harvest.ParseSeed(req.URL); err != nil {
		return CollectResult{}, err
	}
	maxPages := clamp(req.MaxPages, s.limits.CrawlDefaultPages, s.limits.CrawlMaxPages)
	pages, err := s.deps.Crawler.Crawl(ctx, req.URL, maxPages, s.crawlDeadline())
	if err != nil {
		return CollectResult{}, err
	}
	result = CollectResult{URLs: nonNilPages(pages), Count: len(pages), SeedURL: req.URL}
	if len(pages) == 0 {
		result.Error = ErrNoPagesCollected
	}
	return result, nil
}

// crawlDeadline is measured in wall time because the crawler checks it against
// time.Now; the injected clock only stamps results.
func (s *Service) crawlDeadline() time.Time {
	return time.Now().Add(s.limits.CrawlDeadline)
}

// ExtractRequest is the input to extract-content.
type ExtractRequest struct {
	URLs       []harvest.URLItem
	BatchIndex int
	BatchSize  int
}

// ExtractResult carries one batch and where the job stands.
type ExtractResult struct {
	ContentResults []harvest.ExtractionResult `json:"contentResults"`
	BatchInfo      harvest.BatchProgress      `json:"batchInfo"`
}

// ExtractContent extracts one batch of req.URLs.
func (s *Service) ExtractContent(ctx context.Context, req ExtractRequest) (result ExtractResult, err error) {
	defer s.observe(OpExtractContent, time.Now(), func() string { return outcome(err, true) })

	if len(req.URLs) == 0 {
		return ExtractResult{}, &harvest.ValidationError{Field: "urls", Reason: "must be a non-empty array"}
	}
	if req.BatchIndex < 0 {
		return ExtractResult{}, &harvest.ValidationError{Field: "batchIndex", Reason: "must not be negative"}
	}
	for _, item := range req.URLs {
		if item.URL == "" {
			return ExtractResult{}, &harvest.ValidationError{Field: "urls", Reason: "entries must have a url"}
		}
	}
	results, progress := s.deps.Extractor.ExtractBatch(ctx, req.URLs, req.BatchIndex, req.BatchSize)
	return ExtractResult{ContentResults: results, BatchInfo: progress}, nil
}

// AnalyzeRequest is the input to analyze-info.
type AnalyzeRequest struct {
	ContentItems []harvest.ExtractionResult
	StoreType    string
}

// AnalyzeResult carries the record and, when archived, where it went.
type AnalyzeResult struct {
	StoreInfo  harvest.AnalysisRecord `json:"storeInfo"`
	ArchiveURI string                 `json:"archiveUri,omitempty"`
}

// AnalyzeInfo runs one analysis over req.ContentItems.
func (s *Service) AnalyzeInfo(ctx context.Context, req AnalyzeRequest) (result AnalyzeResult, err error) {
	defer s.observe(OpAnalyzeInfo, time.Now(), func() string { return outcome(err, !result.StoreInfo.Failed()) })

	if len(req.ContentItems) == 0 {
		return AnalyzeResult{}, &harvest.ValidationError{Field: "contentItems", Reason: "must be a non-empty array"}
	}
	record, err := s.deps.Analyzer.Analyze(ctx, req.ContentItems, storeTypeOrDefault(req.StoreType))
	if err != nil {
		return AnalyzeResult{}, err
	}
	return AnalyzeResult{StoreInfo: record, ArchiveURI: s.archive(ctx, OpAnalyzeInfo, "", record)}, nil
}

// ProcessRequest is the input to process-all.
type ProcessRequest struct {
	URL       string
	MaxPages  int
	StoreType string
}

// URLCount summarizes process-all stages.
type URLCount struct {
	Discovered int `json:"discovered"`
	Extracted  int `json:"extracted"`
	Failed     int `json:"failed"`
}

// ProcessResult is the outcome of process-all. Success is false with Error set
// when an earlier stage produced nothing for the next one.
type ProcessResult struct {
	Success       bool                    `json:"success"`
	Error         string                  `json:"error,omitempty"`
	StoreInfo     *harvest.AnalysisRecord `json:"storeInfo,omitempty"`
	ProcessedURLs []string                `json:"processedUrls"`
	URLCount      URLCount                `json:"urlCount"`
	DurationMs    int64                   `json:"durationMs"`
	Timestamp     time.Time               `json:"timestamp"`
	ArchiveURI    string                  `json:"archiveUri,omitempty"`
}

// ProcessAll crawls, extracts every page, and analyzes the result in one call.
func (s *Service) ProcessAll(ctx context.Context, req ProcessRequest) (result ProcessResult, err error) {
	start := time.Now()
	defer s.observe(OpProcessAll, start, func() string { return outcome(err, result.Success) })
	logger := logging.Named(ctx, s.logger, "pipeline")

	if _, err = harvest.ParseSeed(req.URL); err != nil {
		return ProcessResult{}, err
	}
	if !s.deps.Analyzer.Configured() {
		return ProcessResult{}, &harvest.ConfigurationError{Service: "analysis service", Missing: "api key"}
	}

	finish := func(r ProcessResult) ProcessResult {
		if r.ProcessedURLs == nil {
			r.ProcessedURLs = []string{}
		}
		r.DurationMs = time.Since(start).Milliseconds()
		r.Timestamp = s.deps.Clock.Now().UTC()
		return r
	}

	maxPages := clamp(req.MaxPages, s.limits.ProcessDefaultPages, s.limits.ProcessMaxPages)
	pages, err := s.deps.Crawler.Crawl(ctx, req.URL, maxPages, s.crawlDeadline())
	if err != nil {
		return ProcessResult{}, err
	}
	logger.Info("crawl stage done", zap.Int("pages", len(pages)), zap.Int("max_pages", maxPages))
	if len(pages) == 0 {
		return finish(ProcessResult{Error: ErrNoPagesCollected}), nil
	}

	items := make([]harvest.URLItem, 0, len(pages))
	processed := make([]string, 0, len(pages))
	for _, p := range pages {
		items = append(items, harvest.URLItem{URL: p.URL, Title: p.Title})
		processed = append(processed, p.URL)
	}
	results := s.deps.Extractor.ExtractAll(ctx, items, 0)
	count := URLCount{Discovered: len(pages)}
	for _, r := range results {
		if r.Usable() {
			count.Extracted++
		}
	}
	count.Failed = len(results) - count.Extracted
	logger.Info("extract stage done", zap.Int("extracted", count.Extracted), zap.Int("failed", count.Failed))
	if count.Extracted == 0 {
		return finish(ProcessResult{Error: ErrNothingExtracted, ProcessedURLs: processed, URLCount: count}), nil
	}

	record, err := s.deps.Analyzer.Analyze(ctx, results, storeTypeOrDefault(req.StoreType))
	if err != nil {
		return ProcessResult{}, err
	}
	return finish(ProcessResult{
		Success:       true,
		StoreInfo:     &record,
		ProcessedURLs: processed,
		URLCount:      count,
		ArchiveURI:    s.archive(ctx, OpProcessAll, req.URL, record),
	}), nil
}

// archive files record when an Archiver is configured. Failures are logged only.
func (s *Service) archive(ctx context.Context, operation, seed string, record harvest.AnalysisRecord) string {
	if s.deps.Archiver == nil {
		return ""
	}
	logger := logging.Named(ctx, s.logger, "pipeline")
	runID, err := s.deps.IDs.NewID()
	if err != nil {
		logger.Warn("skipping archive: no run id", zap.Error(err))
		return ""
	}
	uri, err := s.deps.Archiver.Archive(ctx, harvest.ArchiveEntry{
		RunID:     runID,
		Operation: operation,
		SeedURL:   seed,
		Record:    record,
		CreatedAt: s.deps.Clock.Now().UTC(),
	})
	if err != nil {
		logger.Warn("archive failed", zap.String("run_id", runID), zap.Error(err))
	}
	return uri
}

func (s *Service) observe(operation string, start time.Time, outcome func() string) {
	metrics.ObserveOperation(operation, outcome(), time.Since(start))
}

func outcome(err error, success bool) string {
	switch {
	case errors.Is(err, harvest.ErrInvalidSeed), errors.Is(err, harvest.ErrInvalidRequest):
		return "invalid"
	case err != nil:
		return "error"
	case !success:
		return "partial"
	default:
		return "success"
	}
}

func clamp(requested, def, limit int) int {
	if requested <= 0 {
		requested = def
	}
	if requested > limit {
		return limit
	}
	return requested
}

func storeTypeOrDefault(storeType string) string {
	if storeType == "" {
		return defaultStoreCategory
	}
	return storeType
}

func nonNilPages(pages []harvest.CrawlPage) []harvest.CrawlPage {
	if pages == nil {
		return []harvest.CrawlPage{}
	}
	return pages
}
