// Package extractor turns a caller-owned URL list into readable text one
// batch at a time. It keeps no state between calls; the caller carries the
// list and the batch index forward.
package extractor

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/site-harvester/internal/clock/system"
	"github.com/JakeFAU/site-harvester/internal/harvest"
	"github.com/JakeFAU/site-harvester/internal/logging"
	"github.com/JakeFAU/site-harvester/internal/metrics"
)

// ErrEmptyContent is reported for pages whose extraction returned no text.
const ErrEmptyContent = "empty content"

// Config bounds batch sizes and fan-out.
type Config struct {
	Concurrency      int
	DefaultBatchSize int
	MaxBatchSize     int
}

// DefaultConfig returns the extraction defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:      3,
		DefaultBatchSize: 5,
		MaxBatchSize:     10,
	}
}

// Extractor runs one batch of extractions through a TextExtractor.
type Extractor struct {
	text   harvest.TextExtractor
	cfg    Config
	clock  harvest.Clock
	logger *zap.Logger
}

// New builds an Extractor. A nil clock falls back to wall time.
func New(text harvest.TextExtractor, cfg Config, clock harvest.Clock, logger *zap.Logger) *Extractor {
	defaults := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = defaults.MaxBatchSize
	}
	if cfg.DefaultBatchSize <= 0 {
		cfg.DefaultBatchSize = defaults.DefaultBatchSize
	}
	if cfg.DefaultBatchSize > cfg.MaxBatchSize {
		cfg.DefaultBatchSize = cfg.MaxBatchSize
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		text:   text,
		cfg:    cfg,
		clock:  clock,
		logger: logger.Named("extractor"),
	}
}

// BatchSize resolves a requested batch size against the configured bounds.
func (e *Extractor) BatchSize(requested int) int {
	if requested <= 0 {
		return e.cfg.DefaultBatchSize
	}
	if requested > e.cfg.MaxBatchSize {
		return e.cfg.MaxBatchSize
	}
	return requested
}

// ExtractBatch extracts urls[batchIndex*batchSize : (batchIndex+1)*batchSize].
// Per-item failures are recorded in the results and never abort the batch.
// Results come back in input order.
func (e *Extractor) ExtractBatch(
	ctx context.Context,
	urls []harvest.URLItem,
	batchIndex int,
	batchSize int,
) ([]harvest.ExtractionResult, harvest.BatchProgress) {
	batchSize = e.BatchSize(batchSize)
	if batchIndex < 0 {
		batchIndex = 0
	}
	total := len(urls)
	// Compare batch counts rather than offsets so huge indexes cannot overflow.
	if batchIndex >= (total+batchSize-1)/batchSize {
		return []harvest.ExtractionResult{}, harvest.NewBatchProgress(batchIndex, batchSize, total, total)
	}
	start := batchIndex * batchSize
	end := min(start+batchSize, total)
	batch := urls[start:end]

	logger := logging.Named(ctx, e.logger, "extractor")
	logger.Info("extracting batch",
		zap.Int("batch", batchIndex),
		zap.Int("start", start),
		zap.Int("end", end),
		zap.Int("total", total),
	)

	results := make([]harvest.ExtractionResult, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, item := range batch {
		g.Go(func() error {
			results[i] = e.extractOne(gctx, item)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	logger.Info("batch extracted",
		zap.Int("batch", batchIndex),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(results)-succeeded),
	)
	return results, harvest.NewBatchProgress(batchIndex, batchSize, end, total)
}

// ExtractAll runs every batch in sequence and concatenates the results.
func (e *Extractor) ExtractAll(ctx context.Context, urls []harvest.URLItem, batchSize int) []harvest.ExtractionResult {
	all := make([]harvest.ExtractionResult, 0, len(urls))
	for batchIndex := 0; ; batchIndex++ {
		results, progress := e.ExtractBatch(ctx, urls, batchIndex, batchSize)
		all = append(all, results...)
		if progress.IsComplete || ctx.Err() != nil {
			return all
		}
	}
}

func (e *Extractor) extractOne(ctx context.Context, item harvest.URLItem) harvest.ExtractionResult {
	result := harvest.ExtractionResult{
		URL:   item.URL,
		Title: item.Title,
	}
	text, err := e.text.Extract(ctx, item.URL)
	result.ExtractedAt = e.clock.Now().UTC()
	switch {
	case err != nil:
		result.Error = err.Error()
		logging.Named(ctx, e.logger, "extractor").Warn("extraction failed",
			zap.String("url", item.URL), zap.Error(err))
	case strings.TrimSpace(text) == "":
		result.Error = ErrEmptyContent
	default:
		result.Success = true
		result.Content = text
		result.ContentLength = len([]rune(text))
	}
	metrics.ObserveExtraction(result.Success)
	return result
}
