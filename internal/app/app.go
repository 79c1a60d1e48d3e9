// Package app builds the long-lived harvester services from configuration and
// holds them for the lifetime of the process.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-harvester/internal/analysis"
	"github.com/JakeFAU/site-harvester/internal/analysis/openai"
	"github.com/JakeFAU/site-harvester/internal/api"
	"github.com/JakeFAU/site-harvester/internal/archive"
	"github.com/JakeFAU/site-harvester/internal/clock/system"
	"github.com/JakeFAU/site-harvester/internal/config"
	"github.com/JakeFAU/site-harvester/internal/crawler"
	"github.com/JakeFAU/site-harvester/internal/extractor"
	"github.com/JakeFAU/site-harvester/internal/extractor/markdown"
	"github.com/JakeFAU/site-harvester/internal/extractor/textservice"
	collyfetcher "github.com/JakeFAU/site-harvester/internal/fetcher/colly"
	"github.com/JakeFAU/site-harvester/internal/fetcher/retry"
	"github.com/JakeFAU/site-harvester/internal/harvest"
	"github.com/JakeFAU/site-harvester/internal/id/uuid"
	"github.com/JakeFAU/site-harvester/internal/metrics"
	"github.com/JakeFAU/site-harvester/internal/pipeline"
	"github.com/JakeFAU/site-harvester/internal/policy/ratelimit"
	mempub "github.com/JakeFAU/site-harvester/internal/publisher/memory"
	"github.com/JakeFAU/site-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/site-harvester/internal/storage"
	"github.com/JakeFAU/site-harvester/internal/storage/gcs"
	"github.com/JakeFAU/site-harvester/internal/storage/local"
	"github.com/JakeFAU/site-harvester/internal/storage/memory"
	"github.com/JakeFAU/site-harvester/internal/storage/postgres"
)

// App holds the shared services for one process.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	service *pipeline.Service
	server  *api.Server
	runs    *postgres.RunStore
	notices *mempub.Publisher
	closers []func() error
}

// New wires every component described by cfg. It fails fast when a configured
// backend cannot be reached; the analysis service is optional and only
// checked when an operation needs it.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{cfg: cfg, logger: logger}

	clock := system.New()
	ids := uuid.New()

	pages := retry.New(
		collyfetcher.New(collyfetcher.Config{
			UserAgent:    cfg.Fetch.UserAgent,
			Timeout:      cfg.Fetch.Timeout,
			MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		}),
		retry.Config{
			MaxRetries:    cfg.Fetch.MaxRetries,
			InitialDelay:  cfg.Fetch.InitialDelay,
			BackoffFactor: cfg.Fetch.BackoffFactor,
			Timeout:       cfg.Fetch.Timeout,
		},
		retry.WithLogger(logger.Named("fetch")),
	)

	crawl := crawler.New(pages, crawler.Config{
		Concurrency:     cfg.Crawl.Concurrency,
		MinContentChars: cfg.Crawl.MinContentChars,
		SeenCapFactor:   cfg.Crawl.SeenCapFactor,
		QueueCapFactor:  cfg.Crawl.QueueCapFactor,
		FetchTimeout:    cfg.Crawl.FetchTimeout,
	}, logger)

	text, err := newTextExtractor(cfg, pages)
	if err != nil {
		return nil, err
	}
	extract := extractor.New(text, extractor.Config{
		Concurrency:      cfg.Extract.Concurrency,
		DefaultBatchSize: cfg.Extract.DefaultBatchSize,
		MaxBatchSize:     cfg.Extract.MaxBatchSize,
	}, clock, logger)

	var completer harvest.Completer
	if cfg.Analysis.APIKey != "" {
		client, err := openai.New(openai.Config{
			APIKey:      cfg.Analysis.APIKey,
			BaseURL:     cfg.Analysis.BaseURL,
			Model:       cfg.Analysis.Model,
			Temperature: cfg.Analysis.Temperature,
			MaxTokens:   cfg.Analysis.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("init analysis client: %w", err)
		}
		completer = client
	} else {
		logger.Warn("analysis api key not set; analyze-info and process-all will fail")
	}
	analyzer := analysis.New(completer, analysis.Config{
		ContentBudget: cfg.Analysis.ContentBudget,
		Timeout:       cfg.Analysis.Timeout,
	}, clock, logger)

	var archiver harvest.Archiver
	if cfg.Archive.Enabled {
		arc, err := a.newArchiver(ctx)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		archiver = arc
	}

	a.service = pipeline.New(pipeline.Deps{
		Crawler:   crawl,
		Extractor: extract,
		Analyzer:  analyzer,
		Archiver:  archiver,
		Clock:     clock,
		IDs:       ids,
	}, pipeline.Limits{
		CrawlDefaultPages:   cfg.Crawl.DefaultMaxPages,
		CrawlMaxPages:       cfg.Crawl.MaxPagesLimit,
		CrawlDeadline:       cfg.Crawl.Deadline,
		ProcessDefaultPages: cfg.Process.DefaultMaxPages,
		ProcessMaxPages:     cfg.Process.MaxPagesLimit,
	}, logger.Named("pipeline"))

	a.server = api.NewServer(a.service, api.Options{
		Server: cfg.Server,
		Auth:   cfg.Auth,
		IDs:    ids,
		Ready:  a.ready,
	}, logger.Named("http"))

	logger.Info("harvester services initialized",
		zap.String("extract_mode", cfg.Extract.Mode),
		zap.Bool("analysis_configured", analyzer.Configured()),
		zap.Bool("archive_enabled", cfg.Archive.Enabled),
	)
	return a, nil
}

func newTextExtractor(cfg config.Config, pages harvest.PageFetcher) (harvest.TextExtractor, error) {
	switch cfg.Extract.Mode {
	case config.ExtractModeLocal:
		return markdown.New(pages), nil
	default:
		// The reader service gets its own getter so its longer timeout does
		// not leak into crawl fetches.
		getter := collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Fetch.UserAgent,
			Timeout:   cfg.Extract.Timeout,
		})
		limiter := ratelimit.New(ratelimit.Config{
			RPS:   cfg.Extract.ServiceRPS,
			Burst: cfg.Extract.ServiceBurst,
		})
		client, err := textservice.New(getter, textservice.Config{
			URLTemplate: cfg.Extract.ServiceURLTemplate,
			APIKey:      cfg.Extract.APIKey,
			Timeout:     cfg.Extract.Timeout,
			Limiter:     limiter,
		})
		if err != nil {
			return nil, fmt.Errorf("init text service: %w", err)
		}
		return client, nil
	}
}

func (a *App) newArchiver(ctx context.Context) (*archive.Archiver, error) {
	cfg := a.cfg.Archive

	var blobs storage.BlobStore
	switch cfg.Backend {
	case config.ArchiveBackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		blobs = store
	case config.ArchiveBackendGCS:
		store, err := gcs.Dial(ctx, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		blobs = store
	default:
		blobs = memory.NewBlobStore()
	}

	var runs archive.RunRecorder
	if cfg.DBDSN != "" {
		store, err := postgres.NewRunStore(ctx, postgres.RunStoreConfig{DSN: cfg.DBDSN, Table: cfg.DBTable})
		if err != nil {
			return nil, fmt.Errorf("init run store: %w", err)
		}
		a.runs = store
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		runs = store
	}

	var pub archive.Publisher
	if cfg.PubSubTopic != "" {
		p, err := pubsub.Dial(ctx, cfg.ProjectID, cfg.PubSubTopic)
		if err != nil {
			return nil, fmt.Errorf("init pubsub: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		pub = p
	} else {
		a.notices = mempub.New(cfg.NoticeCapacity)
		pub = a.notices
	}

	a.logger.Info("archive enabled",
		zap.String("backend", cfg.Backend),
		zap.Bool("postgres", runs != nil),
		zap.Bool("pubsub", a.notices == nil),
	)
	return archive.New(archive.Config{Prefix: cfg.Prefix}, blobs, runs, pub, a.logger), nil
}

func (a *App) ready(ctx context.Context) error {
	if a.runs == nil {
		return nil
	}
	return a.runs.Ping(ctx)
}

// Notices returns the archive notifications kept in memory. It is empty when
// archiving is disabled or notifications go to Pub/Sub.
func (a *App) Notices() []mempub.Notice {
	if a.notices == nil {
		return nil
	}
	return a.notices.Recent()
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Harvester returns the pipeline that runs the harvest operations.
func (a *App) Harvester() api.Harvester {
	return a.service
}

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Close releases backend clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
