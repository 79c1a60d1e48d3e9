// Package retry wraps a single-GET fetcher with bounded exponential backoff
// and classifies the terminal outcome.
package retry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-harvester/internal/harvest"
	"github.com/JakeFAU/site-harvester/internal/logging"
	"github.com/JakeFAU/site-harvester/internal/metrics"
)

// Config controls the retry budget.
type Config struct {
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
	Timeout       time.Duration
}

// DefaultConfig matches the service defaults: two retries starting at one
// second and growing by half each time.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    2,
		InitialDelay:  time.Second,
		BackoffFactor: 1.5,
		Timeout:       5 * time.Second,
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Fetcher implements harvest.PageFetcher on top of a harvest.Getter.
type Fetcher struct {
	getter harvest.Getter
	cfg    Config
	sleep  SleepFunc
	logger *zap.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(f *Fetcher) {
		if fn != nil {
			f.sleep = fn
		}
	}
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New builds a retrying Fetcher.
func New(getter harvest.Getter, cfg Config, opts ...Option) *Fetcher {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffFactor < 1 {
		cfg.BackoffFactor = 1
	}
	f := &Fetcher{
		getter: getter,
		cfg:    cfg,
		sleep:  sleepContext,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs url, retrying 429, 5xx and transport failures with backoff.
func (f *Fetcher) Fetch(ctx context.Context, url string, opts harvest.FetchOptions) harvest.FetchOutcome {
	if opts.Timeout <= 0 {
		opts.Timeout = f.cfg.Timeout
	}
	outcome := f.fetch(ctx, url, opts, f.cfg.MaxRetries, f.cfg.InitialDelay, 1)
	metrics.ObserveFetch(string(outcome.Class), outcome.Attempts)
	return outcome
}

func (f *Fetcher) fetch(
	ctx context.Context,
	url string,
	opts harvest.FetchOptions,
	retriesRemaining int,
	currentDelay time.Duration,
	attempt int,
) harvest.FetchOutcome {
	resp, err := f.getter.Get(ctx, url, opts)
	if err == nil && isSuccess(resp.StatusCode) {
		return harvest.FetchOutcome{
			Class:       harvest.FetchSuccess,
			StatusCode:  resp.StatusCode,
			Body:        resp.Body,
			ContentType: resp.ContentType,
			Attempts:    attempt,
		}
	}

	if err == nil {
		err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if !isRetryable(ctx, resp.StatusCode) {
		return harvest.FetchOutcome{
			Class:      harvest.FetchNonRetryableError,
			StatusCode: resp.StatusCode,
			Attempts:   attempt,
			Err:        err,
		}
	}
	if retriesRemaining <= 0 {
		return harvest.FetchOutcome{
			Class:      harvest.FetchRetryExhausted,
			StatusCode: resp.StatusCode,
			Attempts:   attempt,
			Err:        err,
		}
	}

	logging.Named(ctx, f.logger, "fetch").Debug("retrying fetch",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Int("attempt", attempt),
		zap.Duration("delay", currentDelay),
		zap.Error(err),
	)
	if sleepErr := f.sleep(ctx, currentDelay); sleepErr != nil {
		return harvest.FetchOutcome{
			Class:      harvest.FetchRetryExhausted,
			StatusCode: resp.StatusCode,
			Attempts:   attempt,
			Err:        fmt.Errorf("backoff interrupted: %w", sleepErr),
		}
	}
	nextDelay := time.Duration(float64(currentDelay) * f.cfg.BackoffFactor)
	return f.fetch(ctx, url, opts, retriesRemaining-1, nextDelay, attempt+1)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// isRetryable treats 429, 5xx and transport failures (status 0) as transient.
// A canceled caller context is never retried.
func isRetryable(ctx context.Context, status int) bool {
	if ctx.Err() != nil {
		return false
	}
	if status == 0 {
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
