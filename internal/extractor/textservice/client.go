// Package textservice implements harvest.TextExtractor against a hosted
// reader service that returns a page's readable text for a URL.
package textservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/site-harvester/internal/harvest"
)

const urlPlaceholder = "{url}"

// Config describes the reader endpoint.
type Config struct {
	// URLTemplate contains "{url}", replaced by the page URL verbatim,
	// e.g. "https://r.jina.ai/{url}".
	URLTemplate string
	APIKey      string
	Timeout     time.Duration
	// Limiter, when set, is waited on before every call.
	Limiter     Waiter
}

// Waiter blocks until a call to target may proceed.
type Waiter interface {
	Wait(ctx context.Context, target string) error
}

// Client calls the reader service through a single-GET fetcher.
type Client struct {
	getter harvest.Getter
	cfg    Config
}

// New validates cfg and builds a Client.
func New(getter harvest.Getter, cfg Config) (*Client, error) {
	if getter == nil {
		return nil, errors.New("text service requires a getter")
	}
	if !strings.Contains(cfg.URLTemplate, urlPlaceholder) {
		return nil, &harvest.ConfigurationError{Service: "text extraction service", Missing: "url template with {url}"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{getter: getter, cfg: cfg}, nil
}

// Extract returns the trimmed text body for target. Any non-2xx status is an error.
func (c *Client) Extract(ctx context.Context, target string) (string, error) {
	endpoint := strings.ReplaceAll(c.cfg.URLTemplate, urlPlaceholder, target)
	headers := http.Header{}
	headers.Set("Accept", "text/plain")
	if c.cfg.APIKey != "" {
		headers.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx, endpoint); err != nil {
			return "", err
		}
	}
	resp, err := c.getter.Get(ctx, endpoint, harvest.FetchOptions{
		Timeout: c.cfg.Timeout,
		Headers: headers,
	})
	if err != nil {
		return "", fmt.Errorf("text service request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("text service returned status %d", resp.StatusCode)
	}
	return strings.TrimSpace(string(resp.Body)), nil
}
