// Package markdown implements harvest.TextExtractor locally: it fetches the
// page itself and converts the HTML to markdown text.
package markdown

import (
	"context"
	"errors"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/JakeFAU/site-harvester/internal/harvest"
)

// boilerplate tags never carry the page's own content.
var boilerplate = []string{"nav", "footer", "noscript", "iframe", "svg", "form"}

// Extractor converts fetched HTML to markdown.
type Extractor struct {
	fetcher harvest.PageFetcher
}

// New builds an Extractor on a retrying page fetcher.
func New(fetcher harvest.PageFetcher) *Extractor {
	return &Extractor{fetcher: fetcher}
}

// Extract fetches target and returns its markdown rendering.
func (e *Extractor) Extract(ctx context.Context, target string) (string, error) {
	outcome := e.fetcher.Fetch(ctx, target, harvest.FetchOptions{})
	if !outcome.OK() {
		err := outcome.Err
		if err == nil {
			err = errors.New(string(outcome.Class))
		}
		return "", fmt.Errorf("fetch page (status %d): %w", outcome.StatusCode, err)
	}

	converter := md.NewConverter(md.DomainFromURL(target), true, nil)
	converter.Remove(boilerplate...)
	text, err := converter.ConvertString(string(outcome.Body))
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return strings.TrimSpace(text), nil
}
