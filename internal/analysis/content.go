package analysis

import (
	"strings"

	"github.com/JakeFAU/site-harvester/internal/harvest"
)

const (
	// DefaultContentBudget is the rune budget for all page content in one prompt.
	DefaultContentBudget = 18000
	truncationMarker     = "\n[...content truncated]"
	itemSeparator        = "\n\n---\n\n"
)

// usable keeps the results that carry analyzable text.
func usable(results []harvest.ExtractionResult) []harvest.ExtractionResult {
	out := make([]harvest.ExtractionResult, 0, len(results))
	for _, r := range results {
		if r.Usable() {
			out = append(out, r)
		}
	}
	return out
}

// combineContent joins items into one payload of at most budget runes. The
// budget is split evenly; each item is cut to its share before joining.
func combineContent(items []harvest.ExtractionResult, budget int) string {
	if len(items) == 0 {
		return ""
	}
	if budget <= 0 {
		budget = DefaultContentBudget
	}
	share := budget / len(items)

	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, "URL: "+item.URL+"\nTitle: "+item.Title+"\n\n"+truncateWithMarker(item.Content, share))
	}
	return truncateWithMarker(strings.Join(parts, itemSeparator), budget)
}

// truncateWithMarker cuts s to limit runes and appends the marker when it cut.
func truncateWithMarker(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit < 0 {
		limit = 0
	}
	return string(runes[:limit]) + truncationMarker
}
