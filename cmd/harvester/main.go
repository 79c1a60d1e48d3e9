// Package main is the harvester executable.
//
// Architecture overview:
//   - HTTP API: internal/api.Server accepts POST / and POST /v1/harvest with an
//     operationType of collect-urls, extract-content, analyze-info, or process-all,
//     plus /healthz, /readyz, and /metrics.
//   - Crawl: internal/crawler walks one host breadth first on a Colly getter wrapped
//     by internal/fetcher/retry, bounded by a page cap and a soft deadline.
//   - Extract: internal/extractor runs resumable batches through a hosted reader
//     service (textservice) or a local HTML-to-markdown converter (markdown).
//   - Analyze: internal/analysis builds one category-aware prompt and sends it to an
//     OpenAI-compatible chat completion endpoint.
//   - Archive: when enabled, each analysis record is written to memory, local disk,
//     or GCS; a run row goes to Postgres and a notification to Pub/Sub when those are
//     configured.
//
// Run locally: go run ./cmd/harvester serve --config config.yaml (or rely on
// HARVESTER_* environment variables and OPENAI_API_KEY).
package main

import "github.com/JakeFAU/site-harvester/cmd"

func main() {
	cmd.Execute()
}
