package harvest

import (
	"context"
	"time"
)

// Getter performs a single HTTP GET. Non-2xx statuses are returned as normal
// responses; only transport failures produce an error.
type Getter interface {
	Get(ctx context.Context, url string, opts FetchOptions) (Response, error)
}

// PageFetcher fetches a page with retry and classification.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOptions) FetchOutcome
}

// TextExtractor returns readable plain text for a page.
type TextExtractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Prompt is the payload sent to the analysis service.
type Prompt struct {
	System string
	User   string
}

// Completer sends one prompt to a language-model service and returns its raw reply.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Archiver persists a finished analysis record somewhere durable.
type Archiver interface {
	Archive(ctx context.Context, entry ArchiveEntry) (string, error)
}

// ArchiveEntry is everything the archive needs to file one analysis run.
type ArchiveEntry struct {
	RunID     string
	Operation string
	SeedURL   string
	Record    AnalysisRecord
	CreatedAt time.Time
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces request and run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
