// Package harvest defines core types shared across the crawl, extract, and analyze stages.
package harvest

import (
	"encoding/json"
	"net/http"
	"time"
)

// FetchClass is the terminal classification of a retried fetch.
type FetchClass string

// Fetch classifications returned by the retrying fetcher.
const (
	FetchSuccess           FetchClass = "success"
	FetchNonRetryableError FetchClass = "non-retryable-error"
	FetchRetryExhausted    FetchClass = "retryable-error-exhausted"
)

// FetchOptions carries per-call fetch overrides.
type FetchOptions struct {
	// Timeout overrides the fetcher's default per-request timeout when > 0.
	Timeout time.Duration
	Headers http.Header
}

// Response is a single raw HTTP response returned by a Getter.
type Response struct {
	URL         string
	StatusCode  int
	Headers     http.Header
	Body        []byte
	ContentType string
	Duration    time.Duration
}

// FetchOutcome is the result of one retried fetch attempt chain.
type FetchOutcome struct {
	Class       FetchClass
	StatusCode  int
	Body        []byte
	ContentType string
	Attempts    int
	Err         error
}

// OK reports whether the outcome is a terminal success.
func (o FetchOutcome) OK() bool {
	return o.Class == FetchSuccess
}

// CrawlPage is one page discovered during a crawl run.
type CrawlPage struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      int    `json:"status"`
}

// URLItem is one caller-owned entry of the URL list handed to the extractor.
type URLItem struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// ExtractionResult is the outcome of extracting one URL's readable text.
type ExtractionResult struct {
	URL           string    `json:"url"`
	Title         string    `json:"title,omitempty"`
	Success       bool      `json:"success"`
	Content       string    `json:"content,omitempty"`
	ContentLength int       `json:"contentLength"`
	Error         string    `json:"error,omitempty"`
	ExtractedAt   time.Time `json:"extractedAt"`
}

// Usable reports whether the result carries text the analysis stage can use.
func (r ExtractionResult) Usable() bool {
	return r.Success && r.Content != ""
}

// BatchProgress describes where a multi-invocation extraction job stands.
// NextBatch is nil once the job is complete.
type BatchProgress struct {
	CurrentBatch   int  `json:"currentBatch"`
	NextBatch      *int `json:"nextBatch"`
	IsComplete     bool `json:"isComplete"`
	ProcessedCount int  `json:"processedCount"`
	TotalCount     int  `json:"totalCount"`
	BatchSize      int  `json:"batchSize"`
	TotalBatches   int  `json:"totalBatches"`
}

// NewBatchProgress derives progress for the batch that ended at processed.
func NewBatchProgress(batchIndex, batchSize, processed, total int) BatchProgress {
	progress := BatchProgress{
		CurrentBatch:   batchIndex,
		ProcessedCount: processed,
		TotalCount:     total,
		BatchSize:      batchSize,
		IsComplete:     processed >= total,
	}
	if batchSize > 0 {
		progress.TotalBatches = (total + batchSize - 1) / batchSize
	}
	if !progress.IsComplete {
		next := batchIndex + 1
		progress.NextBatch = &next
	}
	return progress
}

// AnalysisMetadata is attached to every AnalysisRecord.
type AnalysisMetadata struct {
	PagesAnalyzed    int       `json:"pagesAnalyzed"`
	PagesSupplied    int       `json:"pagesSupplied"`
	StoreType        string    `json:"storeType"`
	AnalysisComplete bool      `json:"analysisComplete"`
	AnalyzedAt       time.Time `json:"analyzedAt"`
}

// AnalysisRecord is the structured output of the analysis stage. Attributes hold
// whatever the analysis service returned; on failure Error is set and
// RawResponse keeps the unparsed reply.
type AnalysisRecord struct {
	Attributes  map[string]any
	Error       string
	RawResponse string
	Metadata    AnalysisMetadata
}

// Failed reports whether the record carries an error instead of attributes.
func (r AnalysisRecord) Failed() bool {
	return r.Error != ""
}

const (
	recordKeyError    = "error"
	recordKeyRaw      = "rawResponse"
	recordKeyMetadata = "metadata"
)

// MarshalJSON flattens attributes into the top-level object next to the metadata block.
func (r AnalysisRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Attributes)+3)
	for k, v := range r.Attributes {
		out[k] = v
	}
	if r.Error != "" {
		out[recordKeyError] = r.Error
	}
	if r.RawResponse != "" {
		out[recordKeyRaw] = r.RawResponse
	}
	out[recordKeyMetadata] = r.Metadata
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON.
func (r *AnalysisRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rec := AnalysisRecord{}
	if v, ok := raw[recordKeyMetadata]; ok {
		if err := json.Unmarshal(v, &rec.Metadata); err != nil {
			return err
		}
		delete(raw, recordKeyMetadata)
	}
	if v, ok := raw[recordKeyError]; ok {
		if err := json.Unmarshal(v, &rec.Error); err != nil {
			return err
		}
		delete(raw, recordKeyError)
	}
	if v, ok := raw[recordKeyRaw]; ok {
		if err := json.Unmarshal(v, &rec.RawResponse); err != nil {
			return err
		}
		delete(raw, recordKeyRaw)
	}
	if len(raw) > 0 {
		rec.Attributes = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			rec.Attributes[k] = val
		}
	}
	*r = rec
	return nil
}
