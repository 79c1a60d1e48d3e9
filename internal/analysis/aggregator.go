// Package analysis turns extracted page text into one structured record with a
// single call to a language-model service.
package analysis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/site-harvester/internal/clock/system"
	"github.com/JakeFAU/site-harvester/internal/harvest"
	"github.com/JakeFAU/site-harvester/internal/logging"
	"github.com/JakeFAU/site-harvester/internal/metrics"
)

// Record error messages.
const (
	ErrNoValidContent = "no valid content to analyze"
	ErrParseResponse  = "failed to parse analysis response"
	requestFailed     = "analysis request failed: "
)

// Config tunes the aggregator.
type Config struct {
	ContentBudget int
	Timeout       time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{ContentBudget: DefaultContentBudget, Timeout: 45 * time.Second}
}

// Aggregator combines extraction results and asks the completer for one record.
type Aggregator struct {
	completer harvest.Completer
	cfg       Config
	clock     harvest.Clock
	logger    *zap.Logger
}

// New builds an Aggregator. A nil completer is allowed; Analyze then reports a
// configuration error.
func New(completer harvest.Completer, cfg Config, clock harvest.Clock, logger *zap.Logger) *Aggregator {
	if cfg.ContentBudget <= 0 {
		cfg.ContentBudget = DefaultContentBudget
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{completer: completer, cfg: cfg, clock: clock, logger: logger}
}

// Configured reports whether an analysis service is available.
func (a *Aggregator) Configured() bool {
	return a != nil && a.completer != nil
}

// Analyze produces one AnalysisRecord from results. Only a missing completer
// returns an error; every other failure is carried in the record.
func (a *Aggregator) Analyze(ctx context.Context, results []harvest.ExtractionResult, storeType string) (harvest.AnalysisRecord, error) {
	if !a.Configured() {
		metrics.ObserveAnalysis("not_configured")
		return harvest.AnalysisRecord{}, &harvest.ConfigurationError{Service: "analysis service", Missing: "api key"}
	}
	logger := logging.Named(ctx, a.logger, "analysis")
	category := ParseCategory(storeType)
	items := usable(results)

	meta := harvest.AnalysisMetadata{
		PagesAnalyzed: len(items),
		PagesSupplied: len(results),
		StoreType:     string(category),
	}

	if len(items) == 0 {
		meta.AnalyzedAt = a.clock.Now().UTC()
		logger.Warn("no usable content", zap.Int("supplied", len(results)))
		metrics.ObserveAnalysis("no_content")
		return harvest.AnalysisRecord{Error: ErrNoValidContent, Metadata: meta}, nil
	}

	content := combineContent(items, a.cfg.ContentBudget)
	prompt := BuildPrompt(category, content)
	logger.Debug("requesting analysis",
		zap.String("category", string(category)),
		zap.Int("pages", len(items)),
		zap.Int("content_runes", len([]rune(content))),
	)

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	start := time.Now()
	reply, err := a.completer.Complete(callCtx, prompt)
	meta.AnalyzedAt = a.clock.Now().UTC()
	if err != nil {
		logger.Error("analysis request failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		metrics.ObserveAnalysis("request_failed")
		return harvest.AnalysisRecord{Error: requestFailed + err.Error(), Metadata: meta}, nil
	}

	attrs, ok := parseReply(reply)
	if !ok {
		logger.Warn("analysis reply is not a JSON object", zap.Int("reply_len", len(reply)))
		metrics.ObserveAnalysis("parse_failed")
		return harvest.AnalysisRecord{Error: ErrParseResponse, RawResponse: reply, Metadata: meta}, nil
	}

	meta.AnalysisComplete = true
	logger.Info("analysis complete",
		zap.Int("attributes", len(attrs)),
		zap.Duration("duration", time.Since(start)),
	)
	metrics.ObserveAnalysis("complete")
	return harvest.AnalysisRecord{Attributes: attrs, Metadata: meta}, nil
}

// reservedKeys collide with the record envelope and are dropped from model output.
var reservedKeys = []string{"error", "rawResponse", "metadata"}

// parseReply decodes a JSON object from reply, tolerating markdown code fences
// and prose around the object.
func parseReply(reply string) (map[string]any, bool) {
	text := stripCodeFences(reply)
	if text == "" {
		return nil, false
	}
	attrs, ok := decodeObject(text)
	if !ok {
		first, last := strings.Index(text, "{"), strings.LastIndex(text, "}")
		if first < 0 || last <= first {
			return nil, false
		}
		if attrs, ok = decodeObject(text[first : last+1]); !ok {
			return nil, false
		}
	}
	for _, k := range reservedKeys {
		delete(attrs, k)
	}
	return attrs, true
}

func decodeObject(text string) (map[string]any, bool) {
	var attrs map[string]any
	if err := json.Unmarshal([]byte(text), &attrs); err != nil || attrs == nil {
		return nil, false
	}
	return attrs, true
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line, e.g. ```json
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
