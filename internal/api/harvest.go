package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/site-harvester/internal/harvest"
	"github.com/JakeFAU/site-harvester/internal/logging"
	"github.com/JakeFAU/site-harvester/internal/pipeline"
)

const (
	maxRequestBytes  = 8 << 20
	msgInternal      = "internal server error"
	msgNotConfigured = "analysis service is not configured"
)

type harvestRequest struct {
	OperationType string                     `json:"operationType"`
	URL           string                     `json:"url"`
	MaxPages      int                        `json:"maxPages"`
	URLs          urlList                    `json:"urls"`
	BatchIndex    int                        `json:"batchIndex"`
	BatchSize     int                        `json:"batchSize"`
	ContentItems  []harvest.ExtractionResult `json:"contentItems"`
	StoreType     string                     `json:"storeType"`
	Debug         bool                       `json:"debug"`
}

// urlList accepts both ["https://..."] and [{"url": "...", "title": "..."}].
type urlList []harvest.URLItem

func (l *urlList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(urlList, 0, len(raw))
	for _, elem := range raw {
		var item harvest.URLItem
		if len(elem) > 0 && elem[0] == '"' {
			if err := json.Unmarshal(elem, &item.URL); err != nil {
				return err
			}
		} else if err := json.Unmarshal(elem, &item); err != nil {
			return err
		}
		out = append(out, item)
	}
	*l = out
	return nil
}

// harvest dispatches one operation. Every response carries success,
// operationType (when known), the scalar request echo, and requestId.
func (s *Server) harvest(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	resp := map[string]any{"success": false, "requestId": reqID}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		resp["error"] = "could not read request body"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	var req harvestRequest
	if err := decodeStrict(body, &req); err != nil {
		resp["error"] = "invalid JSON body: " + err.Error()
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	resp["request"] = echoScalars(body)

	logger := s.logger.With(zap.String("request_id", reqID))
	var capture *logging.Capture
	if req.Debug {
		logger, capture = logging.NewCapture(logger, zapcore.DebugLevel)
	}
	ctx := logging.WithContext(r.Context(), logger)
	r = r.WithContext(ctx)

	respond := func(status int) {
		if capture != nil {
			resp["logs"] = capture.Entries()
		}
		writeJSON(w, status, resp)
	}

	if req.OperationType == "" {
		resp["error"] = "operationType is required"
		respond(http.StatusBadRequest)
		return
	}
	resp["operationType"] = req.OperationType
	logger.Debug("operation started", zap.String("operation", req.OperationType))

	var payload map[string]any
	switch req.OperationType {
	case pipeline.OpCollectURLs:
		payload, err = s.collect(r, req)
	case pipeline.OpExtractContent:
		payload, err = s.extract(r, req)
	case pipeline.OpAnalyzeInfo:
		payload, err = s.analyze(r, req)
	case pipeline.OpProcessAll:
		payload, err = s.process(r, req)
	default:
		resp["error"] = fmt.Sprintf("unknown operationType %q", req.OperationType)
		respond(http.StatusBadRequest)
		return
	}

	if err != nil {
		status, msg := classify(err)
		if status == http.StatusInternalServerError {
			logger.Error("operation failed", zap.String("operation", req.OperationType), zap.Error(err))
		} else {
			logger.Info("request rejected", zap.String("operation", req.OperationType), zap.Error(err))
		}
		resp["error"] = msg
		respond(status)
		return
	}

	resp["success"] = true
	for k, v := range payload {
		resp[k] = v
	}
	respond(http.StatusOK)
}

func (s *Server) collect(r *http.Request, req harvestRequest) (map[string]any, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, &harvest.ValidationError{Field: "url", Reason: "is required"}
	}
	res, err := s.harvester.CollectURLs(r.Context(), pipeline.CollectRequest{URL: req.URL, MaxPages: req.MaxPages})
	if err != nil {
		return nil, err
	}
	out := map[string]any{"urls": res.URLs, "count": res.Count, "seedUrl": res.SeedURL}
	if res.Error != "" {
		out["success"] = false
		out["error"] = res.Error
	}
	return out, nil
}

func (s *Server) extract(r *http.Request, req harvestRequest) (map[string]any, error) {
	res, err := s.harvester.ExtractContent(r.Context(), pipeline.ExtractRequest{
		URLs:       req.URLs,
		BatchIndex: req.BatchIndex,
		BatchSize:  req.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"contentResults": res.ContentResults, "batchInfo": res.BatchInfo}, nil
}

func (s *Server) analyze(r *http.Request, req harvestRequest) (map[string]any, error) {
	res, err := s.harvester.AnalyzeInfo(r.Context(), pipeline.AnalyzeRequest{
		ContentItems: req.ContentItems,
		StoreType:    req.StoreType,
	})
	if err != nil {
		return nil, err
	}
	out := map[string]any{"storeInfo": res.StoreInfo}
	if res.ArchiveURI != "" {
		out["archiveUri"] = res.ArchiveURI
	}
	return out, nil
}

func (s *Server) process(r *http.Request, req harvestRequest) (map[string]any, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, &harvest.ValidationError{Field: "url", Reason: "is required"}
	}
	res, err := s.harvester.ProcessAll(r.Context(), pipeline.ProcessRequest{
		URL:       req.URL,
		MaxPages:  req.MaxPages,
		StoreType: req.StoreType,
	})
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"success":       res.Success,
		"processedUrls": res.ProcessedURLs,
		"urlCount":      res.URLCount,
		"durationMs":    res.DurationMs,
		"timestamp":     res.Timestamp,
	}
	if res.StoreInfo != nil {
		out["storeInfo"] = res.StoreInfo
	}
	if res.Error != "" {
		out["error"] = res.Error
	}
	if res.ArchiveURI != "" {
		out["archiveUri"] = res.ArchiveURI
	}
	return out, nil
}

// classify maps an operation error to a status and a client-safe message.
func classify(err error) (int, string) {
	var cfgErr *harvest.ConfigurationError
	switch {
	case errors.Is(err, harvest.ErrInvalidSeed), errors.Is(err, harvest.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, msgNotConfigured
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func decodeStrict(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON object")
	}
	return nil
}

// echoScalars returns the top-level scalar fields of body, without debug.
func echoScalars(body []byte) map[string]any {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "debug" {
			continue
		}
		switch v.(type) {
		case []any, map[string]any:
			continue
		}
		out[k] = v
	}
	return out
}
