package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-harvester/internal/config"
	"github.com/JakeFAU/site-harvester/internal/harvest"
	"github.com/JakeFAU/site-harvester/internal/id/uuid"
	"github.com/JakeFAU/site-harvester/internal/metrics"
	"github.com/JakeFAU/site-harvester/internal/pipeline"
)

// Harvester runs the four harvest operations.
type Harvester interface {
	CollectURLs(ctx context.Context, req pipeline.CollectRequest) (pipeline.CollectResult, error)
	ExtractContent(ctx context.Context, req pipeline.ExtractRequest) (pipeline.ExtractResult, error)
	AnalyzeInfo(ctx context.Context, req pipeline.AnalyzeRequest) (pipeline.AnalyzeResult, error)
	ProcessAll(ctx context.Context, req pipeline.ProcessRequest) (pipeline.ProcessResult, error)
}

// Options configure a Server.
type Options struct {
	Server config.ServerConfig
	Auth   config.AuthConfig
	IDs    harvest.IDGenerator
	// Ready reports whether downstream dependencies are usable; nil means always ready.
	Ready func(context.Context) error
}

// Server wires HTTP handlers to the harvest pipeline.
type Server struct {
	router    chi.Router
	harvester Harvester
	opts      Options
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(harvester Harvester, opts Options, logger *zap.Logger) *Server {
	if opts.IDs == nil {
		opts.IDs = uuid.New()
	}
	if opts.Server.AllowedOrigin == "" {
		opts.Server.AllowedOrigin = "*"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{harvester: harvester, opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware(opts.IDs))
	r.Use(corsMiddleware(opts.Server.AllowedOrigin))
	r.Use(loggingMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(recoverMiddleware(logger))
	if opts.Server.RequestTimeout > 0 {
		r.Use(timeoutMiddleware(opts.Server.RequestTimeout))
	}
	r.MethodNotAllowed(s.methodNotAllowed)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	for _, path := range []string{"/", "/v1/harvest"} {
		r.Options(path, preflight)
		r.Group(func(r chi.Router) {
			if opts.Auth.Enabled {
				r.Use(apiKeyMiddleware(opts.Auth.APIKey))
			}
			r.Post(path, s.harvest)
		})
	}

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "POST, OPTIONS")
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends {"success":false,"error":msg,"requestId":...}.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success":   false,
		"error":     msg,
		"requestId": RequestIDFromContext(r.Context()),
	})
}
