// Package httpserver provides the HTTP REST API over the arXiv article store.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/arxiv-collector/internal/domain"
	"github.com/helixir/arxiv-collector/internal/query"
	"github.com/helixir/arxiv-collector/internal/service"
)

// healthCheckTimeout bounds the store ping behind /healthz.
const healthCheckTimeout = 5 * time.Second

// CollectionService is the part of service.Service the HTTP layer uses.
type CollectionService interface {
	CollectionRunning() bool
	StartIncrementalUpdate(ctx context.Context, daysBack int) (<-chan service.UpdateResult, error)
	ParseFilter(keyword, category, year, limit string) (query.Filter, error)
	Query(ctx context.Context, f query.Filter) ([]domain.Article, error)
	ArticleDetail(ctx context.Context, externalID string) (*domain.Article, error)
	Stats(ctx context.Context) (*domain.CollectionStats, error)
	FetchLog(ctx context.Context, limit int) ([]domain.FetchAuditEntry, error)
}

// HealthFunc reports whether the record store is reachable.
type HealthFunc func(ctx context.Context) error

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	svc        CollectionService
	health     HealthFunc
	cfg        Config
	logger     zerolog.Logger

	// runCtx outlives requests so background collections survive the
	// response; Shutdown cancels it.
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// DefaultUpdateDays applies when POST /collections/update carries no days.
	DefaultUpdateDays int
	// MetricsPath exposes the Prometheus registry when non-empty.
	MetricsPath string
}

// NewServer creates a new HTTP server. health may be nil.
func NewServer(cfg Config, svc CollectionService, health HealthFunc, logger zerolog.Logger) *Server {
	if cfg.DefaultUpdateDays < 1 {
		cfg.DefaultUpdateDays = 1
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		svc:       svc,
		health:    health,
		cfg:       cfg,
		logger:    logger.With().Str("component", "http-server").Logger(),
		runCtx:    runCtx,
		cancelRun: cancel,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(requestLogMiddleware(s.logger))

	if s.cfg.MetricsPath != "" {
		r.Handle(s.cfg.MetricsPath, promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Get("/healthz", s.healthHandler)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/articles", s.listArticles)
			r.Get("/articles/*", s.getArticle)
			r.Get("/stats", s.getStats)
			r.Get("/fetch-log", s.listFetchLog)
			r.Get("/collections/status", s.collectionStatus)
			r.Post("/collections/update", s.startUpdate)
		})
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server and cancels any
// collection it started.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancelRun()
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.health(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": "unreachable",
			"error":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "healthy"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort log; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
