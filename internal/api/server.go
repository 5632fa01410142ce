// Package api provides the HTTP surface of the anomaly engine.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/open-courseware/gradewatch/internal/analyzer"
	"github.com/open-courseware/gradewatch/internal/domain"
	"github.com/open-courseware/gradewatch/internal/report"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, repo domain.Repository, cache domain.Cache, bus domain.EventBus, factors *analyzer.FactorEngine, assembler *report.Assembler, version string) *Server {
	handler := NewHandler(repo, cache, bus, factors, assembler, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints (no course required)
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// API routes (course required)
	router.Route("/", func(r chi.Router) {
		r.Use(CourseMiddleware)

		// Assignments and grade data
		r.Post("/assignments", handler.CreateAssignment)
		r.Get("/assignments/{id}", handler.GetAssignment)
		r.Post("/assignments/{id}/submissions", handler.RecordSubmission)

		// Analysis and reports
		r.Post("/assignments/{id}/analyze", handler.Analyze)
		r.Get("/assignments/{id}/report", handler.GetLatestReport)
		r.Get("/assignments/{id}/report/summary", handler.GetReportSummary)
		r.Get("/reports/{id}", handler.GetReport)
		r.Patch("/reports/{id}/status", handler.UpdateReportStatus)

		// Custom risk factor management
		r.Get("/factors", handler.ListFactors)
		r.Get("/factors/{id}", handler.GetFactor)
		r.Post("/factors", handler.CreateFactor)
		r.Delete("/factors/{id}", handler.DeleteFactor)
		r.Post("/factors/reload", handler.ReloadFactors)
	})

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
