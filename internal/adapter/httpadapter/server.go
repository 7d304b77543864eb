// Package httpadapter serves health probes, Prometheus metrics and the
// latest drought assessment over HTTP.
package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/drought-risk-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// AssessmentProvider returns the most recent completed assessment.
type AssessmentProvider interface {
	Latest() (domain.Assessment, bool)
}

// HistoryProvider returns past outcomes for one region, newest first.
type HistoryProvider interface {
	RegionHistory(ctx context.Context, region string, limit int) ([]domain.RegionSnapshot, error)
}

// Server exposes health, readiness, metrics and assessment endpoints.
type Server struct {
	httpServer  *http.Server
	assessments AssessmentProvider
	history     HistoryProvider
	logger      *slog.Logger
}

// NewServer creates an HTTP server. history may be nil, in which case the
// region history route is not registered.
func NewServer(addr string, ready ReadinessChecker, assessments AssessmentProvider, history HistoryProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		assessments: assessments,
		history:     history,
		logger:      logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/assessment", s.handleAssessment)
	mux.HandleFunc("GET /api/regions/{name}", s.handleRegion)
	if history != nil {
		mux.HandleFunc("GET /api/regions/{name}/history", s.handleHistory)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleAssessment(w http.ResponseWriter, _ *http.Request) {
	a, ok := s.assessments.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no assessment computed yet")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	a, ok := s.assessments.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no assessment computed yet")
		return
	}
	region, ok := a.Region(r.PathValue("name"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown region")
		return
	}
	writeJSON(w, http.StatusOK, domain.RegionSnapshot{
		RunID:            a.RunID,
		ComputedAt:       a.ComputedAt,
		RegionAssessment: region,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	snaps, err := s.history.RegionHistory(r.Context(), r.PathValue("name"), limit)
	if err != nil {
		s.logger.Error("region history query failed", "region", r.PathValue("name"), "error", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if snaps == nil {
		snaps = []domain.RegionSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
