// Package api exposes the operator-facing HTTP interface: health, metrics,
// checkpoint position, and run log queries.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/burakyilmaz321/fonapi/internal/crawl"
	"github.com/burakyilmaz321/fonapi/internal/metrics"
)

// Server wires HTTP handlers to the run log and checkpoint store.
type Server struct {
	router      chi.Router
	runLog      crawl.RunLog
	checkpoints crawl.CheckpointStore
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runLog crawl.RunLog, checkpoints crawl.CheckpointStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		runLog:      runLog,
		checkpoints: checkpoints,
		logger:      logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/checkpoint", s.getCheckpoint)
		r.Get("/runs", s.getRuns)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getCheckpoint(w http.ResponseWriter, r *http.Request) {
	cp, found, err := s.checkpoints.Load(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "load checkpoint failed")
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, "no checkpoint yet")
		return
	}
	s.writeJSON(w, http.StatusOK, cp)
}

func (s *Server) getRuns(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDayRange(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcomes, err := s.runLog.Query(r.Context(), from, to)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "run log query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"from":     from,
		"to":       to,
		"outcomes": outcomes,
	})
}

// parseDayRange reads the from/to query parameters (DD.MM.YYYY). A missing
// "to" defaults to "from", mirroring the CLI's single-day shorthand.
func parseDayRange(r *http.Request) (crawl.Day, crawl.Day, error) {
	rawFrom := r.URL.Query().Get("from")
	if rawFrom == "" {
		return crawl.Day{}, crawl.Day{}, fmt.Errorf("query parameter 'from' is required")
	}
	from, err := crawl.ParseDay(rawFrom)
	if err != nil {
		return crawl.Day{}, crawl.Day{}, fmt.Errorf("invalid 'from': %w", err)
	}
	to := from
	if rawTo := r.URL.Query().Get("to"); rawTo != "" {
		if to, err = crawl.ParseDay(rawTo); err != nil {
			return crawl.Day{}, crawl.Day{}, fmt.Errorf("invalid 'to': %w", err)
		}
	}
	if from.After(to) {
		return crawl.Day{}, crawl.Day{}, fmt.Errorf("'from' must not be after 'to'")
	}
	return from, to, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
