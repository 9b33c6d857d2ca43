// Package server exposes the answering pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/wikiqa/internal/model"
	"github.com/sells-group/wikiqa/internal/monitoring"
	"github.com/sells-group/wikiqa/internal/store"
)

const (
	defaultRunsLimit   = 50
	maxRunsLimit       = 500
	defaultStatsWindow = 24
	maxQuestionBytes   = 1 << 16
)

// Asker answers a question.
type Asker interface {
	Ask(ctx context.Context, question string) (*model.AskResult, error)
}

// RunReader reads stored runs.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	Ping(ctx context.Context) error
}

// StatsCollector summarizes recent runs.
type StatsCollector interface {
	Collect(ctx context.Context, lookbackHours int) (*monitoring.MetricsSnapshot, error)
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithStats enables GET /v1/stats.
func WithStats(c StatsCollector) Option {
	return func(s *Server) { s.stats = c }
}

// Server routes HTTP requests to the pipeline and the run store.
type Server struct {
	asker   Asker
	runs    RunReader
	stats   StatsCollector
	origins []string
}

// New creates a Server. runs may be nil, in which case run history
// endpoints answer 503.
func New(asker Asker, runs RunReader, opts ...Option) *Server {
	s := &Server{asker: asker, runs: runs, origins: []string{"*"}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/stats", s.handleStats)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.runs != nil {
		if err := s.runs.Ping(r.Context()); err != nil {
			zap.L().Warn("server: store ping failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	res, err := s.asker.Ask(r.Context(), question)
	if err != nil {
		zap.L().Warn("server: ask failed", zap.String("question", question), zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), defaultRunsLimit)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	runs, err := s.runs.ListRuns(r.Context(), store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		zap.L().Error("server: list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not configured")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("server: get run failed", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "stats are not configured")
		return
	}
	hours, err := intParam(r.URL.Query().Get("hours"), defaultStatsWindow)
	if err != nil || hours <= 0 {
		writeError(w, http.StatusBadRequest, "hours must be a positive integer")
		return
	}
	snap, err := s.stats.Collect(r.Context(), hours)
	if err != nil {
		zap.L().Error("server: collect stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
