// Package api exposes the orchestration pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FranksOps/pulse/internal/orchestrator"
	"github.com/FranksOps/pulse/internal/runstore"
)

// Runner is the slice of the orchestrator the API needs.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request) orchestrator.Response
}

// Server handles HTTP requests. Store may be nil; run listing then returns
// 404 and completed runs are simply not persisted.
type Server struct {
	runner Runner
	store  runstore.Backend
	logger *slog.Logger
}

// NewServer creates a Server.
func NewServer(runner Runner, store runstore.Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{runner: runner, store: store, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs", s.handleListRuns)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}

	resp := s.runner.Run(r.Context(), req)
	s.persist(r.Context(), resp)

	status := http.StatusOK
	if !resp.OK {
		if resp.Error == orchestrator.ValidationMsg {
			status = http.StatusBadRequest
		} else {
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run store not configured"})
		return
	}

	filter := runstore.Filter{
		Topic:  r.URL.Query().Get("topic"),
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if v := r.URL.Query().Get("ok"); v != "" {
		ok := v == "true" || v == "1"
		filter.OK = &ok
	}

	records, err := s.store.Query(r.Context(), filter)
	if err != nil {
		s.logger.Error("run store query failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	if records == nil {
		records = []*runstore.RunRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": records})
}

// persist saves the run record best-effort; a storage failure never fails the
// request that produced the run.
func (s *Server) persist(ctx context.Context, resp orchestrator.Response) {
	if s.store == nil {
		return
	}

	rec := &runstore.RunRecord{
		ID:         resp.Meta.RunID,
		Topic:      resp.Meta.Topic,
		Status:     string(resp.Meta.Status),
		OK:         resp.OK,
		ItemCount:  len(resp.Data.Items),
		Error:      resp.Error,
		DurationMs: resp.Meta.ElapsedMs,
		CreatedAt:  time.Now().UTC(),
	}
	if len(resp.Data.Items) > 0 {
		if items, err := json.Marshal(resp.Data.Items); err == nil {
			rec.Items = items
		}
	}
	if resp.Data.Sentiment != nil {
		if sent, err := json.Marshal(resp.Data.Sentiment); err == nil {
			rec.Sentiment = sent
		}
	}

	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.Error("persist run failed", "run_id", rec.ID, "err", err)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
