// Package server exposes a thin read-only JSON API over the momentum
// store: daily rankings and per-keyword history.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/lebred/tiktok-trending-keywords/internal/pipeline"
	"github.com/lebred/tiktok-trending-keywords/internal/store"
)

// Runner triggers a scoring run on demand.
type Runner interface {
	Run(ctx context.Context, keywords []store.Keyword, date time.Time) *pipeline.Report
}

// Server provides the HTTP API.
type Server struct {
	store  store.Store
	runner Runner
	port   int
	log    zerolog.Logger
}

// New creates a new HTTP server. runner may be nil, which disables the
// run endpoint.
func New(s store.Store, runner Runner, port int, log zerolog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:  s,
		runner: runner,
		port:   port,
		log:    log,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/top", s.handleTop)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/api/v1/run", s.handleRun)

	addr := fmt.Sprintf(":%d", s.port)
	s.log.Info().Str("addr", addr).Msg("server listening")
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTop returns one day's keywords ranked by momentum score
// descending. The date defaults to today (UTC).
func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	date := time.Now().UTC()
	if q := r.URL.Query().Get("date"); q != "" {
		parsed, err := time.Parse("2006-01-02", q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	snaps, err := s.store.TopByDate(r.Context(), date, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":  date.Format("2006-01-02"),
		"data":  snaps,
		"count": len(snaps),
	})
}

// handleHistory returns one keyword's snapshots, most recent first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	keyword := r.URL.Query().Get("keyword")
	if keyword == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "keyword required"})
		return
	}

	kw, err := s.store.GetKeyword(r.Context(), keyword)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "keyword not found"})
		return
	}

	limit := 90
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	snaps, err := s.store.History(r.Context(), kw.ID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"keyword": kw.Keyword,
		"data":    snaps,
		"count":   len(snaps),
	})
}

// handleRun triggers a scoring run over every tracked keyword for
// today.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if s.runner == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "runner not configured"})
		return
	}

	keywords, err := s.store.ListKeywords(r.Context(), store.KeywordListOpts{})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	report := s.runner.Run(r.Context(), keywords, time.Now().UTC())
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
