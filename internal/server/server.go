// Package server exposes price comparison over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/haggle/internal/listing"
	"github.com/FranksOps/haggle/internal/metrics"
	"github.com/FranksOps/haggle/internal/pipeline"
	"github.com/FranksOps/haggle/internal/storage"
)

const (
	maxBodyBytes = 1 << 20

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Comparer runs one price comparison. *pipeline.Pipeline implements it.
type Comparer interface {
	Compare(ctx context.Context, title string) (*listing.SearchResult, error)
}

var _ Comparer = (*pipeline.Pipeline)(nil)

// Config configures a Server.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server routes HTTP requests to the comparer and the history store. A nil
// store disables history.
type Server struct {
	cfg      Config
	comparer Comparer
	store    storage.Backend
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New builds a Server.
func New(cfg Config, comparer Comparer, store storage.Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	s := &Server{
		cfg:      cfg,
		comparer: comparer,
		store:    store,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /api/compare-prices", s.handleCompare)
	s.mux.HandleFunc("GET /api/searches", s.handleSearches)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", metrics.Handler())
	return s
}

// Handler returns the routed handler. Any origin may call the API, so
// browser frontends served elsewhere can use it.
func (s *Server) Handler() http.Handler {
	return allowCORS(s.mux)
}

func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

type compareRequest struct {
	Title *string `json:"title"`
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}

	result, err := s.comparer.Compare(r.Context(), *req.Title)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyTitle) {
			writeError(w, http.StatusBadRequest, "Title is required")
			return
		}
		s.logger.Error("compare failed", "title", *req.Title, "err", err)
		writeError(w, http.StatusInternalServerError, "comparison failed")
		return
	}

	if s.store != nil {
		rec := storage.NewRecord(result, time.Now())
		if err := s.store.Save(r.Context(), rec); err != nil {
			s.logger.Error("saving search failed", "id", rec.ID, "title", rec.Title, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

type searchesResponse struct {
	Searches []*storage.SearchRecord `json:"searches"`
}

func (s *Server) handleSearches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.Filter{
		Title: strings.TrimSpace(q.Get("title")),
		Limit: defaultHistoryLimit,
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(n, maxHistoryLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = n
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = &since
	}

	if s.store == nil {
		writeJSON(w, http.StatusOK, searchesResponse{Searches: []*storage.SearchRecord{}})
		return
	}

	records, err := s.store.Query(r.Context(), filter)
	if err != nil {
		s.logger.Error("querying searches failed", "err", err)
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, searchesResponse{Searches: records})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
