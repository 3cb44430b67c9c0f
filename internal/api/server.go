package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/course-search/backend/internal/crawler"
	"github.com/course-search/backend/internal/engine"
	"github.com/course-search/backend/internal/metrics"
	"github.com/course-search/backend/internal/query"
)

type Server struct {
	Engine *engine.Engine
	Logger *logrus.Entry
	Router *http.ServeMux

	gatherer prometheus.Gatherer
}

// NewServer creates the HTTP API. Metrics are served from gatherer.
func NewServer(eng *engine.Engine, logger *logrus.Entry, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		Engine:   eng,
		Logger:   logger.WithField("component", "api"),
		Router:   http.NewServeMux(),
		gatherer: gatherer,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.HandleFunc("/api/v1/crawl", s.handleCrawl)
	s.Router.HandleFunc("/api/v1/search", s.handleSearch)
	s.Router.HandleFunc("/api/v1/status", s.handleStatus)
	if s.gatherer != nil {
		s.Router.Handle("/metrics", metrics.Handler(s.gatherer))
	}
}

// Start serves the API on addr until ctx is cancelled, then shuts down,
// stopping any running crawl.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.Logger.Info("Shutting down API server")
		s.Engine.StopCrawl()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.Logger.WithError(err).Error("API server shutdown failed")
		}
	}()

	s.Logger.Infof("Starting API Server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.Engine.Wait()
	return nil
}

// Responses
type ErrorResponse struct {
	Error string `json:"error"`
}

type CrawlRequest struct {
	MaxPages *int `json:"max_pages,omitempty"`
}

type StatusResponse struct {
	Running   bool          `json:"running"`
	Crawls    int64         `json:"crawls"`
	LastCrawl crawler.Stats `json:"last_crawl"`
	LastError string        `json:"last_error,omitempty"`
	Uptime    string        `json:"uptime"`
}

// Handlers

func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON"})
		return
	}

	budget := s.Engine.Config.Crawl.MaxPages
	if req.MaxPages != nil {
		if *req.MaxPages < 0 {
			jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: "max_pages must be >= 0"})
			return
		}
		budget = *req.MaxPages
	}

	if err := s.Engine.StartCrawl(budget); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrCrawlRunning) {
			status = http.StatusConflict
		}
		jsonResponse(w, status, ErrorResponse{Error: err.Error()})
		return
	}

	jsonResponse(w, http.StatusAccepted, map[string]any{
		"status":    "crawl_started",
		"seed":      s.Engine.Config.Crawl.StartURL,
		"max_pages": budget,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := query.DecodeRequest(r.Body)
	if err != nil {
		jsonResponse(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	res, err := s.Engine.Search(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, query.ErrInvalidInput) {
			status = http.StatusBadRequest
		} else if errors.Is(err, engine.ErrNoStore) {
			status = http.StatusServiceUnavailable
		}
		s.Logger.WithError(err).WithField("status", status).Warn("Course search failed")
		jsonResponse(w, status, ErrorResponse{Error: err.Error()})
		return
	}

	jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.Engine.GetStats()
	running := s.Engine.IsRunning()

	resp := StatusResponse{
		Running:   running,
		Crawls:    stats.Crawls,
		LastCrawl: stats.LastCrawl,
		LastError: stats.LastError,
		Uptime:    "0s",
	}
	if running {
		resp.Uptime = time.Since(stats.StartTime).Round(time.Second).String()
	}

	jsonResponse(w, http.StatusOK, resp)
}

func jsonResponse(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
