// Package server exposes the assistant over JSON/HTTP.
//
// Routes:
//
//	POST /v1/chat              full orchestrated conversation turn
//	POST /v1/agents/{pipeline} direct invocation of one specialized pipeline
//	GET  /healthz              liveness probe
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smartdoc-labs/smartdoc/pkg/agents"
)

// ChatRequest is the POST /v1/chat payload.
type ChatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON body for 4xx/5xx replies.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server routes HTTP requests to the orchestrator and the specialized
// pipelines.
type Server struct {
	orchestrator *agents.Orchestrator
	invoker      agents.Invoker
	logger       *slog.Logger
	router       chi.Router
}

// New creates a Server. The invoker serves the /v1/agents routes; it is
// usually the same LocalInvoker the orchestrator dispatches through.
func New(orchestrator *agents.Orchestrator, invoker agents.Invoker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		orchestrator: orchestrator,
		invoker:      invoker,
		logger:       logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/chat", s.handleChat)
	r.Post("/v1/agents/{pipeline}", s.handleAgent)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChat runs one orchestrated conversation turn.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}

	if strings.TrimSpace(req.UserID) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "user_id is required"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "message is required"})
		return
	}

	result := s.orchestrator.Handle(r.Context(), req.UserID, req.Message)
	writeJSON(w, http.StatusOK, result)
}

// handleAgent invokes one specialized pipeline directly. Used by remote
// deployments where the orchestrator runs in another process.
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	pipelineName := chi.URLParam(r, "pipeline")

	var req agents.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "user_id is required"})
		return
	}

	resp, err := s.invoker.Invoke(r.Context(), pipelineName, req)
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// logRequests logs one line per request with method, path, status, and
// duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
