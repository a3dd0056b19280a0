// internal/server/server.go
// Package server exposes the query pipeline over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"supervisor-core/internal/common/logger"
	"supervisor-core/internal/supervisor"
	"supervisor-core/internal/supervisor/types"
)

// maxQueryLength guards against pathological request bodies; normal queries
// are a sentence or two.
const maxQueryLength = 8192

type Server struct {
	pipeline *supervisor.Pipeline
	logger   logger.Logger
}

func New(pipeline *supervisor.Pipeline, log logger.Logger) *Server {
	return &Server{
		pipeline: pipeline,
		logger:   log.WithFields(map[string]interface{}{"component": "server"}),
	}
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/chat/query", s.handleQuery)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return mux
}

type queryRequest struct {
	Query               string                   `json:"query"`
	DealID              string                   `json:"dealId"`
	OrganizationID      string                   `json:"organizationId"`
	ConversationHistory []types.ConversationTurn `json:"conversationHistory,omitempty"`
	Intent              *types.Intent            `json:"intent,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.OrganizationID) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "organizationId is required"})
		return
	}
	if len(req.Query) > maxQueryLength {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query too long"})
		return
	}

	// The x-organization-id header, when present, must agree with the body.
	if hdr := r.Header.Get("x-organization-id"); hdr != "" && hdr != req.OrganizationID {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "organization mismatch"})
		return
	}

	resp := s.pipeline.Answer(r.Context(), &types.QueryContext{
		Query:               req.Query,
		DealID:              req.DealID,
		OrganizationID:      req.OrganizationID,
		ConversationHistory: req.ConversationHistory,
		Intent:              req.Intent,
	})

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
