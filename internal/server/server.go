// Package server exposes the nurturing services over an HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/nurtureai/nurture-go/internal/agent"
	"github.com/nurtureai/nurture-go/internal/config"
	"github.com/nurtureai/nurture-go/internal/llm"
	"github.com/nurtureai/nurture-go/internal/metrics"
	"github.com/nurtureai/nurture-go/internal/models"
	"github.com/nurtureai/nurture-go/internal/reply"
	"github.com/nurtureai/nurture-go/internal/store"
)

// Server is the HTTP API over the store, the routing agent, and the
// automated reply service.
type Server struct {
	cfg     config.Config
	store   *store.Store
	agent   reply.QueryAgent
	replies *reply.Service
	metrics *metrics.Collector
	http    *http.Server
}

// New builds the router and wires all endpoints.
func New(cfg config.Config, st *store.Store, ag reply.QueryAgent, replies *reply.Service, collector *metrics.Collector) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		agent:   ag,
		replies: replies,
		metrics: collector,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(RequestLogger(slog.Default()))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/agent/query", s.handleAgentQuery)
		r.Post("/replies/process", s.handleProcessReplies)
		r.Get("/leads", s.handleListLeads)
		r.Post("/leads", s.handleCreateLead)
		r.Get("/campaigns", s.handleListCampaigns)
		r.Post("/campaigns", s.handleCreateCampaign)
		r.Get("/conversations", s.handleListConversations)
		r.Get("/stats", s.handleStats)
	})

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the underlying router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type agentQueryRequest struct {
	Query       string `json:"query"`
	ProjectName string `json:"project_name"`
}

func (s *Server) handleAgentQuery(w http.ResponseWriter, r *http.Request) {
	var req agentQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	start := time.Now()
	answer, err := s.agent.Query(r.Context(), req.Query, req.ProjectName)
	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpAgentQuery, time.Since(start))
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, agent.ErrSynthesis) || errors.Is(err, llm.ErrProviderUnavailable) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleProcessReplies(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	limit := s.cfg.WatchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	result, err := s.replies.ProcessPending(r.Context(), limit, force)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := s.store.ListLeads(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if leads == nil {
		leads = []models.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	var lead models.Lead
	if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if lead.Name == "" || lead.Email == "" {
		writeError(w, http.StatusBadRequest, "name and email are required")
		return
	}
	if lead.LeadID == "" {
		lead.LeadID = uuid.NewString()
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusNotConnected
	}

	created, err := s.store.CreateLead(r.Context(), lead)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.store.ListCampaigns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if campaigns == nil {
		campaigns = []models.Campaign{}
	}
	writeJSON(w, http.StatusOK, campaigns)
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var campaign models.Campaign
	if err := json.NewDecoder(r.Body).Decode(&campaign); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if campaign.ProjectName == "" {
		writeError(w, http.StatusBadRequest, "project_name is required")
		return
	}
	if campaign.Channel == "" {
		campaign.Channel = models.ChannelEmail
	}
	if campaign.Channel != models.ChannelEmail && campaign.Channel != models.ChannelWhatsApp {
		writeError(w, http.StatusBadRequest, "channel must be email or whatsapp")
		return
	}

	created, err := s.store.CreateCampaign(r.Context(), campaign)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	campaignLeadID, err := strconv.ParseInt(r.URL.Query().Get("campaign_lead_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "campaign_lead_id is required")
		return
	}

	conversations, err := s.store.ListConversations(r.Context(), campaignLeadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusNotFound, "metrics disabled")
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
