package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"alertcore/internal/domain"
	"alertcore/internal/rules"
	"alertcore/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Core exposes the lifecycle operations the HTTP surface needs.
// Params: context-aware lifecycle and query operations.
// Returns: handler dependency implemented by the app manager.
type Core interface {
	CreateAlert(ctx context.Context, req domain.CreateRequest) (domain.Alert, error)
	EvaluateAndCreate(ctx context.Context, sample domain.Sample) ([]domain.Alert, error)
	GetAlert(id string) (domain.Alert, error)
	ListAlerts(filter store.Filter) ([]domain.Alert, error)
	SetStatus(ctx context.Context, id string, status domain.Status, actor string) (domain.Alert, error)
	Acknowledge(ctx context.Context, id, actor string) (domain.Alert, error)
	Resolve(ctx context.Context, id, actor string) (domain.Alert, error)
	BulkSetStatus(ctx context.Context, ids []string, status domain.Status, actor string) []domain.BulkResult
	DeleteAlert(id string) error
	Stats() domain.Stats
	SweepRetention(window time.Duration) int
}

// Server is the chi-based HTTP surface over the alert core.
// Params: core operations, body size limit, readiness flag, and logger.
// Returns: http.Handler for the service listener.
type Server struct {
	core         Core
	logger       *slog.Logger
	maxBodyBytes int64
	ready        *atomic.Bool
	router       chi.Router
}

// NewServer creates the HTTP server and mounts all routes.
// Params: core operations, logger, request body limit, and readiness flag.
// Returns: initialized server.
func NewServer(core Core, logger *slog.Logger, maxBodyBytes int64, ready *atomic.Bool) *Server {
	if ready == nil {
		ready = &atomic.Bool{}
		ready.Store(true)
	}
	server := &Server{
		core:         core,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
		ready:        ready,
		router:       chi.NewRouter(),
	}
	server.routes()
	return server
}

// ServeHTTP dispatches one request through the chi router.
// Params: response writer and request.
// Returns: none.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes mounts every endpoint on the router.
// Params: none.
// Returns: none.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/samples", s.handleSampleSubmit)
		r.Route("/alerts", func(r chi.Router) {
			r.Post("/", s.handleAlertCreate)
			r.Get("/", s.handleAlertList)
			r.Get("/stats", s.handleStats)
			r.Patch("/status", s.handleBulkStatus)
			r.Get("/{id}", s.handleAlertGet)
			r.Delete("/{id}", s.handleAlertDelete)
			r.Post("/{id}/acknowledge", s.handleAcknowledge)
			r.Post("/{id}/resolve", s.handleResolve)
		})
		r.Post("/retention/sweep", s.handleRetentionSweep)
	})
}

// errorBody is the uniform error response shape.
type errorBody struct {
	Error string `json:"error"`
}

// actorRequest carries the optional actor for single-alert transitions.
type actorRequest struct {
	Actor string `json:"actor"`
}

// bulkStatusRequest is the body of the bulk status update.
type bulkStatusRequest struct {
	IDs    []string      `json:"ids"`
	Status domain.Status `json:"status"`
	Actor  string        `json:"actor"`
}

// bulkStatusItem is one per-id outcome on the wire.
type bulkStatusItem struct {
	ID    string        `json:"id"`
	Alert *domain.Alert `json:"alert,omitempty"`
	Error string        `json:"error,omitempty"`
}

// bulkStatusResponse reports per-id outcomes plus summary counts.
type bulkStatusResponse struct {
	Results   []bulkStatusItem `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// sweepRequest optionally overrides the retention window in days.
type sweepRequest struct {
	Days int `json:"days"`
}

// sweepResponse reports how many alerts a sweep purged.
type sweepResponse struct {
	Purged int `json:"purged"`
}

// handleHealthz reports process liveness.
// Params: response writer and request.
// Returns: none.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports readiness gated on the service flag.
// Params: response writer and request.
// Returns: none.
func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleSampleSubmit evaluates one inbound sample against the rule set.
// Params: response writer and request with a sample JSON body.
// Returns: none; responds with the list of created alerts.
func (s *Server) handleSampleSubmit(w http.ResponseWriter, r *http.Request) {
	var sample domain.Sample
	if !s.decodeBody(w, r, &sample) {
		return
	}
	created, err := s.core.EvaluateAndCreate(r.Context(), sample)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"created": created,
		"count":   len(created),
	})
}

// handleAlertCreate creates one alert from an explicit request.
// Params: response writer and request with a CreateRequest body.
// Returns: none; responds 201 with the created alert.
func (s *Server) handleAlertCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	alert, err := s.core.CreateAlert(r.Context(), req)
	if err != nil {
		if errors.Is(err, rules.ErrNoSuchRule) {
			s.writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, alert)
}

// handleAlertList lists live alerts through the AND-composed filter.
// Params: response writer and request with optional query params
// status, severity, rule_type, created_after, created_before.
// Returns: none.
func (s *Server) handleAlertList(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	alerts, err := s.core.ListAlerts(filter)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// handleAlertGet returns one alert by id.
// Params: response writer and request with the id path param.
// Returns: none.
func (s *Server) handleAlertGet(w http.ResponseWriter, r *http.Request) {
	alert, err := s.core.GetAlert(chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

// handleAlertDelete removes one alert from the live collection.
// Params: response writer and request with the id path param.
// Returns: none.
func (s *Server) handleAlertDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.core.DeleteAlert(chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAcknowledge marks one alert acknowledged.
// Params: response writer and request with id path param and actor body.
// Returns: none.
func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.core.Acknowledge)
}

// handleResolve marks one alert resolved.
// Params: response writer and request with id path param and actor body.
// Returns: none.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.core.Resolve)
}

// handleTransition runs one single-alert lifecycle transition.
// Params: response writer, request, and the transition operation.
// Returns: none.
func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, op func(context.Context, string, string) (domain.Alert, error)) {
	var req actorRequest
	// The actor body is optional; an empty body keeps the actor anonymous.
	if r.Body != nil && r.ContentLength != 0 {
		if !s.decodeBody(w, r, &req) {
			return
		}
	}
	alert, err := op(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.Actor))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

// handleBulkStatus applies one status to many alerts with per-id isolation.
// Params: response writer and request with ids/status/actor body.
// Returns: none; always 200 with per-id outcomes when the body is valid.
func (s *Server) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := req.Status.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	results := s.core.BulkSetStatus(r.Context(), req.IDs, req.Status, strings.TrimSpace(req.Actor))
	response := bulkStatusResponse{Results: make([]bulkStatusItem, 0, len(results))}
	for _, result := range results {
		item := bulkStatusItem{ID: result.ID, Alert: result.Alert}
		if result.Err != nil {
			item.Error = result.Err.Error()
			response.Failed++
		} else {
			response.Succeeded++
		}
		response.Results = append(response.Results, item)
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleStats returns aggregate counts over the live collection.
// Params: response writer and request.
// Returns: none.
func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.core.Stats())
}

// handleRetentionSweep runs one on-demand retention sweep.
// Params: response writer and request with an optional days override body.
// Returns: none; responds with the purged count.
func (s *Server) handleRetentionSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if r.Body != nil && r.ContentLength != 0 {
		if !s.decodeBody(w, r, &req) {
			return
		}
	}
	if req.Days < 0 {
		s.writeError(w, http.StatusBadRequest, errors.New("days must not be negative"))
		return
	}
	window := time.Duration(req.Days) * 24 * time.Hour
	purged := s.core.SweepRetention(window)
	s.writeJSON(w, http.StatusOK, sweepResponse{Purged: purged})
}

// filterFromQuery builds a store filter from list query params.
// Params: request with optional status/severity/rule_type/created_* params.
// Returns: filter or parse/validation error.
func filterFromQuery(r *http.Request) (store.Filter, error) {
	query := r.URL.Query()
	filter := store.Filter{}

	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status := domain.Status(strings.ToLower(raw))
		if err := status.Validate(); err != nil {
			return store.Filter{}, err
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(query.Get("severity")); raw != "" {
		severity := domain.Severity(strings.ToLower(raw))
		if err := severity.Validate(); err != nil {
			return store.Filter{}, err
		}
		filter.Severity = severity
	}
	if raw := strings.TrimSpace(query.Get("rule_type")); raw != "" {
		filter.RuleType = raw
	}
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		after, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return store.Filter{}, fmt.Errorf("parse created_after: %w", err)
		}
		filter.CreatedAfter = &after
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		before, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return store.Filter{}, fmt.Errorf("parse created_before: %w", err)
		}
		filter.CreatedBefore = &before
	}
	return filter, nil
}

// decodeBody decodes one JSON request body with the configured size limit.
// Params: response writer, request, and decode destination.
// Returns: false after writing the error response when decoding fails.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	reader := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	defer func() { _ = reader.Close() }()

	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request body: %w", err))
		return false
	}
	return true
}

// writeStoreError maps store sentinel errors onto HTTP statuses.
// Params: response writer and operation error.
// Returns: none.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInvalidFilter):
		s.writeError(w, http.StatusBadRequest, err)
	default:
		s.writeError(w, http.StatusConflict, err)
	}
}

// writeError writes one uniform JSON error response.
// Params: response writer, HTTP status, and error.
// Returns: none.
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if s.logger != nil && status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err.Error())
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

// writeJSON writes one JSON response with the given status.
// Params: response writer, HTTP status, and response payload.
// Returns: none.
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && s.logger != nil {
		s.logger.Warn("encode response failed", "error", err.Error())
	}
}
