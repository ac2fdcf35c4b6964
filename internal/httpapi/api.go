package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jcjurado/outreach/internal/agents"
	"github.com/jcjurado/outreach/internal/auth"
	"github.com/jcjurado/outreach/internal/llm"
	"github.com/jcjurado/outreach/internal/mail"
	"github.com/jcjurado/outreach/internal/metrics"
	"github.com/jcjurado/outreach/internal/service"
	"github.com/jcjurado/outreach/internal/tracing"
	"github.com/jcjurado/outreach/internal/workflows"
)

// Operator is the service surface behind the operator API.
type Operator interface {
	RunCampaign(ctx context.Context, req service.CampaignRequest) (workflows.RunResult, error)
	Deliver(ctx context.Context, req service.DeliveryRequest) (workflows.DeliveryResult, error)
	RunState(ctx context.Context, runID string) (workflows.RunState, error)
	Toolbox() (*agents.Toolbox, error)
}

// APIHandler serves the operator endpoints: campaigns, deliveries, tools and
// run status.
type APIHandler struct {
	operator Operator
	auth     *auth.Middleware
	logger   *zap.Logger
	timeout  time.Duration
	limiter  *rate.Limiter
}

// NewAPIHandler creates the operator API. timeout bounds a synchronous run.
func NewAPIHandler(op Operator, mw *auth.Middleware, rps float64, burst int, timeout time.Duration, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mw == nil {
		mw = auth.NewMiddleware(nil, true, logger)
	}
	return &APIHandler{
		operator: op,
		auth:     mw,
		logger:   logger,
		timeout:  timeout,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// SetRate updates the campaign limiter in place.
func (h *APIHandler) SetRate(rps float64, burst int) {
	h.limiter.SetLimit(rate.Limit(rps))
	h.limiter.SetBurst(burst)
}

// RegisterRoutes registers the operator routes on the provided mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /v1/campaigns", h.auth.HTTPMiddleware(http.HandlerFunc(h.handleCampaign), auth.ScopeCampaignsWrite))
	mux.Handle("POST /v1/deliveries", h.auth.HTTPMiddleware(http.HandlerFunc(h.handleDelivery), auth.ScopeCampaignsWrite))
	mux.Handle("GET /v1/tools", h.auth.HTTPMiddleware(http.HandlerFunc(h.handleListTools), auth.ScopeToolsExecute))
	mux.Handle("POST /v1/tools/{name}", h.auth.HTTPMiddleware(http.HandlerFunc(h.handleInvokeTool), auth.ScopeToolsExecute))
	mux.Handle("GET /v1/runs/{id}", h.auth.HTTPMiddleware(http.HandlerFunc(h.handleRunState), auth.ScopeRunsRead))
}

// campaignResponse is the body of a delivered campaign.
type campaignResponse struct {
	RunID             string       `json:"run_id"`
	FinalText         string       `json:"final_text"`
	FinalAgentLabel   string       `json:"final_agent_label"`
	FinalAgentName    string       `json:"final_agent_name"`
	SelectionMismatch bool         `json:"selection_mismatch"`
	Subject           string       `json:"subject"`
	Receipt           mail.Receipt `json:"receipt"`
	Warnings          []string     `json:"warnings,omitempty"`
}

// failureResponse is the body of a failed run.
type failureResponse struct {
	ErrorKind string `json:"error_kind"`
	Stage     string `json:"stage,omitempty"`
	Detail    string `json:"detail"`
}

func (h *APIHandler) handleCampaign(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "api.campaign")
	status := http.StatusOK
	defer func() {
		metrics.CampaignRequests.WithLabelValues(strconv.Itoa(status)).Inc()
		span.End()
	}()

	if !h.limiter.Allow() {
		status = http.StatusTooManyRequests
		writeJSON(w, status, map[string]string{"error": "rate limit exceeded"})
		return
	}

	var req service.CampaignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		status = http.StatusBadRequest
		writeJSON(w, status, map[string]string{"error": "invalid JSON"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	res, err := h.operator.RunCampaign(ctx, req)
	if err != nil {
		status = h.writeFailure(w, err)
		return
	}
	writeJSON(w, status, campaignResponse{
		RunID:             res.RunID,
		FinalText:         res.FinalText,
		FinalAgentLabel:   res.FinalAgentLabel,
		FinalAgentName:    res.FinalAgentName,
		SelectionMismatch: res.SelectionMismatch,
		Subject:           res.Delivery.Subject,
		Receipt:           res.Delivery.Receipt,
		Warnings:          res.Warnings,
	})
}

func (h *APIHandler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "api.delivery")
	defer span.End()

	var req service.DeliveryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	res, err := h.operator.Deliver(ctx, req)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeFailure maps a run error to its response and returns the status.
func (h *APIHandler) writeFailure(w http.ResponseWriter, err error) int {
	if errors.Is(err, service.ErrInvalidInput) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return http.StatusBadRequest
	}
	if oe, ok := workflows.AsOrchestrationError(err); ok {
		h.logger.Warn("Run failed",
			zap.String("error_kind", string(oe.Kind)),
			zap.String("stage", string(oe.Stage)),
			zap.String("detail", oe.Detail),
		)
		writeJSON(w, http.StatusBadGateway, failureResponse{
			ErrorKind: string(oe.Kind),
			Stage:     string(oe.Stage),
			Detail:    oe.Detail,
		})
		return http.StatusBadGateway
	}
	h.logger.Error("Run could not complete", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "run could not complete"})
	return http.StatusInternalServerError
}

func (h *APIHandler) handleListTools(w http.ResponseWriter, r *http.Request) {
	tb, err := h.operator.Toolbox()
	if err != nil {
		h.logger.Error("Toolbox unavailable", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "toolbox unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]llm.ToolDescriptor{"tools": tb.Descriptors()})
}

type toolRequest struct {
	Input string `json:"input"`
}

func (h *APIHandler) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "api.tool")
	defer span.End()

	name := r.PathValue("name")
	var req toolRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Input == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "input is required"})
		return
	}
	tb, err := h.operator.Toolbox()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "toolbox unavailable"})
		return
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	out, err := tb.Invoke(ctx, name, req.Input)
	switch {
	case errors.Is(err, agents.ErrUnknownTool):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	case err != nil:
		h.logger.Warn("Tool invocation failed", zap.String("tool", name), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, failureResponse{ErrorKind: "GenerationError", Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tool": name, "output": out})
}

func (h *APIHandler) handleRunState(w http.ResponseWriter, r *http.Request) {
	state, err := h.operator.RunState(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, service.ErrRunNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	case err != nil:
		h.logger.Error("Run state query failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "run state unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
