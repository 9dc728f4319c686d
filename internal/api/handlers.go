// Lookalike - Customer Similarity Analytics for eCommerce
// Copyright 2026 CommerceLens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/commercelens/lookalike

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/commercelens/lookalike/internal/config"
	"github.com/commercelens/lookalike/internal/logging"
	"github.com/commercelens/lookalike/internal/lookalike"
	"github.com/commercelens/lookalike/internal/metrics"
	"github.com/commercelens/lookalike/internal/schema"
	"github.com/commercelens/lookalike/internal/store"
	"github.com/commercelens/lookalike/internal/validation"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// ResultStore is the persistence surface the handlers read from.
type ResultStore interface {
	GetLookalikes(ctx context.Context, custID string, limit int) ([]store.RankedCandidate, error)
	ListCustomers(ctx context.Context, limit, offset int) ([]schema.Customer, error)
}

// PipelineRunner triggers a batch recomputation.
type PipelineRunner interface {
	Run(ctx context.Context) (*lookalike.Result, error)
}

// Handler serves the query API over persisted lookalike results.
type Handler struct {
	cfg    *config.Config
	store  ResultStore
	runner PipelineRunner

	started time.Time

	mu      sync.Mutex
	running bool
	lastRun RunSummary
}

// NewHandler creates the API handler.
func NewHandler(cfg *config.Config, st ResultStore, runner PipelineRunner) *Handler {
	return &Handler{
		cfg:     cfg,
		store:   st,
		runner:  runner,
		started: time.Now(),
		lastRun: RunSummary{State: "idle"},
	}
}

// SetLastRun records a run that completed before the server started, so
// status reflects the batch run that produced the served results.
func (h *Handler) SetLastRun(result *lookalike.Result) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastRun = summarize(result)
}

// lookalikeRequest carries the validated query parameters for one
// lookalike lookup.
type lookalikeRequest struct {
	CustomerID string `validate:"required,max=64"`
	K          int    `validate:"min=1"`
}

// GetLookalikes handles GET /api/v1/lookalikes/{customerID}?k=N.
func (h *Handler) GetLookalikes(w http.ResponseWriter, r *http.Request) {
	k, err := h.resolveK(r)
	if err != nil {
		metrics.RankRequestsTotal.WithLabelValues("error").Inc()
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	req := lookalikeRequest{
		CustomerID: chi.URLParam(r, "customerID"),
		K:          k,
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		metrics.RankRequestsTotal.WithLabelValues("error").Inc()
		respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	customerID := req.CustomerID

	lookalikes, err := h.store.GetLookalikes(r.Context(), customerID, k)
	if err != nil {
		var notFound *schema.NotFoundError
		if errors.As(err, &notFound) {
			metrics.RankRequestsTotal.WithLabelValues("not_found").Inc()
			respondError(w, r, http.StatusNotFound, "NOT_FOUND",
				"no lookalike results for customer "+customerID, nil)
			return
		}
		metrics.RankRequestsTotal.WithLabelValues("error").Inc()
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR",
			"failed to load lookalike results", err)
		return
	}

	metrics.RankRequestsTotal.WithLabelValues("ok").Inc()
	respondSuccess(w, r, &LookalikeResponse{
		CustomerID: customerID,
		K:          k,
		Lookalikes: lookalikes,
	}, len(lookalikes))
}

// ListCustomers handles GET /api/v1/customers?limit=N&offset=M.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", h.cfg.API.DefaultPageSize)
	offset := getIntParam(r, "offset", 0)

	if limit <= 0 || limit > h.cfg.API.MaxPageSize {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR",
			"limit must be between 1 and "+strconv.Itoa(h.cfg.API.MaxPageSize), nil)
		return
	}
	if offset < 0 {
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "offset must not be negative", nil)
		return
	}

	customers, err := h.store.ListCustomers(r.Context(), limit, offset)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list customers", err)
		return
	}

	summaries := make([]CustomerSummary, len(customers))
	for i, c := range customers {
		summaries[i] = CustomerSummary{
			CustomerID: c.ID,
			Name:       c.Name,
			Region:     c.Region,
			SignupDate: c.SignupDate,
		}
	}

	respondSuccess(w, r, &CustomersResponse{
		Customers: summaries,
		Limit:     limit,
		Offset:    offset,
	}, len(summaries))
}

// RunPipeline handles POST /api/v1/pipeline/run. The run executes in the
// background; poll the status endpoint for the outcome. A second trigger
// while a run is in flight gets 409.
func (h *Handler) RunPipeline(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		respondError(w, r, http.StatusConflict, "RUN_IN_PROGRESS", "a pipeline run is already in progress", nil)
		return
	}
	h.running = true
	h.lastRun = RunSummary{State: "running"}
	h.mu.Unlock()

	go func() {
		// Detached from the request context: the run outlives the trigger.
		result, err := h.runner.Run(context.Background())

		h.mu.Lock()
		defer h.mu.Unlock()
		h.running = false
		if err != nil {
			h.lastRun = RunSummary{State: "error", Error: err.Error()}
			return
		}
		h.lastRun = summarize(result)
	}()

	respondJSON(w, r, http.StatusAccepted, &APIResponse{
		Status:   "success",
		Data:     &RunSummary{State: "running"},
		Metadata: Metadata{Timestamp: time.Now().UTC(), RequestID: r.Header.Get("X-Request-ID")},
	})
}

// PipelineStatus handles GET /api/v1/pipeline/status.
func (h *Handler) PipelineStatus(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	last := h.lastRun
	h.mu.Unlock()

	respondSuccess(w, r, &last, 0)
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	last := h.lastRun
	h.mu.Unlock()

	dbStatus := "ok"
	if _, err := h.store.ListCustomers(r.Context(), 1, 0); err != nil {
		dbStatus = "error"
	}

	status := "ok"
	code := http.StatusOK
	if dbStatus != "ok" {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	respondJSON(w, r, code, &APIResponse{
		Status: "success",
		Data: &HealthResponse{
			Status:   status,
			Version:  Version,
			Uptime:   time.Since(h.started).Round(time.Second).String(),
			LastRun:  last,
			Database: dbStatus,
		},
		Metadata: Metadata{Timestamp: time.Now().UTC(), RequestID: r.Header.Get("X-Request-ID")},
	})
}

// resolveK parses and bounds the k query parameter.
func (h *Handler) resolveK(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("k")
	if raw == "" {
		return h.cfg.API.DefaultK, nil
	}

	k, err := strconv.Atoi(raw)
	if err != nil || k < 1 {
		return 0, errors.New("k must be a positive integer")
	}
	if k > h.cfg.API.MaxK {
		return 0, errors.New("k must not exceed " + strconv.Itoa(h.cfg.API.MaxK))
	}
	return k, nil
}

// summarize flattens a pipeline result into the status payload.
func summarize(result *lookalike.Result) RunSummary {
	return RunSummary{
		RunID:               result.RunID,
		State:               "success",
		Customers:           result.Customers,
		Excluded:            len(result.Excluded),
		DroppedTransactions: result.DroppedTransactions,
		DegenerateColumns:   result.DegenerateColumns,
		ReferenceTime:       result.ReferenceTime,
		CompletedAt:         result.CompletedAt,
		DurationMs:          result.Duration.Milliseconds(),
	}
}

// respondSuccess wraps data in the standard envelope.
func respondSuccess(w http.ResponseWriter, r *http.Request, data interface{}, count int) {
	respondJSON(w, r, http.StatusOK, &APIResponse{
		Status: "success",
		Data:   data,
		Metadata: Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: r.Header.Get("X-Request-ID"),
			Count:     count,
		},
	})
}

// respondError sends the error envelope and logs server-side failures.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Err(err).Str("code", code).Msg("api error")
	}

	respondJSON(w, r, status, &APIResponse{
		Status:   "error",
		Metadata: Metadata{Timestamp: time.Now().UTC(), RequestID: r.Header.Get("X-Request-ID")},
		Error:    &APIError{Code: code, Message: message},
	})
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, response *APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write response")
	}
}

// validateRequest runs struct validation and converts failures into the
// API error shape.
func validateRequest(v interface{}) *APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}
	apiErr := validationErr.ToAPIError()
	return &APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}

// getIntParam extracts an integer query parameter with a default.
func getIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
