/*
handlers.go - HTTP API handlers for the lease audit engine

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Runs:
    POST   /api/runs                 Reconcile canonical input tables
    POST   /api/runs/raw             Reconcile raw source tables (mapped first)
    GET    /api/runs                 List stored runs
    GET    /api/runs/{id}            Get a run with all result tables
    GET    /api/runs/{id}/buckets    Bucket results only
    GET    /api/runs/{id}/variances  Variance detail only
    GET    /api/runs/{id}/findings   Rule findings only
    GET    /api/runs/{id}/kpis       Headline metrics

  Scenarios:
    GET    /api/scenarios            List demo scenarios
    POST   /api/scenarios/load       Load a demo scenario
    POST   /api/scenarios/reset      Clear all stored data

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Storage: run and finding persistence
  - ConfigFactory: JSON to audit.Config conversion
  - Default config and rule registry for requests without overrides

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve config (request override or server default)
  3. Run the engine
  4. Evaluate rules, persist run and findings
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Missing columns/fields, empty input, invalid config
  - 404: Run not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/lease-audit/audit"
	"github.com/warp/lease-audit/canonical"
	"github.com/warp/lease-audit/factory"
	"github.com/warp/lease-audit/findings"
	"github.com/warp/lease-audit/mapping"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Storage is everything the API needs from a persistence backend. Both the
// SQLite store and the in-memory store satisfy it.
type Storage interface {
	audit.RunStore
	findings.Store
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         Storage
	ConfigFactory *factory.ConfigFactory

	// Server defaults, used when a request carries no config override.
	defaultConfig   audit.Config
	defaultRegistry *findings.Registry

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store and server-default
// audit configuration.
func NewHandler(store Storage, cfg audit.Config, registry *findings.Registry) *Handler {
	if registry == nil {
		registry = findings.NewRegistry(findings.NewBucketExceptionRule(nil))
	}
	return &Handler{
		Store:           store,
		ConfigFactory:   factory.NewConfigFactory(),
		defaultConfig:   cfg,
		defaultRegistry: registry,
	}
}

// =============================================================================
// RUN HANDLERS
// =============================================================================

// CreateRun reconciles canonical input tables and stores the result.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.executeRun(w, r.Context(), audit.RunInput{
		ScheduledCharges: req.ScheduledCharges,
		Transactions:     req.Transactions,
	}, req.Config)
}

// CreateRawRun normalizes raw source tables through the mapping layer, then
// reconciles them.
func (h *Handler) CreateRawRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRawRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	charges, err := mapping.MapScheduledCharges(req.ScheduledCharges)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scheduled charges source", err)
		return
	}
	txs, err := mapping.MapARTransactions(req.Transactions)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid AR transactions source", err)
		return
	}

	h.executeRun(w, r.Context(), audit.RunInput{
		ScheduledCharges: charges,
		Transactions:     txs,
	}, req.Config)
}

// executeRun resolves the config, runs the shared pipeline, and writes the
// HTTP response.
func (h *Handler) executeRun(w http.ResponseWriter, ctx context.Context, input audit.RunInput, override *factory.ConfigJSON) {
	cfg := h.defaultConfig
	registry := h.defaultRegistry
	if override != nil {
		var err error
		cfg, registry, err = h.ConfigFactory.FromJSON(*override)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid audit config", err)
			return
		}
	}

	resp, err := h.runPipeline(ctx, input, cfg, registry)
	if err != nil {
		var missing *canonical.MissingFieldsError
		switch {
		case errors.As(err, &missing), errors.Is(err, canonical.ErrEmptyInput):
			writeError(w, http.StatusBadRequest, "Input rejected", err)
		default:
			writeError(w, http.StatusInternalServerError, "Reconciliation failed", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// runPipeline is the full run lifecycle: engine, rules, persistence. Also
// used by scenario loaders.
func (h *Handler) runPipeline(ctx context.Context, input audit.RunInput, cfg audit.Config, registry *findings.Registry) (RunResponse, error) {
	engine := audit.NewEngine(cfg)
	out, err := engine.Run(input)
	if err != nil {
		return RunResponse{}, err
	}

	run := audit.Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		AsOf:      out.AsOf,
		Buckets:   out.Buckets,
		Variances: out.Variances,
		Stats:     out.Stats,
	}

	fctx := &findings.Context{
		RunID:          run.ID,
		ExpectedDetail: out.ExpectedDetail,
		ActualDetail:   out.ActualDetail,
		Buckets:        out.Buckets,
	}
	results := registry.EvaluateAll(fctx)

	if err := h.Store.SaveRun(ctx, run); err != nil {
		return RunResponse{}, err
	}
	if err := h.Store.SaveFindings(ctx, run.ID, results); err != nil {
		return RunResponse{}, err
	}

	return RunResponse{
		RunID:        run.ID,
		CreatedAt:    run.CreatedAt.Format(time.RFC3339),
		AsOf:         run.AsOf,
		Stats:        run.Stats,
		BucketCount:  len(run.Buckets),
		FindingCount: len(results),
		KPIs:         findings.CalculateKPIs(run.Buckets, results),
	}, nil
}

// ListRuns returns summaries of all stored runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunSummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = RunSummaryDTO{
			RunID:         s.ID,
			CreatedAt:     s.CreatedAt.Format(time.RFC3339),
			AsOf:          s.AsOf,
			BucketCount:   s.BucketCount,
			VarianceCount: s.VarianceCount,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns a run with all result tables.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetBuckets returns a run's bucket results.
func (h *Handler) GetBuckets(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run.Buckets)
}

// GetVariances returns a run's variance detail.
func (h *Handler) GetVariances(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run.Variances)
}

// GetFindings returns a run's findings.
func (h *Handler) GetFindings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fs, err := h.Store.GetFindings(r.Context(), id)
	if err != nil {
		if errors.Is(err, findings.ErrNoFindings) {
			// A clean run legitimately has zero findings.
			writeJSON(w, http.StatusOK, []findings.Finding{})
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get findings", err)
		return
	}
	writeJSON(w, http.StatusOK, fs)
}

// GetKPIs recomputes the headline metrics for a stored run.
func (h *Handler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	fs, err := h.Store.GetFindings(r.Context(), run.ID)
	if err != nil && !errors.Is(err, findings.ErrNoFindings) {
		writeError(w, http.StatusInternalServerError, "Failed to get findings", err)
		return
	}
	writeJSON(w, http.StatusOK, findings.CalculateKPIs(run.Buckets, fs))
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (audit.Run, bool) {
	id := chi.URLParam(r, "id")
	run, err := h.Store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, audit.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "Run not found", nil)
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		}
		return audit.Run{}, false
	}
	return run, true
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
