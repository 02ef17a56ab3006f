package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpulse-io/insight-engine/pkg/apperrors"
	"github.com/adpulse-io/insight-engine/pkg/services"
)

// ExperimentHandler exposes experiment runs over HTTP.
type ExperimentHandler struct {
	service services.ExperimentService
	logger  *zap.Logger
}

// NewExperimentHandler creates a new ExperimentHandler.
func NewExperimentHandler(service services.ExperimentService, logger *zap.Logger) *ExperimentHandler {
	return &ExperimentHandler{service: service, logger: logger}
}

// RegisterRoutes registers the experiment routes on the given mux.
func (h *ExperimentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/experiments", h.Run)
	mux.HandleFunc("GET /api/experiments", h.List)
	mux.HandleFunc("GET /api/experiments/{id}", h.Get)
}

// Run handles POST /api/experiments: one full pipeline invocation.
func (h *ExperimentHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req services.ExperimentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Prompt == "" && req.ExplicitSQL == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "prompt or explicit_sql is required")
		return
	}

	summary, err := h.service.RunExperiment(r.Context(), req)
	if err != nil {
		h.logger.Warn("experiment run failed", zap.Error(err))
		status := http.StatusInternalServerError

		var unsafeErr *apperrors.UnsafeSQLError
		switch {
		case errors.Is(err, apperrors.ErrNoDatasets):
			status = http.StatusUnprocessableEntity
		case errors.As(err, &unsafeErr):
			status = http.StatusBadRequest
		}

		// The failed run record still exists; return its id with the error.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "run_failed",
			"message": err.Error(),
			"summary": summary,
		})
		return
	}

	if err := WriteJSON(w, http.StatusOK, summary); err != nil {
		h.logger.Error("Failed to encode run summary", zap.Error(err))
	}
}

// Get handles GET /api/experiments/{id}: the full persisted run.
func (h *ExperimentHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "run id must be a UUID")
		return
	}

	detail, err := h.service.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "no such run")
			return
		}
		h.logger.Error("run lookup failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to load run")
		return
	}

	if err := WriteJSON(w, http.StatusOK, detail); err != nil {
		h.logger.Error("Failed to encode run detail", zap.Error(err))
	}
}

// List handles GET /api/experiments?limit=N.
func (h *ExperimentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := h.service.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("run list failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to list runs")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"runs": runs}); err != nil {
		h.logger.Error("Failed to encode run list", zap.Error(err))
	}
}
