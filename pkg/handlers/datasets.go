package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/adpulse-io/insight-engine/pkg/models"
	"github.com/adpulse-io/insight-engine/pkg/repositories"
	"github.com/adpulse-io/insight-engine/pkg/services"
)

// DatasetHandler exposes the dataset registry and the SQL cache over HTTP.
type DatasetHandler struct {
	registry services.DatasetRegistry
	cache    repositories.SQLCacheRepository
	logger   *zap.Logger
}

// NewDatasetHandler creates a new DatasetHandler.
func NewDatasetHandler(registry services.DatasetRegistry, cache repositories.SQLCacheRepository, logger *zap.Logger) *DatasetHandler {
	return &DatasetHandler{registry: registry, cache: cache, logger: logger}
}

// RegisterRoutes registers the dataset routes on the given mux.
func (h *DatasetHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/datasets", h.Register)
	mux.HandleFunc("GET /api/datasets", h.List)
	mux.HandleFunc("GET /api/sql-cache", h.ListCache)
}

// Register handles POST /api/datasets: the ingestion subsystem announces a
// dataset after loading it.
func (h *DatasetHandler) Register(w http.ResponseWriter, r *http.Request) {
	var dataset models.Dataset
	if err := json.NewDecoder(r.Body).Decode(&dataset); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if dataset.TableName == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "table_name is required")
		return
	}

	if err := h.registry.Register(r.Context(), &dataset); err != nil {
		h.logger.Error("dataset registration failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to register dataset")
		return
	}

	if err := WriteJSON(w, http.StatusCreated, dataset); err != nil {
		h.logger.Error("Failed to encode dataset", zap.Error(err))
	}
}

// List handles GET /api/datasets.
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	datasets, err := h.registry.List(r.Context())
	if err != nil {
		h.logger.Error("dataset list failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to list datasets")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"datasets": datasets}); err != nil {
		h.logger.Error("Failed to encode dataset list", zap.Error(err))
	}
}

// ListCache handles GET /api/sql-cache: recent prompt-to-SQL entries, most
// recently used first.
func (h *DatasetHandler) ListCache(w http.ResponseWriter, r *http.Request) {
	entries, err := h.cache.List(r.Context(), 50)
	if err != nil {
		h.logger.Error("cache list failed", zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to list cache entries")
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"entries": entries}); err != nil {
		h.logger.Error("Failed to encode cache list", zap.Error(err))
	}
}
