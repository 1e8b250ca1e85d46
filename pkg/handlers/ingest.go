package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/ingest"
	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
	"github.com/parcelgraph/parcelgraph-engine/pkg/repositories"
)

// IngestHandler exposes ingest source execution and run history.
type IngestHandler struct {
	runner  *ingest.Runner
	runRepo repositories.IngestRunRepository
	logger  *zap.Logger
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(runner *ingest.Runner, runRepo repositories.IngestRunRepository, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{runner: runner, runRepo: runRepo, logger: logger}
}

// RegisterRoutes registers the ingest handler's routes on the given mux.
func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/ingest/sources", h.Sources)
	mux.HandleFunc("POST /api/ingest/{source}/run", h.Run)
	mux.HandleFunc("GET /api/ingest/{source}/runs", h.Runs)
}

// Sources handles GET /api/ingest/sources.
func (h *IngestHandler) Sources(w http.ResponseWriter, r *http.Request) {
	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"sources": h.runner.Sources(),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Run handles POST /api/ingest/{source}/run with an optional batch_size
// parameter.
func (h *IngestHandler) Run(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	batchSize := queryInt(r, "batch_size", 0)

	run, err := h.runner.Run(r.Context(), source, batchSize)
	if err != nil {
		if errors.Is(err, ingest.ErrUnknownSource) {
			if err := ErrorResponse(w, http.StatusNotFound, "unknown_source", "Unknown ingest source"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, run); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Runs handles GET /api/ingest/{source}/runs with a limit parameter.
func (h *IngestHandler) Runs(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	limit := queryInt(r, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	runs, err := h.runRepo.BySource(r.Context(), source, limit)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if runs == nil {
		runs = make([]*models.IngestRun, 0)
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"source": source,
		"runs":   runs,
		"count":  len(runs),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
