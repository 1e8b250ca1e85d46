package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
	"github.com/parcelgraph/parcelgraph-engine/pkg/services"
)

// RelationshipHandler handles edge creation and graph statistics requests.
type RelationshipHandler struct {
	graphService services.GraphService
	logger       *zap.Logger
}

// NewRelationshipHandler creates a new RelationshipHandler.
func NewRelationshipHandler(graphService services.GraphService, logger *zap.Logger) *RelationshipHandler {
	return &RelationshipHandler{graphService: graphService, logger: logger}
}

// RegisterRoutes registers the relationship handler's routes on the given
// mux.
func (h *RelationshipHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/relationships", h.Create)
	mux.HandleFunc("GET /api/relationships/stats", h.Stats)
}

type createRelationshipRequest struct {
	FromType     string     `json:"from_type"`
	FromID       int64      `json:"from_id"`
	ToType       string     `json:"to_type"`
	ToID         int64      `json:"to_id"`
	RelType      string     `json:"rel_type"`
	SourceSystem string     `json:"source_system"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	Confidence   float64    `json:"confidence,omitempty"`
}

// Create handles POST /api/relationships. Creating an edge whose active
// identity already exists returns the existing row.
func (h *RelationshipHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRelationshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if req.FromType == "" || req.ToType == "" || req.RelType == "" ||
		req.FromID <= 0 || req.ToID <= 0 || req.SourceSystem == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_fields",
			"from_type, from_id, to_type, to_id, rel_type, and source_system are required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	created, err := h.graphService.CreateRelationship(r.Context(), &models.Relationship{
		FromType:     req.FromType,
		FromID:       req.FromID,
		ToType:       req.ToType,
		ToID:         req.ToID,
		RelType:      req.RelType,
		SourceSystem: req.SourceSystem,
		StartDate:    req.StartDate,
		Confidence:   req.Confidence,
	})
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, created); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Stats handles GET /api/relationships/stats.
func (h *RelationshipHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.graphService.Statistics(r.Context())
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, stats); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
