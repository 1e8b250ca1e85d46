package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
	"github.com/parcelgraph/parcelgraph-engine/pkg/services"
)

// EntityHandler handles entity lookup, search, and graph requests.
type EntityHandler struct {
	entityService services.EntityService
	graphService  services.GraphService
	logger        *zap.Logger
}

// NewEntityHandler creates a new EntityHandler.
func NewEntityHandler(entityService services.EntityService, graphService services.GraphService, logger *zap.Logger) *EntityHandler {
	return &EntityHandler{
		entityService: entityService,
		graphService:  graphService,
		logger:        logger,
	}
}

// RegisterRoutes registers the entity handler's routes on the given mux.
func (h *EntityHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/entities", h.Search)
	mux.HandleFunc("GET /api/entities/{id}", h.Get)
	mux.HandleFunc("GET /api/entities/{id}/relationships", h.Relationships)
	mux.HandleFunc("GET /api/entities/{id}/graph", h.Graph)
}

// Get handles GET /api/entities/{id}, returning the entity joined with its
// registered agent and primary address.
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	entityID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	details, err := h.entityService.Details(r.Context(), entityID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, details); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Search handles GET /api/entities with name, jurisdiction, status, and
// limit query parameters.
func (h *EntityHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := services.EntitySearch{
		Name:         r.URL.Query().Get("name"),
		Jurisdiction: r.URL.Query().Get("jurisdiction"),
		Status:       r.URL.Query().Get("status"),
		Limit:        queryInt(r, "limit", 0),
	}

	entities, err := h.entityService.Search(r.Context(), q)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if entities == nil {
		entities = make([]*models.Entity, 0)
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"entities": entities,
		"count":    len(entities),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Relationships handles GET /api/entities/{id}/relationships with
// direction (outgoing|incoming), rel_type, and active_only parameters.
func (h *EntityHandler) Relationships(w http.ResponseWriter, r *http.Request) {
	entityID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	relType := r.URL.Query().Get("rel_type")
	activeOnly := queryBool(r, "active_only", true)

	var rels []*models.Relationship
	var err error
	switch direction := r.URL.Query().Get("direction"); direction {
	case "", "outgoing":
		rels, err = h.graphService.OutgoingRelationships(r.Context(), models.NodeTypeEntity, entityID, relType, activeOnly)
	case "incoming":
		rels, err = h.graphService.IncomingRelationships(r.Context(), models.NodeTypeEntity, entityID, relType, activeOnly)
	default:
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_direction", "Direction must be 'outgoing' or 'incoming'"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if rels == nil {
		rels = make([]*models.Relationship, 0)
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"relationships": rels,
		"count":         len(rels),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Graph handles GET /api/entities/{id}/graph with max_depth and
// comma-separated relationship_types parameters. Depth beyond the
// configured ceiling is clamped by the graph service.
func (h *EntityHandler) Graph(w http.ResponseWriter, r *http.Request) {
	entityID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	maxDepth := queryInt(r, "max_depth", 2)

	var relTypes []string
	if raw := r.URL.Query().Get("relationship_types"); raw != "" {
		for _, rt := range strings.Split(raw, ",") {
			if rt = strings.TrimSpace(rt); rt != "" {
				relTypes = append(relTypes, rt)
			}
		}
	}

	subgraph, err := h.graphService.FindConnectedSubgraph(r.Context(), models.NodeTypeEntity, entityID, maxDepth, relTypes)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, subgraph); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
