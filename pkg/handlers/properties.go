package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
	"github.com/parcelgraph/parcelgraph-engine/pkg/repositories"
	"github.com/parcelgraph/parcelgraph-engine/pkg/services"
)

// PropertyHandler handles property lookup requests.
type PropertyHandler struct {
	propertyRepo repositories.PropertyRepository
	graphService services.GraphService
	logger       *zap.Logger
}

// NewPropertyHandler creates a new PropertyHandler.
func NewPropertyHandler(propertyRepo repositories.PropertyRepository, graphService services.GraphService, logger *zap.Logger) *PropertyHandler {
	return &PropertyHandler{
		propertyRepo: propertyRepo,
		graphService: graphService,
		logger:       logger,
	}
}

// RegisterRoutes registers the property handler's routes on the given mux.
func (h *PropertyHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/properties", h.ByCounty)
	mux.HandleFunc("GET /api/properties/{id}", h.Get)
	mux.HandleFunc("GET /api/properties/parcel/{county}/{parcel}", h.ByParcel)
	mux.HandleFunc("GET /api/properties/{id}/owners", h.Owners)
}

// Get handles GET /api/properties/{id}.
func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	propertyID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	property, err := h.propertyRepo.GetByID(r.Context(), propertyID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if property == nil {
		if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Property not found"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, property); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ByParcel handles GET /api/properties/parcel/{county}/{parcel}.
func (h *PropertyHandler) ByParcel(w http.ResponseWriter, r *http.Request) {
	county := r.PathValue("county")
	parcel := r.PathValue("parcel")

	property, err := h.propertyRepo.GetByParcel(r.Context(), county, parcel)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if property == nil {
		if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Property not found"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, property); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ByCounty handles GET /api/properties with county and limit parameters.
func (h *PropertyHandler) ByCounty(w http.ResponseWriter, r *http.Request) {
	county := r.URL.Query().Get("county")
	if county == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_county", "The county parameter is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	properties, err := h.propertyRepo.ByCounty(r.Context(), county, limit)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if properties == nil {
		properties = make([]*models.Property, 0)
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"county":     county,
		"properties": properties,
		"count":      len(properties),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Owners handles GET /api/properties/{id}/owners, returning the active
// owns edges into the property.
func (h *PropertyHandler) Owners(w http.ResponseWriter, r *http.Request) {
	propertyID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	rels, err := h.graphService.IncomingRelationships(r.Context(), models.NodeTypeProperty, propertyID, models.RelTypeOwns, true)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if rels == nil {
		rels = make([]*models.Relationship, 0)
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"property_id": propertyID,
		"owners":      rels,
		"count":       len(rels),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
