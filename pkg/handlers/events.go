package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
	"github.com/parcelgraph/parcelgraph-engine/pkg/repositories"
)

// EventHandler exposes the entity event timeline.
type EventHandler struct {
	eventRepo repositories.EventRepository
	logger    *zap.Logger
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(eventRepo repositories.EventRepository, logger *zap.Logger) *EventHandler {
	return &EventHandler{eventRepo: eventRepo, logger: logger}
}

// RegisterRoutes registers the event handler's routes on the given mux.
func (h *EventHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/entities/{id}/events", h.ForEntity)
	mux.HandleFunc("GET /api/events/recent", h.Recent)
	mux.HandleFunc("POST /api/events", h.Create)
}

// ForEntity handles GET /api/entities/{id}/events with event_type and
// limit parameters.
func (h *EventHandler) ForEntity(w http.ResponseWriter, r *http.Request) {
	entityID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	eventType := r.URL.Query().Get("event_type")
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	events, err := h.eventRepo.ForEntity(r.Context(), entityID, eventType, limit)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if events == nil {
		events = make([]*models.Event, 0)
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"entity_id": entityID,
		"events":    events,
		"count":     len(events),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Recent handles GET /api/events/recent with days and limit parameters.
func (h *EventHandler) Recent(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30)
	if days <= 0 || days > 365 {
		days = 30
	}
	limit := queryInt(r, "limit", 100)
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	events, err := h.eventRepo.Recent(r.Context(), days, limit)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if events == nil {
		events = make([]*models.Event, 0)
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"days":   days,
		"events": events,
		"count":  len(events),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type createEventRequest struct {
	EntityID     int64          `json:"entity_id"`
	EventType    string         `json:"event_type"`
	EventDate    *time.Time     `json:"event_date,omitempty"`
	SourceSystem string         `json:"source_system"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// Create handles POST /api/events, appending a timeline event.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.EntityID <= 0 || req.EventType == "" || req.SourceSystem == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_fields",
			"entity_id, event_type, and source_system are required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	eventDate := time.Now().UTC()
	if req.EventDate != nil {
		eventDate = *req.EventDate
	}
	event := &models.Event{
		EntityID:     req.EntityID,
		EventType:    req.EventType,
		EventDate:    eventDate,
		SourceSystem: req.SourceSystem,
		Payload:      req.Payload,
	}
	if err := h.eventRepo.Create(r.Context(), event); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, event); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
