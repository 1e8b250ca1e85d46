package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
	"github.com/parcelgraph/parcelgraph-engine/pkg/services"
)

// ScoreHandler handles risk scoring HTTP requests.
type ScoreHandler struct {
	engine services.ScoringEngine
	logger *zap.Logger
}

// NewScoreHandler creates a new ScoreHandler.
func NewScoreHandler(engine services.ScoringEngine, logger *zap.Logger) *ScoreHandler {
	return &ScoreHandler{engine: engine, logger: logger}
}

// RegisterRoutes registers the score handler's routes on the given mux.
func (h *ScoreHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/scores/entity/{id}", h.Score)
	mux.HandleFunc("GET /api/scores/entity/{id}/latest", h.Latest)
	mux.HandleFunc("GET /api/scores/entity/{id}/history", h.History)
	mux.HandleFunc("POST /api/scores/batch", h.Batch)
	mux.HandleFunc("GET /api/scores/high-risk", h.HighRisk)
}

// Score handles POST /api/scores/entity/{id}, computing and persisting a
// fresh score.
func (h *ScoreHandler) Score(w http.ResponseWriter, r *http.Request) {
	entityID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.engine.ScoreEntity(r.Context(), entityID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Latest handles GET /api/scores/entity/{id}/latest. An entity that has
// never been scored yields a 404.
func (h *ScoreHandler) Latest(w http.ResponseWriter, r *http.Request) {
	entityID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	score, err := h.engine.GetLatestScore(r.Context(), entityID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if score == nil {
		if err := ErrorResponse(w, http.StatusNotFound, "not_scored", "Entity has not been scored"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, score); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// History handles GET /api/scores/entity/{id}/history with a limit
// parameter.
func (h *ScoreHandler) History(w http.ResponseWriter, r *http.Request) {
	entityID, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	history, err := h.engine.ScoreHistory(r.Context(), entityID, limit)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if history == nil {
		history = make([]*models.RiskScore, 0)
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"entity_id": entityID,
		"scores":    history,
		"count":     len(history),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

type batchScoreRequest struct {
	EntityIDs []int64 `json:"entity_ids"`
}

// Batch handles POST /api/scores/batch. Entities that fail to score are
// omitted from the response; callers detect skips by diffing against the
// request.
func (h *ScoreHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req batchScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	results, err := h.engine.BatchScore(r.Context(), req.EntityIDs)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"requested": len(req.EntityIDs),
		"scored":    len(results),
		"results":   results,
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// HighRisk handles GET /api/scores/high-risk with grade and limit
// parameters, defaulting to grade D.
func (h *ScoreHandler) HighRisk(w http.ResponseWriter, r *http.Request) {
	grade := r.URL.Query().Get("grade")
	if grade == "" {
		grade = models.GradeD
	}
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	scores, err := h.engine.HighRiskEntities(r.Context(), grade, limit)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if scores == nil {
		scores = make([]*models.RiskScore, 0)
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{
		"grade":  grade,
		"scores": scores,
		"count":  len(scores),
	}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
