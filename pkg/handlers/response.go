package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/apperrors"
	"github.com/parcelgraph/parcelgraph-engine/pkg/logging"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ServiceError translates a service-layer error into an HTTP error
// response. Sentinel errors map to 404/400; anything else is a 500 with a
// generic message, with the detail kept server-side.
func ServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var status int
	var code, message string

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", "Resource not found"
	case errors.Is(err, apperrors.ErrEmptyBatch):
		status, code, message = http.StatusBadRequest, "empty_batch", "Batch contains no entity ids"
	case errors.Is(err, apperrors.ErrBatchTooLarge):
		status, code, message = http.StatusBadRequest, "batch_too_large", "Batch exceeds the maximum size"
	case errors.Is(err, apperrors.ErrInvalidGrade):
		status, code, message = http.StatusBadRequest, "invalid_grade", "Grade must be one of A, B, C, D, F"
	case errors.Is(err, apperrors.ErrInvalidDepth):
		status, code, message = http.StatusBadRequest, "invalid_depth", "Depth must be non-negative"
	default:
		logger.Error("Request failed", zap.String("error", logging.SanitizeError(err)))
		status, code, message = http.StatusInternalServerError, "internal_error", "Internal server error"
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
