package apperrors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrEmptyBatch    = errors.New("batch contains no entity ids")
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
	ErrInvalidGrade  = errors.New("grade must be A, B, C, D, or F")
	ErrInvalidDepth  = errors.New("traversal depth must be non-negative")
)
