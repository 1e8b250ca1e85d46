package models

import (
	"time"

	"github.com/google/uuid"
)

// Ingest run statuses.
const (
	IngestStatusSuccess = "success"
	IngestStatusFailure = "failure"
	IngestStatusPartial = "partial"
	IngestStatusSkipped = "skipped"
)

// IngestRun records one execution of an ingest source for provenance and
// operational reporting.
type IngestRun struct {
	ID                uuid.UUID `json:"id"`
	Source            string    `json:"source"`
	Status            string    `json:"status"`
	RecordsProcessed  int       `json:"records_processed"`
	RecordsSuccessful int       `json:"records_successful"`
	RecordsFailed     int       `json:"records_failed"`
	Errors            []string  `json:"errors,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// SuccessRate returns the percentage of processed records persisted.
func (r *IngestRun) SuccessRate() float64 {
	if r.RecordsProcessed == 0 {
		return 0
	}
	return float64(r.RecordsSuccessful) / float64(r.RecordsProcessed) * 100
}

// Duration returns the wall-clock duration of the run.
func (r *IngestRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
