package models

import "time"

// Common event types emitted by ingestion.
const (
	EventTypeOfficerChange = "OFFICER_CHANGE"
	EventTypeDeed          = "DEED"
	EventTypeTaxDelinq     = "TAX_DELINQ"
	EventTypeFiling        = "FILING"
)

// Event is a time-series record tied to an entity (officer changes,
// filings, deeds, tax delinquencies). Payload is event-type-specific JSON.
type Event struct {
	ID           int64          `json:"id"`
	EntityID     int64          `json:"entity_id"`
	EventType    string         `json:"event_type"`
	EventDate    time.Time      `json:"event_date"`
	SourceSystem string         `json:"source_system"`
	Payload      map[string]any `json:"payload,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
