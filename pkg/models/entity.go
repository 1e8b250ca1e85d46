package models

import "time"

// Entity statuses as reported by the corporate registries.
const (
	EntityStatusActive    = "ACTIVE"
	EntityStatusInactive  = "INACTIVE"
	EntityStatusDissolved = "DISSOLVED"
)

// Entity types normalized from source filings.
const (
	EntityTypeLLC       = "llc"
	EntityTypeCorp      = "corp"
	EntityTypeTrust     = "trust"
	EntityTypeNonprofit = "nonprofit"
	EntityTypePersonRec = "person"
)

// Entity is a legal entity (LLC, corporation, trust, ...) tracked across
// public-record sources. Identified within a source by
// (source_system, external_id).
type Entity struct {
	ID                int64      `json:"id"`
	ExternalID        string     `json:"external_id"` // Source system's ID (e.g. Sunbiz document number)
	SourceSystem      string     `json:"source_system"`
	Type              string     `json:"type"`
	LegalName         string     `json:"legal_name"`
	Jurisdiction      string     `json:"jurisdiction,omitempty"`
	Status            string     `json:"status,omitempty"`
	FormationDate     *time.Time `json:"formation_date,omitempty"`
	EINAvailable      bool       `json:"ein_available"`
	EINVerified       bool       `json:"ein_verified"`
	RegisteredAgentID *int64     `json:"registered_agent_id,omitempty"` // FK to people
	PrimaryAddressID  *int64     `json:"primary_address_id,omitempty"`  // FK to addresses
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Person is a registered agent, officer, or other individual named in
// filings. NormalizedName (uppercase, punctuation stripped) is the identity
// used for cross-source matching.
type Person struct {
	ID             int64     `json:"id"`
	FullName       string    `json:"full_name"`
	NormalizedName string    `json:"normalized_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// Address is a deduplicated location record. NormalizedHash is a digest of
// the uppercased components and is unique across the table.
type Address struct {
	ID             int64     `json:"id"`
	Line1          string    `json:"line1"`
	Line2          string    `json:"line2,omitempty"`
	City           string    `json:"city,omitempty"`
	State          string    `json:"state,omitempty"`
	PostalCode     string    `json:"postal_code,omitempty"`
	County         string    `json:"county,omitempty"`
	Country        string    `json:"country"`
	NormalizedHash string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
