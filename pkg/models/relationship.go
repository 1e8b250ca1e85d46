package models

import (
	"fmt"
	"time"
)

// Node types the domain layers recognize. The relationship store itself
// treats node types as opaque strings so new domain types can be added
// without a graph-layer migration.
const (
	NodeTypeEntity   = "entity"
	NodeTypePerson   = "person"
	NodeTypeAddress  = "address"
	NodeTypeProperty = "property"
)

// Common relationship types. Open vocabulary - the store accepts any string.
const (
	RelTypeOwns      = "owns"
	RelTypeAgentFor  = "agent_for"
	RelTypeOfficerOf = "officer_of"
	RelTypeLocatedAt = "located_at"
)

// Relationship is a directed, typed, time-bounded edge between two nodes
// referenced by (type, id) pairs into domain tables. Stored in the
// relationships table. Rows are never updated in place except to set
// end_date; a NULL end_date means the relationship is currently active.
type Relationship struct {
	ID           int64      `json:"id"`
	FromType     string     `json:"from_type"`
	FromID       int64      `json:"from_id"`
	ToType       string     `json:"to_type"`
	ToID         int64      `json:"to_id"`
	RelType      string     `json:"rel_type"`
	SourceSystem string     `json:"source_system"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"` // nil = active
	Confidence   float64    `json:"confidence"`         // [0.0, 1.0], 1.0 when asserted exactly
	CreatedAt    time.Time  `json:"created_at"`
}

// Active reports whether the relationship is currently in effect.
func (r *Relationship) Active() bool {
	return r.EndDate == nil
}

// FromKey returns the "type:id" key of the from node.
func (r *Relationship) FromKey() string {
	return NodeKey(r.FromType, r.FromID)
}

// ToKey returns the "type:id" key of the to node.
func (r *Relationship) ToKey() string {
	return NodeKey(r.ToType, r.ToID)
}

// NodeKey formats a (type, id) node reference as "type:id".
func NodeKey(nodeType string, nodeID int64) string {
	return fmt.Sprintf("%s:%d", nodeType, nodeID)
}

// RelationshipStatistics summarizes the edge table for reporting.
type RelationshipStatistics struct {
	Total    int64            `json:"total_relationships"`
	ByType   map[string]int64 `json:"by_type"`
	BySource map[string]int64 `json:"by_source"`
}
