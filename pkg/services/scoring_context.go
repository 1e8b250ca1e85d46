package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
)

// ScoringContext is the feature bundle one scoring run evaluates rules
// against. It is assembled fresh for every run from the entity's attributes
// and graph traversal, never persisted.
type ScoringContext struct {
	EntityID          int64
	Status            string
	FormationDate     *time.Time
	RegisteredAgentID *int64
	PrimaryAddressID  *int64

	// EntityAgeDays is days since formation, nil when the formation date
	// is unknown.
	EntityAgeDays *int

	// PropertyCount is the number of active "owns" edges from this entity
	// to property nodes.
	PropertyCount int

	// AgentEntityCount is how many entities this entity's registered agent
	// represents (active "agent_for" edges to entity nodes). Zero when the
	// entity has no registered agent.
	AgentEntityCount int

	// AddressEntityCount is how many entities share this entity's primary
	// address, including the entity itself. Zero when the entity has no
	// primary address.
	AddressEntityCount int
}

// ContextBuilder assembles scoring contexts. It is a pure read path: the
// entity row plus a handful of graph traversals.
type ContextBuilder struct {
	graph  GraphService
	now    func() time.Time
	logger *zap.Logger
}

// NewContextBuilder creates a ContextBuilder. now is injected so tests can
// pin the age calculation; pass time.Now in production.
func NewContextBuilder(graph GraphService, now func() time.Time, logger *zap.Logger) *ContextBuilder {
	if now == nil {
		now = time.Now
	}
	return &ContextBuilder{
		graph:  graph,
		now:    now,
		logger: logger.Named("scoring-context"),
	}
}

// Build assembles the scoring context for one entity.
func (b *ContextBuilder) Build(ctx context.Context, entity *models.Entity) (*ScoringContext, error) {
	sc := &ScoringContext{
		EntityID:          entity.ID,
		Status:            entity.Status,
		FormationDate:     entity.FormationDate,
		RegisteredAgentID: entity.RegisteredAgentID,
		PrimaryAddressID:  entity.PrimaryAddressID,
	}

	if entity.FormationDate != nil {
		age := int(b.now().Sub(*entity.FormationDate).Hours() / 24)
		sc.EntityAgeDays = &age
	}

	properties, err := b.graph.PropertiesOwnedBy(ctx, entity.ID)
	if err != nil {
		return nil, fmt.Errorf("count owned properties: %w", err)
	}
	sc.PropertyCount = len(properties)

	if entity.RegisteredAgentID != nil {
		agentRels, err := b.graph.AgentRelationships(ctx, *entity.RegisteredAgentID)
		if err != nil {
			return nil, fmt.Errorf("count agent entities: %w", err)
		}
		for _, rel := range agentRels {
			if rel.ToType == models.NodeTypeEntity {
				sc.AgentEntityCount++
			}
		}
	}

	if entity.PrimaryAddressID != nil {
		atAddress, err := b.graph.EntitiesAtAddress(ctx, *entity.PrimaryAddressID)
		if err != nil {
			return nil, fmt.Errorf("count entities at address: %w", err)
		}
		sc.AddressEntityCount = len(atAddress)
	}

	b.logger.Debug("Built scoring context",
		zap.Int64("entity_id", entity.ID),
		zap.Int("property_count", sc.PropertyCount),
		zap.Int("agent_entity_count", sc.AgentEntityCount),
		zap.Int("address_entity_count", sc.AddressEntityCount))

	return sc, nil
}
