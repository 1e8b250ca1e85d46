package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/apperrors"
	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
	"github.com/parcelgraph/parcelgraph-engine/pkg/repositories"
)

// EntityDetails is an entity joined with its registered agent and primary
// address rows.
type EntityDetails struct {
	Entity          *models.Entity  `json:"entity"`
	RegisteredAgent *models.Person  `json:"registered_agent,omitempty"`
	PrimaryAddress  *models.Address `json:"primary_address,omitempty"`
}

// EntitySearch carries the optional filters of an entity search.
type EntitySearch struct {
	Name         string
	Jurisdiction string
	Status       string
	Limit        int
}

// NewEntityInput is the payload for creating or updating an entity together
// with its agent and address records.
type NewEntityInput struct {
	Entity    *models.Entity
	AgentName string          // upserted into people when non-empty
	Address   *models.Address // upserted into addresses when non-nil
}

// EntityService provides entity-level business logic over the repositories.
type EntityService interface {
	// Details returns an entity with agent and address joined.
	// Returns apperrors.ErrNotFound when the entity does not exist.
	Details(ctx context.Context, entityID int64) (*EntityDetails, error)

	// Search returns entities matching the first non-empty filter.
	Search(ctx context.Context, q EntitySearch) ([]*models.Entity, error)

	// CreateWithRelations upserts the agent person and address first, then
	// upserts the entity pointing at them.
	CreateWithRelations(ctx context.Context, input NewEntityInput) (*models.Entity, error)
}

type entityService struct {
	entityRepo  repositories.EntityRepository
	personRepo  repositories.PersonRepository
	addressRepo repositories.AddressRepository
	logger      *zap.Logger
}

// NewEntityService creates a new EntityService.
func NewEntityService(
	entityRepo repositories.EntityRepository,
	personRepo repositories.PersonRepository,
	addressRepo repositories.AddressRepository,
	logger *zap.Logger,
) EntityService {
	return &entityService{
		entityRepo:  entityRepo,
		personRepo:  personRepo,
		addressRepo: addressRepo,
		logger:      logger.Named("entity-service"),
	}
}

var _ EntityService = (*entityService)(nil)

func (s *entityService) Details(ctx context.Context, entityID int64) (*EntityDetails, error) {
	entity, err := s.entityRepo.GetByID(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("load entity %d: %w", entityID, err)
	}
	if entity == nil {
		return nil, fmt.Errorf("entity %d: %w", entityID, apperrors.ErrNotFound)
	}

	details := &EntityDetails{Entity: entity}

	if entity.RegisteredAgentID != nil {
		agent, err := s.personRepo.GetByID(ctx, *entity.RegisteredAgentID)
		if err != nil {
			return nil, fmt.Errorf("load registered agent: %w", err)
		}
		details.RegisteredAgent = agent
	}

	if entity.PrimaryAddressID != nil {
		address, err := s.addressRepo.GetByID(ctx, *entity.PrimaryAddressID)
		if err != nil {
			return nil, fmt.Errorf("load primary address: %w", err)
		}
		details.PrimaryAddress = address
	}

	return details, nil
}

func (s *entityService) Search(ctx context.Context, q EntitySearch) ([]*models.Entity, error) {
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	switch {
	case q.Name != "":
		return s.entityRepo.SearchByName(ctx, q.Name, limit)
	case q.Jurisdiction != "":
		return s.entityRepo.ByJurisdiction(ctx, q.Jurisdiction, limit)
	case q.Status != "":
		return s.entityRepo.ByStatus(ctx, q.Status, limit)
	default:
		return s.entityRepo.SearchByName(ctx, "", limit)
	}
}

func (s *entityService) CreateWithRelations(ctx context.Context, input NewEntityInput) (*models.Entity, error) {
	entity := input.Entity

	if input.AgentName != "" {
		agent, err := s.personRepo.Upsert(ctx, input.AgentName)
		if err != nil {
			return nil, fmt.Errorf("upsert registered agent: %w", err)
		}
		entity.RegisteredAgentID = &agent.ID
	}

	if input.Address != nil {
		address, err := s.addressRepo.Upsert(ctx, input.Address)
		if err != nil {
			return nil, fmt.Errorf("upsert primary address: %w", err)
		}
		entity.PrimaryAddressID = &address.ID
	}

	if err := s.entityRepo.Upsert(ctx, entity); err != nil {
		return nil, fmt.Errorf("upsert entity: %w", err)
	}

	s.logger.Info("Created or updated entity",
		zap.Int64("entity_id", entity.ID),
		zap.String("source_system", entity.SourceSystem),
		zap.Bool("has_agent", entity.RegisteredAgentID != nil),
		zap.Bool("has_address", entity.PrimaryAddressID != nil))

	return entity, nil
}
