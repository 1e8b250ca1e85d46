package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/parcelgraph/parcelgraph-engine/pkg/database"
	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
)

// EntityRepository provides data access for legal entities. Lookups return
// (nil, nil) when no row matches; services translate that into not-found
// errors at their own boundary.
type EntityRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Entity, error)
	GetByExternalID(ctx context.Context, sourceSystem, externalID string) (*models.Entity, error)
	SearchByName(ctx context.Context, name string, limit int) ([]*models.Entity, error)
	ByJurisdiction(ctx context.Context, jurisdiction string, limit int) ([]*models.Entity, error)
	ByStatus(ctx context.Context, status string, limit int) ([]*models.Entity, error)

	// ByAddress returns entities whose primary address is the given
	// address. Address affiliation is an entity attribute, not an edge, so
	// this is the canonical "entities at address" query.
	ByAddress(ctx context.Context, addressID int64) ([]*models.Entity, error)

	// ByAgent returns entities whose registered agent is the given person.
	ByAgent(ctx context.Context, agentID int64) ([]*models.Entity, error)

	// Upsert inserts or updates by (source_system, external_id) identity
	// and populates the entity's ID and timestamps.
	Upsert(ctx context.Context, entity *models.Entity) error
}

type entityRepository struct {
	db *database.DB
}

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(db *database.DB) EntityRepository {
	return &entityRepository{db: db}
}

var _ EntityRepository = (*entityRepository)(nil)

const entityColumns = `id, external_id, source_system, type, legal_name,
	jurisdiction, status, formation_date, ein_available, ein_verified,
	registered_agent_id, primary_address_id, created_at, updated_at`

func (r *entityRepository) GetByID(ctx context.Context, id int64) (*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1`

	entity, err := scanEntityRow(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %d: %w", id, err)
	}
	return entity, nil
}

func (r *entityRepository) GetByExternalID(ctx context.Context, sourceSystem, externalID string) (*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE source_system = $1 AND external_id = $2`

	entity, err := scanEntityRow(r.db.QueryRow(ctx, query, sourceSystem, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s/%s: %w", sourceSystem, externalID, err)
	}
	return entity, nil
}

func (r *entityRepository) SearchByName(ctx context.Context, name string, limit int) ([]*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE legal_name ILIKE $1 ORDER BY legal_name LIMIT $2`
	return r.queryEntities(ctx, query, "%"+name+"%", limit)
}

func (r *entityRepository) ByJurisdiction(ctx context.Context, jurisdiction string, limit int) ([]*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE jurisdiction = $1 ORDER BY id LIMIT $2`
	return r.queryEntities(ctx, query, jurisdiction, limit)
}

func (r *entityRepository) ByStatus(ctx context.Context, status string, limit int) ([]*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE status = $1 ORDER BY id LIMIT $2`
	return r.queryEntities(ctx, query, status, limit)
}

func (r *entityRepository) ByAddress(ctx context.Context, addressID int64) ([]*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE primary_address_id = $1 ORDER BY id`
	return r.queryEntities(ctx, query, addressID)
}

func (r *entityRepository) ByAgent(ctx context.Context, agentID int64) ([]*models.Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE registered_agent_id = $1 ORDER BY id`
	return r.queryEntities(ctx, query, agentID)
}

func (r *entityRepository) Upsert(ctx context.Context, entity *models.Entity) error {
	query := `
		INSERT INTO entities (
			external_id, source_system, type, legal_name, jurisdiction,
			status, formation_date, ein_available, ein_verified,
			registered_agent_id, primary_address_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source_system, external_id) DO UPDATE SET
			type = EXCLUDED.type,
			legal_name = EXCLUDED.legal_name,
			jurisdiction = EXCLUDED.jurisdiction,
			status = EXCLUDED.status,
			formation_date = EXCLUDED.formation_date,
			ein_available = EXCLUDED.ein_available,
			ein_verified = EXCLUDED.ein_verified,
			registered_agent_id = EXCLUDED.registered_agent_id,
			primary_address_id = EXCLUDED.primary_address_id,
			updated_at = now()
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		entity.ExternalID, entity.SourceSystem, entity.Type, entity.LegalName,
		entity.Jurisdiction, entity.Status, entity.FormationDate,
		entity.EINAvailable, entity.EINVerified,
		entity.RegisteredAgentID, entity.PrimaryAddressID,
	).Scan(&entity.ID, &entity.CreatedAt, &entity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert entity %s/%s: %w", entity.SourceSystem, entity.ExternalID, err)
	}
	return nil
}

func (r *entityRepository) queryEntities(ctx context.Context, query string, args ...any) ([]*models.Entity, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.Entity
	for rows.Next() {
		entity, err := scanEntityRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entities: %w", err)
	}

	return entities, nil
}

func scanEntityRow(row pgx.Row) (*models.Entity, error) {
	var e models.Entity
	var externalID, jurisdiction, status *string
	err := row.Scan(
		&e.ID, &externalID, &e.SourceSystem, &e.Type, &e.LegalName,
		&jurisdiction, &status, &e.FormationDate, &e.EINAvailable,
		&e.EINVerified, &e.RegisteredAgentID, &e.PrimaryAddressID,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if externalID != nil {
		e.ExternalID = *externalID
	}
	if jurisdiction != nil {
		e.Jurisdiction = *jurisdiction
	}
	if status != nil {
		e.Status = *status
	}
	return &e, nil
}
