package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/parcelgraph/parcelgraph-engine/pkg/database"
	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
)

// RelationshipRepository provides data access for graph edges. Node types
// and relationship types are deliberately open strings; the store does not
// validate them against a closed set, so new domain types need no schema
// change.
type RelationshipRepository interface {
	// Create inserts a new edge. If an active edge with the same
	// (from_type, from_id, to_type, to_id, rel_type) identity already
	// exists, the existing row is returned unchanged. Confidence defaults
	// to 1.0 when zero.
	Create(ctx context.Context, rel *models.Relationship) (*models.Relationship, error)

	// Outgoing returns edges where (nodeType, nodeID) is the from side.
	// relType "" matches all types; activeOnly restricts to end_date IS NULL.
	Outgoing(ctx context.Context, nodeType string, nodeID int64, relType string, activeOnly bool) ([]*models.Relationship, error)

	// Incoming is the symmetric lookup on the to side.
	Incoming(ctx context.Context, nodeType string, nodeID int64, relType string, activeOnly bool) ([]*models.Relationship, error)

	// Close marks an edge inactive by setting its end date. The row is
	// otherwise immutable; changed relationships are closed and re-created.
	Close(ctx context.Context, id int64, endDate time.Time) error

	// Statistics returns edge counts grouped by rel_type and source_system.
	Statistics(ctx context.Context) (*models.RelationshipStatistics, error)
}

type relationshipRepository struct {
	db *database.DB
}

// NewRelationshipRepository creates a new RelationshipRepository.
func NewRelationshipRepository(db *database.DB) RelationshipRepository {
	return &relationshipRepository{db: db}
}

var _ RelationshipRepository = (*relationshipRepository)(nil)

const relationshipColumns = `id, from_type, from_id, to_type, to_id, rel_type,
	source_system, start_date, end_date, confidence, created_at`

func (r *relationshipRepository) Create(ctx context.Context, rel *models.Relationship) (*models.Relationship, error) {
	confidence := rel.Confidence
	if confidence == 0 {
		confidence = 1.0
	}

	// The partial unique index on the active identity tuple makes the
	// insert race-safe: concurrent creates for the same identity cannot
	// produce two active duplicates.
	insert := `
		INSERT INTO relationships (
			from_type, from_id, to_type, to_id, rel_type,
			source_system, start_date, end_date, confidence
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (from_type, from_id, to_type, to_id, rel_type)
			WHERE end_date IS NULL
		DO NOTHING
		RETURNING ` + relationshipColumns

	row := r.db.QueryRow(ctx, insert,
		rel.FromType, rel.FromID, rel.ToType, rel.ToID, rel.RelType,
		rel.SourceSystem, rel.StartDate, rel.EndDate, confidence,
	)

	created, err := scanRelationshipRow(row)
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to create relationship: %w", err)
	}

	// Conflict with an existing active edge: return it unchanged.
	query := `
		SELECT ` + relationshipColumns + `
		FROM relationships
		WHERE from_type = $1 AND from_id = $2
		  AND to_type = $3 AND to_id = $4
		  AND rel_type = $5 AND end_date IS NULL`

	existing, err := scanRelationshipRow(r.db.QueryRow(ctx, query,
		rel.FromType, rel.FromID, rel.ToType, rel.ToID, rel.RelType))
	if err != nil {
		return nil, fmt.Errorf("failed to load existing relationship: %w", err)
	}
	return existing, nil
}

func (r *relationshipRepository) Outgoing(ctx context.Context, nodeType string, nodeID int64, relType string, activeOnly bool) ([]*models.Relationship, error) {
	return r.lookup(ctx, "from_type", "from_id", nodeType, nodeID, relType, activeOnly)
}

func (r *relationshipRepository) Incoming(ctx context.Context, nodeType string, nodeID int64, relType string, activeOnly bool) ([]*models.Relationship, error) {
	return r.lookup(ctx, "to_type", "to_id", nodeType, nodeID, relType, activeOnly)
}

func (r *relationshipRepository) lookup(ctx context.Context, typeCol, idCol, nodeType string, nodeID int64, relType string, activeOnly bool) ([]*models.Relationship, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM relationships
		WHERE %s = $1 AND %s = $2`, relationshipColumns, typeCol, idCol)
	args := []any{nodeType, nodeID}

	if relType != "" {
		args = append(args, relType)
		query += fmt.Sprintf(" AND rel_type = $%d", len(args))
	}
	if activeOnly {
		query += " AND end_date IS NULL"
	}
	query += " ORDER BY id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var relationships []*models.Relationship
	for rows.Next() {
		rel, err := scanRelationshipRow(rows)
		if err != nil {
			return nil, err
		}
		relationships = append(relationships, rel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationships: %w", err)
	}

	return relationships, nil
}

func (r *relationshipRepository) Close(ctx context.Context, id int64, endDate time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE relationships SET end_date = $2 WHERE id = $1 AND end_date IS NULL`,
		id, endDate)
	if err != nil {
		return fmt.Errorf("failed to close relationship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("relationship %d is not active", id)
	}
	return nil
}

func (r *relationshipRepository) Statistics(ctx context.Context) (*models.RelationshipStatistics, error) {
	stats := &models.RelationshipStatistics{
		ByType:   make(map[string]int64),
		BySource: make(map[string]int64),
	}

	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM relationships`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("failed to count relationships: %w", err)
	}

	if err := r.groupCount(ctx, "rel_type", stats.ByType); err != nil {
		return nil, err
	}
	if err := r.groupCount(ctx, "source_system", stats.BySource); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *relationshipRepository) groupCount(ctx context.Context, column string, out map[string]int64) error {
	query := fmt.Sprintf(`SELECT %s, count(*) FROM relationships GROUP BY %s`, column, column)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		out[key] = count
	}

	return rows.Err()
}

func scanRelationshipRow(row pgx.Row) (*models.Relationship, error) {
	var rel models.Relationship
	err := row.Scan(
		&rel.ID, &rel.FromType, &rel.FromID, &rel.ToType, &rel.ToID,
		&rel.RelType, &rel.SourceSystem, &rel.StartDate, &rel.EndDate,
		&rel.Confidence, &rel.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rel, nil
}
