package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/parcelgraph/parcelgraph-engine/pkg/database"
	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
)

// RiskScoreRepository provides data access for the append-only risk score
// history. Rows are never updated or deleted; "latest" is the row with the
// maximum calculated_at per entity.
type RiskScoreRepository interface {
	// Insert appends a new score row and populates ID and CalculatedAt.
	Insert(ctx context.Context, score *models.RiskScore) error

	// Latest returns the most recent score for an entity, nil when none.
	Latest(ctx context.Context, entityID int64) (*models.RiskScore, error)

	// History returns up to limit scores for an entity, newest first.
	History(ctx context.Context, entityID int64, limit int) ([]*models.RiskScore, error)

	// HighRisk returns the latest score per entity where that score is at
	// least minScore, worst first, up to limit rows.
	HighRisk(ctx context.Context, minScore, limit int) ([]*models.RiskScore, error)
}

type riskScoreRepository struct {
	db *database.DB
}

// NewRiskScoreRepository creates a new RiskScoreRepository.
func NewRiskScoreRepository(db *database.DB) RiskScoreRepository {
	return &riskScoreRepository{db: db}
}

var _ RiskScoreRepository = (*riskScoreRepository)(nil)

const riskScoreColumns = `id, entity_id, score, grade, flags, calculated_at`

func (r *riskScoreRepository) Insert(ctx context.Context, score *models.RiskScore) error {
	flags := score.Flags
	if flags == nil {
		flags = []string{}
	}

	query := `
		INSERT INTO risk_scores (entity_id, score, grade, flags)
		VALUES ($1, $2, $3, $4)
		RETURNING id, calculated_at`

	err := r.db.QueryRow(ctx, query, score.EntityID, score.Score, score.Grade, flags).
		Scan(&score.ID, &score.CalculatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert risk score: %w", err)
	}
	return nil
}

func (r *riskScoreRepository) Latest(ctx context.Context, entityID int64) (*models.RiskScore, error) {
	query := `
		SELECT ` + riskScoreColumns + `
		FROM risk_scores
		WHERE entity_id = $1
		ORDER BY calculated_at DESC
		LIMIT 1`

	score, err := scanRiskScoreRow(r.db.QueryRow(ctx, query, entityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest score for entity %d: %w", entityID, err)
	}
	return score, nil
}

func (r *riskScoreRepository) History(ctx context.Context, entityID int64, limit int) ([]*models.RiskScore, error) {
	query := `
		SELECT ` + riskScoreColumns + `
		FROM risk_scores
		WHERE entity_id = $1
		ORDER BY calculated_at DESC
		LIMIT $2`

	return r.queryScores(ctx, query, entityID, limit)
}

func (r *riskScoreRepository) HighRisk(ctx context.Context, minScore, limit int) ([]*models.RiskScore, error) {
	query := `
		SELECT ` + riskScoreColumns + ` FROM (
			SELECT DISTINCT ON (entity_id) ` + riskScoreColumns + `
			FROM risk_scores
			ORDER BY entity_id, calculated_at DESC
		) latest
		WHERE score >= $1
		ORDER BY score DESC
		LIMIT $2`

	return r.queryScores(ctx, query, minScore, limit)
}

func (r *riskScoreRepository) queryScores(ctx context.Context, query string, args ...any) ([]*models.RiskScore, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query risk scores: %w", err)
	}
	defer rows.Close()

	var scores []*models.RiskScore
	for rows.Next() {
		score, err := scanRiskScoreRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan risk score: %w", err)
		}
		scores = append(scores, score)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating risk scores: %w", err)
	}

	return scores, nil
}

func scanRiskScoreRow(row pgx.Row) (*models.RiskScore, error) {
	var s models.RiskScore
	err := row.Scan(&s.ID, &s.EntityID, &s.Score, &s.Grade, &s.Flags, &s.CalculatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
