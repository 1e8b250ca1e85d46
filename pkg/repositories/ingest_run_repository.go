package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/parcelgraph/parcelgraph-engine/pkg/database"
	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
)

// IngestRunRepository records ingest source executions for provenance.
type IngestRunRepository interface {
	Insert(ctx context.Context, run *models.IngestRun) error
	BySource(ctx context.Context, source string, limit int) ([]*models.IngestRun, error)
}

type ingestRunRepository struct {
	db *database.DB
}

// NewIngestRunRepository creates a new IngestRunRepository.
func NewIngestRunRepository(db *database.DB) IngestRunRepository {
	return &ingestRunRepository{db: db}
}

var _ IngestRunRepository = (*ingestRunRepository)(nil)

func (r *ingestRunRepository) Insert(ctx context.Context, run *models.IngestRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}

	query := `
		INSERT INTO ingest_runs (
			id, source, status, records_processed, records_successful,
			records_failed, errors, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		run.ID, run.Source, run.Status, run.RecordsProcessed,
		run.RecordsSuccessful, run.RecordsFailed, errs,
		run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingest run: %w", err)
	}
	return nil
}

func (r *ingestRunRepository) BySource(ctx context.Context, source string, limit int) ([]*models.IngestRun, error) {
	query := `
		SELECT id, source, status, records_processed, records_successful,
		       records_failed, errors, started_at, finished_at
		FROM ingest_runs
		WHERE source = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingest runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.IngestRun
	for rows.Next() {
		var run models.IngestRun
		if err := rows.Scan(&run.ID, &run.Source, &run.Status,
			&run.RecordsProcessed, &run.RecordsSuccessful, &run.RecordsFailed,
			&run.Errors, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingest run: %w", err)
		}
		runs = append(runs, &run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ingest runs: %w", err)
	}

	return runs, nil
}
