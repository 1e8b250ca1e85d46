package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
	"github.com/parcelgraph/parcelgraph-engine/pkg/repositories"
	"github.com/parcelgraph/parcelgraph-engine/pkg/retry"
)

// DefaultBatchSize is used when a run request does not specify one.
const DefaultBatchSize = 100

// DefaultMaxErrors stops a run once this many record failures accumulate.
const DefaultMaxErrors = 10

// ErrUnknownSource is returned when a run names a source that was never
// registered.
var ErrUnknownSource = errors.New("unknown ingest source")

// Runner executes registered ingest sources and records each execution as
// an IngestRun row. Records fail independently; a run stops early only when
// the error budget is exhausted or the fetch itself fails.
type Runner struct {
	sources   map[string]Source
	order     []string
	runRepo   repositories.IngestRunRepository
	maxErrors int
	retryCfg  *retry.Config
	logger    *zap.Logger
}

// NewRunner creates a Runner with the default error budget.
func NewRunner(runRepo repositories.IngestRunRepository, logger *zap.Logger) *Runner {
	return &Runner{
		sources:   make(map[string]Source),
		runRepo:   runRepo,
		maxErrors: DefaultMaxErrors,
		retryCfg:  retry.DefaultConfig(),
		logger:    logger.Named("ingest-runner"),
	}
}

// Register adds a source. Registering the same name twice replaces the
// earlier source.
func (r *Runner) Register(source Source) {
	if _, exists := r.sources[source.Name()]; !exists {
		r.order = append(r.order, source.Name())
	}
	r.sources[source.Name()] = source
	r.logger.Info("Registered ingest source", zap.String("source", source.Name()))
}

// Sources returns the registered source names in registration order.
func (r *Runner) Sources() []string {
	return append([]string(nil), r.order...)
}

// Run executes one source and persists the run record. The returned
// IngestRun is also returned when individual records failed; only an
// unknown source or a failure to record the run itself is an error.
func (r *Runner) Run(ctx context.Context, sourceName string, batchSize int) (*models.IngestRun, error) {
	source, ok := r.sources[sourceName]
	if !ok {
		return nil, fmt.Errorf("%q: %w", sourceName, ErrUnknownSource)
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	run := &models.IngestRun{
		ID:        uuid.New(),
		Source:    sourceName,
		StartedAt: time.Now(),
	}
	r.logger.Info("Starting ingest run",
		zap.String("source", sourceName),
		zap.String("run_id", run.ID.String()),
		zap.Int("batch_size", batchSize))

	// Upstream endpoints throttle and drop connections under load; the
	// fetch retries transient failures before the run is marked failed.
	var batch []RawRecord
	err := retry.DoIfRetryable(ctx, r.retryCfg, func() error {
		var fetchErr error
		batch, fetchErr = source.FetchBatch(ctx, batchSize)
		return fetchErr
	})
	if err != nil {
		run.Status = models.IngestStatusFailure
		run.Errors = append(run.Errors, fmt.Sprintf("fetch: %v", err))
		run.FinishedAt = time.Now()
		return r.record(ctx, run)
	}

	for i, raw := range batch {
		run.RecordsProcessed++

		if failure := r.processRecord(ctx, source, raw); failure != "" {
			run.RecordsFailed++
			run.Errors = append(run.Errors, fmt.Sprintf("record %d: %s", i+1, failure))
			if len(run.Errors) >= r.maxErrors {
				r.logger.Error("Stopping ingest run, error budget exhausted",
					zap.String("source", sourceName),
					zap.Int("errors", len(run.Errors)))
				break
			}
			continue
		}
		run.RecordsSuccessful++
	}

	run.FinishedAt = time.Now()
	run.Status = runStatus(run)

	r.logger.Info("Ingest run complete",
		zap.String("source", sourceName),
		zap.String("run_id", run.ID.String()),
		zap.String("status", run.Status),
		zap.Int("processed", run.RecordsProcessed),
		zap.Int("successful", run.RecordsSuccessful),
		zap.Int("failed", run.RecordsFailed),
		zap.Duration("duration", run.Duration()))

	return r.record(ctx, run)
}

// RunAll executes every registered source in registration order. A failing
// source does not stop the others.
func (r *Runner) RunAll(ctx context.Context, batchSize int) map[string]*models.IngestRun {
	results := make(map[string]*models.IngestRun, len(r.order))
	for _, name := range r.order {
		run, err := r.Run(ctx, name, batchSize)
		if err != nil {
			r.logger.Error("Ingest source failed",
				zap.String("source", name), zap.Error(err))
			continue
		}
		results[name] = run
	}
	return results
}

// processRecord runs one raw record through validate, normalize, persist.
// Returns "" on success or a failure description.
func (r *Runner) processRecord(ctx context.Context, source Source, raw RawRecord) string {
	if !source.Validate(raw) {
		return "validation failed"
	}

	normalized, err := source.Normalize(raw)
	if err != nil {
		return fmt.Sprintf("normalize: %v", err)
	}
	if len(normalized) == 0 {
		return "normalization produced no records"
	}

	persisted, err := source.Persist(ctx, normalized)
	if err != nil {
		return fmt.Sprintf("persist: %v", err)
	}
	if persisted == 0 {
		return "persistence wrote no records"
	}
	return ""
}

func (r *Runner) record(ctx context.Context, run *models.IngestRun) (*models.IngestRun, error) {
	if err := r.runRepo.Insert(ctx, run); err != nil {
		return nil, fmt.Errorf("record ingest run: %w", err)
	}
	return run, nil
}

func runStatus(run *models.IngestRun) string {
	switch {
	case run.RecordsProcessed == 0:
		return models.IngestStatusSkipped
	case run.RecordsFailed == 0:
		return models.IngestStatusSuccess
	case run.RecordsSuccessful == 0:
		return models.IngestStatusFailure
	default:
		return models.IngestStatusPartial
	}
}
