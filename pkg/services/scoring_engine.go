package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/apperrors"
	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
	"github.com/parcelgraph/parcelgraph-engine/pkg/repositories"
)

// RuleDetail describes one triggered rule in a score result.
type RuleDetail struct {
	Name        string `json:"name"`
	Weight      int    `json:"weight"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// ContextFeatures echoes the raw feature values a score was computed from,
// for explainability.
type ContextFeatures struct {
	PropertyCount      int  `json:"property_count"`
	EntityAgeDays      *int `json:"entity_age_days"`
	AgentEntityCount   int  `json:"agent_entity_count"`
	AddressEntityCount int  `json:"address_entity_count"`
}

// ScoreResult is the full, explainable outcome of scoring one entity.
type ScoreResult struct {
	EntityID     int64           `json:"entity_id"`
	Score        int             `json:"score"`
	Grade        string          `json:"grade"`
	Flags        []string        `json:"flags"`
	RuleDetails  []RuleDetail    `json:"rule_details"`
	Context      ContextFeatures `json:"context"`
	CalculatedAt time.Time       `json:"calculated_at"`
}

// ScoringEngine evaluates entities against the registered rules, persists
// each result as a new immutable history row, and serves score reads.
type ScoringEngine interface {
	// ScoreEntity computes, persists, and returns a fresh score.
	// Returns apperrors.ErrNotFound when the entity does not exist.
	ScoreEntity(ctx context.Context, entityID int64) (*ScoreResult, error)

	// GetLatestScore returns the most recently persisted score without
	// recomputation, or nil when the entity has never been scored.
	GetLatestScore(ctx context.Context, entityID int64) (*models.RiskScore, error)

	// BatchScore scores entities independently. Entities that fail are
	// logged and skipped; the result holds only the successes, in input
	// order. Callers detect skips by diffing against the input.
	BatchScore(ctx context.Context, entityIDs []int64) ([]*ScoreResult, error)

	// ScoreHistory returns up to limit persisted scores, newest first.
	ScoreHistory(ctx context.Context, entityID int64, limit int) ([]*models.RiskScore, error)

	// HighRiskEntities returns the latest score per entity for entities
	// graded at or worse than the given grade, worst first.
	HighRiskEntities(ctx context.Context, grade string, limit int) ([]*models.RiskScore, error)
}

type scoringEngine struct {
	entityRepo   repositories.EntityRepository
	scoreRepo    repositories.RiskScoreRepository
	registry     *RuleRegistry
	builder      *ContextBuilder
	cache        *redis.Client // nil = caching disabled
	cacheTTL     time.Duration
	maxBatchSize int
	logger       *zap.Logger
}

// NewScoringEngine creates a ScoringEngine. cache may be nil to disable the
// latest-score cache.
func NewScoringEngine(
	entityRepo repositories.EntityRepository,
	scoreRepo repositories.RiskScoreRepository,
	registry *RuleRegistry,
	builder *ContextBuilder,
	cache *redis.Client,
	cacheTTL time.Duration,
	maxBatchSize int,
	logger *zap.Logger,
) ScoringEngine {
	return &scoringEngine{
		entityRepo:   entityRepo,
		scoreRepo:    scoreRepo,
		registry:     registry,
		builder:      builder,
		cache:        cache,
		cacheTTL:     cacheTTL,
		maxBatchSize: maxBatchSize,
		logger:       logger.Named("scoring-engine"),
	}
}

var _ ScoringEngine = (*scoringEngine)(nil)

func (e *scoringEngine) ScoreEntity(ctx context.Context, entityID int64) (*ScoreResult, error) {
	entity, err := e.entityRepo.GetByID(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("load entity %d: %w", entityID, err)
	}
	if entity == nil {
		return nil, fmt.Errorf("entity %d: %w", entityID, apperrors.ErrNotFound)
	}

	sc, err := e.builder.Build(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("build scoring context for entity %d: %w", entityID, err)
	}

	score := 0
	flags := []string{}
	details := []RuleDetail{}
	for _, rule := range e.registry.Rules("") {
		if !e.evaluate(rule, sc) {
			continue
		}
		score += rule.Weight
		flags = append(flags, rule.Name)
		details = append(details, RuleDetail{
			Name:        rule.Name,
			Weight:      rule.Weight,
			Category:    rule.Category,
			Description: rule.Description,
		})
	}

	row := &models.RiskScore{
		EntityID: entityID,
		Score:    score,
		Grade:    models.GradeForScore(score),
		Flags:    flags,
	}
	if err := e.scoreRepo.Insert(ctx, row); err != nil {
		return nil, fmt.Errorf("persist risk score for entity %d: %w", entityID, err)
	}
	e.cacheLatest(ctx, row)

	e.logger.Info("Scored entity",
		zap.Int64("entity_id", entityID),
		zap.Int("score", score),
		zap.String("grade", row.Grade),
		zap.Strings("flags", flags))

	return &ScoreResult{
		EntityID:    entityID,
		Score:       score,
		Grade:       row.Grade,
		Flags:       flags,
		RuleDetails: details,
		Context: ContextFeatures{
			PropertyCount:      sc.PropertyCount,
			EntityAgeDays:      sc.EntityAgeDays,
			AgentEntityCount:   sc.AgentEntityCount,
			AddressEntityCount: sc.AddressEntityCount,
		},
		CalculatedAt: row.CalculatedAt,
	}, nil
}

// evaluate runs one rule's predicate, recovering from panics so a bad rule
// cannot abort the whole scoring run. A panicking rule counts as not
// triggered.
func (e *scoringEngine) evaluate(rule Rule, sc *ScoringContext) (triggered bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Rule evaluation failed",
				zap.String("rule", rule.Name),
				zap.Int64("entity_id", sc.EntityID),
				zap.Any("panic", r))
			triggered = false
		}
	}()
	return rule.Evaluate(sc)
}

func (e *scoringEngine) GetLatestScore(ctx context.Context, entityID int64) (*models.RiskScore, error) {
	if cached := e.cachedLatest(ctx, entityID); cached != nil {
		return cached, nil
	}

	latest, err := e.scoreRepo.Latest(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("get latest score for entity %d: %w", entityID, err)
	}
	if latest != nil {
		e.cacheLatest(ctx, latest)
	}
	return latest, nil
}

func (e *scoringEngine) BatchScore(ctx context.Context, entityIDs []int64) ([]*ScoreResult, error) {
	if len(entityIDs) == 0 {
		return nil, apperrors.ErrEmptyBatch
	}
	if e.maxBatchSize > 0 && len(entityIDs) > e.maxBatchSize {
		return nil, fmt.Errorf("%d entities requested: %w", len(entityIDs), apperrors.ErrBatchTooLarge)
	}

	results := make([]*ScoreResult, 0, len(entityIDs))
	for _, id := range entityIDs {
		result, err := e.ScoreEntity(ctx, id)
		if err != nil {
			e.logger.Warn("Skipping entity in batch score",
				zap.Int64("entity_id", id), zap.Error(err))
			continue
		}
		results = append(results, result)
	}

	e.logger.Info("Batch scored entities",
		zap.Int("requested", len(entityIDs)),
		zap.Int("scored", len(results)))

	return results, nil
}

func (e *scoringEngine) ScoreHistory(ctx context.Context, entityID int64, limit int) ([]*models.RiskScore, error) {
	entity, err := e.entityRepo.GetByID(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("load entity %d: %w", entityID, err)
	}
	if entity == nil {
		return nil, fmt.Errorf("entity %d: %w", entityID, apperrors.ErrNotFound)
	}

	return e.scoreRepo.History(ctx, entityID, limit)
}

// gradeFloor is the lowest score that maps into each grade.
var gradeFloor = map[string]int{
	models.GradeA: 0,
	models.GradeB: 21,
	models.GradeC: 41,
	models.GradeD: 61,
	models.GradeF: 81,
}

func (e *scoringEngine) HighRiskEntities(ctx context.Context, grade string, limit int) ([]*models.RiskScore, error) {
	if !models.ValidGrade(grade) {
		return nil, apperrors.ErrInvalidGrade
	}
	return e.scoreRepo.HighRisk(ctx, gradeFloor[grade], limit)
}

func scoreCacheKey(entityID int64) string {
	return fmt.Sprintf("score:latest:%d", entityID)
}

func (e *scoringEngine) cacheLatest(ctx context.Context, score *models.RiskScore) {
	if e.cache == nil {
		return
	}
	payload, err := json.Marshal(score)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, scoreCacheKey(score.EntityID), payload, e.cacheTTL).Err(); err != nil {
		e.logger.Warn("Failed to cache latest score",
			zap.Int64("entity_id", score.EntityID), zap.Error(err))
	}
}

func (e *scoringEngine) cachedLatest(ctx context.Context, entityID int64) *models.RiskScore {
	if e.cache == nil {
		return nil
	}
	payload, err := e.cache.Get(ctx, scoreCacheKey(entityID)).Bytes()
	if err != nil {
		return nil
	}
	var score models.RiskScore
	if err := json.Unmarshal(payload, &score); err != nil {
		return nil
	}
	return &score
}
