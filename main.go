package main

import (
	"context"
	"database/sql"
	"log"
	"net"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/config"
	"github.com/parcelgraph/parcelgraph-engine/pkg/database"
	"github.com/parcelgraph/parcelgraph-engine/pkg/handlers"
	"github.com/parcelgraph/parcelgraph-engine/pkg/ingest"
	"github.com/parcelgraph/parcelgraph-engine/pkg/logging"
	"github.com/parcelgraph/parcelgraph-engine/pkg/middleware"
	"github.com/parcelgraph/parcelgraph-engine/pkg/repositories"
	"github.com/parcelgraph/parcelgraph-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Database),
		zap.String("database_host", cfg.Database.Host),
		zap.Bool("redis_enabled", cfg.Redis.Host != ""),
	)

	ctx := context.Background()

	logger.Info("Connecting to database",
		zap.String("conn", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	// Migrations run over database/sql (required by golang-migrate)
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open sql connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, &cfg.Database, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisClient == nil {
		logger.Info("Redis not configured, score caching disabled")
	}

	// Repositories
	entityRepo := repositories.NewEntityRepository(db)
	personRepo := repositories.NewPersonRepository(db)
	addressRepo := repositories.NewAddressRepository(db)
	propertyRepo := repositories.NewPropertyRepository(db)
	relRepo := repositories.NewRelationshipRepository(db)
	eventRepo := repositories.NewEventRepository(db)
	scoreRepo := repositories.NewRiskScoreRepository(db)
	ingestRunRepo := repositories.NewIngestRunRepository(db)

	// Services
	entityService := services.NewEntityService(entityRepo, personRepo, addressRepo, logger)
	graphService := services.NewGraphService(relRepo, entityRepo, cfg.Graph.MaxDepth, cfg.Graph.MaxEdges, logger)
	registry := services.NewRuleRegistry(services.DefaultRules())
	builder := services.NewContextBuilder(graphService, time.Now, logger)
	scoringEngine := services.NewScoringEngine(
		entityRepo,
		scoreRepo,
		registry,
		builder,
		redisClient,
		time.Duration(cfg.Redis.ScoreTTLMinutes)*time.Minute,
		cfg.Scoring.MaxBatchSize,
		logger,
	)

	// Ingest sources
	runner := ingest.NewRunner(ingestRunRepo, logger)
	runner.Register(ingest.NewSunbizSource(nil, entityService, personRepo, graphService, logger))
	runner.Register(ingest.NewMarionCountySource(nil, entityService, personRepo, propertyRepo, addressRepo, graphService, logger))

	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewEntityHandler(entityService, graphService, logger).RegisterRoutes(mux)
	handlers.NewPropertyHandler(propertyRepo, graphService, logger).RegisterRoutes(mux)
	handlers.NewRelationshipHandler(graphService, logger).RegisterRoutes(mux)
	handlers.NewScoreHandler(scoringEngine, logger).RegisterRoutes(mux)
	handlers.NewEventHandler(eventRepo, logger).RegisterRoutes(mux)
	handlers.NewIngestHandler(runner, ingestRunRepo, logger).RegisterRoutes(mux)

	handler := middleware.Recover(logger)(middleware.RequestLogger(logger)(mux))

	addr := net.JoinHostPort(cfg.BindAddr, cfg.Port)
	logger.Info("Starting parcelgraph-engine", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
