package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/adpulse-io/insight-engine/pkg/config"
	"github.com/adpulse-io/insight-engine/pkg/database"
	"github.com/adpulse-io/insight-engine/pkg/handlers"
	"github.com/adpulse-io/insight-engine/pkg/llm"
	"github.com/adpulse-io/insight-engine/pkg/logging"
	"github.com/adpulse-io/insight-engine/pkg/middleware"
	"github.com/adpulse-io/insight-engine/pkg/repositories"
	"github.com/adpulse-io/insight-engine/pkg/services"
	"github.com/adpulse-io/insight-engine/pkg/vector"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	if err := database.RunMigrations(cfg.Database.URL(), cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	var client llm.LLMClient
	if cfg.Pipeline.UseLLM {
		client, err = llm.NewClientFromConfig(&llm.ProviderConfig{
			Provider:        cfg.AI.Provider,
			Endpoint:        cfg.AI.LLMBaseURL,
			Model:           cfg.AI.LLMModel,
			EmbeddingModel:  cfg.AI.EmbeddingModel,
			APIKey:          cfg.AI.APIKey,
			AnthropicAPIKey: cfg.AI.AnthropicAPIKey,
			AnthropicModel:  cfg.AI.AnthropicModel,
		}, logger)
		if err != nil {
			logger.Warn("LLM client unavailable, running heuristic-only", zap.Error(err))
			client = nil
		}
	}

	datasetRepo := repositories.NewDatasetRepository(db.Pool)
	cacheRepo := repositories.NewSQLCacheRepository(db.Pool)
	tabularRepo := repositories.NewTabularRepository(db.Pool)
	analysisRepo := repositories.NewImageAnalysisRepository(db.Pool)
	experimentRepo := repositories.NewExperimentRepository(db.Pool)
	store := vector.NewPgStore(db.Pool, logger)

	registry := services.NewDatasetRegistry(datasetRepo, logger)
	selector := services.NewSQLSelector(registry, cacheRepo, tabularRepo, client, services.SQLSelectorConfig{
		UseLLM:              cfg.Pipeline.UseLLM,
		HeuristicRowLimit:   cfg.Pipeline.HeuristicRowLimit,
		FallbackOnUnsafeSQL: cfg.Pipeline.FallbackOnUnsafeSQL,
	}, logger)
	associator := services.NewImageAssociator(store, analysisRepo, services.NewVisualAggregator(), nil, logger)
	correlator := services.NewCorrelationEngine(services.NewIntelligence(client, logger), experimentRepo, logger)
	experiments := services.NewExperimentService(experimentRepo, analysisRepo, tabularRepo,
		selector, associator, correlator, store, client, cfg.Pipeline.TopCampaigns,
		cfg.Pipeline.ImageDir, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewExperimentHandler(experiments, logger).RegisterRoutes(mux)
	handlers.NewDatasetHandler(registry, cacheRepo, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting insight-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.Bool("use_llm", cfg.Pipeline.UseLLM && client != nil))

	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
