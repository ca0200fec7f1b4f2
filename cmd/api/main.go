package main

import (
	"context"
	"net/http"
	"os"

	"github.com/rs/cors"

	"ai-news-pipeline/api/router"
	"ai-news-pipeline/cache"
	"ai-news-pipeline/config"
	"ai-news-pipeline/coordinator"
	"ai-news-pipeline/db"
	"ai-news-pipeline/eventbus"
	"ai-news-pipeline/featurestore"
	"ai-news-pipeline/logger"
	"ai-news-pipeline/pipeline"
	"ai-news-pipeline/repositories"
)

func main() {
	config.InitApp()
	cfg := config.GetConfig()
	logger.Init(cfg.Logging.Level)

	ctx := context.Background()
	if err := db.Init(ctx); err != nil {
		logger.Log.Errorf("failed to initialize MongoDB: %v", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())

	bus, err := eventbus.NewKafkaEventBus(eventbus.GetBrokers())
	if err != nil {
		logger.Log.Errorf("failed to create event bus: %v", err)
		os.Exit(1)
	}
	defer bus.Close()

	database := db.Database()
	sourceRepo := repositories.NewSourceRepository(database)
	recordRepo := repositories.NewRecordRepository(database)
	stateRepo := repositories.NewStateRepository(database)
	summaryRepo := repositories.NewSummaryRepository(database)
	embeddingRepo := repositories.NewEmbeddingRepository(database)

	policy := pipeline.RetryPolicy{
		MaxRetries: map[pipeline.Stage]int{
			pipeline.StageExtract:   cfg.Pipeline.MaxRetriesExtract,
			pipeline.StageSummarize: cfg.Pipeline.MaxRetriesSummarize,
			pipeline.StageEmbed:     cfg.Pipeline.MaxRetriesEmbed,
		},
		BaseDelay: eventbus.RetryDelays[0],
		MaxDelay:  eventbus.RetryDelays[len(eventbus.RetryDelays)-1],
	}
	tracker := pipeline.NewTracker(stateRepo, policy)

	readCache := cache.NewFromConfig(ctx, cfg.Redis)
	defer readCache.Close()

	dispatcher := coordinator.NewDispatcher(bus, eventbus.TopicRecordEvents, "api")
	coord := coordinator.New(dispatcher, tracker, recordRepo, readCache)
	store := featurestore.New(stateRepo, recordRepo, summaryRepo, embeddingRepo, readCache)

	r := router.New(router.Deps{
		Coordinator:  coord,
		FeatureStore: store,
		Tracker:      tracker,
		Sources:      sourceRepo,
	})

	handler := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(r)

	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	logger.Log.Infof("api listening on %s", addr)
	if err := http.ListenAndServe(addr, handler); err != nil && err != http.ErrServerClosed {
		logger.Log.Errorf("api server error: %v", err)
		os.Exit(1)
	}
}
