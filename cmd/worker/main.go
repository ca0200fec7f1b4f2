package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"ai-news-pipeline/cache"
	"ai-news-pipeline/config"
	"ai-news-pipeline/coordinator"
	"ai-news-pipeline/db"
	"ai-news-pipeline/eventbus"
	"ai-news-pipeline/gemini"
	"ai-news-pipeline/logger"
	"ai-news-pipeline/pipeline"
	"ai-news-pipeline/quota"
	"ai-news-pipeline/renderer"
	"ai-news-pipeline/repositories"
	"ai-news-pipeline/stages"
)

func main() {
	config.InitApp()
	cfg := config.GetConfig()
	logger.Init(cfg.Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.Init(ctx); err != nil {
		logger.Log.Errorf("failed to initialize MongoDB: %v", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())

	brokers := eventbus.GetBrokers()
	if err := eventbus.EnsureTopics(ctx, brokers, eventbus.AllTopics, 3); err != nil {
		logger.Log.Errorf("failed to ensure eventbus topics: %v", err)
	}

	bus, err := eventbus.NewKafkaEventBus(brokers)
	if err != nil {
		logger.Log.Errorf("failed to create event bus: %v", err)
		os.Exit(1)
	}
	defer bus.Close()

	geminiClient, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:          config.GeminiAPIKey(),
		Model:           cfg.Gemini.Model,
		EmbeddingModel:  cfg.Gemini.EmbeddingModel,
		EmbeddingDim:    cfg.Gemini.EmbeddingDim,
		InputCharBudget: cfg.Gemini.InputCharBudget,
	})
	if err != nil {
		logger.Log.Errorf("failed to create gemini client: %v", err)
		os.Exit(1)
	}

	database := db.Database()
	recordRepo := repositories.NewRecordRepository(database)
	stateRepo := repositories.NewStateRepository(database)
	summaryRepo := repositories.NewSummaryRepository(database)
	embeddingRepo := repositories.NewEmbeddingRepository(database)
	aiLogRepo := repositories.NewAILogRepository(database)

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

	stageTimeout := cfg.Pipeline.StageTimeout()
	readCache := cache.NewFromConfig(ctx, cfg.Redis)
	defer readCache.Close()

	extract := &stages.ExtractWorker{
		Tracker:          tracker,
		Records:          recordRepo,
		Fetcher:          renderer.New(stageTimeout),
		MinContentLength: cfg.Pipeline.MinContentLength,
		AllowedLanguages: cfg.Pipeline.AllowedLanguages,
		Timeout:          stageTimeout,
	}
	summarize := &stages.SummarizeWorker{
		Tracker:    tracker,
		Records:    recordRepo,
		Summaries:  summaryRepo,
		Summarizer: geminiClient,
		Quota:      quota.NewSummaryQuotaLimiterFromConfig(cfg),
		AILogs:     aiLogRepo,
		Timeout:    stageTimeout,
	}
	embed := &stages.EmbedWorker{
		Tracker:    tracker,
		Records:    recordRepo,
		Embeddings: embeddingRepo,
		Embedder:   geminiClient,
		AILogs:     aiLogRepo,
		Timeout:    stageTimeout,
	}

	dispatcher := coordinator.NewDispatcher(bus, eventbus.TopicRecordEvents, "worker")
	coord := coordinator.New(dispatcher, tracker, recordRepo, readCache)
	handlers := coordinator.NewHandlers(coord, extract, summarize, embed)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		groupID := eventbus.GetGroupID("worker")
		if err := bus.Subscribe(ctx, groupID, eventbus.TopicRecordEvents, handlers.Route); err != nil {
			logger.Log.Errorf("subscription to %s failed: %v", eventbus.TopicRecordEvents.Base(), err)
		}
	}()

	logger.Log.Info("worker started, processing record events...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Log.Info("received shutdown signal, shutting down worker...")
	cancel()
	wg.Wait()
	logger.Log.Info("worker shut down")
}
