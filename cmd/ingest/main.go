package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-news-pipeline/cache"
	"ai-news-pipeline/config"
	"ai-news-pipeline/coordinator"
	"ai-news-pipeline/db"
	"ai-news-pipeline/eventbus"
	"ai-news-pipeline/feeder"
	"ai-news-pipeline/ingest"
	"ai-news-pipeline/logger"
	"ai-news-pipeline/pipeline"
	"ai-news-pipeline/repositories"
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

	database := db.Database()
	sourceRepo := repositories.NewSourceRepository(database)
	recordRepo := repositories.NewRecordRepository(database)
	stateRepo := repositories.NewStateRepository(database)

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

	dispatcher := coordinator.NewDispatcher(bus, eventbus.TopicRecordEvents, "ingest")
	coord := coordinator.New(dispatcher, tracker, recordRepo, readCache)

	ingestor := &ingest.Ingestor{
		Sources:       sourceRepo,
		Records:       recordRepo,
		Tracker:       tracker,
		Scheduler:     coord,
		Fetcher:       feeder.NewFetcher(),
		FeedItemLimit: cfg.Ingest.FeedItemLimit,
	}

	runOnce := func() {
		if err := ingestor.SyncSources(ctx, cfg.Sources); err != nil {
			logger.Log.Errorf("failed to sync sources: %v", err)
			return
		}
		if err := ingestor.RunOnce(ctx); err != nil {
			logger.Log.Errorf("ingestion cycle error: %v", err)
		}
	}

	logger.Log.Info("starting ingest service...")
	runOnce()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// One cycle per day after the immediate first run.
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runOnce()
		case <-sigChan:
			logger.Log.Info("received shutdown signal, shutting down ingest service...")
			cancel()
			return
		}
	}
}
