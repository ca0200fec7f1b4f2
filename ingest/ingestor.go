package ingest

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"ai-news-pipeline/config"
	"ai-news-pipeline/feeder"
	"ai-news-pipeline/logger"
	"ai-news-pipeline/models"
)

// How much inline feed content is worth keeping. Shorter bodies are
// usually teasers; the extract stage then fetches the full page.
const minInlineContentLength = 500

// SourceStore is the slice of the source repository ingestion needs.
type SourceStore interface {
	UpsertByEndpoint(ctx context.Context, s *models.Source) (*mongo.UpdateResult, error)
	ListActive(ctx context.Context) ([]models.Source, error)
}

// RecordWriter creates raw records idempotently.
type RecordWriter interface {
	InsertIfAbsent(ctx context.Context, rec *models.Record) (bool, error)
}

// Registrar creates the pending processing state (the tracker).
type Registrar interface {
	Register(ctx context.Context, recordID string) error
}

// Scheduler enqueues a record for pipeline processing (the coordinator).
type Scheduler interface {
	Schedule(ctx context.Context, recordID string) error
}

// FeedFetcher pulls items from feed and channel endpoints.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, feedURL string, limit int) ([]feeder.FeedItem, error)
	FetchChannel(ctx context.Context, channelID string, limit int) ([]feeder.FeedItem, error)
}

// Ingestor registers configured sources and turns their items into raw
// records, scheduling each new record on the pipeline.
type Ingestor struct {
	Sources   SourceStore
	Records   RecordWriter
	Tracker   Registrar
	Scheduler Scheduler
	Fetcher   FeedFetcher

	FeedItemLimit int
}

// SyncSources upserts the configured sources. Deactivated sources are
// left alone: config is additive, deactivation is an operator action.
func (in *Ingestor) SyncSources(ctx context.Context, cfgSources []config.SourceConfig) error {
	for _, sc := range cfgSources {
		st := models.SourceType(sc.Type)
		if !st.Valid() {
			return fmt.Errorf("source %q has unknown type %q", sc.Name, sc.Type)
		}
		src := &models.Source{
			Name:     sc.Name,
			Type:     st,
			Endpoint: sc.Endpoint,
		}
		if _, err := in.Sources.UpsertByEndpoint(ctx, src); err != nil {
			return fmt.Errorf("failed to upsert source %q: %w", sc.Name, err)
		}
	}
	return nil
}

// RunOnce executes one ingestion cycle over every active source.
// Per-source failures are logged and skipped; one broken feed must not
// stall the rest.
func (in *Ingestor) RunOnce(ctx context.Context) error {
	sources, err := in.Sources.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active sources: %w", err)
	}

	var newRecords int
	for _, src := range sources {
		n, err := in.ingestSource(ctx, src)
		if err != nil {
			logger.ErrorWithFields("source ingestion failed", logger.Fields{
				"source": src.Name,
				"error":  err.Error(),
			})
			continue
		}
		newRecords += n
	}

	logger.InfoWithFields("ingestion cycle finished", logger.Fields{
		"sources":     len(sources),
		"new_records": newRecords,
	})
	return nil
}

func (in *Ingestor) ingestSource(ctx context.Context, src models.Source) (int, error) {
	items, err := in.fetchItems(ctx, src)
	if err != nil {
		return 0, err
	}

	var inserted int
	for _, item := range items {
		ok, err := in.ingestItem(ctx, src, item)
		if err != nil {
			logger.ErrorWithFields("item ingestion failed", logger.Fields{
				"source": src.Name,
				"url":    item.Link,
				"error":  err.Error(),
			})
			continue
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (in *Ingestor) fetchItems(ctx context.Context, src models.Source) ([]feeder.FeedItem, error) {
	switch src.Type {
	case models.SourceTypeFeed:
		return in.Fetcher.FetchFeed(ctx, src.Endpoint, in.FeedItemLimit)
	case models.SourceTypeChannel:
		return in.Fetcher.FetchChannel(ctx, src.Endpoint, in.FeedItemLimit)
	case models.SourceTypePage:
		// A page source is itself the single item.
		return []feeder.FeedItem{{Title: src.Name, Link: src.Endpoint}}, nil
	}
	return nil, fmt.Errorf("unknown source type %q", src.Type)
}

// ingestItem creates the record if it is new and schedules it. Returns
// true when a new record was created.
func (in *Ingestor) ingestItem(ctx context.Context, src models.Source, item feeder.FeedItem) (bool, error) {
	normalized, err := NormalizeURL(item.Link)
	if err != nil {
		return false, err
	}

	rec := &models.Record{
		ID:            RecordID(normalized),
		SourceID:      src.ID,
		SourceName:    src.Name,
		Title:         item.Title,
		ExternalURL:   item.Link,
		NormalizedURL: normalized,
		PublishedAt:   item.PublishedAt,
		IngestedAt:    time.Now().UTC(),
	}
	if len(item.Content) >= minInlineContentLength {
		rec.RawContent = item.Content
	} else {
		rec.ContentRef = normalized
	}

	inserted, err := in.Records.InsertIfAbsent(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("failed to insert record: %w", err)
	}
	if !inserted {
		return false, nil
	}

	if err := in.Tracker.Register(ctx, rec.ID); err != nil {
		return true, fmt.Errorf("failed to register state: %w", err)
	}
	if err := in.Scheduler.Schedule(ctx, rec.ID); err != nil {
		return true, fmt.Errorf("failed to schedule record: %w", err)
	}
	return true, nil
}
