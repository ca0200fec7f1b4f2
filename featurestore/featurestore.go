// Package featurestore is the read side for digest and search consumers:
// completed records joined with their latest summary and embedding
// features. It is the only coupling point between the pipeline and its
// consumers.
package featurestore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ai-news-pipeline/cache"
	"ai-news-pipeline/models"
)

// StateLister exposes completion bookkeeping from the state store.
type StateLister interface {
	CompletedSince(ctx context.Context, since time.Time) ([]string, error)
}

// RecordLister loads record documents in bulk.
type RecordLister interface {
	Get(ctx context.Context, id string) (*models.Record, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Record, error)
}

// SummaryReader resolves the latest summary feature for a record.
type SummaryReader interface {
	LatestByRecord(ctx context.Context, recordID string) (*models.SummaryFeature, error)
}

// EmbeddingReader resolves the latest embedding feature for a record.
type EmbeddingReader interface {
	LatestByRecord(ctx context.Context, recordID string) (*models.EmbeddingFeature, error)
}

// CompletedRecord is one completed record with its active features.
type CompletedRecord struct {
	Record    models.Record            `json:"record"`
	Summary   *models.SummaryFeature   `json:"summary"`
	Embedding *models.EmbeddingFeature `json:"embedding"`
}

type Store struct {
	states     StateLister
	records    RecordLister
	summaries  SummaryReader
	embeddings EmbeddingReader
	cache      *cache.Cache
}

func New(states StateLister, records RecordLister, summaries SummaryReader, embeddings EmbeddingReader, c *cache.Cache) *Store {
	return &Store{
		states:     states,
		records:    records,
		summaries:  summaries,
		embeddings: embeddings,
		cache:      c,
	}
}

// Iterator pages lazily through completed records, newest published
// first. Next loads features one record at a time, so abandoning the
// iterator early costs nothing.
type Iterator struct {
	store   *Store
	records []models.Record
	pos     int
}

// Next returns the next completed record, or ok=false when exhausted.
func (it *Iterator) Next(ctx context.Context) (*CompletedRecord, bool, error) {
	for it.pos < len(it.records) {
		rec := it.records[it.pos]
		it.pos++

		out, err := it.store.resolve(ctx, rec)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}
	return nil, false, nil
}

// CompletedSince returns an iterator over records completed strictly
// after since, ordered by published timestamp descending. Restartable:
// calling it again yields a fresh iterator over the current snapshot.
func (s *Store) CompletedSince(ctx context.Context, since time.Time) (*Iterator, error) {
	ids, err := s.states.CompletedSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed records: %w", err)
	}
	records, err := s.records.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load completed records: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PublishedAt.After(records[j].PublishedAt)
	})

	return &Iterator{store: s, records: records}, nil
}

// Latest returns up to limit completed records with features, serving
// and refreshing the read cache.
func (s *Store) Latest(ctx context.Context, limit int) ([]CompletedRecord, error) {
	var cached []CompletedRecord
	if s.cache.GetJSON(ctx, cache.KeyLatestRecords, &cached) {
		if limit > 0 && len(cached) > limit {
			cached = cached[:limit]
		}
		return cached, nil
	}

	it, err := s.CompletedSince(ctx, time.Time{})
	if err != nil {
		return nil, err
	}

	var out []CompletedRecord
	for {
		rec, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, *rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	s.cache.SetJSON(ctx, cache.KeyLatestRecords, out)
	return out, nil
}

// GetByID returns one completed record with features, resolving the
// canonical reference for deduplicated records.
func (s *Store) GetByID(ctx context.Context, recordID string) (*CompletedRecord, error) {
	rec, err := s.records.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, *rec)
}

// resolve joins a record with its latest features. Deduplicated records
// read their features through the canonical record.
func (s *Store) resolve(ctx context.Context, rec models.Record) (*CompletedRecord, error) {
	featureID := rec.ID
	if rec.CanonicalID != "" {
		featureID = rec.CanonicalID
	}

	summary, err := s.summaries.LatestByRecord(ctx, featureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load summary for %s: %w", featureID, err)
	}
	embedding, err := s.embeddings.LatestByRecord(ctx, featureID)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedding for %s: %w", featureID, err)
	}

	return &CompletedRecord{
		Record:    rec,
		Summary:   summary,
		Embedding: embedding,
	}, nil
}
