package featurestore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-news-pipeline/models"
)

type memBackend struct {
	completed  []string
	records    map[string]*models.Record
	summaries  map[string][]*models.SummaryFeature
	embeddings map[string][]*models.EmbeddingFeature
}

func (m *memBackend) CompletedSince(ctx context.Context, since time.Time) ([]string, error) {
	return m.completed, nil
}

func (m *memBackend) Get(ctx context.Context, id string) (*models.Record, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s not found", id)
	}
	return r, nil
}

func (m *memBackend) ListByIDs(ctx context.Context, ids []string) ([]models.Record, error) {
	var out []models.Record
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memBackend) LatestByRecord(ctx context.Context, recordID string) (*models.SummaryFeature, error) {
	rows := m.summaries[recordID]
	if len(rows) == 0 {
		return nil, fmt.Errorf("no summary for %s", recordID)
	}
	latest := rows[0]
	for _, r := range rows[1:] {
		if r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	return latest, nil
}

type memEmbeddingReader struct{ backend *memBackend }

func (m memEmbeddingReader) LatestByRecord(ctx context.Context, recordID string) (*models.EmbeddingFeature, error) {
	rows := m.backend.embeddings[recordID]
	if len(rows) == 0 {
		return nil, fmt.Errorf("no embedding for %s", recordID)
	}
	latest := rows[0]
	for _, r := range rows[1:] {
		if r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	return latest, nil
}

func day(n int) time.Time {
	return time.Date(2025, 8, n, 0, 0, 0, 0, time.UTC)
}

func newBackend() *memBackend {
	b := &memBackend{
		completed: []string{"old", "new", "mirror"},
		records: map[string]*models.Record{
			"old":    {ID: "old", Title: "older post", PublishedAt: day(1)},
			"new":    {ID: "new", Title: "newer post", PublishedAt: day(20)},
			"mirror": {ID: "mirror", Title: "mirrored post", PublishedAt: day(10), CanonicalID: "new"},
		},
		summaries: map[string][]*models.SummaryFeature{
			"old": {{RecordID: "old", Summary: "old summary", CreatedAt: day(2)}},
			"new": {
				{RecordID: "new", Summary: "first generation", ModelName: "m1", CreatedAt: day(21)},
				{RecordID: "new", Summary: "second generation", ModelName: "m2", CreatedAt: day(25)},
			},
		},
		embeddings: map[string][]*models.EmbeddingFeature{
			"old": {{RecordID: "old", Vector: []float32{1}, CreatedAt: day(2)}},
			"new": {{RecordID: "new", Vector: []float32{2}, CreatedAt: day(21)}},
		},
	}
	return b
}

func newStore(b *memBackend) *Store {
	return New(b, b, b, memEmbeddingReader{b}, nil)
}

func TestCompletedSinceOrderedByPublishedDesc(t *testing.T) {
	ctx := context.Background()
	store := newStore(newBackend())

	it, err := store.CompletedSince(ctx, time.Time{})
	require.NoError(t, err)

	var ids []string
	for {
		rec, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		ids = append(ids, rec.Record.ID)
		assert.NotNil(t, rec.Summary)
		assert.NotNil(t, rec.Embedding)
	}
	assert.Equal(t, []string{"new", "mirror", "old"}, ids)
}

func TestLatestFeatureVersionWins(t *testing.T) {
	ctx := context.Background()
	store := newStore(newBackend())

	rec, err := store.GetByID(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "second generation", rec.Summary.Summary)
	assert.Equal(t, "m2", rec.Summary.ModelName)
}

func TestDeduplicatedRecordResolvesCanonicalFeatures(t *testing.T) {
	ctx := context.Background()
	store := newStore(newBackend())

	rec, err := store.GetByID(ctx, "mirror")
	require.NoError(t, err)
	// The mirror record keeps its own metadata but shares the canonical
	// record's features.
	assert.Equal(t, "mirrored post", rec.Record.Title)
	assert.Equal(t, "new", rec.Summary.RecordID)
	assert.Equal(t, "second generation", rec.Summary.Summary)
	assert.Equal(t, []float32{2}, rec.Embedding.Vector)
}

func TestIteratorRestartable(t *testing.T) {
	ctx := context.Background()
	store := newStore(newBackend())

	it, err := store.CompletedSince(ctx, time.Time{})
	require.NoError(t, err)
	first, ok, err := it.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// Abandon the first iterator; a fresh one starts from the top.
	it2, err := store.CompletedSince(ctx, time.Time{})
	require.NoError(t, err)
	again, ok, err := it2.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Record.ID, again.Record.ID)
}

func TestLatestHonorsLimit(t *testing.T) {
	ctx := context.Background()
	store := newStore(newBackend())

	out, err := store.Latest(ctx, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "new", out[0].Record.ID)
}
