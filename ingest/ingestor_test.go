package ingest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"ai-news-pipeline/config"
	"ai-news-pipeline/feeder"
	"ai-news-pipeline/models"
)

type fakeSourceStore struct {
	sources map[string]*models.Source
}

func newFakeSourceStore() *fakeSourceStore {
	return &fakeSourceStore{sources: map[string]*models.Source{}}
}

func (s *fakeSourceStore) UpsertByEndpoint(ctx context.Context, src *models.Source) (*mongo.UpdateResult, error) {
	if existing, ok := s.sources[src.Endpoint]; ok {
		existing.Name = src.Name
		existing.Type = src.Type
		return &mongo.UpdateResult{MatchedCount: 1}, nil
	}
	cp := *src
	cp.ID = primitive.NewObjectID()
	cp.Active = true
	s.sources[src.Endpoint] = &cp
	return &mongo.UpdateResult{UpsertedCount: 1}, nil
}

func (s *fakeSourceStore) ListActive(ctx context.Context) ([]models.Source, error) {
	var out []models.Source
	for _, src := range s.sources {
		if src.Active {
			out = append(out, *src)
		}
	}
	return out, nil
}

type fakeRecordWriter struct {
	records map[string]*models.Record
}

func (w *fakeRecordWriter) InsertIfAbsent(ctx context.Context, rec *models.Record) (bool, error) {
	if _, ok := w.records[rec.ID]; ok {
		return false, nil
	}
	cp := *rec
	w.records[rec.ID] = &cp
	return true, nil
}

type trackingScheduler struct {
	registered []string
	scheduled  []string
}

func (t *trackingScheduler) Register(ctx context.Context, recordID string) error {
	t.registered = append(t.registered, recordID)
	return nil
}

func (t *trackingScheduler) Schedule(ctx context.Context, recordID string) error {
	t.scheduled = append(t.scheduled, recordID)
	return nil
}

type fakeFeedFetcher struct {
	items map[string][]feeder.FeedItem
}

func (f *fakeFeedFetcher) FetchFeed(ctx context.Context, feedURL string, limit int) ([]feeder.FeedItem, error) {
	return f.items[feedURL], nil
}

func (f *fakeFeedFetcher) FetchChannel(ctx context.Context, channelID string, limit int) ([]feeder.FeedItem, error) {
	return f.items[channelID], nil
}

func newTestIngestor(items map[string][]feeder.FeedItem) (*Ingestor, *fakeSourceStore, *fakeRecordWriter, *trackingScheduler) {
	sources := newFakeSourceStore()
	records := &fakeRecordWriter{records: map[string]*models.Record{}}
	sched := &trackingScheduler{}
	in := &Ingestor{
		Sources:   sources,
		Records:   records,
		Tracker:   sched,
		Scheduler: sched,
		Fetcher:   &fakeFeedFetcher{items: items},
	}
	return in, sources, records, sched
}

func TestSyncSourcesValidatesType(t *testing.T) {
	in, sources, _, _ := newTestIngestor(nil)

	err := in.SyncSources(context.Background(), []config.SourceConfig{
		{Name: "blog", Type: "feed", Endpoint: "https://blog.example.com/rss"},
	})
	require.NoError(t, err)
	assert.Len(t, sources.sources, 1)

	err = in.SyncSources(context.Background(), []config.SourceConfig{
		{Name: "bad", Type: "carrier-pigeon", Endpoint: "x"},
	})
	assert.Error(t, err)
}

func TestRunOnceIngestsAndSchedules(t *testing.T) {
	ctx := context.Background()
	items := map[string][]feeder.FeedItem{
		"https://blog.example.com/rss": {
			{Title: "post one", Link: "https://blog.example.com/one", PublishedAt: time.Now()},
			{Title: "post two", Link: "https://blog.example.com/two", Content: strings.Repeat("inline body ", 50)},
		},
	}
	in, _, records, sched := newTestIngestor(items)
	require.NoError(t, in.SyncSources(ctx, []config.SourceConfig{
		{Name: "blog", Type: "feed", Endpoint: "https://blog.example.com/rss"},
	}))

	require.NoError(t, in.RunOnce(ctx))

	assert.Len(t, records.records, 2)
	assert.Len(t, sched.registered, 2)
	assert.Len(t, sched.scheduled, 2)

	// Short teaser content yields a content reference, long inline
	// content is stored directly.
	one := records.records[RecordID("https://blog.example.com/one")]
	require.NotNil(t, one)
	assert.Empty(t, one.RawContent)
	assert.Equal(t, "https://blog.example.com/one", one.ContentRef)

	two := records.records[RecordID("https://blog.example.com/two")]
	require.NotNil(t, two)
	assert.NotEmpty(t, two.RawContent)
	assert.Empty(t, two.ContentRef)
}

func TestRunOnceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	items := map[string][]feeder.FeedItem{
		"https://blog.example.com/rss": {
			{Title: "post", Link: "https://blog.example.com/post/?utm_source=rss"},
		},
	}
	in, _, records, sched := newTestIngestor(items)
	require.NoError(t, in.SyncSources(ctx, []config.SourceConfig{
		{Name: "blog", Type: "feed", Endpoint: "https://blog.example.com/rss"},
	}))

	require.NoError(t, in.RunOnce(ctx))
	require.NoError(t, in.RunOnce(ctx))

	assert.Len(t, records.records, 1)
	assert.Len(t, sched.scheduled, 1)
}

func TestRunOnceTrackingParamVariantsCollapse(t *testing.T) {
	ctx := context.Background()
	items := map[string][]feeder.FeedItem{
		"https://a.example.com/rss": {
			{Title: "post", Link: "https://blog.example.com/post/"},
		},
		"https://b.example.com/rss": {
			{Title: "post", Link: "https://blog.example.com/post?utm_campaign=x&fbclid=123"},
		},
	}
	in, _, records, _ := newTestIngestor(items)
	require.NoError(t, in.SyncSources(ctx, []config.SourceConfig{
		{Name: "a", Type: "feed", Endpoint: "https://a.example.com/rss"},
		{Name: "b", Type: "feed", Endpoint: "https://b.example.com/rss"},
	}))

	require.NoError(t, in.RunOnce(ctx))
	assert.Len(t, records.records, 1)
}

func TestRunOncePageSource(t *testing.T) {
	ctx := context.Background()
	in, _, records, _ := newTestIngestor(nil)
	require.NoError(t, in.SyncSources(ctx, []config.SourceConfig{
		{Name: "changelog", Type: "page", Endpoint: "https://product.example.com/changelog"},
	}))

	require.NoError(t, in.RunOnce(ctx))

	require.Len(t, records.records, 1)
	for _, rec := range records.records {
		assert.Equal(t, "changelog", rec.Title)
		assert.Equal(t, "https://product.example.com/changelog", rec.ContentRef)
	}
}
