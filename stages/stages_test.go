package stages

import (
	"context"
	"fmt"
	"sync"

	"ai-news-pipeline/gemini"
	"ai-news-pipeline/models"
	"ai-news-pipeline/pipeline"
)

// In-memory fakes shared by the stage worker tests.

type fakeRecordStore struct {
	mu      sync.Mutex
	records map[string]*models.Record
}

func newFakeRecordStore(recs ...*models.Record) *fakeRecordStore {
	s := &fakeRecordStore{records: map[string]*models.Record{}}
	for _, r := range recs {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeRecordStore) Get(ctx context.Context, id string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (s *fakeRecordStore) AppendExtraction(ctx context.Context, id, text, method, contentHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("record %s not found", id)
	}
	r.ExtractedText = text
	r.ExtractionMethod = method
	r.ContentHash = contentHash
	return nil
}

func (s *fakeRecordStore) LinkCanonical(ctx context.Context, id, canonicalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("record %s not found", id)
	}
	r.CanonicalID = canonicalID
	return nil
}

func (s *fakeRecordStore) FindByContentHash(ctx context.Context, contentHash, excludeID string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID != excludeID && r.ContentHash == contentHash {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

type fakeSummaryStore struct {
	mu       sync.Mutex
	features []*models.SummaryFeature
}

func (s *fakeSummaryStore) Insert(ctx context.Context, f *models.SummaryFeature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.features = append(s.features, f)
	return nil
}

type fakeEmbeddingStore struct {
	mu       sync.Mutex
	features []*models.EmbeddingFeature
}

func (s *fakeEmbeddingStore) Insert(ctx context.Context, f *models.EmbeddingFeature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.features = append(s.features, f)
	return nil
}

type fakeAILogStore struct {
	mu   sync.Mutex
	logs []models.AILog
}

func (s *fakeAILogStore) Insert(ctx context.Context, l models.AILog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, l)
	return nil
}

type fakeSummarizer struct {
	result *gemini.SummarizeResult
	err    error
	calls  int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string) (*gemini.SummarizeResult, *gemini.CallLog, error) {
	f.calls++
	callLog := &gemini.CallLog{Operation: "summarize", ModelName: f.Model(), TotalTokens: 10}
	if f.err != nil {
		return nil, callLog, f.err
	}
	return f.result, callLog, nil
}

func (f *fakeSummarizer) Model() string { return "test-summarizer" }

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, *gemini.CallLog, error) {
	callLog := &gemini.CallLog{Operation: "embed", ModelName: f.EmbeddingModel()}
	if f.err != nil {
		return nil, callLog, f.err
	}
	return f.vector, callLog, nil
}

func (f *fakeEmbedder) EmbeddingModel() string { return "test-embedder" }

type fakeFetcher struct {
	html string
	err  error
}

func (f *fakeFetcher) RenderHTML(ctx context.Context, url string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.html, nil
}

type fakeQuota struct {
	allow bool
}

func (f *fakeQuota) WaitAndReserve(ctx context.Context) (bool, error) {
	return f.allow, nil
}

func newTestTracker() (*pipeline.Tracker, *pipeline.MemoryStateStore) {
	store := pipeline.NewMemoryStateStore()
	return pipeline.NewTracker(store, pipeline.DefaultRetryPolicy()), store
}

func mustState(store *pipeline.MemoryStateStore, recordID string) *pipeline.ProcessingState {
	st, err := store.Get(context.Background(), recordID)
	if err != nil {
		panic(err)
	}
	return st
}
