package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-news-pipeline/models"
	"ai-news-pipeline/pipeline"
)

func newEmbedWorker(embedder Embedder) (*EmbedWorker, *pipeline.Tracker, *pipeline.MemoryStateStore, *fakeEmbeddingStore) {
	tracker, store := newTestTracker()
	embeddings := &fakeEmbeddingStore{}
	records := newFakeRecordStore(&models.Record{ID: "r1", ExtractedText: "enough extracted text to embed"})
	w := &EmbedWorker{
		Tracker:    tracker,
		Records:    records,
		Embeddings: embeddings,
		Embedder:   embedder,
		AILogs:     &fakeAILogStore{},
	}
	return w, tracker, store, embeddings
}

func setupSummarized(t *testing.T, tracker *pipeline.Tracker, id string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, tracker.Register(ctx, id))
	for _, step := range [][2]pipeline.State{
		{pipeline.StatePending, pipeline.StateExtracting},
		{pipeline.StateExtracting, pipeline.StateExtracted},
		{pipeline.StateExtracted, pipeline.StateSummarizing},
		{pipeline.StateSummarizing, pipeline.StateSummarized},
	} {
		require.NoError(t, tracker.Advance(ctx, id, step[0], step[1]))
	}
}

func TestEmbedHappyPathCompletesRecord(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	w, tracker, store, embeddings := newEmbedWorker(embedder)
	setupSummarized(t, tracker, "r1")

	outcome, err := w.Process(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, outcome)

	st := mustState(store, "r1")
	assert.Equal(t, pipeline.StateComplete, st.State)
	require.NotNil(t, st.CompletedAt)

	require.Len(t, embeddings.features, 1)
	assert.Equal(t, 3, embeddings.features[0].Dimension)
	assert.Equal(t, "test-embedder", embeddings.features[0].ModelName)
}

func TestEmbedTransientFailureRetries(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{err: pipeline.Transient(errors.New("upstream overloaded"))}
	w, tracker, store, embeddings := newEmbedWorker(embedder)
	setupSummarized(t, tracker, "r1")

	outcome, err := w.Process(ctx, "r1")
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	st := mustState(store, "r1")
	assert.Equal(t, pipeline.StateSummarized, st.State)
	assert.Equal(t, 1, st.RetryCount(pipeline.StageEmbed))
	assert.Empty(t, embeddings.features)
}

func TestEmbedRetryCeilingLowerThanOtherStages(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{err: pipeline.Transient(errors.New("upstream overloaded"))}
	w, tracker, store, _ := newEmbedWorker(embedder)
	setupSummarized(t, tracker, "r1")

	maxRetries := tracker.Policy().MaxFor(pipeline.StageEmbed)
	require.Equal(t, 2, maxRetries)

	for i := 0; i < maxRetries; i++ {
		outcome, err := w.Process(ctx, "r1")
		require.Error(t, err)
		require.Equal(t, OutcomeFailed, outcome)
		require.Equal(t, pipeline.StateSummarized, mustState(store, "r1").State)
	}

	// Budget spent: the next failure is terminal.
	outcome, err := w.Process(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	st := mustState(store, "r1")
	assert.Equal(t, pipeline.StateFailed, st.State)
	assert.Equal(t, maxRetries, st.RetryCount(pipeline.StageEmbed))
	assert.Contains(t, st.LastError, "overloaded")
}

func TestEmbedManualFailureWinsTheRace(t *testing.T) {
	ctx := context.Background()
	embedder := &fakeEmbedder{vector: []float32{0.1}}
	w, tracker, store, _ := newEmbedWorker(embedder)
	setupSummarized(t, tracker, "r1")

	// Operator cancels while the record sits in summarized.
	require.NoError(t, tracker.MarkFailed(ctx, "r1", "cancelled by operator"))

	outcome, err := w.Process(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDiscarded, outcome)
	assert.Equal(t, pipeline.StateFailed, mustState(store, "r1").State)
}
