package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-news-pipeline/gemini"
	"ai-news-pipeline/models"
	"ai-news-pipeline/pipeline"
)

func newSummarizeWorker(summarizer Summarizer) (*SummarizeWorker, *pipeline.Tracker, *pipeline.MemoryStateStore, *fakeSummaryStore, *fakeAILogStore) {
	tracker, store := newTestTracker()
	summaries := &fakeSummaryStore{}
	aiLogs := &fakeAILogStore{}
	records := newFakeRecordStore(&models.Record{ID: "r1", ExtractedText: "enough extracted text to summarize"})
	w := &SummarizeWorker{
		Tracker:    tracker,
		Records:    records,
		Summaries:  summaries,
		Summarizer: summarizer,
		AILogs:     aiLogs,
	}
	return w, tracker, store, summaries, aiLogs
}

func setupExtracted(t *testing.T, tracker *pipeline.Tracker, id string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, tracker.Register(ctx, id))
	require.NoError(t, tracker.Advance(ctx, id, pipeline.StatePending, pipeline.StateExtracting))
	require.NoError(t, tracker.Advance(ctx, id, pipeline.StateExtracting, pipeline.StateExtracted))
}

func TestSummarizeHappyPath(t *testing.T) {
	ctx := context.Background()
	summarizer := &fakeSummarizer{result: &gemini.SummarizeResult{
		Summary:   "A rebalance storm took the fleet down for forty minutes.",
		KeyPoints: []string{"stagger restarts", "pin the assignor"},
	}}
	w, tracker, store, summaries, aiLogs := newSummarizeWorker(summarizer)
	setupExtracted(t, tracker, "r1")

	outcome, err := w.Process(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdvanced, outcome)
	assert.Equal(t, pipeline.StateSummarized, mustState(store, "r1").State)

	require.Len(t, summaries.features, 1)
	assert.Equal(t, "r1", summaries.features[0].RecordID)
	assert.Equal(t, "test-summarizer", summaries.features[0].ModelName)
	assert.Len(t, summaries.features[0].KeyPoints, 2)

	require.Len(t, aiLogs.logs, 1)
	assert.Equal(t, "summarize", aiLogs.logs[0].Operation)
	assert.Nil(t, aiLogs.logs[0].ErrorMessage)
}

func TestSummarizeTransientFailureRetries(t *testing.T) {
	ctx := context.Background()
	summarizer := &fakeSummarizer{err: pipeline.Transient(errors.New("rate limited"))}
	w, tracker, store, summaries, aiLogs := newSummarizeWorker(summarizer)
	setupExtracted(t, tracker, "r1")

	outcome, err := w.Process(ctx, "r1")
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	st := mustState(store, "r1")
	assert.Equal(t, pipeline.StateExtracted, st.State) // back at stage entry
	assert.Equal(t, 1, st.RetryCount(pipeline.StageSummarize))
	assert.Empty(t, summaries.features)

	require.Len(t, aiLogs.logs, 1)
	require.NotNil(t, aiLogs.logs[0].ErrorMessage)
}

func TestSummarizePermanentFailureIsTerminal(t *testing.T) {
	ctx := context.Background()
	summarizer := &fakeSummarizer{err: pipeline.Permanent(errors.New("api key rejected"))}
	w, tracker, store, summaries, _ := newSummarizeWorker(summarizer)
	setupExtracted(t, tracker, "r1")

	outcome, err := w.Process(ctx, "r1")
	require.NoError(t, err) // terminal, no redelivery
	assert.Equal(t, OutcomeFailed, outcome)

	st := mustState(store, "r1")
	assert.Equal(t, pipeline.StateFailed, st.State)
	assert.Zero(t, st.RetryCount(pipeline.StageSummarize))
	assert.Empty(t, summaries.features)
}

func TestSummarizeQuotaExhaustedDefersWithoutBudget(t *testing.T) {
	ctx := context.Background()
	summarizer := &fakeSummarizer{result: &gemini.SummarizeResult{Summary: "unused"}}
	w, tracker, store, _, _ := newSummarizeWorker(summarizer)
	w.Quota = &fakeQuota{allow: false}
	setupExtracted(t, tracker, "r1")

	outcome, err := w.Process(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDeferred, outcome)
	assert.Zero(t, summarizer.calls)

	st := mustState(store, "r1")
	assert.Equal(t, pipeline.StateExtracted, st.State)
	assert.Zero(t, st.RetryCount(pipeline.StageSummarize))
}

func TestSummarizeStaleStateDiscards(t *testing.T) {
	ctx := context.Background()
	summarizer := &fakeSummarizer{result: &gemini.SummarizeResult{Summary: "unused"}}
	w, tracker, store, summaries, _ := newSummarizeWorker(summarizer)
	require.NoError(t, tracker.Register(ctx, "r1")) // still pending

	outcome, err := w.Process(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDiscarded, outcome)
	assert.Equal(t, pipeline.StatePending, mustState(store, "r1").State)
	assert.Empty(t, summaries.features)
}
