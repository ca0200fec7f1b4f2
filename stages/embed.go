package stages

import (
	"context"
	"fmt"
	"time"

	"ai-news-pipeline/gemini"
	"ai-news-pipeline/logger"
	"ai-news-pipeline/models"
	"ai-news-pipeline/pipeline"
)

// EmbedWorker produces the embedding vector and carries the record to
// complete.
type EmbedWorker struct {
	Tracker    *pipeline.Tracker
	Records    RecordStore
	Embeddings EmbeddingStore
	Embedder   Embedder
	AILogs     AILogStore

	Timeout time.Duration
	// ClaimTTL is the age after which another worker's in-progress
	// claim counts as abandoned. Defaults to twice the stage timeout.
	ClaimTTL time.Duration
}

func (w *EmbedWorker) Process(ctx context.Context, recordID string) (Outcome, error) {
	claimed, err := claim(ctx, w.Tracker, recordID, pipeline.StateSummarized, pipeline.StateEmbedding, claimTTL(w.ClaimTTL, w.Timeout))
	if err != nil {
		return OutcomeFailed, err
	}
	if !claimed {
		return OutcomeDiscarded, nil
	}

	rec, err := w.Records.Get(ctx, recordID)
	if err != nil {
		return settleFailure(ctx, w.Tracker, recordID, pipeline.StageEmbed,
			pipeline.Transient(fmt.Errorf("failed to load record: %w", err)))
	}
	if rec.ExtractedText == "" {
		return settleFailure(ctx, w.Tracker, recordID, pipeline.StageEmbed,
			pipeline.Permanent(fmt.Errorf("record has no extracted text")))
	}

	callCtx := ctx
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	vector, callLog, callErr := w.Embedder.Embed(callCtx, rec.ExtractedText)
	w.logCall(ctx, recordID, callLog, callErr)

	if callErr != nil {
		return settleFailure(ctx, w.Tracker, recordID, pipeline.StageEmbed, callErr)
	}

	feature := &models.EmbeddingFeature{
		RecordID:  recordID,
		Vector:    vector,
		Dimension: len(vector),
		ModelName: w.Embedder.EmbeddingModel(),
	}
	if err := w.Embeddings.Insert(ctx, feature); err != nil {
		return settleFailure(ctx, w.Tracker, recordID, pipeline.StageEmbed,
			pipeline.Transient(fmt.Errorf("failed to store embedding: %w", err)))
	}

	if err := w.Tracker.Advance(ctx, recordID, pipeline.StateEmbedding, pipeline.StateComplete); err != nil {
		if err == pipeline.ErrStaleState {
			return OutcomeDiscarded, nil
		}
		return OutcomeFailed, err
	}
	return OutcomeAdvanced, nil
}

func (w *EmbedWorker) logCall(ctx context.Context, recordID string, callLog *gemini.CallLog, callErr error) {
	if w.AILogs == nil || callLog == nil {
		return
	}
	l := models.AILog{
		RecordID:      recordID,
		Operation:     callLog.Operation,
		ModelName:     callLog.ModelName,
		InputTokens:   callLog.InputTokens,
		OutputTokens:  callLog.OutputTokens,
		TotalTokens:   callLog.TotalTokens,
		DurationMs:    callLog.DurationMs,
		OutputExcerpt: callLog.Excerpt,
		RequestedAt:   callLog.RequestedAt,
		CompletedAt:   callLog.CompletedAt,
	}
	if callErr != nil {
		msg := callErr.Error()
		l.ErrorMessage = &msg
	}
	if err := w.AILogs.Insert(ctx, l); err != nil {
		logger.ErrorWithFields("failed to insert ai log", logger.Fields{"record_id": recordID, "error": err.Error()})
	}
}
