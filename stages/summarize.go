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

// SummarizeWorker runs the LLM summarization call and stores the summary
// feature.
type SummarizeWorker struct {
	Tracker    *pipeline.Tracker
	Records    RecordStore
	Summaries  SummaryStore
	Summarizer Summarizer
	// Quota gates LLM calls; nil disables the limit.
	Quota  QuotaLimiter
	AILogs AILogStore

	Timeout time.Duration
	// ClaimTTL is the age after which another worker's in-progress
	// claim counts as abandoned. Defaults to twice the stage timeout.
	ClaimTTL time.Duration
}

func (w *SummarizeWorker) Process(ctx context.Context, recordID string) (Outcome, error) {
	claimed, err := claim(ctx, w.Tracker, recordID, pipeline.StateExtracted, pipeline.StateSummarizing, claimTTL(w.ClaimTTL, w.Timeout))
	if err != nil {
		return OutcomeFailed, err
	}
	if !claimed {
		return OutcomeDiscarded, nil
	}

	rec, err := w.Records.Get(ctx, recordID)
	if err != nil {
		return settleFailure(ctx, w.Tracker, recordID, pipeline.StageSummarize,
			pipeline.Transient(fmt.Errorf("failed to load record: %w", err)))
	}
	if rec.ExtractedText == "" {
		return settleFailure(ctx, w.Tracker, recordID, pipeline.StageSummarize,
			pipeline.Permanent(fmt.Errorf("record has no extracted text")))
	}

	if w.Quota != nil {
		ok, err := w.Quota.WaitAndReserve(ctx)
		if err != nil {
			return settleFailure(ctx, w.Tracker, recordID, pipeline.StageSummarize,
				pipeline.Transient(fmt.Errorf("quota wait interrupted: %w", err)))
		}
		if !ok {
			// Daily quota spent: hand the record back without consuming
			// its retry budget and let the bus redeliver later.
			if err := w.Tracker.Advance(ctx, recordID, pipeline.StateSummarizing, pipeline.StateExtracted); err != nil {
				if err == pipeline.ErrStaleState {
					return OutcomeDiscarded, nil
				}
				return OutcomeFailed, err
			}
			logger.InfoWithFields("summary quota exhausted, deferring record", logger.Fields{"record_id": recordID})
			return OutcomeDeferred, nil
		}
	}

	callCtx := ctx
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	result, callLog, callErr := w.Summarizer.Summarize(callCtx, rec.ExtractedText)
	w.logCall(ctx, recordID, callLog, callErr)

	if callErr != nil {
		return settleFailure(ctx, w.Tracker, recordID, pipeline.StageSummarize, callErr)
	}

	feature := &models.SummaryFeature{
		RecordID:  recordID,
		Summary:   result.Summary,
		KeyPoints: result.KeyPoints,
		ModelName: w.Summarizer.Model(),
	}
	if err := w.Summaries.Insert(ctx, feature); err != nil {
		return settleFailure(ctx, w.Tracker, recordID, pipeline.StageSummarize,
			pipeline.Transient(fmt.Errorf("failed to store summary: %w", err)))
	}

	if err := w.Tracker.Advance(ctx, recordID, pipeline.StateSummarizing, pipeline.StateSummarized); err != nil {
		if err == pipeline.ErrStaleState {
			return OutcomeDiscarded, nil
		}
		return OutcomeFailed, err
	}
	return OutcomeAdvanced, nil
}

func (w *SummarizeWorker) logCall(ctx context.Context, recordID string, callLog *gemini.CallLog, callErr error) {
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
