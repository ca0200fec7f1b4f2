package stages

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/RadhiFadlillah/whatlanggo"

	"ai-news-pipeline/logger"
	"ai-news-pipeline/parser"
	"ai-news-pipeline/pipeline"
)

// ExtractWorker resolves a record's content, extracts plain text, runs
// the quality and dedup gates and advances the record to extracted (or
// straight to complete on a duplicate).
type ExtractWorker struct {
	Tracker *pipeline.Tracker
	Records RecordStore
	// Fetcher resolves content references (page sources). May be nil
	// when every configured source ships inline content.
	Fetcher PageFetcher

	MinContentLength int
	// AllowedLanguages holds ISO 639-3 codes; empty accepts any language.
	AllowedLanguages []string
	Timeout          time.Duration
	// ClaimTTL is the age after which another worker's in-progress
	// claim counts as abandoned. Defaults to twice the stage timeout.
	ClaimTTL time.Duration
}

func (w *ExtractWorker) Process(ctx context.Context, recordID string) (Outcome, error) {
	claimed, err := claim(ctx, w.Tracker, recordID, pipeline.StatePending, pipeline.StateExtracting, claimTTL(w.ClaimTTL, w.Timeout))
	if err != nil {
		return OutcomeFailed, err
	}
	if !claimed {
		return OutcomeDiscarded, nil
	}

	rec, err := w.Records.Get(ctx, recordID)
	if err != nil {
		return settleFailure(ctx, w.Tracker, recordID, pipeline.StageExtract,
			pipeline.Transient(fmt.Errorf("failed to load record: %w", err)))
	}

	raw, err := w.resolveContent(ctx, rec.RawContent, rec.ContentRef)
	if err != nil {
		return settleFailure(ctx, w.Tracker, recordID, pipeline.StageExtract, err)
	}

	text, method, err := parser.ExtractText(raw)
	if err != nil {
		return settleFailure(ctx, w.Tracker, recordID, pipeline.StageExtract,
			pipeline.QualityGate("no extractable content"))
	}

	if err := w.qualityGate(text); err != nil {
		return settleFailure(ctx, w.Tracker, recordID, pipeline.StageExtract, err)
	}

	sum := sha256.Sum256([]byte(text))
	contentHash := hex.EncodeToString(sum[:])

	if err := w.Records.AppendExtraction(ctx, recordID, text, method, contentHash); err != nil {
		return settleFailure(ctx, w.Tracker, recordID, pipeline.StageExtract,
			pipeline.Transient(fmt.Errorf("failed to append extraction: %w", err)))
	}

	// Dedup gate: identical content already carried to completion by
	// another record means this one shares those features.
	if canonicalID, ok, err := w.findCompletedDuplicate(ctx, contentHash, recordID); err != nil {
		return settleFailure(ctx, w.Tracker, recordID, pipeline.StageExtract, err)
	} else if ok {
		if err := w.Records.LinkCanonical(ctx, recordID, canonicalID); err != nil {
			return settleFailure(ctx, w.Tracker, recordID, pipeline.StageExtract,
				pipeline.Transient(fmt.Errorf("failed to link canonical record: %w", err)))
		}
		if err := w.Tracker.Advance(ctx, recordID, pipeline.StateExtracting, pipeline.StateComplete); err != nil {
			if err == pipeline.ErrStaleState {
				return OutcomeDiscarded, nil
			}
			return OutcomeFailed, err
		}
		logger.InfoWithFields("record deduplicated by content hash", logger.Fields{
			"record_id":    recordID,
			"canonical_id": canonicalID,
		})
		return OutcomeDeduplicated, nil
	}

	if err := w.Tracker.Advance(ctx, recordID, pipeline.StateExtracting, pipeline.StateExtracted); err != nil {
		if err == pipeline.ErrStaleState {
			return OutcomeDiscarded, nil
		}
		return OutcomeFailed, err
	}
	return OutcomeAdvanced, nil
}

func (w *ExtractWorker) resolveContent(ctx context.Context, rawContent, contentRef string) (string, error) {
	if rawContent != "" {
		return rawContent, nil
	}
	if contentRef == "" {
		return "", pipeline.Permanent(fmt.Errorf("record has neither inline content nor a content reference"))
	}
	if w.Fetcher == nil {
		return "", pipeline.Permanent(fmt.Errorf("no fetcher configured for content reference %s", contentRef))
	}

	fetchCtx := ctx
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	html, err := w.Fetcher.RenderHTML(fetchCtx, contentRef)
	if err != nil {
		return "", pipeline.Transient(fmt.Errorf("failed to fetch %s: %w", contentRef, err))
	}
	return html, nil
}

func (w *ExtractWorker) qualityGate(text string) error {
	if n := utf8.RuneCountInString(text); n < w.MinContentLength {
		return pipeline.QualityGate("content too short: %d < %d chars", n, w.MinContentLength)
	}

	if len(w.AllowedLanguages) > 0 {
		info := whatlanggo.Detect(text)
		code := whatlanggo.LangToString(info.Lang)
		allowed := false
		for _, lang := range w.AllowedLanguages {
			if lang == code {
				allowed = true
				break
			}
		}
		if !allowed {
			return pipeline.QualityGate("language %q not in allowed set", code)
		}
	}
	return nil
}

// findCompletedDuplicate reports whether another record with the same
// content hash has already completed the pipeline. Returns the ID to use
// as the canonical reference: the duplicate's own canonical if it was
// itself deduplicated.
func (w *ExtractWorker) findCompletedDuplicate(ctx context.Context, contentHash, excludeID string) (string, bool, error) {
	dup, err := w.Records.FindByContentHash(ctx, contentHash, excludeID)
	if err != nil {
		return "", false, pipeline.Transient(fmt.Errorf("dedup lookup failed: %w", err))
	}
	if dup == nil {
		return "", false, nil
	}

	state, err := w.Tracker.StateOf(ctx, dup.ID)
	if err != nil {
		if err == pipeline.ErrStateNotFound {
			return "", false, nil
		}
		return "", false, pipeline.Transient(fmt.Errorf("dedup state lookup failed: %w", err))
	}
	if state != pipeline.StateComplete {
		return "", false, nil
	}

	canonicalID := dup.ID
	if dup.CanonicalID != "" {
		canonicalID = dup.CanonicalID
	}
	return canonicalID, true, nil
}
