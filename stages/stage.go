// Package stages implements the extract, summarize and embed workers.
//
// Every worker follows the same shape: claim the record by CAS into the
// stage's in-progress state, run the transformation, write the artifact,
// then CAS into the done state. A lost race at either CAS means another
// worker owns the record; the loser discards its result silently.
package stages

import (
	"context"
	"time"

	"ai-news-pipeline/gemini"
	"ai-news-pipeline/logger"
	"ai-news-pipeline/models"
	"ai-news-pipeline/pipeline"
)

// Outcome tells the event handler what the worker did with the record.
type Outcome int

const (
	// OutcomeAdvanced means the record moved to the stage's done state.
	OutcomeAdvanced Outcome = iota
	// OutcomeDeduplicated means the extract stage short-circuited the
	// record to complete via a canonical reference.
	OutcomeDeduplicated
	// OutcomeDiscarded means another worker won the race; nothing was
	// written.
	OutcomeDiscarded
	// OutcomeFailed means the record was failed or reverted for retry.
	OutcomeFailed
	// OutcomeDeferred means the stage backed off without touching the
	// record's retry budget (daily quota spent); the event must be
	// redelivered later without spending its bus budget either.
	OutcomeDeferred
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeDeduplicated:
		return "deduplicated"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeFailed:
		return "failed"
	case OutcomeDeferred:
		return "deferred"
	}
	return "unknown"
}

// RecordStore is the slice of the record repository the workers need.
type RecordStore interface {
	Get(ctx context.Context, id string) (*models.Record, error)
	AppendExtraction(ctx context.Context, id, text, method, contentHash string) error
	LinkCanonical(ctx context.Context, id, canonicalID string) error
	// FindByContentHash returns nil when no other record has the hash.
	FindByContentHash(ctx context.Context, contentHash, excludeID string) (*models.Record, error)
}

// SummaryStore persists summary features.
type SummaryStore interface {
	Insert(ctx context.Context, f *models.SummaryFeature) error
}

// EmbeddingStore persists embedding features.
type EmbeddingStore interface {
	Insert(ctx context.Context, f *models.EmbeddingFeature) error
}

// AILogStore persists per-call LLM usage logs. A nil store disables
// logging.
type AILogStore interface {
	Insert(ctx context.Context, l models.AILog) error
}

// Summarizer is the LLM summarization contract (gemini.Client).
type Summarizer interface {
	Summarize(ctx context.Context, text string) (*gemini.SummarizeResult, *gemini.CallLog, error)
	Model() string
}

// Embedder is the embedding contract (gemini.Client).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, *gemini.CallLog, error)
	EmbeddingModel() string
}

// PageFetcher resolves a content reference into raw HTML.
type PageFetcher interface {
	RenderHTML(ctx context.Context, url string) (string, error)
}

// QuotaLimiter gates summarization calls. Returns false when the daily
// budget is spent.
type QuotaLimiter interface {
	WaitAndReserve(ctx context.Context) (bool, error)
}

// defaultClaimTTL bounds how long an untouched in-progress claim is
// trusted when no stage timeout is configured.
const defaultClaimTTL = 10 * time.Minute

// claimTTL picks the age after which a claim counts as abandoned. It
// must comfortably exceed the stage timeout so a live worker mid-call
// is never preempted.
func claimTTL(ttl, timeout time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	if timeout > 0 {
		return 2 * timeout
	}
	return defaultClaimTTL
}

// claim moves the record into the stage's in-progress state. A claim
// left behind by a crashed worker is taken over once it is older than
// ttl; a fresher claim belongs to a live worker and the caller must
// discard.
func claim(ctx context.Context, tracker *pipeline.Tracker, recordID string, from, to pipeline.State, ttl time.Duration) (bool, error) {
	err := tracker.Advance(ctx, recordID, from, to)
	if err == nil {
		return true, nil
	}
	if err != pipeline.ErrStaleState {
		return false, err
	}
	if rerr := tracker.Reclaim(ctx, recordID, to, ttl); rerr == nil {
		logger.InfoWithFields("reclaimed abandoned in-progress record", logger.Fields{
			"record_id": recordID,
			"state":     string(to),
		})
		return true, nil
	}
	return false, nil
}

// settleFailure routes a stage error through the tracker and translates
// the verdict for the event bus: a non-nil error means "redeliver me".
func settleFailure(ctx context.Context, tracker *pipeline.Tracker, recordID string, stage pipeline.Stage, cause error) (Outcome, error) {
	retry, err := tracker.Fail(ctx, recordID, stage, cause)
	if err != nil {
		return OutcomeFailed, err
	}
	if retry {
		return OutcomeFailed, cause
	}
	return OutcomeFailed, nil
}
