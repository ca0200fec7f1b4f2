package pipeline

import (
	"context"
	"fmt"
	"time"

	"ai-news-pipeline/logger"
)

// StateStore is the persistence contract for processing states. The
// store is the single point of mutation arbitration: CompareAndSwap must
// be atomic so that of two racing workers at most one transition
// succeeds.
type StateStore interface {
	// Create inserts a pending state for the record. Creating a state
	// that already exists is a no-op (idempotent re-ingestion).
	Create(ctx context.Context, recordID string) error

	Get(ctx context.Context, recordID string) (*ProcessingState, error)

	// CompareAndSwap moves the record from→to only if its current state
	// equals from; otherwise it returns ErrStaleState.
	CompareAndSwap(ctx context.Context, recordID string, from, to State) error

	// SetFailure records failure bookkeeping: it moves the record
	// from→to and sets the stage's retry count and the last error
	// message, atomically, returning ErrStaleState when the record is
	// no longer in from. An empty stage leaves the retry counts
	// untouched (manual failure marking).
	SetFailure(ctx context.Context, recordID string, from, to State, stage Stage, retries int, lastError string) error

	// Reclaim refreshes the claim on a record stuck in an in-progress
	// state: it bumps updated_at only if the record still sits in
	// inProgress and was last touched at or before updatedBefore,
	// returning ErrStaleState otherwise.
	Reclaim(ctx context.Context, recordID string, inProgress State, updatedBefore time.Time) error

	// Counts returns the number of records per state.
	Counts(ctx context.Context) (map[State]int64, error)
}

// Tracker implements the per-record state machine on top of a
// StateStore. It owns transition legality and the retry policy; the
// store only provides atomic primitives.
type Tracker struct {
	store  StateStore
	policy RetryPolicy
}

func NewTracker(store StateStore, policy RetryPolicy) *Tracker {
	return &Tracker{store: store, policy: policy}
}

// Policy returns the tracker's retry policy.
func (t *Tracker) Policy() RetryPolicy { return t.policy }

// Register creates the pending state for a newly ingested record.
func (t *Tracker) Register(ctx context.Context, recordID string) error {
	return t.store.Create(ctx, recordID)
}

// Advance moves a record from one state to the next. It fails with
// ErrStaleState when another worker got there first, which the caller
// must treat as "discard your result silently".
func (t *Tracker) Advance(ctx context.Context, recordID string, from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal transition %s -> %s for record %s", from, to, recordID)
	}
	return t.store.CompareAndSwap(ctx, recordID, from, to)
}

// Fail records a stage failure for the record and decides its fate:
//   - quality-gate and permanent errors fail the record immediately,
//   - transient errors increment the stage retry count and revert the
//     record to the stage entry state while budget remains,
//   - an exhausted budget fails the record, preserving the retry count
//     and the last error.
//
// The returned retry flag tells the caller whether the record will be
// re-selected for the same stage.
func (t *Tracker) Fail(ctx context.Context, recordID string, stage Stage, cause error) (retry bool, err error) {
	st, err := t.store.Get(ctx, recordID)
	if err != nil {
		return false, err
	}
	if st.State.Terminal() {
		// Manual failure or a racing worker already finished the record.
		return false, nil
	}

	retries := st.RetryCount(stage)
	to := StateFailed
	lastError := cause.Error()

	switch {
	case !IsTransient(cause):
		logger.ErrorWithFields("record failed permanently", logger.Fields{
			"record_id": recordID,
			"stage":     string(stage),
			"error":     cause.Error(),
		})
	case t.policy.Exhausted(stage, retries):
		exhausted := &RetryExhaustedError{Stage: stage, Attempts: retries, Cause: cause}
		lastError = exhausted.Error()
		logger.ErrorWithFields("record failed after retry exhaustion", logger.Fields{
			"record_id": recordID,
			"stage":     string(stage),
			"retries":   retries,
			"error":     cause.Error(),
		})
	default:
		retry = true
		retries++
		to = stage.Entry()
		logger.InfoWithFields("record scheduled for retry", logger.Fields{
			"record_id": recordID,
			"stage":     string(stage),
			"retry":     retries,
			"max":       t.policy.MaxFor(stage),
		})
	}

	// The conditional write keeps the read-then-write pair honest: a
	// manual cancel or racing worker landing in between wins, and this
	// verdict is dropped.
	if err := t.store.SetFailure(ctx, recordID, st.State, to, stage, retries, lastError); err != nil {
		if err == ErrStaleState {
			return false, nil
		}
		return false, err
	}
	return retry, nil
}

// MarkFailed force-fails a record regardless of retry budget. Used by
// the operator cancel operation; in-flight workers lose their final
// CompareAndSwap afterwards and discard their output.
func (t *Tracker) MarkFailed(ctx context.Context, recordID string, reason string) error {
	st, err := t.store.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if st.State.Terminal() {
		return fmt.Errorf("record %s already %s", recordID, st.State)
	}
	if err := t.store.SetFailure(ctx, recordID, st.State, StateFailed, "", 0, reason); err != nil {
		if err == ErrStaleState {
			return fmt.Errorf("record %s changed state during cancel", recordID)
		}
		return err
	}
	return nil
}

// Reclaim takes over a stage claim left behind by a crashed worker. It
// succeeds only when the record still sits in the given in-progress
// state and has not been touched for at least staleAfter, so a live
// worker is never preempted.
func (t *Tracker) Reclaim(ctx context.Context, recordID string, inProgress State, staleAfter time.Duration) error {
	if !inProgress.InProgress() {
		return fmt.Errorf("cannot reclaim %s: not an in-progress state", inProgress)
	}
	return t.store.Reclaim(ctx, recordID, inProgress, time.Now().Add(-staleAfter))
}

// Reset re-enters a completed record at the summarize stage so new
// model versions can append fresh feature rows.
func (t *Tracker) Reset(ctx context.Context, recordID string) error {
	return t.store.CompareAndSwap(ctx, recordID, StateComplete, StateExtracted)
}

// StateOf returns the record's current state.
func (t *Tracker) StateOf(ctx context.Context, recordID string) (State, error) {
	st, err := t.store.Get(ctx, recordID)
	if err != nil {
		return "", err
	}
	return st.State, nil
}

// Get returns the full processing state for operator inspection.
func (t *Tracker) Get(ctx context.Context, recordID string) (*ProcessingState, error) {
	return t.store.Get(ctx, recordID)
}

// Counts aggregates records per state for health reporting.
func (t *Tracker) Counts(ctx context.Context) (map[State]int64, error) {
	return t.store.Counts(ctx)
}
