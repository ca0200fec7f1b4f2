// Package coordinator wires the stage workers to the event bus: it
// schedules new records, routes stage events to workers and chains the
// follow-up events. Idempotency comes from the state tracker's CAS, not
// from the queue.
package coordinator

import (
	"context"
	"fmt"

	"ai-news-pipeline/cache"
	"ai-news-pipeline/logger"
	"ai-news-pipeline/models"
	"ai-news-pipeline/pipeline"
	"ai-news-pipeline/stages"
)

// RecordGetter is the slice of the record repository the coordinator
// needs for event metadata.
type RecordGetter interface {
	Get(ctx context.Context, id string) (*models.Record, error)
}

type Coordinator struct {
	dispatcher *Dispatcher
	tracker    *pipeline.Tracker
	records    RecordGetter
	cache      *cache.Cache
}

func New(dispatcher *Dispatcher, tracker *pipeline.Tracker, records RecordGetter, c *cache.Cache) *Coordinator {
	return &Coordinator{
		dispatcher: dispatcher,
		tracker:    tracker,
		records:    records,
		cache:      c,
	}
}

// Schedule enqueues a record for processing by publishing its ingested
// event. Safe to call repeatedly: a record past pending is claimed by
// the extract worker's CAS and redundant events fall out as discards.
func (c *Coordinator) Schedule(ctx context.Context, recordID string) error {
	rec, err := c.records.Get(ctx, recordID)
	if err != nil {
		return fmt.Errorf("failed to load record %s: %w", recordID, err)
	}
	return c.dispatcher.PublishRecordIngested(ctx, rec.ID, rec.SourceName, rec.Title, rec.ExternalURL)
}

// Reprocess re-enters the summarize stage for a completed record, e.g.
// after a model upgrade. Features are versioned, so earlier outputs
// survive.
func (c *Coordinator) Reprocess(ctx context.Context, recordID string) error {
	if err := c.tracker.Reset(ctx, recordID); err != nil {
		return err
	}
	rec, err := c.records.Get(ctx, recordID)
	if err != nil {
		return fmt.Errorf("failed to load record %s: %w", recordID, err)
	}
	c.cache.Invalidate(ctx, cache.KeyLatestRecords)
	return c.dispatcher.PublishRecordExtracted(ctx, rec.ID, rec.ExternalURL)
}

// Fail marks a record failed by operator action and announces it.
func (c *Coordinator) Fail(ctx context.Context, recordID, reason string) error {
	if err := c.tracker.MarkFailed(ctx, recordID, reason); err != nil {
		return err
	}
	if err := c.dispatcher.PublishRecordFailed(ctx, recordID, "", reason); err != nil {
		logger.ErrorWithFields("failed to publish record failed event", logger.Fields{
			"record_id": recordID,
			"error":     err.Error(),
		})
	}
	return nil
}

// StatusReport aggregates pipeline health. Eventually consistent; each
// record is counted in exactly one state.
type StatusReport struct {
	Counts   map[pipeline.State]int64 `json:"counts"`
	Total    int64                    `json:"total"`
	InFlight int64                    `json:"in_flight"`
	Complete int64                    `json:"complete"`
	Failed   int64                    `json:"failed"`
}

// Status returns the per-state record counts.
func (c *Coordinator) Status(ctx context.Context) (*StatusReport, error) {
	counts, err := c.tracker.Counts(ctx)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{Counts: counts}
	for state, n := range counts {
		report.Total += n
		switch {
		case state == pipeline.StateComplete:
			report.Complete += n
		case state == pipeline.StateFailed:
			report.Failed += n
		case state.InProgress():
			report.InFlight += n
		}
	}
	return report, nil
}

// notifyOutcome publishes the follow-up event for a stage outcome.
func (c *Coordinator) notifyOutcome(ctx context.Context, recordID string, outcome stages.Outcome, next func(rec *models.Record) error) error {
	switch outcome {
	case stages.OutcomeDiscarded:
		logger.InfoWithFields("stale result discarded", logger.Fields{"record_id": recordID})
		return nil
	case stages.OutcomeFailed:
		return c.announceFailure(ctx, recordID)
	case stages.OutcomeDeferred:
		// Redelivery is arranged by the handler, not the outcome chain.
		return nil
	case stages.OutcomeDeduplicated:
		rec, err := c.records.Get(ctx, recordID)
		if err != nil {
			return err
		}
		c.cache.Invalidate(ctx, cache.KeyLatestRecords)
		return c.dispatcher.PublishRecordCompleted(ctx, recordID, rec.CanonicalID)
	case stages.OutcomeAdvanced:
		rec, err := c.records.Get(ctx, recordID)
		if err != nil {
			return err
		}
		return next(rec)
	}
	return nil
}

// announceFailure publishes record.failed when the record has reached
// the terminal failed state; retried records stay quiet.
func (c *Coordinator) announceFailure(ctx context.Context, recordID string) error {
	st, err := c.tracker.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if st.State != pipeline.StateFailed {
		return nil
	}
	return c.dispatcher.PublishRecordFailed(ctx, recordID, "", st.LastError)
}
