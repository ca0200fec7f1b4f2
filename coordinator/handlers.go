package coordinator

import (
	"context"
	"fmt"

	"ai-news-pipeline/cache"
	"ai-news-pipeline/eventbus"
	"ai-news-pipeline/events"
	"ai-news-pipeline/logger"
	"ai-news-pipeline/models"
	"ai-news-pipeline/stages"
)

// Handlers routes delivered events to the stage workers. A returned
// error asks the bus for a redelivery; nil commits the event.
type Handlers struct {
	coordinator *Coordinator
	extract     *stages.ExtractWorker
	summarize   *stages.SummarizeWorker
	embed       *stages.EmbedWorker
}

func NewHandlers(c *Coordinator, extract *stages.ExtractWorker, summarize *stages.SummarizeWorker, embed *stages.EmbedWorker) *Handlers {
	return &Handlers{
		coordinator: c,
		extract:     extract,
		summarize:   summarize,
		embed:       embed,
	}
}

// Route dispatches one bus event by its embedded type.
func (h *Handlers) Route(ctx context.Context, evt eventbus.Event) error {
	eventType, err := events.PeekType(evt.Payload)
	if err != nil {
		logger.ErrorWithFields("undecodable event, dropping", logger.Fields{"event_id": evt.ID, "error": err.Error()})
		return nil
	}

	switch eventType {
	case events.RecordIngested:
		e, err := eventbus.DecodeJSON[events.RecordIngestedEvent](evt)
		if err != nil {
			return nil
		}
		return h.handleRecordIngested(ctx, e)
	case events.RecordExtracted:
		e, err := eventbus.DecodeJSON[events.RecordExtractedEvent](evt)
		if err != nil {
			return nil
		}
		return h.handleRecordExtracted(ctx, e)
	case events.RecordSummarized:
		e, err := eventbus.DecodeJSON[events.RecordSummarizedEvent](evt)
		if err != nil {
			return nil
		}
		return h.handleRecordSummarized(ctx, e)
	case events.RecordCompleted:
		e, err := eventbus.DecodeJSON[events.RecordCompletedEvent](evt)
		if err != nil {
			return nil
		}
		return h.handleRecordCompleted(ctx, e)
	case events.RecordFailed:
		// Observability only; failure detail lives in the state store.
		return nil
	default:
		logger.ErrorWithFields("unknown event type, dropping", logger.Fields{"event_id": evt.ID, "type": string(eventType)})
		return nil
	}
}

func (h *Handlers) handleRecordIngested(ctx context.Context, e events.RecordIngestedEvent) error {
	logger.InfoWithFields("extracting record", logger.Fields{"record_id": e.RecordID, "source": e.SourceName})

	outcome, err := h.extract.Process(ctx, e.RecordID)
	if err != nil {
		return fmt.Errorf("extract %s: %w", e.RecordID, err)
	}
	return h.coordinator.notifyOutcome(ctx, e.RecordID, outcome, func(rec *models.Record) error {
		return h.coordinator.dispatcher.PublishRecordExtracted(ctx, rec.ID, rec.ExternalURL)
	})
}

func (h *Handlers) handleRecordExtracted(ctx context.Context, e events.RecordExtractedEvent) error {
	logger.InfoWithFields("summarizing record", logger.Fields{"record_id": e.RecordID})

	outcome, err := h.summarize.Process(ctx, e.RecordID)
	if err != nil {
		return fmt.Errorf("summarize %s: %w", e.RecordID, err)
	}
	if outcome == stages.OutcomeDeferred {
		return fmt.Errorf("summarize %s: %w", e.RecordID, eventbus.ErrDeferred)
	}
	return h.coordinator.notifyOutcome(ctx, e.RecordID, outcome, func(rec *models.Record) error {
		return h.coordinator.dispatcher.PublishRecordSummarized(ctx, rec.ID, rec.ExternalURL, h.summarize.Summarizer.Model())
	})
}

func (h *Handlers) handleRecordSummarized(ctx context.Context, e events.RecordSummarizedEvent) error {
	logger.InfoWithFields("embedding record", logger.Fields{"record_id": e.RecordID})

	outcome, err := h.embed.Process(ctx, e.RecordID)
	if err != nil {
		return fmt.Errorf("embed %s: %w", e.RecordID, err)
	}
	return h.coordinator.notifyOutcome(ctx, e.RecordID, outcome, func(rec *models.Record) error {
		h.coordinator.cache.Invalidate(ctx, cache.KeyLatestRecords)
		return h.coordinator.dispatcher.PublishRecordCompleted(ctx, rec.ID, rec.CanonicalID)
	})
}

func (h *Handlers) handleRecordCompleted(ctx context.Context, e events.RecordCompletedEvent) error {
	logger.InfoWithFields("record complete", logger.Fields{
		"record_id":    e.RecordID,
		"canonical_id": e.CanonicalID,
	})
	return nil
}
