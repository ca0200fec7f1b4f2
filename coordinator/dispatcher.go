package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ai-news-pipeline/eventbus"
	"ai-news-pipeline/events"
)

// Dispatcher publishes typed pipeline events onto the record topic.
type Dispatcher struct {
	bus    eventbus.EventBus
	topic  eventbus.Topic
	source string
}

func NewDispatcher(bus eventbus.EventBus, topic eventbus.Topic, source string) *Dispatcher {
	return &Dispatcher{bus: bus, topic: topic, source: source}
}

func (d *Dispatcher) envelope(t events.EventType) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Source:    d.source,
		Version:   "1.0",
	}
}

func (d *Dispatcher) publish(ctx context.Context, payload any) error {
	return eventbus.PublishJSON(ctx, d.bus, d.topic, payload, len(eventbus.RetryDelays))
}

func (d *Dispatcher) PublishRecordIngested(ctx context.Context, recordID, sourceName, title, url string) error {
	return d.publish(ctx, events.RecordIngestedEvent{
		BaseEvent:  d.envelope(events.RecordIngested),
		RecordID:   recordID,
		SourceName: sourceName,
		Title:      title,
		URL:        url,
	})
}

func (d *Dispatcher) PublishRecordExtracted(ctx context.Context, recordID, url string) error {
	return d.publish(ctx, events.RecordExtractedEvent{
		BaseEvent: d.envelope(events.RecordExtracted),
		RecordID:  recordID,
		URL:       url,
	})
}

func (d *Dispatcher) PublishRecordSummarized(ctx context.Context, recordID, url, modelName string) error {
	return d.publish(ctx, events.RecordSummarizedEvent{
		BaseEvent: d.envelope(events.RecordSummarized),
		RecordID:  recordID,
		URL:       url,
		ModelName: modelName,
	})
}

func (d *Dispatcher) PublishRecordCompleted(ctx context.Context, recordID, canonicalID string) error {
	return d.publish(ctx, events.RecordCompletedEvent{
		BaseEvent:   d.envelope(events.RecordCompleted),
		RecordID:    recordID,
		CanonicalID: canonicalID,
	})
}

func (d *Dispatcher) PublishRecordFailed(ctx context.Context, recordID, stage, reason string) error {
	return d.publish(ctx, events.RecordFailedEvent{
		BaseEvent: d.envelope(events.RecordFailed),
		RecordID:  recordID,
		Stage:     stage,
		Reason:    reason,
	})
}
