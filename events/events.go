package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies a pipeline event.
type EventType string

const (
	RecordIngested   EventType = "record.ingested"
	RecordExtracted  EventType = "record.extracted"
	RecordSummarized EventType = "record.summarized"
	RecordCompleted  EventType = "record.completed"
	RecordFailed     EventType = "record.failed"
)

// BaseEvent carries the envelope shared by all events.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // "ingest", "worker", "api"
	Version   string    `json:"version"`
}

// GetType returns the event type.
func (e BaseEvent) GetType() EventType {
	return e.Type
}

// RecordIngestedEvent triggers the extract stage for a new or retry-
// eligible record.
type RecordIngestedEvent struct {
	BaseEvent
	RecordID   string `json:"record_id"`
	SourceName string `json:"source_name"`
	Title      string `json:"title"`
	URL        string `json:"url"`
}

// RecordExtractedEvent triggers the summarize stage.
type RecordExtractedEvent struct {
	BaseEvent
	RecordID string `json:"record_id"`
	URL      string `json:"url"`
}

// RecordSummarizedEvent triggers the embed stage.
type RecordSummarizedEvent struct {
	BaseEvent
	RecordID  string `json:"record_id"`
	URL       string `json:"url"`
	ModelName string `json:"model_name"`
}

// RecordCompletedEvent announces a record reaching the complete state,
// including via the content-dedup shortcut.
type RecordCompletedEvent struct {
	BaseEvent
	RecordID string `json:"record_id"`
	// CanonicalID is set when the record was deduplicated against an
	// earlier record's features.
	CanonicalID string `json:"canonical_id,omitempty"`
}

// RecordFailedEvent announces a terminal failure for observability;
// the authoritative failure detail lives in the processing state.
type RecordFailedEvent struct {
	BaseEvent
	RecordID string `json:"record_id"`
	Stage    string `json:"stage"`
	Reason   string `json:"reason"`
}

// PeekType extracts only the event type from a serialized event payload.
func PeekType(data []byte) (EventType, error) {
	var peek struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return "", fmt.Errorf("failed to peek event type: %w", err)
	}
	return peek.Type, nil
}
